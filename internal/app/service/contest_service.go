package service

import (
	"context"

	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/domain/repository"
)

type ContestService struct {
	contestRepo    repository.ContestRepository
	disciplineRepo repository.DisciplineRepository
}

func NewContestService(contestRepo repository.ContestRepository, disciplineRepo repository.DisciplineRepository) *ContestService {
	return &ContestService{contestRepo: contestRepo, disciplineRepo: disciplineRepo}
}

// List returns contests, newest first.
func (s *ContestService) List(ctx context.Context) ([]model.Contest, error) {
	contests, err := s.contestRepo.List(ctx)
	if err != nil {
		return nil, storeError("list contests", err)
	}
	return contests, nil
}

func (s *ContestService) Disciplines(ctx context.Context) ([]model.Discipline, error) {
	disciplines, err := s.disciplineRepo.List(ctx)
	if err != nil {
		return nil, storeError("list disciplines", err)
	}
	return disciplines, nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/vcontests/vscubing-back/internal/app/validation"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/cube"
	"github.com/vcontests/vscubing-back/internal/domain/model"
	"github.com/vcontests/vscubing-back/internal/domain/repository"
	"github.com/vcontests/vscubing-back/internal/platform/database"
)

// ContestSpec describes a contest to provision, usually read from YAML.
type ContestSpec struct {
	ContestNumber int              `yaml:"contest_number"`
	Start         time.Time        `yaml:"start"`
	End           *time.Time       `yaml:"end"`
	ClosePrevious bool             `yaml:"close_previous"`
	Disciplines   []DisciplineSpec `yaml:"disciplines"`
}

type DisciplineSpec struct {
	Name      string   `yaml:"name"`
	Slug      string   `yaml:"slug"`
	Scrambles []string `yaml:"scrambles"`
	Extras    []string `yaml:"extras"`
}

// ParseContestSpec decodes a YAML contest description.
func ParseContestSpec(r io.Reader) (*ContestSpec, error) {
	var spec ContestSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: contest file: %v", common.ErrValidation, err)
	}
	return &spec, nil
}

type ProvisionResult struct {
	Contest     *model.Contest
	Disciplines []model.Discipline
	Scrambles   int
	Closed      int64
}

type ProvisioningService struct {
	db             *sql.DB
	contestRepo    repository.ContestRepository
	disciplineRepo repository.DisciplineRepository
	scrambleRepo   repository.ScrambleRepository
	sessions       *RoundSessionService
	finishQueue    FinishQueue
	now            Clock
	logger         *slog.Logger
}

func NewProvisioningService(
	db *sql.DB,
	contestRepo repository.ContestRepository,
	disciplineRepo repository.DisciplineRepository,
	scrambleRepo repository.ScrambleRepository,
	sessions *RoundSessionService,
	finishQueue FinishQueue,
	now Clock,
	logger *slog.Logger,
) *ProvisioningService {
	if now == nil {
		now = time.Now
	}
	return &ProvisioningService{
		db:             db,
		contestRepo:    contestRepo,
		disciplineRepo: disciplineRepo,
		scrambleRepo:   scrambleRepo,
		sessions:       sessions,
		finishQueue:    finishQueue,
		now:            now,
		logger:         logger,
	}
}

// Provision creates an ongoing contest with its disciplines and scrambles in
// one transaction. With ClosePrevious set, contests still flagged ongoing
// are closed first and their active sessions get a finish check.
func (s *ProvisioningService) Provision(ctx context.Context, spec *ContestSpec) (*ProvisionResult, error) {
	if err := checkContestSpec(spec); err != nil {
		return nil, err
	}

	var previous []model.Contest
	if spec.ClosePrevious {
		var err error
		if previous, err = s.contestRepo.FindOngoing(ctx); err != nil {
			return nil, storeError("find ongoing contests", err)
		}
	}

	result := &ProvisionResult{
		Contest: &model.Contest{
			ID:            uuid.NewString(),
			ContestNumber: spec.ContestNumber,
			Start:         spec.Start,
			End:           spec.End,
			Ongoing:       true,
		},
	}
	if result.Contest.Start.IsZero() {
		result.Contest.Start = s.now().UTC()
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if spec.ClosePrevious {
			closed, err := s.contestRepo.CloseOngoing(ctx, tx, s.now())
			if err != nil {
				return err
			}
			result.Closed = closed
		}
		if err := s.contestRepo.Create(ctx, tx, result.Contest); err != nil {
			return err
		}
		for _, ds := range spec.Disciplines {
			d, err := s.disciplineRepo.GetOrCreate(ctx, tx, &model.Discipline{
				ID:   uuid.NewString(),
				Slug: disciplineSlug(ds),
				Name: ds.Name,
			})
			if err != nil {
				return err
			}
			result.Disciplines = append(result.Disciplines, *d)
			n, err := s.createScrambles(ctx, tx, result.Contest.ID, d.ID, ds)
			if err != nil {
				return err
			}
			result.Scrambles += n
		}
		return nil
	})
	if err != nil {
		return nil, storeError("provision contest", err)
	}
	s.logger.InfoContext(ctx, "Contest provisioned",
		"contest_number", result.Contest.ContestNumber, "disciplines", len(result.Disciplines),
		"scrambles", result.Scrambles, "closed_contests", result.Closed)

	for _, c := range previous {
		s.scheduleFinishChecks(ctx, c.ID)
	}
	return result, nil
}

func (s *ProvisioningService) createScrambles(ctx context.Context, tx *sql.Tx, contestID, disciplineID string, ds DisciplineSpec) (int, error) {
	n := 0
	for _, group := range []struct {
		moves []string
		extra bool
	}{{ds.Scrambles, false}, {ds.Extras, true}} {
		for i, moves := range group.moves {
			err := s.scrambleRepo.Create(ctx, tx, &model.Scramble{
				ID:           uuid.NewString(),
				ContestID:    contestID,
				DisciplineID: disciplineID,
				Position:     i + 1,
				Extra:        group.extra,
				Moves:        strings.TrimSpace(moves),
			})
			if err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (s *ProvisioningService) scheduleFinishChecks(ctx context.Context, contestID string) {
	ids, err := s.sessions.UnfinishedSessionIDs(ctx, contestID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list sessions of closed contest", "contest_id", contestID, "error", err)
		return
	}
	for _, id := range ids {
		if err := s.finishQueue.EnqueueFinishCheck(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule finish check", "session_id", id, "error", err)
		}
	}
}

func disciplineSlug(ds DisciplineSpec) string {
	if ds.Slug != "" {
		return slug.Make(ds.Slug)
	}
	return slug.Make(ds.Name)
}

func checkContestSpec(spec *ContestSpec) error {
	if spec == nil {
		return fmt.Errorf("%w: empty contest", common.ErrValidation)
	}
	var errs []error
	if spec.ContestNumber <= 0 {
		errs = append(errs, fmt.Errorf("contest_number must be positive"))
	}
	if spec.End != nil && !spec.Start.IsZero() && !spec.End.After(spec.Start) {
		errs = append(errs, fmt.Errorf("end must be after start"))
	}
	if len(spec.Disciplines) == 0 {
		errs = append(errs, fmt.Errorf("at least one discipline is required"))
	}
	seen := make(map[string]bool)
	for _, ds := range spec.Disciplines {
		sl := disciplineSlug(ds)
		if sl == "" {
			errs = append(errs, fmt.Errorf("discipline %q has no usable slug", ds.Name))
			continue
		}
		if seen[sl] {
			errs = append(errs, fmt.Errorf("discipline %s listed twice", sl))
		}
		seen[sl] = true
		if len(ds.Scrambles) == 0 {
			errs = append(errs, fmt.Errorf("discipline %s has no scrambles", sl))
		}
		n, err := validation.PuzzleSize(sl)
		if err != nil {
			// Judged by the remote validator, nothing to check here.
			continue
		}
		for _, moves := range append(append([]string{}, ds.Scrambles...), ds.Extras...) {
			if err := checkScramble(n, moves); err != nil {
				errs = append(errs, fmt.Errorf("discipline %s scramble %q: %v", sl, moves, err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

func checkScramble(n int, moves string) error {
	parsed, err := cube.Parse(moves)
	if err != nil {
		return err
	}
	if len(parsed) == 0 {
		return fmt.Errorf("empty scramble")
	}
	c, err := cube.New(n)
	if err != nil {
		return err
	}
	return c.Apply(parsed)
}

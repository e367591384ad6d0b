package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vcontests/vscubing-back/internal/api/view"
	"github.com/vcontests/vscubing-back/internal/app/service"
	"github.com/vcontests/vscubing-back/internal/common"
)

type ContestHandler struct {
	contestService *service.ContestService
	sessionService *service.RoundSessionService
}

func NewContestHandler(cs *service.ContestService, rs *service.RoundSessionService) *ContestHandler {
	return &ContestHandler{contestService: cs, sessionService: rs}
}

func (h *ContestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/contests", h.listContests)
	r.Get("/disciplines", h.listDisciplines)
	r.Get("/round-sessions/with-solves", h.roundResults)
}

func (h *ContestHandler) listContests(w http.ResponseWriter, r *http.Request) {
	contests, err := h.contestService.List(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view.NewContests(contests))
}

func (h *ContestHandler) listDisciplines(w http.ResponseWriter, r *http.Request) {
	disciplines, err := h.contestService.Disciplines(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view.NewDisciplines(disciplines))
}

func (h *ContestHandler) roundResults(w http.ResponseWriter, r *http.Request) {
	number := parsePositiveInt(r.URL.Query().Get("contest"), 0)
	slug := r.URL.Query().Get("discipline")
	if number == 0 || slug == "" {
		common.RespondWithError(w, http.StatusBadRequest, "contest and discipline query parameters are required")
		return
	}

	contest, discipline, sessions, err := h.sessionService.ListWithSolves(r.Context(), number, slug)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view.NewRoundResults(contest, discipline, sessions))
}

func parsePositiveInt(s string, defaultVal int) int {
	if val, err := strconv.Atoi(s); err == nil && val > 0 {
		return val
	}
	return defaultVal
}

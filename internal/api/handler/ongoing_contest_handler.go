package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vcontests/vscubing-back/internal/api/middleware"
	"github.com/vcontests/vscubing-back/internal/api/view"
	"github.com/vcontests/vscubing-back/internal/app/service"
	"github.com/vcontests/vscubing-back/internal/common"
)

// OngoingContestHandler serves the participant's view of the current round.
type OngoingContestHandler struct {
	solveService *service.SolveService
}

func NewOngoingContestHandler(ss *service.SolveService) *OngoingContestHandler {
	return &OngoingContestHandler{solveService: ss}
}

func (h *OngoingContestHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Get("/current-solve", h.currentSolve)
	r.Get("/submitted-solves", h.submittedSolves)
}

func (h *OngoingContestHandler) currentSolve(w http.ResponseWriter, r *http.Request) {
	userID, slug, ok := userAndDiscipline(w, r)
	if !ok {
		return
	}
	state, err := h.solveService.CurrentSolve(r.Context(), userID, slug)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view.NewCurrentSolve(state))
}

func (h *OngoingContestHandler) submittedSolves(w http.ResponseWriter, r *http.Request) {
	userID, slug, ok := userAndDiscipline(w, r)
	if !ok {
		return
	}
	solves, err := h.solveService.SubmittedSolves(r.Context(), userID, slug)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view.NewSolves(solves))
}

func userAndDiscipline(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return "", "", false
	}
	slug := r.URL.Query().Get("discipline")
	if slug == "" {
		common.RespondWithError(w, http.StatusBadRequest, "discipline query parameter is required")
		return "", "", false
	}
	return userID, slug, true
}

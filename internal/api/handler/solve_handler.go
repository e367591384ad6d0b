package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vcontests/vscubing-back/internal/api/middleware"
	"github.com/vcontests/vscubing-back/internal/api/view"
	"github.com/vcontests/vscubing-back/internal/app/service"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
)

type SolveHandler struct {
	solveService *service.SolveService
}

func NewSolveHandler(ss *service.SolveService) *SolveHandler {
	return &SolveHandler{solveService: ss}
}

func (h *SolveHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Post("/", h.createSolve)
	r.Get("/{solveID}", h.getSolve)
	r.Post("/{solveID}/submit", h.submitSolve)
}

func (h *SolveHandler) createSolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req service.CreateSolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	solve, err := h.solveService.CreateSolve(r.Context(), userID, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, view.NewSolve(solve))
}

type submitRequest struct {
	Action string `json:"action"`
}

func (h *SolveHandler) submitSolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	solve, err := h.solveService.SubmitSolve(r.Context(), userID, chi.URLParam(r, "solveID"), model.SubmissionState(req.Action))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view.NewSolve(solve))
}

func (h *SolveHandler) getSolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	details, err := h.solveService.GetSolve(r.Context(), userID, chi.URLParam(r, "solveID"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view.NewSolveDetail(details))
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vcontests/vscubing-back/internal/api/middleware"
	"github.com/vcontests/vscubing-back/internal/api/view"
	"github.com/vcontests/vscubing-back/internal/app/service"
	"github.com/vcontests/vscubing-back/internal/common"
	"github.com/vcontests/vscubing-back/internal/domain/model"
)

type AdminHandler struct {
	sessionService *service.RoundSessionService
}

func NewAdminHandler(rs *service.RoundSessionService) *AdminHandler {
	return &AdminHandler{sessionService: rs}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator)
	r.Use(middleware.AdminOnly)
	r.Post("/round-sessions/{sessionID}/finish", h.finishSession)
}

func (h *AdminHandler) finishSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.Finish(r.Context(), chi.URLParam(r, "sessionID"), model.FinishReasonManual)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, view.NewRoundSession(session))
}

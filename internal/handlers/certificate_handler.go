// internal/handlers/certificate_handler.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"go_5_skill_ladder/internal/middleware"
	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/service"
	"go_5_skill_ladder/internal/webutil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CertificateHandler struct {
	service service.CertificateService
	logger  *slog.Logger
}

func NewCertificateHandler(s service.CertificateService, logger *slog.Logger) *CertificateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateHandler{
		service: s,
		logger:  logger,
	}
}

// GetEligibility は修了証の発行可否を返すハンドラ
func (h *CertificateHandler) GetEligibility(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetEligibility"))

	actor, err := middleware.GetActorFromContext(r.Context())
	if err != nil {
		logger.Warn("Unauthorized access attempt", slog.String("error", err.Error()))
		webutil.HandleError(w, logger, err)
		return
	}
	logger = logger.With(slog.String("learner_id", actor.ID.String()))

	trackIDStr := chi.URLParam(r, "track_id")
	trackID, err := uuid.Parse(trackIDStr)
	if err != nil {
		logger.Warn("Invalid track ID format in URL", slog.String("track_id_str", trackIDStr))
		appErr := model.NewAppError("INVALID_URL_PARAM", "track_idの形式が正しくありません。", "track_id", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	logger = logger.With(slog.String("track_id", trackID.String()))

	resp, err := h.service.Eligibility(r.Context(), actor.ID, trackID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Info("Eligibility check rejected", slog.Any("error", err))
		} else {
			logger.Error("Error checking eligibility in service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Eligibility computed", slog.Bool("eligible", resp.Eligible))
	webutil.RespondWithJSON(w, logger, http.StatusOK, resp)
}

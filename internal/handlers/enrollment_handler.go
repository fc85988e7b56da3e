// internal/handlers/enrollment_handler.go
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

type EnrollmentHandler struct {
	service service.EnrollmentService
	logger  *slog.Logger
}

func NewEnrollmentHandler(s service.EnrollmentService, logger *slog.Logger) *EnrollmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrollmentHandler{
		service: s,
		logger:  logger,
	}
}

// Enroll はトラックへの入会（冪等）を行うハンドラ
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "Enroll"))

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

	resp, err := h.service.Enroll(r.Context(), actor.ID, trackID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Info("Track not found", slog.Any("error", err))
		} else {
			logger.Error("Error enrolling in service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	// 冪等: 既存メンバーシップの返却は200、新規作成は201
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	logger.Info("Enrollment processed", slog.Bool("created", resp.Created))
	webutil.RespondWithJSON(w, logger, status, resp)
}

// GetProgress は学習者のトラック進捗スナップショットを返すハンドラ
func (h *EnrollmentHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetProgress"))

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

	resp, err := h.service.GetProgress(r.Context(), actor.ID, trackID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Info("Progress not found", slog.Any("error", err))
		} else {
			logger.Error("Error getting progress in service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Progress retrieved successfully", slog.Int("total_xp", resp.TotalXP))
	webutil.RespondWithJSON(w, logger, http.StatusOK, resp)
}

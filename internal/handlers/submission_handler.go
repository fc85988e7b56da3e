// internal/handlers/submission_handler.go
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

type SubmissionHandler struct {
	service service.SubmissionService
	logger  *slog.Logger
}

func NewSubmissionHandler(s service.SubmissionService, logger *slog.Logger) *SubmissionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmissionHandler{
		service: s,
		logger:  logger,
	}
}

// SubmitWork は実技課題の成果物提出を受け付けるハンドラ
func (h *SubmissionHandler) SubmitWork(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "SubmitWork"))

	actor, err := middleware.GetActorFromContext(r.Context())
	if err != nil {
		logger.Warn("Unauthorized access attempt", slog.String("error", err.Error()))
		webutil.HandleError(w, logger, err)
		return
	}
	logger = logger.With(slog.String("learner_id", actor.ID.String()))

	unitIDStr := chi.URLParam(r, "unit_id")
	unitID, err := uuid.Parse(unitIDStr)
	if err != nil {
		logger.Warn("Invalid unit ID format in URL", slog.String("unit_id_str", unitIDStr))
		appErr := model.NewAppError("INVALID_URL_PARAM", "unit_idの形式が正しくありません。", "unit_id", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	logger = logger.With(slog.String("unit_id", unitID.String()))

	var req model.SubmitWorkRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	if appErr := validateStruct(logger, req); appErr != nil {
		webutil.HandleError(w, logger, appErr)
		return
	}

	submission, err := h.service.SubmitWork(r.Context(), actor.ID, unitID, &req)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrNotEligible) || errors.Is(err, model.ErrSubmissionInFlight) {
			logger.Info("Submission rejected", slog.Any("error", err))
		} else {
			logger.Error("Error submitting work in service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Submission accepted", slog.String("submission_id", submission.SubmissionID.String()))
	webutil.RespondWithJSON(w, logger, http.StatusCreated, submission)
}

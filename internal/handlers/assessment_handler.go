// internal/handlers/assessment_handler.go
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

type AssessmentHandler struct {
	service service.AssessmentService
	logger  *slog.Logger
}

func NewAssessmentHandler(s service.AssessmentService, logger *slog.Logger) *AssessmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssessmentHandler{
		service: s,
		logger:  logger,
	}
}

// Answer は知識チェックユニットへの解答を受け付けるハンドラ
func (h *AssessmentHandler) Answer(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "Answer"))

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

	var req model.AnswerRequest
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

	result, err := h.service.Answer(r.Context(), actor.ID, unitID, &req)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrNotEligible) || errors.Is(err, model.ErrAlreadyResolved) {
			logger.Info("Answer rejected", slog.Any("error", err))
		} else {
			logger.Error("Error answering in service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Answer accepted",
		slog.Bool("correct", result.Correct),
		slog.Int("attempts_used", result.AttemptsUsed),
	)
	webutil.RespondWithJSON(w, logger, http.StatusOK, result)
}

// internal/handlers/review_handler.go
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

type ReviewHandler struct {
	service service.SubmissionService
	logger  *slog.Logger
}

func NewReviewHandler(s service.SubmissionService, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewHandler{
		service: s,
		logger:  logger,
	}
}

// RecordReview は講師の判定を登録するハンドラ（講師ロール専用ルートに載せる）
func (h *ReviewHandler) RecordReview(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "RecordReview"))

	actor, err := middleware.GetActorFromContext(r.Context())
	if err != nil {
		logger.Warn("Unauthorized access attempt", slog.String("error", err.Error()))
		webutil.HandleError(w, logger, err)
		return
	}
	logger = logger.With(slog.String("grader_id", actor.ID.String()))

	submissionIDStr := chi.URLParam(r, "submission_id")
	submissionID, err := uuid.Parse(submissionIDStr)
	if err != nil {
		logger.Warn("Invalid submission ID format in URL", slog.String("submission_id_str", submissionIDStr))
		appErr := model.NewAppError("INVALID_URL_PARAM", "submission_idの形式が正しくありません。", "submission_id", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	logger = logger.With(slog.String("submission_id", submissionID.String()))

	var req model.RecordReviewRequest
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

	resp, err := h.service.RecordReview(r.Context(), actor.ID, submissionID, &req)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrAlreadyReviewed) || errors.Is(err, model.ErrConflict) {
			logger.Info("Review rejected", slog.Any("error", err))
		} else {
			logger.Error("Error recording review in service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Review recorded successfully",
		slog.String("verdict", string(resp.Review.Verdict)),
		slog.String("current_tier", resp.Ladder.CurrentTier),
	)
	webutil.RespondWithJSON(w, logger, http.StatusCreated, resp)
}

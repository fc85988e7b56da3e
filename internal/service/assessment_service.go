// internal/service/assessment_service.go
package service

import (
	"context"
	"errors"
	"time"

	"go_5_skill_ladder/internal/config"
	"go_5_skill_ladder/internal/middleware"
	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssessmentService interface {
	// Answer は進行中の知識チェックユニットに解答する
	Answer(ctx context.Context, learnerID, unitID uuid.UUID, req *model.AnswerRequest) (*model.AnswerResult, error)
}

type assessmentService struct {
	db         *gorm.DB
	trackRepo  repository.TrackRepository
	enrollRepo repository.EnrollmentRepository
	progRepo   repository.AssessmentProgressRepository
	outboxRepo repository.OutboxRepository
	cfg        *config.Config
}

func NewAssessmentService(
	db *gorm.DB,
	trackRepo repository.TrackRepository,
	enrollRepo repository.EnrollmentRepository,
	progRepo repository.AssessmentProgressRepository,
	outboxRepo repository.OutboxRepository,
	cfg *config.Config,
) AssessmentService {
	return &assessmentService{
		db:         db,
		trackRepo:  trackRepo,
		enrollRepo: enrollRepo,
		progRepo:   progRepo,
		outboxRepo: outboxRepo,
		cfg:        cfg,
	}
}

func (s *assessmentService) Answer(ctx context.Context, learnerID, unitID uuid.UUID, req *model.AnswerRequest) (*model.AnswerResult, error) {
	logger := middleware.GetLogger(ctx).With("learner_id", learnerID, "unit_id", unitID)

	var result *model.AnswerResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := s.trackRepo.FindUnitByID(ctx, tx, unitID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewAppError("UNIT_NOT_FOUND", "指定されたユニットが見つかりません。", "unit_id", model.ErrNotFound)
			}
			logger.Error("Failed to find unit", "error", err)
			return model.ErrInternalServer
		}
		if unit.Kind != model.UnitKindAssessment {
			return model.NewAppError("NOT_AN_ASSESSMENT", "このユニットは知識チェックではありません。", "unit_id", model.ErrInvalidInput)
		}

		if _, err := s.enrollRepo.FindByLearnerAndTrack(ctx, tx, learnerID, unit.TrackID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewAppError("NOT_ENROLLED", "このトラックには入会していません。", "", model.ErrNotEligible)
			}
			logger.Error("Failed to find enrollment", "error", err)
			return model.ErrInternalServer
		}

		progress, err := s.progRepo.FindByLearnerAndUnit(ctx, tx, learnerID, unitID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				// 順次解放でまだ到達していないユニット
				return model.NewAppError("UNIT_LOCKED", "前のユニットを完了するまで解答できません。", "unit_id", model.ErrNotEligible)
			}
			logger.Error("Failed to find assessment progress", "error", err)
			return model.ErrInternalServer
		}

		switch progress.Status {
		case model.AssessmentCompleted:
			return model.NewAppError("ALREADY_RESOLVED", "このユニットはすでに解答が確定しています。", "unit_id", model.ErrAlreadyResolved)
		case model.AssessmentNotStarted:
			return model.NewAppError("UNIT_LOCKED", "前のユニットを完了するまで解答できません。", "unit_id", model.ErrNotEligible)
		}

		// 設問は読み込み境界で一度だけデコード＋検証する
		question, err := model.DecodeQuestion([]byte(unit.QuestionJSON))
		if err != nil {
			// コンテンツ不備は利用者の入力エラーではなく設定異常
			logger.Error("Invalid question payload in content store", "error", err)
			return model.ErrInternalServer
		}

		correct, err := question.Evaluate(req.SelectedOptions)
		if err != nil {
			return model.NewAppError("INVALID_SELECTION", "選択肢の指定が正しくありません。", "selected_options", model.ErrInvalidInput)
		}

		prevAttempts := progress.AttemptsUsed
		attempt := prevAttempts + 1
		limit := s.cfg.App.AnswerAttemptLimit

		earnedXP := 0
		switch {
		case correct:
			progress.Status = model.AssessmentCompleted
			earnedXP = model.DecayedXP(unit.XPValue, attempt)
			progress.EarnedXP = earnedXP
		case attempt >= limit:
			// 試行回数を使い切った。XPゼロで確定し、以後の解答は不可。
			progress.Status = model.AssessmentCompleted
			progress.EarnedXP = 0
		default:
			// 失敗だが再挑戦可能
		}
		progress.AttemptsUsed = attempt

		if err := s.progRepo.UpdateGuarded(ctx, tx, progress, prevAttempts); err != nil {
			if errors.Is(err, model.ErrConflict) {
				return model.NewAppError("CONFLICT_RETRY", "同時に他の操作が行われました。もう一度お試しください。", "", model.ErrConflict)
			}
			logger.Error("Failed to update assessment progress", "error", err)
			return model.ErrInternalServer
		}

		result = &model.AnswerResult{
			UnitID:       unitID,
			Correct:      correct,
			Status:       progress.Status,
			AttemptsUsed: attempt,
			AttemptsLeft: limit - attempt,
			EarnedXP:     earnedXP,
		}
		if progress.Status == model.AssessmentCompleted {
			result.AttemptsLeft = 0

			// 完了したら次のユニットを解放する
			units, err := s.trackRepo.ListAssessmentUnits(ctx, tx, unit.TrackID)
			if err != nil {
				logger.Error("Failed to list assessment units", "error", err)
				return model.ErrInternalServer
			}
			nextUnitID, err := startNextIfEligible(ctx, tx, s.progRepo, learnerID, unit.TrackID, units)
			if err != nil {
				logger.Error("Failed to open next assessment unit", "error", err)
				return model.ErrInternalServer
			}
			result.NextUnitID = nextUnitID

			event, err := model.NewOutboxEvent(model.EventProgressChanged, learnerID, unit.TrackID, model.ProgressChangedPayload{
				LearnerID:  learnerID,
				TrackID:    unit.TrackID,
				UnitID:     unitID,
				Kind:       string(model.UnitKindAssessment),
				EarnedXP:   earnedXP,
				OccurredAt: time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			if err := s.outboxRepo.Create(ctx, tx, event); err != nil {
				logger.Error("Failed to write outbox event", "error", err)
				return model.ErrInternalServer
			}
		}
		return nil
	})
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		logger.Error("Transaction failed for Answer", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "解答処理に失敗しました。", "", model.ErrInternalServer)
	}

	logger.Info("Answer recorded",
		"correct", result.Correct,
		"attempts_used", result.AttemptsUsed,
		"earned_xp", result.EarnedXP,
	)
	return result, nil
}

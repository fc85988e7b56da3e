// internal/service/submission_service.go
package service

import (
	"context"
	"errors"
	"time"

	"go_5_skill_ladder/internal/ladder"
	"go_5_skill_ladder/internal/middleware"
	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionService interface {
	// SubmitWork は実技課題の成果物を提出する
	SubmitWork(ctx context.Context, learnerID, unitID uuid.UUID, req *model.SubmitWorkRequest) (*model.Submission, error)
	// RecordReview は講師の判定を登録し、ラダーへ反映する
	RecordReview(ctx context.Context, graderID, submissionID uuid.UUID, req *model.RecordReviewRequest) (*model.RecordReviewResponse, error)
}

type submissionService struct {
	db         *gorm.DB
	trackRepo  repository.TrackRepository
	enrollRepo repository.EnrollmentRepository
	ladderRepo repository.LadderRepository
	progRepo   repository.AssessmentProgressRepository
	subRepo    repository.SubmissionRepository
	outboxRepo repository.OutboxRepository
}

func NewSubmissionService(
	db *gorm.DB,
	trackRepo repository.TrackRepository,
	enrollRepo repository.EnrollmentRepository,
	ladderRepo repository.LadderRepository,
	progRepo repository.AssessmentProgressRepository,
	subRepo repository.SubmissionRepository,
	outboxRepo repository.OutboxRepository,
) SubmissionService {
	return &submissionService{
		db:         db,
		trackRepo:  trackRepo,
		enrollRepo: enrollRepo,
		ladderRepo: ladderRepo,
		progRepo:   progRepo,
		subRepo:    subRepo,
		outboxRepo: outboxRepo,
	}
}

func (s *submissionService) SubmitWork(ctx context.Context, learnerID, unitID uuid.UUID, req *model.SubmitWorkRequest) (*model.Submission, error) {
	logger := middleware.GetLogger(ctx).With("learner_id", learnerID, "unit_id", unitID)

	var created *model.Submission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := s.trackRepo.FindUnitByID(ctx, tx, unitID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewAppError("UNIT_NOT_FOUND", "指定されたユニットが見つかりません。", "unit_id", model.ErrNotFound)
			}
			logger.Error("Failed to find unit", "error", err)
			return model.ErrInternalServer
		}
		unitTier, ok := unit.PracticalTier()
		if !ok {
			return model.NewAppError("NOT_A_PRACTICAL", "このユニットは実技課題ではありません。", "unit_id", model.ErrInvalidInput)
		}

		if _, err := s.enrollRepo.FindByLearnerAndTrack(ctx, tx, learnerID, unit.TrackID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewAppError("NOT_ENROLLED", "このトラックには入会していません。", "", model.ErrNotEligible)
			}
			logger.Error("Failed to find enrollment", "error", err)
			return model.ErrInternalServer
		}

		// ゲート: 知識チェックを全て完了するまで実技には進めない
		done, err := allAssessmentsCompleted(ctx, tx, s.trackRepo, s.progRepo, learnerID, unit.TrackID)
		if err != nil {
			logger.Error("Failed to check assessment completion", "error", err)
			return model.ErrInternalServer
		}
		if !done {
			return model.NewAppError("GATE_NOT_CLEARED", "知識チェックが未完了のため、実技課題には提出できません。", "", model.ErrNotEligible)
		}

		ls, err := s.ladderRepo.FindByLearnerAndTrack(ctx, tx, learnerID, unit.TrackID)
		if err != nil {
			logger.Error("Failed to find ladder state", "error", err)
			return model.ErrInternalServer
		}
		state, ok := ls.State()
		if !ok {
			logger.Error("Corrupted ladder state", "current_tier", ls.CurrentTier)
			return model.ErrInternalServer
		}
		// 提出できるのは「現在Tierの受験枠 == このユニットのTier」のときだけ
		if state.Slot(unitTier) != ladder.SlotPending {
			return model.NewAppError("TIER_NOT_PENDING", "このTierの課題は現在提出できません。", "unit_id", model.ErrNotEligible)
		}

		if _, err := s.subRepo.FindOpenByLearnerAndUnit(ctx, tx, learnerID, unitID); err == nil {
			return model.NewAppError("SUBMISSION_IN_FLIGHT", "このユニットには判定待ちの提出があります。", "unit_id", model.ErrSubmissionInFlight)
		} else if !errors.Is(err, model.ErrNotFound) {
			logger.Error("Failed to find open submission", "error", err)
			return model.ErrInternalServer
		}

		submission := &model.Submission{
			SubmissionID: uuid.New(),
			LearnerID:    learnerID,
			UnitID:       unitID,
			TrackID:      unit.TrackID,
			Status:       model.SubmissionPending,
			Tier:         unitTier.String(),
			ArtifactRef:  req.ArtifactRef,
		}
		if err := s.subRepo.Create(ctx, tx, submission); err != nil {
			if errors.Is(err, model.ErrSubmissionInFlight) {
				// 事前チェック後に並行提出が滑り込んだ。部分ユニーク制約が守る。
				return model.NewAppError("SUBMISSION_IN_FLIGHT", "このユニットには判定待ちの提出があります。", "unit_id", model.ErrSubmissionInFlight)
			}
			logger.Error("Failed to create submission", "error", err)
			return model.ErrInternalServer
		}
		created = submission
		return nil
	})
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		logger.Error("Transaction failed for SubmitWork", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "提出処理に失敗しました。", "", model.ErrInternalServer)
	}

	logger.Info("Submission created", "submission_id", created.SubmissionID, "tier", created.Tier)
	return created, nil
}

func (s *submissionService) RecordReview(ctx context.Context, graderID, submissionID uuid.UUID, req *model.RecordReviewRequest) (*model.RecordReviewResponse, error) {
	logger := middleware.GetLogger(ctx).With("grader_id", graderID, "submission_id", submissionID)

	verdict := ladder.Verdict(req.Verdict)
	if !verdict.Valid() {
		return nil, model.NewAppError("INVALID_VERDICT", "判定の値が正しくありません。", "verdict", model.ErrInvalidInput)
	}

	var resp *model.RecordReviewResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		submission, err := s.subRepo.FindByID(ctx, tx, submissionID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.NewAppError("SUBMISSION_NOT_FOUND", "指定された提出が見つかりません。", "submission_id", model.ErrNotFound)
			}
			logger.Error("Failed to find submission", "error", err)
			return model.ErrInternalServer
		}
		if !submission.Open() {
			return model.NewAppError("ALREADY_REVIEWED", "この提出はすでに判定済みです。", "submission_id", model.ErrAlreadyReviewed)
		}

		unit, err := s.trackRepo.FindUnitByID(ctx, tx, submission.UnitID)
		if err != nil {
			logger.Error("Failed to find unit for submission", "error", err)
			return model.ErrInternalServer
		}

		// 承認時のみXPを付与する。ステータス遷移と同一のUPDATEに含まれるので
		// 二重レビューが競合してもXPが二度付くことはない。
		awardedXP := 0
		if verdict == ladder.VerdictApproved {
			awardedXP = unit.XPValue
		}
		if err := s.subRepo.ResolveIfPending(ctx, tx, submissionID, model.StatusForVerdict(verdict), awardedXP); err != nil {
			if errors.Is(err, model.ErrAlreadyReviewed) {
				return model.NewAppError("ALREADY_REVIEWED", "この提出はすでに判定済みです。", "submission_id", model.ErrAlreadyReviewed)
			}
			logger.Error("Failed to resolve submission", "error", err)
			return model.ErrInternalServer
		}

		review := &model.Review{
			ReviewID:     uuid.New(),
			SubmissionID: submissionID,
			GraderID:     graderID,
			Score:        req.Score,
			Verdict:      verdict,
			Rationale:    req.Rationale,
		}
		if err := s.subRepo.CreateReview(ctx, tx, review); err != nil {
			if errors.Is(err, model.ErrAlreadyReviewed) {
				return model.NewAppError("ALREADY_REVIEWED", "この提出はすでに判定済みです。", "submission_id", model.ErrAlreadyReviewed)
			}
			logger.Error("Failed to create review", "error", err)
			return model.ErrInternalServer
		}

		ls, err := s.ladderRepo.FindByLearnerAndTrack(ctx, tx, submission.LearnerID, submission.TrackID)
		if err != nil {
			logger.Error("Failed to find ladder state", "error", err)
			return model.ErrInternalServer
		}
		state, ok := ls.State()
		if !ok {
			logger.Error("Corrupted ladder state", "current_tier", ls.CurrentTier)
			return model.ErrInternalServer
		}
		// 判定は提出時点のTierに対して適用する（現在Tierが先行していてもよい）
		at, ok := ladder.ParseTier(submission.Tier)
		if !ok {
			logger.Error("Corrupted submission tier", "tier", submission.Tier)
			return model.ErrInternalServer
		}
		next := ladder.ApplyVerdict(state, at, verdict)
		ls.SetState(next)
		if err := s.ladderRepo.UpdateVersioned(ctx, tx, ls); err != nil {
			if errors.Is(err, model.ErrConflict) {
				// ラダーが並行更新された。トランザクションごと巻き戻し、
				// 提出もpendingのまま残るので講師は再実行できる。
				return model.NewAppError("CONFLICT_RETRY", "同時に他の操作が行われました。もう一度お試しください。", "", model.ErrConflict)
			}
			logger.Error("Failed to update ladder state", "error", err)
			return model.ErrInternalServer
		}

		now := time.Now().UTC()
		reviewEvent, err := model.NewOutboxEvent(model.EventReviewRecorded, submission.LearnerID, submission.TrackID, model.ReviewRecordedPayload{
			SubmissionID: submissionID,
			LearnerID:    submission.LearnerID,
			TrackID:      submission.TrackID,
			UnitID:       submission.UnitID,
			Verdict:      string(verdict),
			Score:        req.Score,
			OccurredAt:   now,
		})
		if err != nil {
			return err
		}
		progressEvent, err := model.NewOutboxEvent(model.EventProgressChanged, submission.LearnerID, submission.TrackID, model.ProgressChangedPayload{
			LearnerID:   submission.LearnerID,
			TrackID:     submission.TrackID,
			UnitID:      submission.UnitID,
			Kind:        string(model.UnitKindPractical),
			CurrentTier: next.Current.String(),
			EarnedXP:    awardedXP,
			OccurredAt:  now,
		})
		if err != nil {
			return err
		}
		for _, event := range []*model.OutboxEvent{reviewEvent, progressEvent} {
			if err := s.outboxRepo.Create(ctx, tx, event); err != nil {
				logger.Error("Failed to write outbox event", "error", err)
				return model.ErrInternalServer
			}
		}

		submission.Status = model.StatusForVerdict(verdict)
		submission.AwardedXP = awardedXP
		submission.Review = review
		resp = &model.RecordReviewResponse{
			Submission: submission,
			Review:     review,
			Ladder:     ls.View(),
		}
		return nil
	})
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		logger.Error("Transaction failed for RecordReview", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "判定登録に失敗しました。", "", model.ErrInternalServer)
	}

	logger.Info("Review recorded",
		"verdict", resp.Review.Verdict,
		"score", resp.Review.Score,
		"current_tier", resp.Ladder.CurrentTier,
	)
	return resp, nil
}

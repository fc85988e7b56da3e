// internal/service/enrollment_service.go
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go_5_skill_ladder/internal/middleware"
	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnrollmentService interface {
	// Enroll は冪等な入会処理。既存メンバーシップがあればそれを返す（エラーにしない）。
	Enroll(ctx context.Context, learnerID, trackID uuid.UUID) (*model.EnrollResponse, error)
	// GetProgress はトラック進捗のスナップショットを返す
	GetProgress(ctx context.Context, learnerID, trackID uuid.UUID) (*model.ProgressResponse, error)
}

type enrollmentService struct {
	db         *gorm.DB
	trackRepo  repository.TrackRepository
	enrollRepo repository.EnrollmentRepository
	ladderRepo repository.LadderRepository
	progRepo   repository.AssessmentProgressRepository
	subRepo    repository.SubmissionRepository
	outboxRepo repository.OutboxRepository
}

func NewEnrollmentService(
	db *gorm.DB,
	trackRepo repository.TrackRepository,
	enrollRepo repository.EnrollmentRepository,
	ladderRepo repository.LadderRepository,
	progRepo repository.AssessmentProgressRepository,
	subRepo repository.SubmissionRepository,
	outboxRepo repository.OutboxRepository,
) EnrollmentService {
	return &enrollmentService{
		db:         db,
		trackRepo:  trackRepo,
		enrollRepo: enrollRepo,
		ladderRepo: ladderRepo,
		progRepo:   progRepo,
		subRepo:    subRepo,
		outboxRepo: outboxRepo,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, learnerID, trackID uuid.UUID) (*model.EnrollResponse, error) {
	logger := middleware.GetLogger(ctx).With("learner_id", learnerID, "track_id", trackID)

	if _, err := s.trackRepo.FindTrackByID(ctx, s.db, trackID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewAppError("TRACK_NOT_FOUND", "指定されたトラックが見つかりません。", "track_id", model.ErrNotFound)
		}
		logger.Error("Failed to find track", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "トラックの取得に失敗しました。", "", model.ErrInternalServer)
	}

	// 既存メンバーシップの確認（read-then-create-if-absent）。
	// ストレージのupsertに頼らず、冪等性はここで明示的に扱う。
	if resp, err := s.findExisting(ctx, learnerID, trackID, logger); err != nil || resp != nil {
		return resp, err
	}

	var created *model.EnrollResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		enrollment := &model.Enrollment{
			EnrollmentID: uuid.New(),
			LearnerID:    learnerID,
			TrackID:      trackID,
		}
		if err := s.enrollRepo.Create(ctx, tx, enrollment); err != nil {
			// 同時入会との競合。トランザクションを畳んで既存を読み直す。
			return err
		}

		// メンバーシップ・ラダー初期化・最初のユニット解放は同一トランザクション。
		// 部分的な成功（EnrollmentだけあってLadderStateが無い等）を作らない。
		ladderState := model.NewLadderState(learnerID, trackID)
		if err := s.ladderRepo.Create(ctx, tx, ladderState); err != nil {
			return err
		}

		units, err := s.trackRepo.ListAssessmentUnits(ctx, tx, trackID)
		if err != nil {
			return err
		}
		openedUnitID, err := startNextIfEligible(ctx, tx, s.progRepo, learnerID, trackID, units)
		if err != nil {
			return err
		}

		payload := model.ProgressChangedPayload{
			LearnerID:   learnerID,
			TrackID:     trackID,
			Kind:        string(model.UnitKindAssessment),
			CurrentTier: ladderState.CurrentTier,
			OccurredAt:  time.Now().UTC(),
		}
		if openedUnitID != nil {
			payload.UnitID = *openedUnitID
		}
		event, err := model.NewOutboxEvent(model.EventProgressChanged, learnerID, trackID, payload)
		if err != nil {
			return err
		}
		if err := s.outboxRepo.Create(ctx, tx, event); err != nil {
			return err
		}

		created = &model.EnrollResponse{
			Enrollment: enrollment,
			Ladder:     ladderState.View(),
			Created:    true,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			// 同時に入会された場合も結果は冪等: 既存を返す
			logger.Info("Enrollment creation raced, returning existing membership")
			resp, ferr := s.findExisting(ctx, learnerID, trackID, logger)
			if ferr != nil {
				return nil, ferr
			}
			if resp == nil {
				logger.Error("Enrollment conflict but membership not found afterwards")
				return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "入会処理に失敗しました。", "", model.ErrInternalServer)
			}
			return resp, nil
		}
		logger.Error("Transaction failed for Enroll", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "入会処理に失敗しました。", "", model.ErrInternalServer)
	}

	logger.Info("Enrollment created", "enrollment_id", created.Enrollment.EnrollmentID)
	return created, nil
}

// findExisting は既存メンバーシップとラダーを読み出します。無ければ (nil, nil)。
func (s *enrollmentService) findExisting(ctx context.Context, learnerID, trackID uuid.UUID, logger *slog.Logger) (*model.EnrollResponse, error) {
	enrollment, err := s.enrollRepo.FindByLearnerAndTrack(ctx, s.db, learnerID, trackID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		logger.Error("Failed to find enrollment", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "入会状況の確認に失敗しました。", "", model.ErrInternalServer)
	}

	ladderState, err := s.ladderRepo.FindByLearnerAndTrack(ctx, s.db, learnerID, trackID)
	if err != nil {
		// Enrollmentがあるのにラダーが無いのは不変条件違反。
		// 黙って作り直さず、致命的な設定エラーとして拒否する。
		logger.Error("Invariant violation: enrollment exists without ladder state", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "学習状態に不整合があります。管理者に連絡してください。", "", model.ErrInternalServer)
	}

	return &model.EnrollResponse{
		Enrollment: enrollment,
		Ladder:     ladderState.View(),
		Created:    false,
	}, nil
}

func (s *enrollmentService) GetProgress(ctx context.Context, learnerID, trackID uuid.UUID) (*model.ProgressResponse, error) {
	logger := middleware.GetLogger(ctx).With("learner_id", learnerID, "track_id", trackID)

	enrollment, err := s.enrollRepo.FindByLearnerAndTrack(ctx, s.db, learnerID, trackID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewAppError("ENROLLMENT_NOT_FOUND", "このトラックには入会していません。", "track_id", model.ErrNotFound)
		}
		logger.Error("Failed to find enrollment", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "進捗の取得に失敗しました。", "", model.ErrInternalServer)
	}

	ladderState, err := s.ladderRepo.FindByLearnerAndTrack(ctx, s.db, learnerID, trackID)
	if err != nil {
		logger.Error("Invariant violation: enrollment exists without ladder state", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "学習状態に不整合があります。管理者に連絡してください。", "", model.ErrInternalServer)
	}

	units, err := s.trackRepo.ListAssessmentUnits(ctx, s.db, trackID)
	if err != nil {
		logger.Error("Failed to list assessment units", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "進捗の取得に失敗しました。", "", model.ErrInternalServer)
	}
	progresses, err := s.progRepo.ListByLearnerAndTrack(ctx, s.db, learnerID, trackID)
	if err != nil {
		logger.Error("Failed to list assessment progresses", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "進捗の取得に失敗しました。", "", model.ErrInternalServer)
	}

	progressByUnit := make(map[uuid.UUID]*model.AssessmentProgress, len(progresses))
	for _, p := range progresses {
		progressByUnit[p.UnitID] = p
	}

	views := make([]model.AssessmentProgressView, 0, len(units))
	completed := 0
	for _, unit := range units {
		view := model.AssessmentProgressView{
			UnitID:  unit.UnitID,
			Title:   unit.Title,
			OrderNo: unit.OrderNo,
			Status:  model.AssessmentNotStarted,
			XPValue: unit.XPValue,
		}
		if p, ok := progressByUnit[unit.UnitID]; ok {
			view.Status = p.Status
			view.AttemptsUsed = p.AttemptsUsed
			view.EarnedXP = p.EarnedXP
			if p.Status == model.AssessmentCompleted {
				completed++
			}
		}
		views = append(views, view)
	}

	submissions, err := s.subRepo.ListByLearnerAndTrack(ctx, s.db, learnerID, trackID)
	if err != nil {
		logger.Error("Failed to list submissions", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "進捗の取得に失敗しました。", "", model.ErrInternalServer)
	}

	// XP合計は保存せず毎回導出する
	assessmentXP, err := s.progRepo.SumEarnedXP(ctx, s.db, learnerID, trackID)
	if err != nil {
		logger.Error("Failed to sum assessment XP", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "進捗の取得に失敗しました。", "", model.ErrInternalServer)
	}
	practicalXP, err := s.subRepo.SumAwardedXP(ctx, s.db, learnerID, trackID)
	if err != nil {
		logger.Error("Failed to sum practical XP", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "進捗の取得に失敗しました。", "", model.ErrInternalServer)
	}

	return &model.ProgressResponse{
		Enrollment:              enrollment,
		Ladder:                  ladderState.View(),
		Assessments:             views,
		AllAssessmentsCompleted: completed == len(units),
		Submissions:             submissions,
		TotalXP:                 assessmentXP + practicalXP,
	}, nil
}

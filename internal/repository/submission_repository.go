// internal/repository/submission_repository.go
package repository

import (
	"context"
	"errors"

	"go_5_skill_ladder/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubmissionRepository interface {
	// Create は新規提出を作る。open提出の部分ユニーク制約に当たった場合は
	// model.ErrSubmissionInFlight を返す。
	Create(ctx context.Context, tx *gorm.DB, submission *model.Submission) error
	FindByID(ctx context.Context, db *gorm.DB, submissionID uuid.UUID) (*model.Submission, error)
	FindOpenByLearnerAndUnit(ctx context.Context, db *gorm.DB, learnerID, unitID uuid.UUID) (*model.Submission, error)
	ListByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) ([]*model.Submission, error)
	// ResolveIfPending は pending の行だけを終端状態へ遷移させる。
	// すでに解決済みなら model.ErrAlreadyReviewed。XP付与は同じUPDATEに含める
	// （ステータス遷移とXP付与が同一の原子的ステップになる）。
	ResolveIfPending(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, status model.SubmissionStatus, awardedXP int) error
	CreateReview(ctx context.Context, tx *gorm.DB, review *model.Review) error
	// HasApprovedByLearnerAndTrack は承認済み実技が1件でもあるか（修了証判定用）
	HasApprovedByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (bool, error)
	// SumAwardedXP はトラック内の実技で付与されたXP合計
	SumAwardedXP(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int, error)
}

type gormSubmissionRepository struct{}

func NewGormSubmissionRepository() SubmissionRepository {
	return &gormSubmissionRepository{}
}

func (r *gormSubmissionRepository) Create(ctx context.Context, tx *gorm.DB, submission *model.Submission) error {
	result := tx.WithContext(ctx).Create(submission)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return model.ErrSubmissionInFlight
		}
		return result.Error
	}
	return nil
}

func (r *gormSubmissionRepository) FindByID(ctx context.Context, db *gorm.DB, submissionID uuid.UUID) (*model.Submission, error) {
	var submission model.Submission
	result := db.WithContext(ctx).
		Preload("Review").
		Where("submission_id = ?", submissionID).
		First(&submission)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, result.Error
	}
	return &submission, nil
}

func (r *gormSubmissionRepository) FindOpenByLearnerAndUnit(ctx context.Context, db *gorm.DB, learnerID, unitID uuid.UUID) (*model.Submission, error) {
	var submission model.Submission
	result := db.WithContext(ctx).
		Where("learner_id = ? AND unit_id = ? AND status = ?", learnerID, unitID, model.SubmissionPending).
		First(&submission)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, result.Error
	}
	return &submission, nil
}

func (r *gormSubmissionRepository) ListByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) ([]*model.Submission, error) {
	var submissions []*model.Submission
	result := db.WithContext(ctx).
		Preload("Review").
		Where("learner_id = ? AND track_id = ?", learnerID, trackID).
		Order("created_at ASC").
		Find(&submissions)
	if result.Error != nil {
		return nil, result.Error
	}
	return submissions, nil
}

func (r *gormSubmissionRepository) ResolveIfPending(ctx context.Context, tx *gorm.DB, submissionID uuid.UUID, status model.SubmissionStatus, awardedXP int) error {
	result := tx.WithContext(ctx).
		Model(&model.Submission{}).
		Where("submission_id = ? AND status = ?", submissionID, model.SubmissionPending).
		Updates(map[string]interface{}{
			"status":     status,
			"awarded_xp": awardedXP,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 行が無いか、すでに解決済み。存在確認は呼び出し側で済んでいる前提なので
		// ここでは二重解決として扱う。
		return model.ErrAlreadyReviewed
	}
	return nil
}

func (r *gormSubmissionRepository) CreateReview(ctx context.Context, tx *gorm.DB, review *model.Review) error {
	result := tx.WithContext(ctx).Create(review)
	if result.Error != nil {
		// submission_id のユニーク制約 = 同一提出への二重レビュー
		if isUniqueViolation(result.Error) {
			return model.ErrAlreadyReviewed
		}
		return result.Error
	}
	return nil
}

func (r *gormSubmissionRepository) HasApprovedByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (bool, error) {
	var count int64
	result := db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("learner_id = ? AND track_id = ? AND status = ?", learnerID, trackID, model.SubmissionApproved).
		Count(&count)
	if result.Error != nil {
		return false, result.Error
	}
	return count > 0, nil
}

func (r *gormSubmissionRepository) SumAwardedXP(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int, error) {
	var total int64
	result := db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("learner_id = ? AND track_id = ?", learnerID, trackID).
		Select("COALESCE(SUM(awarded_xp), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(total), nil
}

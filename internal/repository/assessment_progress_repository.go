// internal/repository/assessment_progress_repository.go
package repository

import (
	"context"
	"errors"

	"go_5_skill_ladder/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssessmentProgressRepository interface {
	Create(ctx context.Context, tx *gorm.DB, progress *model.AssessmentProgress) error
	FindByLearnerAndUnit(ctx context.Context, db *gorm.DB, learnerID, unitID uuid.UUID) (*model.AssessmentProgress, error)
	// ListByLearnerAndTrack は学習者のトラック内全進捗（Unit付き）
	ListByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) ([]*model.AssessmentProgress, error)
	// UpdateGuarded は attempts_used の観測値を述語にした更新。
	// 同じ解答が並行して走った場合、後着は0行更新となり model.ErrConflict を返す。
	UpdateGuarded(ctx context.Context, tx *gorm.DB, progress *model.AssessmentProgress, prevAttempts int) error
	// MarkInProgress は not_started の行だけを in_progress に遷移させる
	MarkInProgress(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) error
	// SumEarnedXP はトラック内の知識チェックで獲得したXP合計
	SumEarnedXP(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int, error)
	CountCompleted(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int64, error)
}

type gormAssessmentProgressRepository struct{}

func NewGormAssessmentProgressRepository() AssessmentProgressRepository {
	return &gormAssessmentProgressRepository{}
}

func (r *gormAssessmentProgressRepository) Create(ctx context.Context, tx *gorm.DB, progress *model.AssessmentProgress) error {
	result := tx.WithContext(ctx).Create(progress)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return model.ErrConflict
		}
		return result.Error
	}
	return nil
}

func (r *gormAssessmentProgressRepository) FindByLearnerAndUnit(ctx context.Context, db *gorm.DB, learnerID, unitID uuid.UUID) (*model.AssessmentProgress, error) {
	var progress model.AssessmentProgress
	result := db.WithContext(ctx).
		Preload("Unit").
		Where("learner_id = ? AND unit_id = ?", learnerID, unitID).
		First(&progress)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, result.Error
	}
	return &progress, nil
}

func (r *gormAssessmentProgressRepository) ListByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) ([]*model.AssessmentProgress, error) {
	var progresses []*model.AssessmentProgress
	result := db.WithContext(ctx).
		Preload("Unit").
		Where("learner_id = ? AND track_id = ?", learnerID, trackID).
		Find(&progresses)
	if result.Error != nil {
		return nil, result.Error
	}
	return progresses, nil
}

func (r *gormAssessmentProgressRepository) UpdateGuarded(ctx context.Context, tx *gorm.DB, progress *model.AssessmentProgress, prevAttempts int) error {
	result := tx.WithContext(ctx).
		Model(&model.AssessmentProgress{}).
		Where("progress_id = ? AND attempts_used = ? AND status = ?",
			progress.ProgressID, prevAttempts, model.AssessmentInProgress).
		Updates(map[string]interface{}{
			"status":        progress.Status,
			"attempts_used": progress.AttemptsUsed,
			"earned_xp":     progress.EarnedXP,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrConflict
	}
	return nil
}

func (r *gormAssessmentProgressRepository) MarkInProgress(ctx context.Context, tx *gorm.DB, progressID uuid.UUID) error {
	result := tx.WithContext(ctx).
		Model(&model.AssessmentProgress{}).
		Where("progress_id = ? AND status = ?", progressID, model.AssessmentNotStarted).
		Update("status", model.AssessmentInProgress)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrConflict
	}
	return nil
}

func (r *gormAssessmentProgressRepository) SumEarnedXP(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int, error) {
	var total int64
	result := db.WithContext(ctx).
		Model(&model.AssessmentProgress{}).
		Where("learner_id = ? AND track_id = ?", learnerID, trackID).
		Select("COALESCE(SUM(earned_xp), 0)").
		Scan(&total)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(total), nil
}

func (r *gormAssessmentProgressRepository) CountCompleted(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (int64, error) {
	var count int64
	result := db.WithContext(ctx).
		Model(&model.AssessmentProgress{}).
		Where("learner_id = ? AND track_id = ? AND status = ?", learnerID, trackID, model.AssessmentCompleted).
		Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

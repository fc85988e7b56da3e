// internal/repository/enrollment_repository.go
package repository

import (
	"context"
	"errors"

	"go_5_skill_ladder/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EnrollmentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) error
	FindByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (*model.Enrollment, error)
}

type gormEnrollmentRepository struct{}

func NewGormEnrollmentRepository() EnrollmentRepository {
	return &gormEnrollmentRepository{}
}

func (r *gormEnrollmentRepository) Create(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) error {
	result := tx.WithContext(ctx).Create(enrollment)
	if result.Error != nil {
		// 複合ユニーク (learner_id, track_id) 違反 = 同時入会の競合
		if isUniqueViolation(result.Error) {
			return model.ErrConflict
		}
		return result.Error
	}
	return nil
}

func (r *gormEnrollmentRepository) FindByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	result := db.WithContext(ctx).
		Where("learner_id = ? AND track_id = ?", learnerID, trackID).
		First(&enrollment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, result.Error
	}
	return &enrollment, nil
}

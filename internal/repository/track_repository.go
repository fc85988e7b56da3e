// internal/repository/track_repository.go
package repository

import (
	"context"
	"errors"

	"go_5_skill_ladder/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TrackRepository はコンテンツストア（tracks/units）への読み取り専用アクセスです。
// このエンジンはコンテンツを一切変更しない。
type TrackRepository interface {
	FindTrackByID(ctx context.Context, db *gorm.DB, trackID uuid.UUID) (*model.Track, error)
	FindUnitByID(ctx context.Context, db *gorm.DB, unitID uuid.UUID) (*model.Unit, error)
	// ListAssessmentUnits は OrderNo 昇順の知識チェックユニット一覧
	ListAssessmentUnits(ctx context.Context, db *gorm.DB, trackID uuid.UUID) ([]*model.Unit, error)
}

type gormTrackRepository struct{}

func NewGormTrackRepository() TrackRepository {
	return &gormTrackRepository{}
}

func (r *gormTrackRepository) FindTrackByID(ctx context.Context, db *gorm.DB, trackID uuid.UUID) (*model.Track, error) {
	var track model.Track
	result := db.WithContext(ctx).Where("track_id = ?", trackID).First(&track)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, result.Error
	}
	return &track, nil
}

func (r *gormTrackRepository) FindUnitByID(ctx context.Context, db *gorm.DB, unitID uuid.UUID) (*model.Unit, error) {
	var unit model.Unit
	result := db.WithContext(ctx).Where("unit_id = ?", unitID).First(&unit)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, result.Error
	}
	return &unit, nil
}

func (r *gormTrackRepository) ListAssessmentUnits(ctx context.Context, db *gorm.DB, trackID uuid.UUID) ([]*model.Unit, error) {
	var units []*model.Unit
	result := db.WithContext(ctx).
		Where("track_id = ? AND kind = ?", trackID, model.UnitKindAssessment).
		Order("order_no ASC").
		Find(&units)
	if result.Error != nil {
		return nil, result.Error
	}
	return units, nil
}

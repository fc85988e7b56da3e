// internal/repository/ladder_repository.go
package repository

import (
	"context"
	"errors"

	"go_5_skill_ladder/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LadderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, state *model.LadderState) error
	FindByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (*model.LadderState, error)
	// UpdateVersioned は楽観ロック付き更新。読み出し時のVersionと一致する行だけを
	// 更新し、一致しなければ model.ErrConflict（リトライ可能）を返す。
	UpdateVersioned(ctx context.Context, tx *gorm.DB, state *model.LadderState) error
}

type gormLadderRepository struct{}

func NewGormLadderRepository() LadderRepository {
	return &gormLadderRepository{}
}

func (r *gormLadderRepository) Create(ctx context.Context, tx *gorm.DB, state *model.LadderState) error {
	result := tx.WithContext(ctx).Create(state)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return model.ErrConflict
		}
		return result.Error
	}
	return nil
}

func (r *gormLadderRepository) FindByLearnerAndTrack(ctx context.Context, db *gorm.DB, learnerID, trackID uuid.UUID) (*model.LadderState, error) {
	var state model.LadderState
	result := db.WithContext(ctx).
		Where("learner_id = ? AND track_id = ?", learnerID, trackID).
		First(&state)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, result.Error
	}
	return &state, nil
}

func (r *gormLadderRepository) UpdateVersioned(ctx context.Context, tx *gorm.DB, state *model.LadderState) error {
	prevVersion := state.Version
	result := tx.WithContext(ctx).
		Model(&model.LadderState{}).
		Where("ladder_id = ? AND version = ?", state.LadderID, prevVersion).
		Updates(map[string]interface{}{
			"current_tier":  state.CurrentTier,
			"passed_junior": state.PassedJunior,
			"passed_middle": state.PassedMiddle,
			"passed_senior": state.PassedSenior,
			"version":       prevVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 読み出し後に誰かが先に更新した（あるいは行が消えた）
		return model.ErrConflict
	}
	state.Version = prevVersion + 1
	return nil
}

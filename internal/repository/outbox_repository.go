// internal/repository/outbox_repository.go
package repository

import (
	"context"
	"time"

	"go_5_skill_ladder/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OutboxRepository interface {
	Create(ctx context.Context, tx *gorm.DB, event *model.OutboxEvent) error
	// FindUnpublished は未中継イベントを作成順に取得する
	FindUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]*model.OutboxEvent, error)
	MarkPublished(ctx context.Context, db *gorm.DB, eventIDs []uuid.UUID, publishedAt time.Time) error
}

type gormOutboxRepository struct{}

func NewGormOutboxRepository() OutboxRepository {
	return &gormOutboxRepository{}
}

func (r *gormOutboxRepository) Create(ctx context.Context, tx *gorm.DB, event *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(event).Error
}

func (r *gormOutboxRepository) FindUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	result := db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&events)
	if result.Error != nil {
		return nil, result.Error
	}
	return events, nil
}

func (r *gormOutboxRepository) MarkPublished(ctx context.Context, db *gorm.DB, eventIDs []uuid.UUID, publishedAt time.Time) error {
	if len(eventIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("event_id IN ?", eventIDs).
		Update("published_at", publishedAt).Error
}

// internal/events/relay.go
package events

import (
	"context"
	"log/slog"
	"time"

	"go_5_skill_ladder/internal/repository"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Relay はアウトボックス行を定期的にKafkaへ中継するジョブです。
// 本体のリクエスト処理とは完全に独立して動く。中継の失敗は次回の実行で
// 自動的にリトライされる（published_at が埋まるまで行は残り続ける）。
type Relay struct {
	scheduler  *gocron.Scheduler
	db         *gorm.DB
	outboxRepo repository.OutboxRepository
	publisher  Publisher
	logger     *slog.Logger

	interval  time.Duration
	batchSize int
}

func NewRelay(
	db *gorm.DB,
	outboxRepo repository.OutboxRepository,
	publisher Publisher,
	logger *slog.Logger,
	interval time.Duration,
	batchSize int,
) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		scheduler:  gocron.NewScheduler(time.UTC),
		db:         db,
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
		interval:   interval,
		batchSize:  batchSize,
	}
}

// Start は中継ジョブを非同期で開始します。
func (r *Relay) Start() error {
	if _, err := r.scheduler.Every(r.interval).Do(r.relayOnce); err != nil {
		return err
	}
	r.scheduler.StartAsync()
	r.logger.Info("Outbox relay started", "interval", r.interval.String(), "batch_size", r.batchSize)
	return nil
}

// Stop はスケジューラを停止し、パブリッシャを閉じます。
func (r *Relay) Stop() {
	r.scheduler.Stop()
	if err := r.publisher.Close(); err != nil {
		r.logger.Error("Failed to close publisher", "error", err)
	}
	r.logger.Info("Outbox relay stopped")
}

// relayOnce は未中継イベントを作成順に1バッチ処理します。
// 途中で失敗したらそこで打ち切る（キー単位の順序を崩さないため、
// 失敗したイベントを飛ばして先のイベントを送ることはしない）。
func (r *Relay) relayOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pending, err := r.outboxRepo.FindUnpublished(ctx, r.db, r.batchSize)
	if err != nil {
		r.logger.Error("Failed to fetch unpublished events", "error", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	published := 0
	for _, event := range pending {
		if err := r.publisher.Publish(ctx, event.PartitionKey(), []byte(event.Payload)); err != nil {
			r.logger.Error("Failed to publish event",
				"event_id", event.EventID,
				"type", event.Type,
				"error", err,
			)
			break
		}
		now := time.Now().UTC()
		if err := r.outboxRepo.MarkPublished(ctx, r.db, []uuid.UUID{event.EventID}, now); err != nil {
			// 送信済みだがマークに失敗。次回の実行で再送される（at-least-once）。
			r.logger.Error("Failed to mark event as published", "event_id", event.EventID, "error", err)
			break
		}
		published++
	}

	if published > 0 {
		r.logger.Info("Outbox events relayed", "count", published, "pending", len(pending)-published)
	}
}

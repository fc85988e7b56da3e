// internal/events/relay_test.go
package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// capturePublisher は送信されたメッセージを記録するテスト用パブリッシャ。
// failAfter 件を超えた Publish は失敗させられる。
type capturePublisher struct {
	keys      []string
	payloads  []string
	failAfter int // -1 なら常に成功
	closed    bool
}

func (p *capturePublisher) Publish(ctx context.Context, key, value []byte) error {
	if p.failAfter >= 0 && len(p.payloads) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, string(key))
	p.payloads = append(p.payloads, string(value))
	return nil
}

func (p *capturePublisher) Close() error {
	p.closed = true
	return nil
}

func setupRelayTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// コネクションごとに別DBにならないよう、名前付き共有メモリDBを使う
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.OutboxEvent{}))
	return db
}

func seedEvents(t *testing.T, db *gorm.DB, outboxRepo repository.OutboxRepository, learnerID, trackID uuid.UUID, n int) []*model.OutboxEvent {
	t.Helper()
	ctx := context.Background()
	events := make([]*model.OutboxEvent, 0, n)
	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < n; i++ {
		event, err := model.NewOutboxEvent(model.EventProgressChanged, learnerID, trackID, model.ProgressChangedPayload{
			LearnerID:  learnerID,
			TrackID:    trackID,
			EarnedXP:   (i + 1) * 10,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		// 作成順が安定するようタイムスタンプを明示する
		event.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, outboxRepo.Create(ctx, db, event))
		events = append(events, event)
	}
	return events
}

func Test_Relay_relayOnce(t *testing.T) {
	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	learnerID := uuid.New()
	trackID := uuid.New()

	t.Run("正常系: 未中継イベントを作成順に送って発行済みにする", func(t *testing.T) {
		db := setupRelayTestDB(t)
		outboxRepo := repository.NewGormOutboxRepository()
		seeded := seedEvents(t, db, outboxRepo, learnerID, trackID, 3)

		pub := &capturePublisher{failAfter: -1}
		relay := NewRelay(db, outboxRepo, pub, testLogger, time.Second, 100)
		relay.relayOnce()

		require.Len(t, pub.payloads, 3)
		// メッセージキーは learner:track で固定（パーティション内順序の前提）
		wantKey := learnerID.String() + ":" + trackID.String()
		for _, key := range pub.keys {
			assert.Equal(t, wantKey, key)
		}
		assert.Equal(t, seeded[0].Payload, pub.payloads[0])
		assert.Equal(t, seeded[2].Payload, pub.payloads[2])

		// 全件発行済みになり、次の実行では何も送られない
		remaining, err := outboxRepo.FindUnpublished(context.Background(), db, 100)
		require.NoError(t, err)
		assert.Empty(t, remaining)

		relay.relayOnce()
		assert.Len(t, pub.payloads, 3)
	})

	t.Run("正常系: 送信失敗でバッチを打ち切り、未送信分は残る", func(t *testing.T) {
		db := setupRelayTestDB(t)
		outboxRepo := repository.NewGormOutboxRepository()
		seedEvents(t, db, outboxRepo, learnerID, trackID, 3)

		// 1件だけ成功してその後失敗
		pub := &capturePublisher{failAfter: 1}
		relay := NewRelay(db, outboxRepo, pub, testLogger, time.Second, 100)
		relay.relayOnce()

		assert.Len(t, pub.payloads, 1)
		remaining, err := outboxRepo.FindUnpublished(context.Background(), db, 100)
		require.NoError(t, err)
		// 失敗地点から後ろは順序を守るため送らない
		assert.Len(t, remaining, 2)

		// ブローカー復旧後の実行で残りが流れる
		pub.failAfter = -1
		relay.relayOnce()
		assert.Len(t, pub.payloads, 3)
		remaining, err = outboxRepo.FindUnpublished(context.Background(), db, 100)
		require.NoError(t, err)
		assert.Empty(t, remaining)
	})

	t.Run("正常系: バッチサイズを超える分は次の実行に回る", func(t *testing.T) {
		db := setupRelayTestDB(t)
		outboxRepo := repository.NewGormOutboxRepository()
		seedEvents(t, db, outboxRepo, learnerID, trackID, 5)

		pub := &capturePublisher{failAfter: -1}
		relay := NewRelay(db, outboxRepo, pub, testLogger, time.Second, 2)
		relay.relayOnce()
		assert.Len(t, pub.payloads, 2)

		relay.relayOnce()
		relay.relayOnce()
		assert.Len(t, pub.payloads, 5)
	})

	t.Run("正常系: Stopでパブリッシャを閉じる", func(t *testing.T) {
		db := setupRelayTestDB(t)
		outboxRepo := repository.NewGormOutboxRepository()

		pub := &capturePublisher{failAfter: -1}
		relay := NewRelay(db, outboxRepo, pub, testLogger, time.Second, 10)
		require.NoError(t, relay.Start())
		relay.Stop()
		assert.True(t, pub.closed)
	})
}

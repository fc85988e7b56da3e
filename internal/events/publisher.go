// internal/events/publisher.go
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Publisher は外部コラボレータへのイベント送出口です。
// 本番はKafka、Kafka無効時はログ出力のみの実装に差し替える。
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// KafkaPublisherConfig はKafkaパブリッシャの設定です。
type KafkaPublisherConfig struct {
	Brokers []string
	Topic   string
	// MaxAttempts は一過性エラー時のリトライ回数。0以下なら3。
	MaxAttempts int
	// WriteTimeout は1回のWriteのタイムアウト。ゼロなら10秒。
	WriteTimeout time.Duration
}

// KafkaPublisher は segmentio/kafka-go の Writer を薄くラップしたパブリッシャです。
// キーのハッシュでパーティションを決めるため、同じキー（learner:track）の
// メッセージは同じパーティションに入り、順序が保たれる。
type KafkaPublisher struct {
	writer      *kafka.Writer
	maxAttempts int
}

func NewKafkaPublisher(cfg KafkaPublisherConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return &KafkaPublisher{
		writer:      w,
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, key, value []byte) error {
	var lastErr error
	backoff := 100 * time.Millisecond

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		msg := kafka.Message{
			Key:   key,
			Value: value,
			Time:  time.Now().UTC(),
		}

		// 試行単位のタイムアウトで無期限のハングを避ける
		ctxAttempt, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.writer.WriteMessages(ctxAttempt, msg)
		cancel()
		if err == nil {
			return nil
		}

		lastErr = err
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// LogPublisher はKafka無効時（ローカル開発等）の実装です。
// ログに出すだけで常に成功する。アウトボックス行は published 扱いになる。
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, key, value []byte) error {
	p.logger.InfoContext(ctx, "Event published (log only)",
		"key", string(key),
		"value", string(value),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

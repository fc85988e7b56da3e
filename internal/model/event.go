// internal/model/event.go
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType は外部コラボレータ（通知・分析）向けイベントの種別です
type EventType string

const (
	EventProgressChanged EventType = "progress.changed"
	EventReviewRecorded  EventType = "review.recorded"
)

// OutboxEvent はアウトボックス行です。
// 本体の状態遷移と同一トランザクションで書き込まれ、
// 別ジョブが非同期にKafkaへ中継する。中継失敗は本体の遷移に影響しない。
type OutboxEvent struct {
	EventID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type      EventType `gorm:"type:varchar(40);not null"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null"`
	TrackID   uuid.UUID `gorm:"type:uuid;not null"`
	Payload   string    `gorm:"type:jsonb;not null"`

	PublishedAt *time.Time `gorm:"index"` // nil = 未中継
	CreatedAt   time.Time
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// PartitionKey は learner:track 単位の順序を保つためのKafkaメッセージキー
func (e *OutboxEvent) PartitionKey() []byte {
	return []byte(e.LearnerID.String() + ":" + e.TrackID.String())
}

// ProgressChangedPayload は progress.changed イベントの中身
type ProgressChangedPayload struct {
	LearnerID   uuid.UUID `json:"learner_id"`
	TrackID     uuid.UUID `json:"track_id"`
	UnitID      uuid.UUID `json:"unit_id"`
	Kind        string    `json:"kind"` // "assessment" | "practical"
	CurrentTier string    `json:"current_tier,omitempty"`
	EarnedXP    int       `json:"earned_xp"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// ReviewRecordedPayload は review.recorded イベントの中身
type ReviewRecordedPayload struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	LearnerID    uuid.UUID `json:"learner_id"`
	TrackID      uuid.UUID `json:"track_id"`
	UnitID       uuid.UUID `json:"unit_id"`
	Verdict      string    `json:"verdict"`
	Score        int       `json:"score"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// NewOutboxEvent はペイロードをJSON化してアウトボックス行を作ります
func NewOutboxEvent(t EventType, learnerID, trackID uuid.UUID, payload any) (*OutboxEvent, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		EventID:   uuid.New(),
		Type:      t,
		LearnerID: learnerID,
		TrackID:   trackID,
		Payload:   string(b),
	}, nil
}

// internal/model/assessment.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus は知識チェックの進行状態です
type AssessmentStatus string

const (
	AssessmentNotStarted AssessmentStatus = "not_started"
	AssessmentInProgress AssessmentStatus = "in_progress"
	AssessmentCompleted  AssessmentStatus = "completed"
)

// MaxAnswerAttempts は1ユニットあたりの解答回数上限
const MaxAnswerAttempts = 3

// AttemptDecay は何回目の正解でXPが何割になるかのテーブル。
// 1回目=100%, 2回目=65%, 3回目=35%。それ以降は解答不可。
var attemptDecay = map[int]float64{
	1: 1.00,
	2: 0.65,
	3: 0.35,
}

// DecayedXP は attempt 回目の正解で得られるXPを返します（端数切り捨て）。
func DecayedXP(xpValue, attempt int) int {
	factor, ok := attemptDecay[attempt]
	if !ok {
		return 0
	}
	return int(float64(xpValue) * factor)
}

// AssessmentProgress は (learner, assessment-unit) の進捗レコードです。
// ユニットが到達可能になったときに遅延作成され、Assessment Gate だけが変更する。
type AssessmentProgress struct {
	ProgressID uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	LearnerID  uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_unit,unique" json:"learner_id"`
	UnitID     uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_unit,unique" json:"unit_id"`
	TrackID    uuid.UUID `gorm:"type:uuid;not null;index" json:"track_id"`

	Status       AssessmentStatus `gorm:"type:varchar(20);not null;default:'not_started'" json:"status"`
	AttemptsUsed int              `gorm:"not null;default:0" json:"attempts_used"`
	EarnedXP     int              `gorm:"not null;default:0" json:"earned_xp"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	// 関連 (Preload用)
	Unit *Unit `gorm:"foreignKey:UnitID;references:UnitID" json:"-"`
}

func (AssessmentProgress) TableName() string {
	return "assessment_progresses"
}

// AssessmentProgressView は進捗スナップショットに含めるDTO
type AssessmentProgressView struct {
	UnitID       uuid.UUID        `json:"unit_id"`
	Title        string           `json:"title"`
	OrderNo      int              `json:"order_no"`
	Status       AssessmentStatus `json:"status"`
	AttemptsUsed int              `json:"attempts_used"`
	EarnedXP     int              `json:"earned_xp"`
	XPValue      int              `json:"xp_value"`
}

// AnswerRequest は解答リクエストのDTO
type AnswerRequest struct {
	SelectedOptions []int `json:"selected_options" validate:"required,min=1,dive,gte=0"`
}

// AnswerResult は解答操作のレスポンスDTO
type AnswerResult struct {
	UnitID       uuid.UUID        `json:"unit_id"`
	Correct      bool             `json:"correct"`
	Status       AssessmentStatus `json:"status"`
	AttemptsUsed int              `json:"attempts_used"`
	AttemptsLeft int              `json:"attempts_left"`
	EarnedXP     int              `json:"earned_xp"`
	// NextUnitID は今回の完了で新たに InProgress になったユニット（無ければnil）
	NextUnitID *uuid.UUID `json:"next_unit_id,omitempty"`
}

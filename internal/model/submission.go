// internal/model/submission.go
package model

import (
	"time"

	"go_5_skill_ladder/internal/ladder"

	"github.com/google/uuid"
)

// SubmissionStatus は実技課題の提出状態です。
// Pending → {Approved | Revision | Failed} への一方向遷移のみ。
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRevision SubmissionStatus = "revision"
	SubmissionFailed   SubmissionStatus = "failed"
)

// StatusForVerdict は判定から提出の終端状態を導きます。
func StatusForVerdict(v ladder.Verdict) SubmissionStatus {
	switch v {
	case ladder.VerdictApproved:
		return SubmissionApproved
	case ladder.VerdictRevision:
		return SubmissionRevision
	case ladder.VerdictFailed:
		return SubmissionFailed
	default:
		return ""
	}
}

// Submission は (learner, practical-unit) の1回の提出です。
// 同一ユニットで open (pending) な提出は高々1件。クローズ済みは履歴として残す。
type Submission struct {
	SubmissionID uuid.UUID `gorm:"type:uuid;primaryKey" json:"submission_id"`
	// open(pending) な提出は (learner, unit) あたり高々1件。部分ユニークインデックスで
	// アプリ層の事前チェックをすり抜けた競合もDB側で弾く。
	LearnerID uuid.UUID `gorm:"type:uuid;not null;index;index:idx_open_submission,unique,where:status = 'pending'" json:"learner_id"`
	UnitID    uuid.UUID `gorm:"type:uuid;not null;index;index:idx_open_submission,unique,where:status = 'pending'" json:"unit_id"`
	TrackID   uuid.UUID `gorm:"type:uuid;not null;index" json:"track_id"`

	Status SubmissionStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	// Tier は提出時点のラダー現在Tier。判定適用時のTierとして固定される。
	Tier        string `gorm:"type:varchar(10);not null" json:"tier"`
	ArtifactRef string `gorm:"not null" json:"artifact_ref"`
	// AwardedXP は approved 時に一度だけ付与されるXP（それ以外は常に0）
	AwardedXP int `gorm:"not null;default:0" json:"awarded_xp"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 関連 (Preload用)
	Review *Review `gorm:"foreignKey:SubmissionID;references:SubmissionID" json:"review,omitempty"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Open は未解決（講師の判定待ち）かどうか
func (s *Submission) Open() bool {
	return s.Status == SubmissionPending
}

// Review は解決済み提出に対してちょうど1件作られる講師の判定記録です。
// 作成後は不変。再採点は管理側の補償処理であり、このエンジンの範囲外。
type Review struct {
	ReviewID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"review_id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"submission_id"`
	GraderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"grader_id"`

	Score     int            `gorm:"not null" json:"score"`
	Verdict   ladder.Verdict `gorm:"type:varchar(10);not null" json:"verdict"`
	Rationale string         `gorm:"type:text" json:"rationale"`

	CreatedAt time.Time `json:"created_at"`
}

func (Review) TableName() string {
	return "reviews"
}

// SubmitWorkRequest は実技課題提出リクエストのDTO
type SubmitWorkRequest struct {
	ArtifactRef string `json:"artifact_ref" validate:"required,min=1,max=2048"`
}

// RecordReviewRequest は判定登録リクエストのDTO
type RecordReviewRequest struct {
	Score     int    `json:"score" validate:"gte=0,lte=100"`
	Verdict   string `json:"verdict" validate:"required,oneof=approved revision failed"`
	Rationale string `json:"rationale" validate:"max=10000"`
}

// RecordReviewResponse は判定登録のレスポンスDTO
type RecordReviewResponse struct {
	Submission *Submission `json:"submission"`
	Review     *Review     `json:"review"`
	Ladder     LadderView  `json:"ladder"`
}

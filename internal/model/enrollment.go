// internal/model/enrollment.go
package model

import (
	"time"

	"go_5_skill_ladder/internal/ladder"

	"github.com/google/uuid"
)

// Enrollment は (learner, track) の受講メンバーシップです。
// 同一ペアで高々1件（複合ユニーク）。再入会はエラーではなく既存の返却（冪等）。
type Enrollment struct {
	EnrollmentID uuid.UUID `gorm:"type:uuid;primaryKey" json:"enrollment_id"`
	LearnerID    uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_track,unique" json:"learner_id"`
	TrackID      uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_track,unique" json:"track_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

// LadderState は (learner, track) ごとに必ず1件存在する配置レコードです。
// スロット状態（Locked/Pending/Passed）は保存せず、
// 「現在Tier + 単調増加の合格済みフラグ」から読み出し時に導出する。
type LadderState struct {
	LadderID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	LearnerID uuid.UUID `gorm:"type:uuid;not null;index:idx_ladder_learner_track,unique" json:"learner_id"`
	TrackID   uuid.UUID `gorm:"type:uuid;not null;index:idx_ladder_learner_track,unique" json:"track_id"`

	CurrentTier  string `gorm:"type:varchar(10);not null" json:"current_tier"`
	PassedJunior bool   `gorm:"not null;default:false" json:"-"`
	PassedMiddle bool   `gorm:"not null;default:false" json:"-"`
	PassedSenior bool   `gorm:"not null;default:false" json:"-"`

	// Version は楽観ロック用。UPDATE ... WHERE version = ? で競合を検出する。
	Version   int       `gorm:"not null;default:1" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (LadderState) TableName() string {
	return "ladder_states"
}

// NewLadderState は入会時の初期レコード（Middleから開始）を作ります。
func NewLadderState(learnerID, trackID uuid.UUID) *LadderState {
	init := ladder.NewState()
	ls := &LadderState{
		LadderID:  uuid.New(),
		LearnerID: learnerID,
		TrackID:   trackID,
		Version:   1,
	}
	ls.SetState(init)
	return ls
}

// State はDBレコードから純粋な ladder.State を復元します。
func (ls *LadderState) State() (ladder.State, bool) {
	current, ok := ladder.ParseTier(ls.CurrentTier)
	if !ok {
		return ladder.State{}, false
	}
	return ladder.State{
		Current: current,
		Passed: map[ladder.Tier]bool{
			ladder.TierJunior: ls.PassedJunior,
			ladder.TierMiddle: ls.PassedMiddle,
			ladder.TierSenior: ls.PassedSenior,
		},
	}, true
}

// SetState は純粋な ladder.State をレコードに写します（Versionは触らない）。
func (ls *LadderState) SetState(s ladder.State) {
	ls.CurrentTier = s.Current.String()
	ls.PassedJunior = s.Passed[ladder.TierJunior]
	ls.PassedMiddle = s.Passed[ladder.TierMiddle]
	ls.PassedSenior = s.Passed[ladder.TierSenior]
}

// LadderView はクライアントに返すラダーのスナップショットDTOです。
type LadderView struct {
	CurrentTier string            `json:"current_tier"`
	Slots       map[string]string `json:"slots"`
	Terminal    bool              `json:"terminal"`
}

// View はスロット状態を導出してDTOに詰めます。
func (ls *LadderState) View() LadderView {
	s, ok := ls.State()
	if !ok {
		// 不正なTier値は起動・マイグレーション不備であり、呼び出し側でfatal扱いにする
		return LadderView{CurrentTier: ls.CurrentTier, Slots: map[string]string{}}
	}
	slots := make(map[string]string, 3)
	for _, t := range []ladder.Tier{ladder.TierJunior, ladder.TierMiddle, ladder.TierSenior} {
		slots[t.String()] = string(s.Slot(t))
	}
	return LadderView{
		CurrentTier: s.Current.String(),
		Slots:       slots,
		Terminal:    s.Terminal(),
	}
}

// EnrollResponse は enroll 操作のレスポンスDTO
type EnrollResponse struct {
	Enrollment *Enrollment `json:"enrollment"`
	Ladder     LadderView  `json:"ladder"`
	// Created は今回の呼び出しで新規作成されたかどうか（冪等な再入会なら false）
	Created bool `json:"created"`
}

// ProgressResponse は学習者のトラック進捗スナップショットDTO
type ProgressResponse struct {
	Enrollment              *Enrollment              `json:"enrollment"`
	Ladder                  LadderView               `json:"ladder"`
	Assessments             []AssessmentProgressView `json:"assessments"`
	AllAssessmentsCompleted bool                     `json:"all_assessments_completed"`
	Submissions             []*Submission            `json:"submissions"`
	TotalXP                 int                      `json:"total_xp"`
}

// CertificateEligibilityResponse は修了証発行可否のDTO。
// 保存されたフラグではなく、毎回現在のレコードから再計算した結果を返す。
type CertificateEligibilityResponse struct {
	Eligible                bool `json:"eligible"`
	AllAssessmentsCompleted bool `json:"all_assessments_completed"`
	HasApprovedPractical    bool `json:"has_approved_practical"`
}

// internal/model/track.go
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"go_5_skill_ladder/internal/ladder"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnitKind はユニットの種別です
type UnitKind string

const (
	UnitKindAssessment UnitKind = "assessment" // 自動採点の知識チェック
	UnitKindPractical  UnitKind = "practical"  // 講師レビュー必須の実技課題
)

// Track はカリキュラムの単位（コース）を表します。
// このエンジンからは読み取り専用。タイトル等のメタデータ管理はコンテンツ編集側の責務。
type Track struct {
	TrackID   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"track_id"`
	Title     string         `gorm:"not null" json:"title"`
	Published bool           `gorm:"not null;default:false" json:"published"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 関連 (Preload用)
	Units []Unit `gorm:"foreignKey:TrackID;references:TrackID" json:"-"`
}

func (Track) TableName() string {
	return "tracks"
}

// Unit はトラック内の1ユニットを表します。
// kind=assessment のものは OrderNo 順に順次アンロックされ、Question を持つ。
// kind=practical のものは Tier を持ち、該当Tierの受験枠が Pending のときだけ提出できる。
type Unit struct {
	UnitID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"unit_id"`
	TrackID  uuid.UUID `gorm:"type:uuid;not null;index" json:"track_id"`
	Kind     UnitKind  `gorm:"type:varchar(20);not null" json:"kind"`
	Title    string    `gorm:"not null" json:"title"`
	// OrderNo は同一kind内での順序（assessmentの順次解放に使用）
	OrderNo int `gorm:"not null" json:"order_no"`
	XPValue int `gorm:"not null" json:"xp_value"`
	// Tier は practical のみ ("junior"/"middle"/"senior")。assessment では空。
	Tier string `gorm:"type:varchar(10)" json:"tier,omitempty"`
	// QuestionJSON は assessment のみ。タグ付きバリアントのJSON表現。
	QuestionJSON string `gorm:"type:jsonb" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Unit) TableName() string {
	return "units"
}

// PracticalTier は practical ユニットの Tier を返します。
func (u *Unit) PracticalTier() (ladder.Tier, bool) {
	if u.Kind != UnitKindPractical {
		return 0, false
	}
	return ladder.ParseTier(u.Tier)
}

// --- 設問のタグ付きバリアント ---
// JSONブロブをその都度ダックタイピングで覗くのではなく、
// 読み込み境界で一度だけデコード＋検証して型付きの値にする。

type QuestionKind string

const (
	QuestionSingleChoice QuestionKind = "single_choice"
	QuestionMultiChoice  QuestionKind = "multi_choice"
	QuestionTrueFalse    QuestionKind = "true_false"
)

// SingleChoicePayload は単一選択問題のペイロード
type SingleChoicePayload struct {
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// MultiChoicePayload は複数選択問題のペイロード（全正解選択で正答）
type MultiChoicePayload struct {
	Prompt         string   `json:"prompt"`
	Options        []string `json:"options"`
	CorrectIndexes []int    `json:"correct_indexes"`
}

// TrueFalsePayload は正誤問題のペイロード
type TrueFalsePayload struct {
	Prompt string `json:"prompt"`
	Answer bool   `json:"answer"`
}

// Question は設問のタグ付きバリアントです。Kind に応じたペイロードだけが非nilになる。
type Question struct {
	Kind         QuestionKind
	SingleChoice *SingleChoicePayload
	MultiChoice  *MultiChoicePayload
	TrueFalse    *TrueFalsePayload
}

// rawQuestion はJSON上の表現 {"kind": "...", "payload": {...}}
type rawQuestion struct {
	Kind    QuestionKind    `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeQuestion はJSONを検証付きでデコードします。
// ここを通った Question は評価時に再検証する必要がない。
func DecodeQuestion(data []byte) (*Question, error) {
	var raw rawQuestion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}

	q := &Question{Kind: raw.Kind}
	switch raw.Kind {
	case QuestionSingleChoice:
		var p SingleChoicePayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode single_choice payload: %w", err)
		}
		if len(p.Options) < 2 {
			return nil, fmt.Errorf("single_choice: at least 2 options required, got %d", len(p.Options))
		}
		if p.CorrectIndex < 0 || p.CorrectIndex >= len(p.Options) {
			return nil, fmt.Errorf("single_choice: correct_index %d out of range", p.CorrectIndex)
		}
		q.SingleChoice = &p
	case QuestionMultiChoice:
		var p MultiChoicePayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode multi_choice payload: %w", err)
		}
		if len(p.Options) < 2 {
			return nil, fmt.Errorf("multi_choice: at least 2 options required, got %d", len(p.Options))
		}
		if len(p.CorrectIndexes) == 0 {
			return nil, fmt.Errorf("multi_choice: correct_indexes must not be empty")
		}
		for _, i := range p.CorrectIndexes {
			if i < 0 || i >= len(p.Options) {
				return nil, fmt.Errorf("multi_choice: correct index %d out of range", i)
			}
		}
		q.MultiChoice = &p
	case QuestionTrueFalse:
		var p TrueFalsePayload
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode true_false payload: %w", err)
		}
		q.TrueFalse = &p
	default:
		return nil, fmt.Errorf("unknown question kind: %q", raw.Kind)
	}
	return q, nil
}

// Evaluate は選択された選択肢インデックス列が正答かどうかを判定します。
// single_choice / true_false はちょうど1つの選択を要求する
// （true_false は 0=true, 1=false のインデックス扱い）。
func (q *Question) Evaluate(selected []int) (bool, error) {
	switch q.Kind {
	case QuestionSingleChoice:
		if len(selected) != 1 {
			return false, fmt.Errorf("single_choice: exactly one option must be selected")
		}
		if selected[0] < 0 || selected[0] >= len(q.SingleChoice.Options) {
			return false, fmt.Errorf("single_choice: selected index %d out of range", selected[0])
		}
		return selected[0] == q.SingleChoice.CorrectIndex, nil
	case QuestionMultiChoice:
		if len(selected) == 0 {
			return false, fmt.Errorf("multi_choice: at least one option must be selected")
		}
		want := make(map[int]bool, len(q.MultiChoice.CorrectIndexes))
		for _, i := range q.MultiChoice.CorrectIndexes {
			want[i] = true
		}
		got := make(map[int]bool, len(selected))
		for _, i := range selected {
			if i < 0 || i >= len(q.MultiChoice.Options) {
				return false, fmt.Errorf("multi_choice: selected index %d out of range", i)
			}
			got[i] = true
		}
		if len(got) != len(want) {
			return false, nil
		}
		for i := range want {
			if !got[i] {
				return false, nil
			}
		}
		return true, nil
	case QuestionTrueFalse:
		if len(selected) != 1 || (selected[0] != 0 && selected[0] != 1) {
			return false, fmt.Errorf("true_false: select 0 (true) or 1 (false)")
		}
		return (selected[0] == 0) == q.TrueFalse.Answer, nil
	default:
		return false, fmt.Errorf("unknown question kind: %q", q.Kind)
	}
}

// EncodeQuestion はシード・テスト用にバリアントをJSONへ戻します。
func EncodeQuestion(q *Question) (string, error) {
	var payload any
	switch q.Kind {
	case QuestionSingleChoice:
		payload = q.SingleChoice
	case QuestionMultiChoice:
		payload = q.MultiChoice
	case QuestionTrueFalse:
		payload = q.TrueFalse
	default:
		return "", fmt.Errorf("unknown question kind: %q", q.Kind)
	}
	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(rawQuestion{Kind: q.Kind, Payload: rawPayload})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// internal/ladder/ladder.go
// ラダー（Junior/Middle/Senior）の遷移ルールだけを持つ純粋なパッケージ。
// DBや時刻には一切依存しない。
package ladder

// Tier はトラック内のスキル階層を表します。Junior < Middle < Senior の全順序。
type Tier int

const (
	TierJunior Tier = iota + 1 // 1
	TierMiddle                 // 2
	TierSenior                 // 3
)

func (t Tier) String() string {
	switch t {
	case TierJunior:
		return "junior"
	case TierMiddle:
		return "middle"
	case TierSenior:
		return "senior"
	default:
		return "unknown"
	}
}

// ParseTier は文字列表現から Tier を復元します。不明な場合は ok=false。
func ParseTier(s string) (Tier, bool) {
	switch s {
	case "junior":
		return TierJunior, true
	case "middle":
		return TierMiddle, true
	case "senior":
		return TierSenior, true
	default:
		return 0, false
	}
}

// Verdict はレビュワー（講師）による実技課題への最終判定です。
type Verdict string

const (
	VerdictApproved Verdict = "approved"
	VerdictRevision Verdict = "revision"
	VerdictFailed   Verdict = "failed"
)

// Valid は既知の判定値かどうかを返します。
func (v Verdict) Valid() bool {
	switch v {
	case VerdictApproved, VerdictRevision, VerdictFailed:
		return true
	}
	return false
}

// SlotStatus は各 Tier の受験枠の状態です。
type SlotStatus string

const (
	SlotLocked  SlotStatus = "locked"
	SlotPending SlotStatus = "pending"
	SlotPassed  SlotStatus = "passed"
)

// State はラダーの正規化された表現です。
// 各Tierのフラグを個別に持つのではなく、「現在のTier + 合格済み集合」から
// スロット状態を導出することで、フラグ同士の不整合を構造的に排除する。
type State struct {
	Current Tier
	// Passed は合格済みTierの集合。単調増加で、一度trueになったら戻らない。
	Passed map[Tier]bool
	// SeniorDone は Senior 合格後（= これ以上 Pending なTierが無い）かどうか。
	// Passed[TierSenior] から導出できるためフィールドとしては持たない。
}

// NewState は入会時の初期状態（Middle から開始）を返します。
func NewState() State {
	return State{
		Current: TierMiddle,
		Passed:  map[Tier]bool{},
	}
}

// Clone は State の深いコピーを返します。ApplyVerdict は元の状態を変更しません。
func (s State) Clone() State {
	passed := make(map[Tier]bool, len(s.Passed))
	for t, ok := range s.Passed {
		passed[t] = ok
	}
	return State{Current: s.Current, Passed: passed}
}

// Slot は指定Tierの枠状態を導出します。
//   - 現在のTierで、かつラダーが終端（Senior合格）でなければ Pending
//     （降格で戻ってきた場合、過去に合格済みでも再オープン扱いになる）
//   - 合格済みなら Passed
//   - それ以外は Locked
func (s State) Slot(t Tier) SlotStatus {
	if t == s.Current && !s.Terminal() {
		return SlotPending
	}
	if s.Passed[t] {
		return SlotPassed
	}
	return SlotLocked
}

// Terminal は配置が完了した（Senior合格）かどうかを返します。
// Failed@Junior はフロアに留まるだけで、再提出可能なため終端扱いにしない。
func (s State) Terminal() bool {
	return s.Passed[TierSenior]
}

// ApplyVerdict は「Tier at への判定」を適用した新しい状態を返します。
// 通常 at は提出時の現在Tierだが、判定が遅れて現在Tierとずれていても
// 定義どおり at を基準に適用する。3 Tier × 3 判定の9ケースすべてを明示的に扱う。
//
//	Approved@T: slot[T]を合格にし、T より上のTierを開く。T=Senior なら終端。
//	Revision@T: 変化なし（同じTierで再提出可能）。
//	Failed@T:   T より下のTierを開く。T=Junior はフロアなのでTier移動なし。
func ApplyVerdict(s State, at Tier, v Verdict) State {
	next := s.Clone()

	switch v {
	case VerdictApproved:
		next.Passed[at] = true
		switch at {
		case TierJunior:
			next.Current = TierMiddle
		case TierMiddle:
			next.Current = TierSenior
		case TierSenior:
			// 終端。これ以上開くTierは無い（Current は Senior のまま）。
			next.Current = TierSenior
		}
	case VerdictRevision:
		// 同一Tierで Pending のまま。
	case VerdictFailed:
		switch at {
		case TierJunior:
			// フロア。降格先が無いのでTier移動なし（Pending のまま留まる）。
		case TierMiddle:
			next.Current = TierJunior
		case TierSenior:
			next.Current = TierMiddle
		}
	}
	return next
}

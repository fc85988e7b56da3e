// internal/handlers/flow_test.go
// 入会から修了証発行可否までの一連のAPIフローを、実リポジトリ＋インメモリDBで検証する。
package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_5_skill_ladder/internal/model"
)

func TestFlow_EnrollToCertificate(t *testing.T) {
	clearTables(t)
	seeded := seedTrack(t)
	learnerID := uuid.New()
	graderID := uuid.New()
	trackPath := "/api/v1/tracks/" + seeded.Track.TrackID.String()

	// --- 入会 ---
	rr := doRequest(t, http.MethodPost, trackPath+"/enrollment", learnerID, "learner", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var enroll model.EnrollResponse
	decodeBody(t, rr, &enroll)
	assert.True(t, enroll.Created)
	assert.Equal(t, "middle", enroll.Ladder.CurrentTier)
	assert.Equal(t, "pending", enroll.Ladder.Slots["middle"])
	assert.Equal(t, "locked", enroll.Ladder.Slots["junior"])

	// 再入会は冪等で、既存メンバーシップが200で返る
	rr = doRequest(t, http.MethodPost, trackPath+"/enrollment", learnerID, "learner", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	decodeBody(t, rr, &enroll)
	assert.False(t, enroll.Created)

	// --- 知識チェック ---
	answerPath := func(u *model.Unit) string {
		return "/api/v1/units/" + u.UnitID.String() + "/answer"
	}

	// 2問目は1問目完了まで順次解放で弾かれる
	rr = doRequest(t, http.MethodPost, answerPath(seeded.Assessment2), learnerID, "learner",
		map[string]any{"selected_options": []int{0}})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	assert.Equal(t, "UNIT_LOCKED", errorCode(t, rr))

	// 1問目: 初回正解で満額XP、2問目が解放される
	rr = doRequest(t, http.MethodPost, answerPath(seeded.Assessment1), learnerID, "learner",
		map[string]any{"selected_options": []int{1}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var answer model.AnswerResult
	decodeBody(t, rr, &answer)
	assert.True(t, answer.Correct)
	assert.Equal(t, 100, answer.EarnedXP)
	require.NotNil(t, answer.NextUnitID)
	assert.Equal(t, seeded.Assessment2.UnitID, *answer.NextUnitID)

	// 2問目: 誤答は試行を消費するだけ
	rr = doRequest(t, http.MethodPost, answerPath(seeded.Assessment2), learnerID, "learner",
		map[string]any{"selected_options": []int{1}}) // 正解はtrue=0
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	// next_unit_id はomitemptyなので、前回のデコード結果を持ち越さないよう毎回ゼロ値から読む
	answer = model.AnswerResult{}
	decodeBody(t, rr, &answer)
	assert.False(t, answer.Correct)
	assert.Equal(t, 2, answer.AttemptsLeft)

	// 2問目: 2回目の正解は減衰したXP (50 * 0.65 = 32)
	rr = doRequest(t, http.MethodPost, answerPath(seeded.Assessment2), learnerID, "learner",
		map[string]any{"selected_options": []int{0}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	answer = model.AnswerResult{}
	decodeBody(t, rr, &answer)
	assert.True(t, answer.Correct)
	assert.Equal(t, 32, answer.EarnedXP)
	// 最終ユニットの完了なので新たな解放は無い
	assert.Nil(t, answer.NextUnitID)

	// 確定済みユニットへの再解答は拒否
	rr = doRequest(t, http.MethodPost, answerPath(seeded.Assessment1), learnerID, "learner",
		map[string]any{"selected_options": []int{1}})
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	assert.Equal(t, "ALREADY_RESOLVED", errorCode(t, rr))

	// --- 実技提出 ---
	submitPath := func(u *model.Unit) string {
		return "/api/v1/units/" + u.UnitID.String() + "/submission"
	}
	artifact := map[string]any{"artifact_ref": "https://git.example.com/work/pr/42"}

	// 受験枠でないJuniorには提出できない
	rr = doRequest(t, http.MethodPost, submitPath(seeded.JuniorUnit), learnerID, "learner", artifact)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	assert.Equal(t, "TIER_NOT_PENDING", errorCode(t, rr))

	// Middleへの提出は受理される
	rr = doRequest(t, http.MethodPost, submitPath(seeded.MiddleUnit), learnerID, "learner", artifact)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var submission model.Submission
	decodeBody(t, rr, &submission)
	assert.Equal(t, model.SubmissionPending, submission.Status)
	assert.Equal(t, "middle", submission.Tier)

	// 判定待ちの間は再提出できない
	rr = doRequest(t, http.MethodPost, submitPath(seeded.MiddleUnit), learnerID, "learner", artifact)
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	assert.Equal(t, "SUBMISSION_IN_FLIGHT", errorCode(t, rr))

	// --- レビュー ---
	reviewPath := fmt.Sprintf("/api/v1/submissions/%s/review", submission.SubmissionID)
	rr = doRequest(t, http.MethodPost, reviewPath, graderID, "grader",
		map[string]any{"score": 90, "verdict": "approved", "rationale": "要求水準を満たしている"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var review model.RecordReviewResponse
	decodeBody(t, rr, &review)
	assert.Equal(t, model.SubmissionApproved, review.Submission.Status)
	assert.Equal(t, 300, review.Submission.AwardedXP)
	assert.Equal(t, "senior", review.Ladder.CurrentTier)
	assert.Equal(t, "passed", review.Ladder.Slots["middle"])
	assert.Equal(t, "pending", review.Ladder.Slots["senior"])

	// 二重レビューは判定済みとして拒否され、XPは増えない
	rr = doRequest(t, http.MethodPost, reviewPath, graderID, "grader",
		map[string]any{"score": 95, "verdict": "approved"})
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	assert.Equal(t, "ALREADY_REVIEWED", errorCode(t, rr))

	// --- 進捗と修了証 ---
	rr = doRequest(t, http.MethodGet, trackPath+"/progress", learnerID, "learner", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var progress model.ProgressResponse
	decodeBody(t, rr, &progress)
	assert.True(t, progress.AllAssessmentsCompleted)
	assert.Equal(t, 432, progress.TotalXP) // 100 + 32 + 300
	assert.Equal(t, "senior", progress.Ladder.CurrentTier)

	rr = doRequest(t, http.MethodGet, trackPath+"/certificate/eligibility", learnerID, "learner", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cert model.CertificateEligibilityResponse
	decodeBody(t, rr, &cert)
	assert.True(t, cert.Eligible)
	assert.True(t, cert.AllAssessmentsCompleted)
	assert.True(t, cert.HasApprovedPractical)

	// 進捗イベントがアウトボックスに積まれている（リレー前なので未発行）
	var eventCount int64
	require.NoError(t, testDB.Model(&model.OutboxEvent{}).Where("published_at IS NULL").Count(&eventCount).Error)
	assert.Greater(t, eventCount, int64(0))
}

func TestFlow_DemotionAndRecovery(t *testing.T) {
	clearTables(t)
	seeded := seedTrack(t)
	learnerID := uuid.New()
	graderID := uuid.New()
	trackPath := "/api/v1/tracks/" + seeded.Track.TrackID.String()

	rr := doRequest(t, http.MethodPost, trackPath+"/enrollment", learnerID, "learner", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	// 知識チェックを両方クリア
	rr = doRequest(t, http.MethodPost, "/api/v1/units/"+seeded.Assessment1.UnitID.String()+"/answer",
		learnerID, "learner", map[string]any{"selected_options": []int{1}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = doRequest(t, http.MethodPost, "/api/v1/units/"+seeded.Assessment2.UnitID.String()+"/answer",
		learnerID, "learner", map[string]any{"selected_options": []int{0}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	artifact := map[string]any{"artifact_ref": "https://git.example.com/work/pr/7"}

	// Middleに提出して不合格 → Juniorへ降格
	rr = doRequest(t, http.MethodPost, "/api/v1/units/"+seeded.MiddleUnit.UnitID.String()+"/submission",
		learnerID, "learner", artifact)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var submission model.Submission
	decodeBody(t, rr, &submission)

	rr = doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%s/review", submission.SubmissionID),
		graderID, "grader", map[string]any{"score": 20, "verdict": "failed", "rationale": "実装が未完成"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var review model.RecordReviewResponse
	decodeBody(t, rr, &review)
	assert.Equal(t, 0, review.Submission.AwardedXP)
	assert.Equal(t, "junior", review.Ladder.CurrentTier)
	assert.Equal(t, "pending", review.Ladder.Slots["junior"])

	// 降格後はMiddleに再提出できない
	rr = doRequest(t, http.MethodPost, "/api/v1/units/"+seeded.MiddleUnit.UnitID.String()+"/submission",
		learnerID, "learner", artifact)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	assert.Equal(t, "TIER_NOT_PENDING", errorCode(t, rr))

	// Juniorで承認されればMiddleへ戻る
	rr = doRequest(t, http.MethodPost, "/api/v1/units/"+seeded.JuniorUnit.UnitID.String()+"/submission",
		learnerID, "learner", artifact)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	submission = model.Submission{}
	decodeBody(t, rr, &submission)

	rr = doRequest(t, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%s/review", submission.SubmissionID),
		graderID, "grader", map[string]any{"score": 85, "verdict": "approved"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	review = model.RecordReviewResponse{}
	decodeBody(t, rr, &review)
	assert.Equal(t, 200, review.Submission.AwardedXP)
	assert.Equal(t, "middle", review.Ladder.CurrentTier)
	assert.Equal(t, "passed", review.Ladder.Slots["junior"])
	assert.Equal(t, "pending", review.Ladder.Slots["middle"])

	// 承認済み実技が1つあるので修了証は発行可
	rr = doRequest(t, http.MethodGet, trackPath+"/certificate/eligibility", learnerID, "learner", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var cert model.CertificateEligibilityResponse
	decodeBody(t, rr, &cert)
	assert.True(t, cert.Eligible)
}

func TestFlow_AttemptExhaustion(t *testing.T) {
	clearTables(t)
	seeded := seedTrack(t)
	learnerID := uuid.New()
	trackPath := "/api/v1/tracks/" + seeded.Track.TrackID.String()

	rr := doRequest(t, http.MethodPost, trackPath+"/enrollment", learnerID, "learner", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	answerPath := "/api/v1/units/" + seeded.Assessment1.UnitID.String() + "/answer"
	wrong := map[string]any{"selected_options": []int{0}}

	// 3回誤答するとXPゼロで確定する
	var answer model.AnswerResult
	for i := 1; i <= 3; i++ {
		rr = doRequest(t, http.MethodPost, answerPath, learnerID, "learner", wrong)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		answer = model.AnswerResult{}
		decodeBody(t, rr, &answer)
		assert.False(t, answer.Correct)
		assert.Equal(t, i, answer.AttemptsUsed)
	}
	assert.Equal(t, model.AssessmentCompleted, answer.Status)
	assert.Equal(t, 0, answer.EarnedXP)
	// 最後の誤答で次のユニットが解放される
	require.NotNil(t, answer.NextUnitID)
	assert.Equal(t, seeded.Assessment2.UnitID, *answer.NextUnitID)

	// 以後の解答は確定済みとして拒否
	rr = doRequest(t, http.MethodPost, answerPath, learnerID, "learner",
		map[string]any{"selected_options": []int{1}})
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
	assert.Equal(t, "ALREADY_RESOLVED", errorCode(t, rr))

	// XPゼロ確定でもゲートの完了条件にはカウントされる
	rr = doRequest(t, http.MethodPost, "/api/v1/units/"+seeded.Assessment2.UnitID.String()+"/answer",
		learnerID, "learner", map[string]any{"selected_options": []int{0}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doRequest(t, http.MethodPost, "/api/v1/units/"+seeded.MiddleUnit.UnitID.String()+"/submission",
		learnerID, "learner", map[string]any{"artifact_ref": "https://git.example.com/work/pr/9"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

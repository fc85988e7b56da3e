// internal/handlers/main_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"go_5_skill_ladder/internal/config"
	"go_5_skill_ladder/internal/handlers"
	"go_5_skill_ladder/internal/middleware"
	"go_5_skill_ladder/internal/model"
	"go_5_skill_ladder/internal/repository"
	"go_5_skill_ladder/internal/service"
)

var (
	testDB     *gorm.DB // テスト用DBコネクション (パッケージ全体で共有)
	testRouter *chi.Mux // テスト用ルーター (パッケージ全体で共有)
)

// TestMain はパッケージ内のテストが実行される前に一度だけ実行されます。
// SQLiteのインメモリDBに本物のリポジトリ・サービス・ハンドラを積み上げ、
// 認証は開発用ミドルウェア（X-Actor-ID / X-Actor-Role ヘッダー）で代替します。
func TestMain(m *testing.M) {
	log.Println("Setting up handlers test environment...")

	// テスト用の設定。ファイルからは読まない。
	config.Cfg.App.AnswerAttemptLimit = 3

	var err error
	testDB, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to open in-memory test database: %v", err)
	}
	if err := repository.Migrate(testDB); err != nil {
		log.Fatalf("Failed to migrate test database: %v", err)
	}

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	trackRepo := repository.NewGormTrackRepository()
	enrollRepo := repository.NewGormEnrollmentRepository()
	ladderRepo := repository.NewGormLadderRepository()
	progRepo := repository.NewGormAssessmentProgressRepository()
	subRepo := repository.NewGormSubmissionRepository()
	outboxRepo := repository.NewGormOutboxRepository()

	enrollmentService := service.NewEnrollmentService(testDB, trackRepo, enrollRepo, ladderRepo, progRepo, subRepo, outboxRepo)
	assessmentService := service.NewAssessmentService(testDB, trackRepo, enrollRepo, progRepo, outboxRepo, &config.Cfg)
	submissionService := service.NewSubmissionService(testDB, trackRepo, enrollRepo, ladderRepo, progRepo, subRepo, outboxRepo)
	certificateService := service.NewCertificateService(testDB, trackRepo, enrollRepo, progRepo, subRepo)

	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService, testLogger)
	assessmentHandler := handlers.NewAssessmentHandler(assessmentService, testLogger)
	submissionHandler := handlers.NewSubmissionHandler(submissionService, testLogger)
	reviewHandler := handlers.NewReviewHandler(submissionService, testLogger)
	certificateHandler := handlers.NewCertificateHandler(certificateService, testLogger)

	testRouter = chi.NewRouter()
	testRouter.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.DevActorMiddleware)

			r.Route("/tracks/{track_id}", func(r chi.Router) {
				r.Post("/enrollment", enrollmentHandler.Enroll)
				r.Get("/progress", enrollmentHandler.GetProgress)
				r.Get("/certificate/eligibility", certificateHandler.GetEligibility)
			})
			r.Route("/units/{unit_id}", func(r chi.Router) {
				r.Post("/answer", assessmentHandler.Answer)
				r.Post("/submission", submissionHandler.SubmitWork)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireGrader)
				r.Post("/submissions/{submission_id}/review", reviewHandler.RecordReview)
			})
		})
	})

	log.Println("Running handler tests...")
	exitCode := m.Run()

	log.Println("Tearing down handlers test environment...")
	if sqlDB, err := testDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	os.Exit(exitCode)
}

// --- テストヘルパー関数 (パッケージ内で共有) ---

// clearTables はテスト前にテーブルをクリーンアップします
func clearTables(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Fatal("clearTables called before testDB was initialized")
	}
	// 外部キー制約のため、依存される側から削除
	for _, m := range []interface{}{
		&model.OutboxEvent{},
		&model.Review{},
		&model.Submission{},
		&model.AssessmentProgress{},
		&model.LadderState{},
		&model.Enrollment{},
		&model.Unit{},
		&model.Track{},
	} {
		if err := testDB.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			t.Fatalf("Failed to clear table for %T: %v", m, err)
		}
	}
}

// seededTrack はテスト用トラック一式（知識チェック2問＋実技3Tier）
type seededTrack struct {
	Track       *model.Track
	Assessment1 *model.Unit // 単一選択, 正解=1, 100XP
	Assessment2 *model.Unit // 正誤問題, 正解=true, 50XP
	JuniorUnit  *model.Unit
	MiddleUnit  *model.Unit
	SeniorUnit  *model.Unit
}

// seedTrack はテスト用のトラックとユニットを作成するヘルパー関数
func seedTrack(t *testing.T) *seededTrack {
	t.Helper()

	track := &model.Track{TrackID: uuid.New(), Title: "Backend Engineering", Published: true}
	if err := testDB.Create(track).Error; err != nil {
		t.Fatalf("Failed to seed track: %v", err)
	}

	q1, err := model.EncodeQuestion(&model.Question{
		Kind: model.QuestionSingleChoice,
		SingleChoice: &model.SingleChoicePayload{
			Prompt:       "HTTPのべき等なメソッドはどれ？",
			Options:      []string{"POST", "PUT", "PATCH"},
			CorrectIndex: 1,
		},
	})
	if err != nil {
		t.Fatalf("Failed to encode question: %v", err)
	}
	q2, err := model.EncodeQuestion(&model.Question{
		Kind:      model.QuestionTrueFalse,
		TrueFalse: &model.TrueFalsePayload{Prompt: "TCPはコネクション指向である", Answer: true},
	})
	if err != nil {
		t.Fatalf("Failed to encode question: %v", err)
	}

	st := &seededTrack{
		Track: track,
		Assessment1: &model.Unit{
			UnitID: uuid.New(), TrackID: track.TrackID, Kind: model.UnitKindAssessment,
			Title: "HTTP基礎", OrderNo: 1, XPValue: 100, QuestionJSON: q1,
		},
		Assessment2: &model.Unit{
			UnitID: uuid.New(), TrackID: track.TrackID, Kind: model.UnitKindAssessment,
			Title: "TCP基礎", OrderNo: 2, XPValue: 50, QuestionJSON: q2,
		},
		JuniorUnit: &model.Unit{
			UnitID: uuid.New(), TrackID: track.TrackID, Kind: model.UnitKindPractical,
			Title: "Junior実技", OrderNo: 10, XPValue: 200, Tier: "junior",
		},
		MiddleUnit: &model.Unit{
			UnitID: uuid.New(), TrackID: track.TrackID, Kind: model.UnitKindPractical,
			Title: "Middle実技", OrderNo: 11, XPValue: 300, Tier: "middle",
		},
		SeniorUnit: &model.Unit{
			UnitID: uuid.New(), TrackID: track.TrackID, Kind: model.UnitKindPractical,
			Title: "Senior実技", OrderNo: 12, XPValue: 500, Tier: "senior",
		},
	}
	for _, u := range []*model.Unit{st.Assessment1, st.Assessment2, st.JuniorUnit, st.MiddleUnit, st.SeniorUnit} {
		if err := testDB.Create(u).Error; err != nil {
			t.Fatalf("Failed to seed unit %s: %v", u.Title, err)
		}
	}
	return st
}

// doRequest は操作主体ヘッダー付きのリクエストを共通ルーターで実行します。
// body が nil でなければ JSON としてエンコードします。
func doRequest(t *testing.T, method, path string, actorID uuid.UUID, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actorID != uuid.Nil {
		req.Header.Set("X-Actor-ID", actorID.String())
	}
	if role != "" {
		req.Header.Set("X-Actor-Role", role)
	}

	rr := httptest.NewRecorder()
	testRouter.ServeHTTP(rr, req)
	return rr
}

// doRequestRaw はヘッダー値を加工せずそのまま送るバリアント（不正値のテスト用）
func doRequestRaw(t *testing.T, method, path, actorID, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if actorID != "" {
		req.Header.Set("X-Actor-ID", actorID)
	}
	if role != "" {
		req.Header.Set("X-Actor-Role", role)
	}
	rr := httptest.NewRecorder()
	testRouter.ServeHTTP(rr, req)
	return rr
}

// decodeBody はレスポンスJSONを out にデコードします
func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", rr.Body.String(), err)
	}
}

// errorCode はエラーレスポンスからエラーコードを取り出します
func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.APIErrorResponse
	decodeBody(t, rr, &resp)
	return resp.Error.Code
}

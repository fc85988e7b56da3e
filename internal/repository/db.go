package repository

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"go_5_skill_ladder/internal/model"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB はGORMのDB接続を初期化します
func NewDB(databaseURL string, appLogger *slog.Logger) (*gorm.DB, error) {

	// === slog を利用する GORM Logger の設定 ===
	// 環境変数 APP_ENV によって GORM のログレベルを切り替え
	var gormLogLevel gormlogger.LogLevel
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		gormLogLevel = gormlogger.Info
	} else {
		gormLogLevel = gormlogger.Warn
	}

	slogGormLogger := slogGorm.New(
		slogGorm.WithHandler(appLogger.Handler()),
		slogGorm.WithTraceAll(),
		slogGorm.WithSlowThreshold(500*time.Millisecond), // 遅いクエリの閾値
	)

	// === GORM 接続設定 ===
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: slogGormLogger.LogMode(gormLogLevel),
		// ドライバ固有の重複キーエラーを gorm.ErrDuplicatedKey に正規化する
		TranslateError: true,
	})
	if err != nil {
		appLogger.Error("Failed to connect to database with GORM", slog.Any("error", err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
		return nil, err
	}

	// Pingで接続確認
	if err = sqlDB.Ping(); err != nil {
		appLogger.Error("Error pinging database", slog.Any("error", err))
		sqlDB.Close()
		return nil, err
	}

	// コネクションプールの設定
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	appLogger.Info("Database connection established with GORM")

	return db, nil
}

// Migrate はこのエンジンが所有するテーブルを作成します。
// tracks/units はコンテンツ側が所有するが、開発・テスト環境の起動用に含めている。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Track{},
		&model.Unit{},
		&model.Enrollment{},
		&model.LadderState{},
		&model.AssessmentProgress{},
		&model.Submission{},
		&model.Review{},
		&model.OutboxEvent{},
	)
}

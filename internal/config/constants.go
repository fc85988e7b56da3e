// internal/config/constants.go
package config

// アプリケーション情報
const (
	AppName    = "SkillLadder"
	AppVersion = "1.0.0"
)

// デフォルト設定値
const (
	DefaultServerPort                 = ":8080"
	DefaultLogLevel                   = "info"
	DefaultAnswerAttemptLimit         = 3
	DefaultOutboxRelayIntervalSeconds = 5
	DefaultOutboxBatchSize            = 100
	DefaultKafkaTopic                 = "skill-ladder.progress"
)

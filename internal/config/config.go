// internal/config/config.go
package config

import (
	"log"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	JWT     struct {
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"jwt"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type AppConfig struct {
	// AnswerAttemptLimit は知識チェック1ユニットあたりの解答回数上限
	AnswerAttemptLimit int `mapstructure:"answer_attempt_limit"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type OutboxConfig struct {
	// RelayIntervalSeconds は未中継イベントをKafkaへ流すジョブの実行間隔
	RelayIntervalSeconds int `mapstructure:"relay_interval_seconds"`
	BatchSize            int `mapstructure:"batch_size"`
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	App      AppConfig      `mapstructure:"app"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

var Cfg Config

func LoadConfig(path string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	// 環境変数での上書き (例: APP_DATABASE_URL, APP_AUTH_ENABLED)
	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()
	viper.BindEnv("database.url", "APP_DATABASE_URL")
	viper.BindEnv("auth.enabled", "APP_AUTH_ENABLED")
	viper.BindEnv("auth.jwt.secret_key", "APP_JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Warning: Config file not found. Using default settings or environment variables if available.")
		} else {
			log.Printf("Error reading config file: %s\n", err)
			return err
		}
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		log.Printf("Error unmarshalling config: %s\n", err)
		return err
	}

	// --- デフォルト値の設定 ---
	if Cfg.Server.Port == "" {
		log.Printf("Server port not set, using default '%s'", DefaultServerPort)
		Cfg.Server.Port = DefaultServerPort
	}
	if Cfg.Log.Level == "" {
		Cfg.Log.Level = DefaultLogLevel
	}
	if Cfg.App.AnswerAttemptLimit <= 0 {
		log.Printf("Answer attempt limit not set or invalid, using default '%d'", DefaultAnswerAttemptLimit)
		Cfg.App.AnswerAttemptLimit = DefaultAnswerAttemptLimit
	}
	if Cfg.Outbox.RelayIntervalSeconds <= 0 {
		Cfg.Outbox.RelayIntervalSeconds = DefaultOutboxRelayIntervalSeconds
	}
	if Cfg.Outbox.BatchSize <= 0 {
		Cfg.Outbox.BatchSize = DefaultOutboxBatchSize
	}
	if Cfg.Kafka.Topic == "" {
		Cfg.Kafka.Topic = DefaultKafkaTopic
	}
	if Cfg.Database.URL == "" {
		log.Println("Warning: Database URL is not set in config.")
	}

	// Auth.Enabled のデフォルト値を設定 (未設定なら有効にする)
	if !viper.IsSet("auth.enabled") {
		log.Println("Auth enabled flag not set, defaulting to true (enabled)")
		Cfg.Auth.Enabled = true
	}

	log.Println("Config loaded successfully")
	log.Printf("Server Port: %s", Cfg.Server.Port)
	log.Printf("Answer Attempt Limit: %d", Cfg.App.AnswerAttemptLimit)
	log.Printf("Auth Enabled: %t", Cfg.Auth.Enabled)
	log.Printf("Kafka Enabled: %t", Cfg.Kafka.Enabled)

	return nil
}

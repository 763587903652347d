package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLS      bool
}

type QueueConfig struct {
	ClaimInterval time.Duration
}

type LoggingConfig struct {
	Level string
}

type WorkerConfig struct {
	Environment string
	Postgres    PostgresConfig
	Redis       RedisConfig
	SMTP        SMTPConfig
	Queues      QueueConfig
	Logging     LoggingConfig
	Jobs        JobsConfig
}

func LoadWorker() (*WorkerConfig, error) {
	v := viper.New()
	v.SetConfigName("worker")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.SetEnvPrefix("PLANNR_WORKER")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setWorkerDefaults(v)
	bindEnv(v, "postgres.dsn", "redis.password", "smtp.host", "smtp.username", "smtp.password")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg WorkerConfig
	if err := v.Unmarshal(&cfg, decoderOptions); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	return &cfg, nil
}

func setWorkerDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("postgres.maxopen", 5)
	v.SetDefault("postgres.maxidle", 1)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	setRedisDefaults(v)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "Plannr <no-reply@plannr.local>")
	v.SetDefault("smtp.tls", true)

	v.SetDefault("queues.claiminterval", "30s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("jobs.logineventretention", "2160h")
}

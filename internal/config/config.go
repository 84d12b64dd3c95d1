// Package config loads the client configuration: config.json first, then
// environment variables on top (PARLEY_*), with a .env file honored for
// development setups.
package config

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"strconv"

	playground "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type ConfigFile struct {
	DataDir  string
	LogLevel string `validate:"omitempty,oneof=debug info warn error"`

	// SelfContained runs everything locally: sqlite storage, in-process
	// pub/sub, avatars on disk. No external services needed.
	SelfContained bool

	DbUser     string
	DbPassword string
	DbAddress  string
	DbPort     string
	DbDatabase string

	RedisAddress string `validate:"omitempty,hostname_port"`

	// GatewayURL switches the realtime transport to a websocket relay for
	// deployments where clients cannot reach redis directly.
	GatewayURL string `validate:"omitempty,url"`

	BotGateAddress string `validate:"omitempty,hostname_port"`

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func defaults() ConfigFile {
	return ConfigFile{
		LogLevel:       "info",
		SelfContained:  true,
		DbPort:         "3306",
		DbDatabase:     "parley",
		RedisAddress:   "localhost:6379",
		BotGateAddress: "127.0.0.1:3010",
		MinioBucket:    "avatars",
	}
}

// Load reads the config file when it exists and falls back to the
// self-contained defaults when it doesn't.
func Load(path string) (ConfigFile, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := defaults()

	configFile, err := os.Open(path)
	if err == nil {
		defer configFile.Close()

		bytes, err := io.ReadAll(configFile)
		if err != nil {
			return cfg, err
		}

		err = json.Unmarshal(bytes, &cfg)
		if err != nil {
			return cfg, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	applyEnv(&cfg)

	err = playground.New().Struct(cfg)
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

func applyEnv(cfg *ConfigFile) {
	setString := func(key string, target *string) {
		if value := os.Getenv(key); value != "" {
			*target = value
		}
	}
	setBool := func(key string, target *bool) {
		if value := os.Getenv(key); value != "" {
			parsed, err := strconv.ParseBool(value)
			if err == nil {
				*target = parsed
			}
		}
	}

	setString("PARLEY_DATA_DIR", &cfg.DataDir)
	setString("PARLEY_LOG_LEVEL", &cfg.LogLevel)
	setBool("PARLEY_SELF_CONTAINED", &cfg.SelfContained)
	setString("PARLEY_DB_USER", &cfg.DbUser)
	setString("PARLEY_DB_PASSWORD", &cfg.DbPassword)
	setString("PARLEY_DB_ADDRESS", &cfg.DbAddress)
	setString("PARLEY_DB_PORT", &cfg.DbPort)
	setString("PARLEY_DB_DATABASE", &cfg.DbDatabase)
	setString("PARLEY_REDIS_ADDRESS", &cfg.RedisAddress)
	setString("PARLEY_GATEWAY_URL", &cfg.GatewayURL)
	setString("PARLEY_BOTGATE_ADDRESS", &cfg.BotGateAddress)
	setString("PARLEY_MINIO_ENDPOINT", &cfg.MinioEndpoint)
	setString("PARLEY_MINIO_ACCESS_KEY", &cfg.MinioAccessKey)
	setString("PARLEY_MINIO_SECRET_KEY", &cfg.MinioSecretKey)
	setString("PARLEY_MINIO_BUCKET", &cfg.MinioBucket)
	setBool("PARLEY_MINIO_USE_SSL", &cfg.MinioUseSSL)
}

package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
)

type Config struct {
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres" validate:"oneof=memory postgres sqlite redis"`
	SqlitePath   string `env:"SQLITE_PATH"   envDefault:"flashbid.db" validate:"required_if=StoreBackend sqlite"`

	RedisAuctionsHost string `env:"REDIS_AUCTIONS_HOST" envDefault:"localhost"`
	RedisAuctionsPort uint16 `env:"REDIS_AUCTIONS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"auction_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"auction_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"auction_db"`

	FloorPrice float64       `env:"FLOOR_PRICE" envDefault:"500" validate:"min=0"`
	ItemName   string        `env:"ITEM_NAME"   envDefault:"PlayStation 5 Pro"`
	BidDelay   time.Duration `env:"BID_DELAY"   envDefault:"100ms" validate:"min=0"`

	// Redis backend only: mirror items and bid outcomes into Postgres.
	ArchiveEnabled  bool   `env:"ARCHIVE_ENABLED"  envDefault:"false"`
	ArchiveSchedule string `env:"ARCHIVE_SCHEDULE" envDefault:"@every 10s" validate:"required"`

	NatsURL    string `env:"NATS_URL"`
	NatsStream string `env:"NATS_STREAM" envDefault:"BID_JOURNAL" validate:"required"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"3002" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}

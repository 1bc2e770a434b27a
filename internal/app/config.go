package app

import (
	"time"

	"github.com/yungbote/astrolab-backend/internal/platform/envutil"
	"github.com/yungbote/astrolab-backend/internal/platform/logger"
)

type Config struct {
	JWTSecretKey string

	BatchSize     int
	FlushInterval time.Duration

	RedisAddr        string
	SpoolKey         string
	SpoolMaxRetained int
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	batchSize := envutil.GetEnvAsInt("EVENT_BATCH_SIZE", 20, log)
	flushIntervalSeconds := envutil.GetEnvAsInt("EVENT_FLUSH_INTERVAL", 10, log)
	redisAddr := envutil.GetEnv("REDIS_ADDR", "", log)
	spoolKey := envutil.GetEnv("EVENT_SPOOL_KEY", "astrolab:event_spool", log)
	spoolMaxRetained := envutil.GetEnvAsInt("EVENT_SPOOL_MAX", 1000, log)
	return Config{
		JWTSecretKey:     jwtSecretKey,
		BatchSize:        batchSize,
		FlushInterval:    time.Duration(flushIntervalSeconds) * time.Second,
		RedisAddr:        redisAddr,
		SpoolKey:         spoolKey,
		SpoolMaxRetained: spoolMaxRetained,
	}
}

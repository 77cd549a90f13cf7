package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by ARBITER_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("ARBITER_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// RedisAddr returns the Redis address for the leaderboard cache.
// Empty disables caching.
func RedisAddr() string {
	return os.Getenv("REDIS_ADDR")
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// MinStake returns the minimum stake in integer units of account.
// Defaults to 1,000,000 if not set.
func MinStake() int64 {
	v, err := strconv.ParseInt(os.Getenv("MIN_STAKE"), 10, 64)
	if err != nil || v <= 0 {
		return 1_000_000
	}
	return v
}

// ChallengePeriod returns the window during which a submitted evaluation
// remains open to challenge. Defaults to 24 hours.
func ChallengePeriod() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("CHALLENGE_PERIOD_HOURS"))
	if err != nil || hours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(hours) * time.Hour
}

// SweepInterval returns how often the background sweeper runs.
// Defaults to 5 minutes.
func SweepInterval() time.Duration {
	minutes, err := strconv.Atoi(os.Getenv("SWEEP_INTERVAL_MINUTES"))
	if err != nil || minutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(minutes) * time.Minute
}

// RetentionDays returns how long terminal records are kept before the
// background sweeper prunes them. 0 disables background pruning
// (the admin endpoint still works).
func RetentionDays() int {
	days, err := strconv.Atoi(os.Getenv("RETENTION_DAYS"))
	if err != nil || days < 0 {
		return 0
	}
	return days
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

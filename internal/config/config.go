package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port string
	Env  string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret   string
	JWTTTL      time.Duration
	DatabaseURL string

	Economy EconomyConfig

	QueueEntryTTL    time.Duration
	MatchIdleTimeout time.Duration
	SweepInterval    time.Duration
}

// EconomyConfig holds the tunable constants of the mining economy and the damas minigame.
type EconomyConfig struct {
	BaseRate            float64
	MatchStake          decimal.Decimal
	MatchReward         decimal.Decimal
	RoomUnitPrice       decimal.Decimal
	MaxRooms            int
	EnergyPricePerPoint decimal.Decimal
	LandBasePrice       decimal.Decimal
	LandPriceStep       decimal.Decimal
}

func DefaultEconomy() EconomyConfig {
	return EconomyConfig{
		BaseRate:            0.015,
		MatchStake:          decimal.NewFromInt(25),
		MatchReward:         decimal.NewFromInt(50),
		RoomUnitPrice:       decimal.NewFromInt(100),
		MaxRooms:            10,
		EnergyPricePerPoint: decimal.NewFromFloat(0.5),
		LandBasePrice:       decimal.NewFromInt(250),
		LandPriceStep:       decimal.NewFromInt(250),
	}
}

// Load reads configuration from the environment. Call godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		RedisURL:    getEnv("REDIS_URL", "localhost:6379"),
		RedisPass:   getEnv("REDIS_PASSWORD", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Economy:     DefaultEconomy(),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getEnvDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.QueueEntryTTL, err = getEnvDuration("QUEUE_ENTRY_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MatchIdleTimeout, err = getEnvDuration("MATCH_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	eco := &cfg.Economy
	if eco.BaseRate, err = getEnvFloat("BASE_RATE", eco.BaseRate); err != nil {
		return nil, err
	}
	if eco.MaxRooms, err = getEnvInt("MAX_ROOMS", eco.MaxRooms); err != nil {
		return nil, err
	}
	if eco.MatchStake, err = getEnvDecimal("MATCH_STAKE", eco.MatchStake); err != nil {
		return nil, err
	}
	if eco.MatchReward, err = getEnvDecimal("MATCH_REWARD", eco.MatchReward); err != nil {
		return nil, err
	}
	if eco.RoomUnitPrice, err = getEnvDecimal("ROOM_PRICE", eco.RoomUnitPrice); err != nil {
		return nil, err
	}
	if eco.EnergyPricePerPoint, err = getEnvDecimal("ENERGY_PRICE", eco.EnergyPricePerPoint); err != nil {
		return nil, err
	}
	if eco.LandBasePrice, err = getEnvDecimal("LAND_BASE_PRICE", eco.LandBasePrice); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if eco.BaseRate <= 0 {
		return nil, fmt.Errorf("BASE_RATE must be positive, got %v", eco.BaseRate)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

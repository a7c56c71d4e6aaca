// Package config загружает конфигурацию симулятора из YAML и переменных окружения.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pico-faultsim/internal/analytics"
)

var validate = validator.New()

// Config конфигурация приложения
type Config struct {
	Simulation SimulationConfig     `json:"simulation" yaml:"simulation"`
	Detector   analytics.Thresholds `json:"detector" yaml:"detector"`
	Logging    LoggingConfig        `json:"logging" yaml:"logging"`
	Redis      RedisConfig          `json:"redis" yaml:"redis"`
	Server     ServerConfig         `json:"server" yaml:"server"`
	Bridge     BridgeConfig         `json:"bridge" yaml:"bridge"`
}

// SimulationConfig параметры прогонов
type SimulationConfig struct {
	Seed    int64 `json:"seed" yaml:"seed"`
	Rounds  int   `json:"rounds" yaml:"rounds" validate:"gte=1"`
	Workers int   `json:"workers" yaml:"workers" validate:"gte=1"`

	// StrictKinds отклоняет типы неисправностей, которые периферия не интерпретирует.
	// При false они подключаются как no-op с предупреждением.
	StrictKinds bool `json:"strict_kinds" yaml:"strict_kinds"`

	// ScenarioFiles дополнительные YAML-файлы сценариев
	ScenarioFiles []string `json:"scenario_files,omitempty" yaml:"scenario_files,omitempty"`
}

// LoggingConfig настройки логирования
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format     string `json:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
}

// RedisConfig выгрузка отчетов
type RedisConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	Addr      string        `json:"addr" yaml:"addr" validate:"required_if=Enabled true"`
	Password  string        `json:"-" yaml:"password,omitempty"`
	DB        int           `json:"db" yaml:"db" validate:"gte=0"`
	Retention time.Duration `json:"retention" yaml:"retention" validate:"gt=0"`
}

// ServerConfig HTTP API
type ServerConfig struct {
	Port string `json:"port" yaml:"port" validate:"required,numeric"`
}

// BridgeConfig аппаратный мост
type BridgeConfig struct {
	Mode     string        `json:"mode" yaml:"mode" validate:"oneof=sim hardware"`
	Port     string        `json:"port" yaml:"port"`
	BaudRate int           `json:"baud_rate" yaml:"baud_rate" validate:"gt=0"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`
	Settle   time.Duration `json:"settle" yaml:"settle" validate:"gte=0"`
}

// Default конфигурация по умолчанию
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Seed:        42,
			Rounds:      5,
			Workers:     4,
			StrictKinds: true,
		},
		Detector: analytics.DefaultThresholds(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			Retention: time.Hour,
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Bridge: BridgeConfig{
			Mode:     "sim",
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
			Timeout:  2 * time.Second,
			Settle:   500 * time.Millisecond,
		},
	}
}

// Load defaults -> файл (если задан или есть FAULTSIM_CONFIG) -> окружение
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FAULTSIM_CONFIG")
	}

	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile читает YAML поверх значений по умолчанию
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnvOverrides применяет переменные окружения
func applyEnvOverrides(cfg *Config) {
	cfg.Simulation.Seed = int64(getEnvAsInt("FAULTSIM_SEED", int(cfg.Simulation.Seed)))
	cfg.Simulation.Rounds = getEnvAsInt("FAULTSIM_ROUNDS", cfg.Simulation.Rounds)
	cfg.Simulation.Workers = getEnvAsInt("FAULTSIM_WORKERS", cfg.Simulation.Workers)
	cfg.Simulation.StrictKinds = getEnvAsBool("FAULTSIM_STRICT_KINDS", cfg.Simulation.StrictKinds)

	cfg.Detector.NoiseStdDev = getEnvAsFloat("FAULTSIM_NOISE_STDDEV", cfg.Detector.NoiseStdDev)
	cfg.Detector.OffsetLimit = getEnvAsFloat("FAULTSIM_OFFSET_LIMIT", cfg.Detector.OffsetLimit)

	cfg.Logging.Level = getEnv("FAULTSIM_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("FAULTSIM_LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.EventsFile = getEnv("FAULTSIM_EVENTS_FILE", cfg.Logging.EventsFile)

	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)

	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	if hours := getEnvAsInt("REPORT_RETENTION_HOURS", 0); hours > 0 {
		cfg.Redis.Retention = time.Duration(hours) * time.Hour
	}

	cfg.Bridge.Mode = getEnv("BRIDGE_MODE", cfg.Bridge.Mode)
	cfg.Bridge.Port = getEnv("SERIAL_PORT", cfg.Bridge.Port)
	cfg.Bridge.BaudRate = getEnvAsInt("BAUDRATE", cfg.Bridge.BaudRate)
	if secs := getEnvAsFloat("SERIAL_TIMEOUT", 0); secs > 0 {
		cfg.Bridge.Timeout = time.Duration(secs * float64(time.Second))
	}
}

// getEnv получает environment variable или возвращает default
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt получает environment variable как int
func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat получает environment variable как float64
func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool получает environment variable как bool
func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

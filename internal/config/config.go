package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/gridworld/internal/geo"
	"github.com/annel0/gridworld/internal/limiter"
	"github.com/annel0/gridworld/internal/logging"
	"github.com/annel0/gridworld/internal/worldgen"
)

// EnvConfigPath — переменная окружения с путём к файлу конфигурации
const EnvConfigPath = "GRIDWORLD_CONFIG"

// EnvMetricsAddr переопределяет адрес HTTP-сервера метрик
const EnvMetricsAddr = "GRIDWORLD_METRICS_ADDR"

const defaultMetricsAddr = ":2112"

// ErrNoConfig возвращается LoadFile, если путь не задан ни аргументом, ни окружением
var ErrNoConfig = errors.New("config: путь к конфигурации не задан")

// Config корневая структура конфигурации приложения.
type Config struct {
	Stream    StreamConfig    `yaml:"stream"`
	Limiter   LimiterConfig   `yaml:"limiter"`
	Generator GeneratorConfig `yaml:"generator"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type StreamConfig struct {
	ForceLoadRadius int     `yaml:"force_load_radius"`
	ZombieSeconds   float64 `yaml:"zombie_seconds"`
	OriginLimit     float32 `yaml:"origin_limit"`
	OriginSnap      int64   `yaml:"origin_snap"`
	Background      bool    `yaml:"background"`
	Workers         int     `yaml:"workers"`
	TickHz          int     `yaml:"tick_hz"`
}

type LimiterConfig struct {
	BindsPerSecond float64 `yaml:"binds_per_second"`
	Burst          int     `yaml:"burst"`
}

type GeneratorConfig struct {
	Seed        int64  `yaml:"seed"`
	Workers     int    `yaml:"workers"`
	QueueSize   int    `yaml:"queue_size"`
	SeaLevel    int    `yaml:"sea_level"`
	Definitions string `yaml:"definitions"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
	// Консольный уровень отдельных компонентов, например geo: DEBUG
	Components map[string]string `yaml:"components"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// GetAddr возвращает адрес метрик с приоритетом: config -> env -> default
func (m *MetricsConfig) GetAddr() string {
	return getAddrWithEnvFallback(m.Addr, EnvMetricsAddr, defaultMetricsAddr)
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// getAddrWithEnvFallback возвращает адрес с приоритетом: config -> env -> default
func getAddrWithEnvFallback(configAddr, envVar, defaultAddr string) string {
	if configAddr != "" {
		return configAddr
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultAddr
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	gen := worldgen.DefaultOptions()
	return &Config{
		Stream: StreamConfig{
			ForceLoadRadius: geo.DefaultForceLoadRadius,
			ZombieSeconds:   geo.DefaultZombieTime.Seconds(),
			OriginLimit:     geo.DefaultOriginLimit,
			OriginSnap:      geo.DefaultOriginSnap,
			Background:      true,
			TickHz:          20,
		},
		Limiter: LimiterConfig{
			BindsPerSecond: 64,
			Burst:          16,
		},
		Generator: GeneratorConfig{
			Seed:      gen.Seed,
			Workers:   gen.Workers,
			QueueSize: gen.QueueSize,
			SeaLevel:  gen.SeaLevel,
		},
		Logging: LoggingConfig{
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "gridworld",
		},
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV GRIDWORLD_CONFIG, а если
// и он не задан, возвращает Default().
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if errors.Is(err, ErrNoConfig) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile действует как Load, но возвращает ErrNoConfig, если путь не задан
func LoadFile(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
		if path == "" {
			return nil, ErrNoConfig
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает YAML поверх значений по умолчанию и проверяет результат
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	s := c.Stream
	if s.ForceLoadRadius < 0 {
		return fmt.Errorf("stream.force_load_radius не может быть отрицательным: %d", s.ForceLoadRadius)
	}
	if s.OriginSnap <= 0 {
		return fmt.Errorf("stream.origin_snap должен быть положительным: %d", s.OriginSnap)
	}
	if float32(s.OriginSnap) > s.OriginLimit {
		return fmt.Errorf("stream.origin_snap (%d) больше stream.origin_limit (%.0f)", s.OriginSnap, s.OriginLimit)
	}
	if s.ZombieSeconds < 0 {
		return fmt.Errorf("stream.zombie_seconds не может быть отрицательным: %v", s.ZombieSeconds)
	}
	if c.Limiter.BindsPerSecond <= 0 {
		return fmt.Errorf("limiter.binds_per_second должен быть положительным: %v", c.Limiter.BindsPerSecond)
	}
	if _, err := logging.ParseLevel(c.Logging.ConsoleLevel); err != nil {
		return fmt.Errorf("logging.console_level: %w", err)
	}
	if _, err := logging.ParseLevel(c.Logging.FileLevel); err != nil {
		return fmt.Errorf("logging.file_level: %w", err)
	}
	for component, level := range c.Logging.Components {
		if _, err := logging.ParseLevel(level); err != nil {
			return fmt.Errorf("logging.components.%s: %w", component, err)
		}
	}
	return nil
}

// GeoOptions возвращает параметры планировщика подгрузки
func (c *Config) GeoOptions() geo.Options {
	return geo.Options{
		ForceLoadRadius: c.Stream.ForceLoadRadius,
		ZombieTime:      time.Duration(c.Stream.ZombieSeconds * float64(time.Second)),
		OriginLimit:     c.Stream.OriginLimit,
		OriginSnap:      c.Stream.OriginSnap,
		Background:      c.Stream.Background,
		Workers:         c.Stream.Workers,
	}
}

// LimiterOptions возвращает параметры ограничителя привязки
func (c *Config) LimiterOptions() limiter.Options {
	return limiter.Options{
		BindsPerSecond: c.Limiter.BindsPerSecond,
		Burst:          c.Limiter.Burst,
	}
}

// GeneratorOptions возвращает параметры генератора; незаданные поля берутся по умолчанию
func (c *Config) GeneratorOptions() worldgen.Options {
	opts := worldgen.DefaultOptions()
	opts.Seed = c.Generator.Seed
	if c.Generator.Workers > 0 {
		opts.Workers = c.Generator.Workers
	}
	if c.Generator.QueueSize > 0 {
		opts.QueueSize = c.Generator.QueueSize
	}
	if c.Generator.SeaLevel > 0 {
		opts.SeaLevel = c.Generator.SeaLevel
	}
	if zombie := c.GeoOptions().ZombieTime; zombie > 0 {
		opts.Lifetime = zombie
	}
	return opts
}

// LoggingSettings возвращает настройки логирования. Уровни проверены в Validate.
func (c *Config) LoggingSettings() logging.Settings {
	console, _ := logging.ParseLevel(c.Logging.ConsoleLevel)
	file, _ := logging.ParseLevel(c.Logging.FileLevel)
	s := logging.Settings{
		Dir:          c.Logging.Dir,
		ConsoleLevel: console,
		FileLevel:    file,
	}
	if len(c.Logging.Components) > 0 {
		s.Components = make(map[string]logging.LogLevel, len(c.Logging.Components))
		for component, name := range c.Logging.Components {
			s.Components[component], _ = logging.ParseLevel(name)
		}
	}
	return s
}

// TickInterval возвращает период основного цикла
func (c *Config) TickInterval() time.Duration {
	if c.Stream.TickHz <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.Stream.TickHz)
}

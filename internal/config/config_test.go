package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/gridworld/internal/logging"
)

func TestLoad_DefaultsWithoutPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate(), "Значения по умолчанию корректны")

	_, err = LoadFile("")
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestLoad_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridworld.yaml")
	data := `
stream:
  force_load_radius: 2
  zombie_seconds: 5
  origin_limit: 512
  origin_snap: 256
  background: false
limiter:
  binds_per_second: 10
  burst: 4
generator:
  seed: 42
logging:
  console_level: debug
  components:
    geo: trace
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	require.NoError(t, err)

	geoOpts := cfg.GeoOptions()
	assert.Equal(t, 2, geoOpts.ForceLoadRadius)
	assert.Equal(t, 5*time.Second, geoOpts.ZombieTime)
	assert.Equal(t, float32(512), geoOpts.OriginLimit)
	assert.Equal(t, int64(256), geoOpts.OriginSnap)
	assert.False(t, geoOpts.Background)

	assert.Equal(t, 10.0, cfg.LimiterOptions().BindsPerSecond)
	assert.Equal(t, 4, cfg.LimiterOptions().Burst)

	gen := cfg.GeneratorOptions()
	assert.Equal(t, int64(42), gen.Seed)
	assert.Equal(t, 5*time.Second, gen.Lifetime, "Время жизни нового кластера совпадает с zombie_seconds")
	assert.Equal(t, 2, gen.Workers, "Незаданные поля берутся по умолчанию")

	settings := cfg.LoggingSettings()
	assert.Equal(t, logging.DEBUG, settings.ConsoleLevel)
	assert.Equal(t, logging.DEBUG, settings.FileLevel)
	assert.Equal(t, map[string]logging.LogLevel{"geo": logging.TRACE}, settings.Components)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"отрицательный радиус": "stream: {force_load_radius: -1}",
		"нулевой шаг":          "stream: {origin_snap: 0}",
		"шаг больше предела":   "stream: {origin_limit: 100, origin_snap: 128}",
		"нулевая скорость":     "limiter: {binds_per_second: 0}",
		"неизвестный уровень":  "logging: {console_level: loud}",
		"уровень компонента":   "logging: {components: {geo: loud}}",
		"некорректный YAML":    "stream: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.Error(t, err)
		})
	}
}

func TestMetricsConfig_GetAddr(t *testing.T) {
	t.Setenv(EnvMetricsAddr, "")
	m := MetricsConfig{}
	assert.Equal(t, ":2112", m.GetAddr())

	t.Setenv(EnvMetricsAddr, ":9000")
	assert.Equal(t, ":9000", m.GetAddr())

	m.Addr = "127.0.0.1:9100"
	assert.Equal(t, "127.0.0.1:9100", m.GetAddr(), "Значение из файла важнее окружения")
}

func TestTickInterval(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval())

	cfg.Stream.TickHz = 0
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval())
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "gridworld.yaml"))
	require.NoError(t, err, "Пример конфигурации должен загружаться")

	def := Default()
	assert.Equal(t, def.Stream, cfg.Stream)
	assert.Equal(t, def.Limiter, cfg.Limiter)
	assert.Equal(t, def.Generator, cfg.Generator)
	assert.Equal(t, "logs", cfg.Logging.Dir)
	assert.Equal(t, ":2112", cfg.Metrics.Addr)
}

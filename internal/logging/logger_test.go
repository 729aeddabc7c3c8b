package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, lvl, "Пустая строка означает INFO")

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newWriterLogger("geo", &buf, WARN)

	l.Info("скрыто %d", 1)
	l.Warn("видно %d", 2)
	l.Error("видно %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "скрыто")
	assert.Contains(t, out, "[WARN] [geo] видно 2")
	assert.Contains(t, out, "[ERROR] [geo] видно 3")

	l.SetLevels(TRACE, ERROR)
	l.Trace("трассировка")
	assert.Contains(t, buf.String(), "[TRACE] [geo] трассировка")
}

func TestLogger_NilIsSilent(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("ничего")
		Info("логгер по умолчанию ещё не создан")
	})
	assert.False(t, l.Enabled(ERROR))
}

func TestNewLogger_WritesFile(t *testing.T) {
	dir := t.TempDir()
	Configure(Settings{Dir: dir, ConsoleLevel: ERROR, FileLevel: DEBUG})
	defer Configure(Settings{ConsoleLevel: INFO, FileLevel: DEBUG})

	l, err := NewLogger("worldgen")
	require.NoError(t, err)
	l.Debug("кластер %s", "(0,0)")
	require.NoError(t, l.Close())

	files, err := filepath.Glob(filepath.Join(dir, "worldgen_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] [worldgen] кластер (0,0)")
}

func TestLoggerManager_Reuse(t *testing.T) {
	lm := NewLoggerManager(Settings{ConsoleLevel: INFO, FileLevel: DEBUG})

	a, err := lm.GetLogger("limiter")
	require.NoError(t, err)
	b, err := lm.GetLogger("limiter")
	require.NoError(t, err)
	assert.Same(t, a, b, "Логгер компонента создаётся один раз")

	_, err = lm.GetLogger("geo")
	require.NoError(t, err)
	assert.Equal(t, []string{"geo", "limiter"}, lm.Components())

	require.NoError(t, lm.CloseAll())
	assert.Empty(t, lm.Components())
}

func TestLoggerManager_ComponentLevels(t *testing.T) {
	lm := NewLoggerManager(Settings{ConsoleLevel: INFO, FileLevel: DEBUG})

	geo := lm.MustGetLogger("geo")
	assert.False(t, geo.Enabled(DEBUG))

	lm.SetComponentLevel("geo", DEBUG)
	assert.True(t, geo.Enabled(DEBUG), "Уровень применяется к существующему логгеру")

	lm.SetComponentLevel("limiter", TRACE)
	limiter := lm.MustGetLogger("limiter")
	assert.True(t, limiter.Enabled(TRACE), "Уровень сохраняется до создания логгера")

	lm.Configure(Settings{ConsoleLevel: WARN, FileLevel: DEBUG})
	assert.False(t, geo.Enabled(INFO), "Новые настройки сбрасывают прежние уровни компонентов")
	assert.True(t, geo.Enabled(WARN))
	assert.False(t, limiter.Enabled(TRACE))

	lm.Configure(Settings{ConsoleLevel: WARN, FileLevel: DEBUG, Components: map[string]LogLevel{"geo": TRACE}})
	assert.True(t, geo.Enabled(TRACE))
	assert.Equal(t, map[string]LogLevel{"geo": TRACE}, lm.Settings().Components)
}

package logging

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// LoggerManager хранит логгеры компонентов и настройки, с которыми они создаются.
// Изменение настроек применяется и к уже созданным логгерам.
type LoggerManager struct {
	mu        sync.Mutex
	settings  Settings
	loggers   map[string]*Logger
	overrides map[string]LogLevel // консольный уровень отдельных компонентов
}

// NewLoggerManager создаёт менеджер с заданными настройками
func NewLoggerManager(s Settings) *LoggerManager {
	lm := &LoggerManager{
		loggers:   make(map[string]*Logger),
		overrides: make(map[string]LogLevel),
	}
	lm.apply(s)
	return lm
}

var (
	globalManager *LoggerManager
	managerOnce   sync.Once
)

// GetLoggerManager возвращает менеджер логгеров процесса
func GetLoggerManager() *LoggerManager {
	managerOnce.Do(func() {
		globalManager = NewLoggerManager(Settings{ConsoleLevel: INFO, FileLevel: DEBUG})
	})
	return globalManager
}

// Configure задаёт настройки логирования процесса
func Configure(s Settings) {
	GetLoggerManager().Configure(s)
}

func currentSettings() Settings {
	return GetLoggerManager().Settings()
}

// Settings возвращает копию текущих настроек
func (lm *LoggerManager) Settings() Settings {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	s := lm.settings
	s.Components = make(map[string]LogLevel, len(lm.overrides))
	for c, lvl := range lm.overrides {
		s.Components[c] = lvl
	}
	return s
}

// Configure заменяет настройки. Каталог файлов действует только для новых логгеров,
// уровни пересчитываются для всех.
func (lm *LoggerManager) Configure(s Settings) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.apply(s)
}

func (lm *LoggerManager) apply(s Settings) {
	lm.settings = s
	lm.settings.Components = nil
	lm.overrides = make(map[string]LogLevel, len(s.Components))
	for c, lvl := range s.Components {
		lm.overrides[c] = lvl
	}
	for c, l := range lm.loggers {
		l.SetLevels(lm.consoleLevel(c), s.FileLevel)
	}
}

func (lm *LoggerManager) consoleLevel(component string) LogLevel {
	if lvl, ok := lm.overrides[component]; ok {
		return lvl
	}
	return lm.settings.ConsoleLevel
}

// SetComponentLevel задаёт консольный уровень компонента. Уровень сохраняется
// и для логгера, который будет создан позже.
func (lm *LoggerManager) SetComponentLevel(component string, level LogLevel) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.overrides[component] = level
	if l, ok := lm.loggers[component]; ok {
		l.SetLevels(level, lm.settings.FileLevel)
	}
}

// GetLogger возвращает логгер компонента, создавая его при первом обращении
func (lm *LoggerManager) GetLogger(component string) (*Logger, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if l, ok := lm.loggers[component]; ok {
		return l, nil
	}

	s := lm.settings
	s.ConsoleLevel = lm.consoleLevel(component)
	l, err := newLogger(component, s)
	if err != nil {
		return nil, fmt.Errorf("логгер %s: %w", component, err)
	}
	lm.loggers[component] = l
	return l, nil
}

// MustGetLogger возвращает логгер компонента. Если файл логов не открылся,
// компонент пишет только в stderr.
func (lm *LoggerManager) MustGetLogger(component string) *Logger {
	l, err := lm.GetLogger(component)
	if err == nil {
		return l
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if existing, ok := lm.loggers[component]; ok {
		return existing
	}
	l = newWriterLogger(component, os.Stderr, lm.consoleLevel(component))
	l.Warn("файл логов недоступен, вывод только в консоль: %v", err)
	lm.loggers[component] = l
	return l
}

// Components возвращает отсортированные имена созданных логгеров
func (lm *LoggerManager) Components() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	names := make([]string, 0, len(lm.loggers))
	for c := range lm.loggers {
		names = append(names, c)
	}
	sort.Strings(names)
	return names
}

// CloseAll закрывает файлы всех логгеров и забывает их
func (lm *LoggerManager) CloseAll() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var errs []error
	for c, l := range lm.loggers {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("логгер %s: %w", c, err))
		}
	}
	lm.loggers = make(map[string]*Logger)
	return errors.Join(errs...)
}

// GetComponentLogger возвращает логгер компонента из менеджера процесса
func GetComponentLogger(component string) *Logger {
	return GetLoggerManager().MustGetLogger(component)
}

func GetGeoLogger() *Logger {
	return GetComponentLogger("geo")
}

func GetWorldgenLogger() *Logger {
	return GetComponentLogger("worldgen")
}

func GetLimiterLogger() *Logger {
	return GetComponentLogger("limiter")
}

func GetEventBusLogger() *Logger {
	return GetComponentLogger("eventbus")
}

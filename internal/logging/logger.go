package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int32

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает имя уровня (регистр не важен)
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("неизвестный уровень логирования %q", name)
	}
}

// Settings — параметры, с которыми создаются логгеры
type Settings struct {
	Dir          string              // Каталог файлов логов; пустая строка — только консоль
	ConsoleLevel LogLevel            // Минимальный уровень для консоли
	FileLevel    LogLevel            // Минимальный уровень для файла
	Components   map[string]LogLevel // Консольный уровень отдельных компонентов
}

// Logger представляет логгер одного компонента
type Logger struct {
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel atomic.Int32
	minFileLevel    atomic.Int32
}

// NewLogger создаёт логгер компонента с текущими настройками процесса, минуя менеджер
func NewLogger(component string) (*Logger, error) {
	s := currentSettings()
	if lvl, ok := s.Components[component]; ok {
		s.ConsoleLevel = lvl
	}
	return newLogger(component, s)
}

// newLogger создаёт логгер: консоль всегда, файл — если задан каталог
func newLogger(component string, s Settings) (*Logger, error) {

	l := &Logger{
		component:     component,
		consoleLogger: log.New(os.Stdout, "", log.LstdFlags),
	}
	l.minConsoleLevel.Store(int32(s.ConsoleLevel))
	l.minFileLevel.Store(int32(s.FileLevel))

	if s.Dir == "" {
		return l, nil
	}

	// Создаем директорию для логов
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", s.Dir, err)
	}

	// Создаем файл для логов с временной меткой
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(s.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}
	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags)
	return l, nil
}

// newWriterLogger создаёт логгер, пишущий в произвольный io.Writer
func newWriterLogger(component string, w io.Writer, level LogLevel) *Logger {
	l := &Logger{
		component:     component,
		consoleLogger: log.New(w, "", 0),
	}
	l.minConsoleLevel.Store(int32(level))
	l.minFileLevel.Store(int32(ERROR + 1))
	return l
}

// SetLevels меняет пороги вывода
func (l *Logger) SetLevels(consoleLevel, fileLevel LogLevel) {
	l.minConsoleLevel.Store(int32(consoleLevel))
	l.minFileLevel.Store(int32(fileLevel))
}

// Enabled сообщает, будет ли сообщение уровня level куда-нибудь записано
func (l *Logger) Enabled(level LogLevel) bool {
	if l == nil {
		return false
	}
	if level >= LogLevel(l.minConsoleLevel.Load()) {
		return true
	}
	return l.fileLogger != nil && level >= LogLevel(l.minFileLevel.Load())
}

// Close закрывает файл логгера
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) { l.logMessage(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) { l.logMessage(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) { l.logMessage(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) { l.logMessage(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) { l.logMessage(ERROR, format, args...) }

// logMessage внутренняя функция для логирования
func (l *Logger) logMessage(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s", level.String(), l.component, fmt.Sprintf(format, args...))

	if fl := l.fileLogger; fl != nil && level >= LogLevel(l.minFileLevel.Load()) {
		fl.Println(message)
	}
	if level >= LogLevel(l.minConsoleLevel.Load()) {
		l.consoleLogger.Println(message)
	}
}

// ---------------------------------------------------------------------------
// Логгер по умолчанию
// ---------------------------------------------------------------------------

// Глобальный экземпляр логгера; до InitDefaultLogger сообщения отбрасываются
var defaultLogger atomic.Pointer[Logger]

// InitDefaultLogger инициализирует логгер по умолчанию для процесса
func InitDefaultLogger(component string) error {
	l, err := GetLoggerManager().GetLogger(component)
	if err != nil {
		return err
	}
	defaultLogger.Store(l)
	return nil
}

// CloseDefaultLogger закрывает все логгеры процесса
func CloseDefaultLogger() {
	defaultLogger.Store(nil)
	_ = GetLoggerManager().CloseAll()
}

// Trace логирует через логгер по умолчанию
func Trace(format string, args ...interface{}) { defaultLogger.Load().Trace(format, args...) }

// Debug логирует через логгер по умолчанию
func Debug(format string, args ...interface{}) { defaultLogger.Load().Debug(format, args...) }

// Info логирует через логгер по умолчанию
func Info(format string, args ...interface{}) { defaultLogger.Load().Info(format, args...) }

// Warn логирует через логгер по умолчанию
func Warn(format string, args ...interface{}) { defaultLogger.Load().Warn(format, args...) }

// Error логирует через логгер по умолчанию
func Error(format string, args ...interface{}) { defaultLogger.Load().Error(format, args...) }

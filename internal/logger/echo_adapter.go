package logger

import (
	"fmt"
	"io"
	"sync"

	echolog "github.com/labstack/gommon/log"
)

// EchoLoggerAdapter routes Echo's framework logging into a Logger.
// Output and header settings are ignored; the central logger owns both.
// The echo prefix, when set, is attached as a "prefix" field.
//
//	e := echo.New()
//	e.Logger = logger.NewEchoLoggerAdapter(central.Module("http"))
type EchoLoggerAdapter struct {
	logger Logger

	mu     sync.RWMutex
	prefix string
	level  echolog.Lvl
}

// NewEchoLoggerAdapter creates an adapter passing every level through to log
func NewEchoLoggerAdapter(log Logger) *EchoLoggerAdapter {
	if log == nil {
		log = NewSlogLogger(nil, LogLevelInfo, nil)
	}
	return &EchoLoggerAdapter{logger: log, level: echolog.DEBUG}
}

func (a *EchoLoggerAdapter) emit(lvl echolog.Lvl, msg string, fields ...Field) {
	a.mu.RLock()
	prefix, floor := a.prefix, a.level
	a.mu.RUnlock()

	if lvl < floor {
		return
	}
	if prefix != "" {
		fields = append(fields, String("prefix", prefix))
	}

	switch lvl {
	case echolog.DEBUG:
		a.logger.Debug(msg, fields...)
	case echolog.WARN:
		a.logger.Warn(msg, fields...)
	case echolog.ERROR:
		a.logger.Error(msg, fields...)
	default:
		a.logger.Info(msg, fields...)
	}
}

func (a *EchoLoggerAdapter) emitJSON(lvl echolog.Lvl, j echolog.JSON) {
	a.emit(lvl, "echo", Any("data", j))
}

// Output implements echo.Logger. Records never reach a raw writer.
func (a *EchoLoggerAdapter) Output() io.Writer { return io.Discard }

// SetOutput implements echo.Logger and is ignored
func (a *EchoLoggerAdapter) SetOutput(io.Writer) {}

// SetHeader implements echo.Logger and is ignored
func (a *EchoLoggerAdapter) SetHeader(string) {}

// Prefix implements echo.Logger
func (a *EchoLoggerAdapter) Prefix() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prefix
}

// SetPrefix implements echo.Logger
func (a *EchoLoggerAdapter) SetPrefix(p string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prefix = p
}

// Level implements echo.Logger
func (a *EchoLoggerAdapter) Level() echolog.Lvl {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.level
}

// SetLevel drops echo records below lvl before they reach the central logger
func (a *EchoLoggerAdapter) SetLevel(lvl echolog.Lvl) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.level = lvl
}

func (a *EchoLoggerAdapter) Print(i ...any)                 { a.emit(echolog.INFO, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Printf(format string, v ...any) { a.emit(echolog.INFO, fmt.Sprintf(format, v...)) }
func (a *EchoLoggerAdapter) Printj(j echolog.JSON)          { a.emitJSON(echolog.INFO, j) }
func (a *EchoLoggerAdapter) Debug(i ...any)                 { a.emit(echolog.DEBUG, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Debugf(format string, v ...any) { a.emit(echolog.DEBUG, fmt.Sprintf(format, v...)) }
func (a *EchoLoggerAdapter) Debugj(j echolog.JSON)          { a.emitJSON(echolog.DEBUG, j) }
func (a *EchoLoggerAdapter) Info(i ...any)                  { a.emit(echolog.INFO, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Infof(format string, v ...any)  { a.emit(echolog.INFO, fmt.Sprintf(format, v...)) }
func (a *EchoLoggerAdapter) Infoj(j echolog.JSON)           { a.emitJSON(echolog.INFO, j) }
func (a *EchoLoggerAdapter) Warn(i ...any)                  { a.emit(echolog.WARN, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Warnf(format string, v ...any)  { a.emit(echolog.WARN, fmt.Sprintf(format, v...)) }
func (a *EchoLoggerAdapter) Warnj(j echolog.JSON)           { a.emitJSON(echolog.WARN, j) }
func (a *EchoLoggerAdapter) Error(i ...any)                 { a.emit(echolog.ERROR, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Errorf(format string, v ...any) { a.emit(echolog.ERROR, fmt.Sprintf(format, v...)) }
func (a *EchoLoggerAdapter) Errorj(j echolog.JSON)          { a.emitJSON(echolog.ERROR, j) }

// Fatal logs at error level and panics instead of exiting the process
func (a *EchoLoggerAdapter) Fatal(i ...any) { a.fatal(fmt.Sprint(i...)) }

// Fatalf is the formatted form of Fatal
func (a *EchoLoggerAdapter) Fatalf(format string, v ...any) { a.fatal(fmt.Sprintf(format, v...)) }

// Fatalj is the JSON form of Fatal
func (a *EchoLoggerAdapter) Fatalj(j echolog.JSON) { a.fatal(fmt.Sprintf("%v", j)) }

// Panic logs at error level and panics with the message
func (a *EchoLoggerAdapter) Panic(i ...any) { a.fatal(fmt.Sprint(i...)) }

// Panicf is the formatted form of Panic
func (a *EchoLoggerAdapter) Panicf(format string, v ...any) { a.fatal(fmt.Sprintf(format, v...)) }

// Panicj is the JSON form of Panic
func (a *EchoLoggerAdapter) Panicj(j echolog.JSON) { a.fatal(fmt.Sprintf("%v", j)) }

func (a *EchoLoggerAdapter) fatal(msg string) {
	a.logger.Error(msg, String("source", "echo"))
	panic("echo: " + msg)
}

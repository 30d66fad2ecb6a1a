// internal/logger/logger.go

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

type Mode int

const (
	MINIMAL Mode = iota
	NORMAL
	FULL
)

var (
	levelNames = map[Level]string{
		DEBUG: "DEBUG",
		INFO:  "INFO",
		WARN:  "WARN",
		ERROR: "ERROR",
		FATAL: "FATAL",
	}

	levelColors = map[Level]string{
		DEBUG: "\033[36m",
		INFO:  "\033[32m",
		WARN:  "\033[33m",
		ERROR: "\033[31m",
		FATAL: "\033[35m",
	}

	resetColor = "\033[0m"
)

type Logger struct {
	level      Level
	mode       Mode
	mu         sync.Mutex
	consoleOut io.Writer
	fileOut    io.Writer
	rotator    *lumberjack.Logger
	useColors  bool
}

type Config struct {
	Level       Level
	Mode        Mode
	LogFilePath string
	UseColors   bool

	// Rotation settings for LogFilePath. Zero values fall back to the defaults below.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console overrides stdout, mostly for tests.
	Console io.Writer
}

func New(cfg Config) (*Logger, error) {
	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}

	logger := &Logger{
		level:      cfg.Level,
		mode:       cfg.Mode,
		consoleOut: console,
		useColors:  cfg.UseColors,
	}

	if cfg.LogFilePath != "" {
		if err := logger.setupLogFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to setup log file: %w", err)
		}
	}

	return logger, nil
}

func (l *Logger) setupLogFile(cfg Config) error {
	dir := filepath.Dir(cfg.LogFilePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 3
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 7
	}

	l.rotator = &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   cfg.Compress,
	}
	l.fileOut = l.rotator
	return nil
}

func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Discard returns a logger that drops every message.
func Discard() *Logger {
	return &Logger{level: FATAL + 1, mode: MINIMAL}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)

	location := ""
	if l.mode == FULL {
		location = caller()
	}

	if l.consoleOut != nil {
		fmt.Fprintln(l.consoleOut, l.consoleLine(level, timestamp, location, message))
	}
	if l.fileOut != nil {
		fmt.Fprintln(l.fileOut, fileLine(level, timestamp, location, message))
	}

	if level == FATAL {
		os.Exit(1)
	}
}

// consoleLine renders "[LEVEL] ts | file:line | msg", trimmed by mode.
func (l *Logger) consoleLine(level Level, timestamp, location, msg string) string {
	tag := "[" + levelNames[level] + "]"
	if l.useColors {
		tag = levelColors[level] + tag + resetColor
	}

	switch l.mode {
	case MINIMAL:
		return tag + " " + msg
	case FULL:
		return fmt.Sprintf("%s %s | %s | %s", tag, timestamp, location, msg)
	default:
		return fmt.Sprintf("%s %s | %s", tag, timestamp, msg)
	}
}

// fileLine always carries the timestamp and never colours.
func fileLine(level Level, timestamp, location, msg string) string {
	if location != "" {
		return fmt.Sprintf("%s [%s] %s | %s", timestamp, levelNames[level], location, msg)
	}
	return fmt.Sprintf("%s [%s] %s", timestamp, levelNames[level], msg)
}

// caller reports the site that called Debug/Info/Warn/Error/Fatal.
func caller() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return "unknown:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(FATAL, format, args...)
}

// SetLevel changes the threshold at runtime, e.g. for --debug.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// ParseLevel is case-insensitive and falls back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	}
	return INFO
}

// ParseMode is case-insensitive and falls back to NORMAL.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "minimal":
		return MINIMAL
	case "full":
		return FULL
	}
	return NORMAL
}

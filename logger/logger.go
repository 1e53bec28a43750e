package logger

import (
	"bundler/config"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const MaxLogSize = 50 * 1024 * 1024 // 50 MB

var (
	BotLogger, RelayLogger, GlobalLogger *slog.Logger
	consoleEnabled                       = true
	jsonFormat                           = false
	level                                = new(slog.LevelVar)

	globalRW, botRW, relayRW *rotatingWriter
)

// Thread-safe writer that starts a fresh file once the current one exceeds max size.
type rotatingWriter struct {
	mu      sync.Mutex
	file    *os.File
	dir     string
	prefix  string // e.g. "bundler_20250925_101122_global"
	ext     string // ".log"
	size    int64
	maxSize int64
}

func newRotatingWriter(dir, prefix string, maxSize int64) (*rotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	rw := &rotatingWriter{
		dir:     dir,
		prefix:  prefix,
		ext:     ".log",
		maxSize: maxSize,
	}
	if err := rw.rotateNew(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (w *rotatingWriter) currentName() string {
	return filepath.Join(w.dir, w.prefix+w.ext)
}

func (w *rotatingWriter) rotateNew() error {
	if w.file != nil {
		_ = w.file.Close()
	}

	f, err := os.OpenFile(w.currentName(), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o666)
	if err != nil {
		return err
	}
	w.file = f
	w.size = 0
	return nil
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		if err := w.rotateNew(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

func SetConsoleEnabled(enabled bool) {
	consoleEnabled = enabled
	resetLoggers()
}

// Configure applies the log.level ("debug", "info", "warn", "error") and
// log.format ("text" or "json") settings to every logger.
func Configure(levelName, format string) error {
	if levelName != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(levelName)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", levelName, err)
		}
		level.Set(l)
	}
	switch strings.ToLower(format) {
	case "", "text":
		jsonFormat = false
	case "json":
		jsonFormat = true
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	resetLoggers()
	return nil
}

// InitLogs opens the per-command bot and relay log files.
func InitLogs(cmdName string) {
	ensureLogDir()

	ts := time.Now().Format("20060102150405")

	var err error
	botRW, err = newRotatingWriter(config.LogPath, fmt.Sprintf("bundler_%s_%s_bot", ts, cmdName), MaxLogSize)
	if err != nil {
		log.Fatal(err)
	}
	relayRW, err = newRotatingWriter(config.LogPath, fmt.Sprintf("bundler_%s_%s_relay", ts, cmdName), MaxLogSize)
	if err != nil {
		log.Fatal(err)
	}

	BotLogger = slog.New(newHandler(botRW))
	RelayLogger = slog.New(newHandler(relayRW))
	resetLoggers()
}

func init() {
	ensureLogDir()
	ts := time.Now().Format("20060102150405")

	var err error
	globalRW, err = newRotatingWriter(config.LogPath, fmt.Sprintf("bundler_%s_global", ts), MaxLogSize)
	if err != nil {
		log.Fatal(err)
	}
	GlobalLogger = slog.New(newHandler(globalRW))
	resetLoggers()
}

// Bot returns the workflow logger, falling back to the global one before InitLogs ran.
func Bot() *slog.Logger {
	if BotLogger != nil {
		return BotLogger
	}
	return GlobalLogger
}

// Relay returns the logger used by the relay and aggregator clients.
func Relay() *slog.Logger {
	if RelayLogger != nil {
		return RelayLogger
	}
	return GlobalLogger
}

// Discard is handed to components whose logs were switched off.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func CloseAll() {
	if globalRW != nil {
		_ = globalRW.Close()
	}
	if botRW != nil {
		_ = botRW.Close()
	}
	if relayRW != nil {
		_ = relayRW.Close()
	}
}

func ensureLogDir() {
	if err := os.MkdirAll(config.LogPath, 0o755); err != nil {
		log.Fatal(err)
	}
}

func newHandler(fileWriter io.Writer) slog.Handler {
	w := fileWriter
	if consoleEnabled {
		w = io.MultiWriter(os.Stdout, fileWriter)
	}
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}
	if jsonFormat {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func resetLoggers() {
	if GlobalLogger != nil && globalRW != nil {
		GlobalLogger = slog.New(newHandler(globalRW))
	}
	if BotLogger != nil && botRW != nil {
		BotLogger = slog.New(newHandler(botRW))
	}
	if RelayLogger != nil && relayRW != nil {
		RelayLogger = slog.New(newHandler(relayRW))
	}
}

package logx

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Config selects the daemon's log sinks.
type Config struct {
	Level   string
	Console bool
	File    FileConfig
	// Redact lists secrets (API tokens) replaced by "***" in every sink.
	Redact []string
}

type FileConfig struct {
	Enabled bool
	Path    string
}

const defaultLogFile = "./shednotify.log"

// Service owns the daemon's sinks. Loggers bound to it pick up each Apply
// without being rebuilt.
type Service struct {
	mu   sync.Mutex
	file *os.File

	zl atomic.Pointer[zerolog.Logger]
}

// New builds a Service from cfg and returns it with a root Logger.
func New(cfg Config) (*Service, Logger) {
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if zl := s.zl.Load(); zl != nil {
		return *zl
	}
	return nopLogger
}

// Apply reopens the sinks for cfg. Safe for concurrent use with logging.
// A log file that cannot be opened is reported on stderr and skipped.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}

	prev := s.file
	s.file = nil
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = defaultLogFile
		}
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "logx: open %s: %v\n", path, err)
		} else {
			s.file = f
			sinks = append(sinks, zerolog.SyncWriter(f))
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}

	var out io.Writer = zerolog.MultiLevelWriter(sinks...)
	if rw := newRedactWriter(out, cfg.Redact); rw != nil {
		out = rw
	}
	zl := newZerolog(out, parseLevel(cfg.Level, zerolog.InfoLevel))
	s.zl.Store(&zl)

	// Swap first so no record is written to a closed file.
	if prev != nil {
		_ = prev.Close()
	}
}

// Close releases the log file, if any. Later records go to the
// remaining sinks.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// redactWriter masks secrets in each serialized record. zerolog hands every
// record to Write in one call, so a secret never spans two writes.
type redactWriter struct {
	out     io.Writer
	secrets [][]byte
}

var redactMask = []byte("***")

func newRedactWriter(out io.Writer, secrets []string) *redactWriter {
	rw := &redactWriter{out: out}
	for _, s := range secrets {
		// Very short values would mask unrelated text.
		if s = strings.TrimSpace(s); len(s) >= 4 {
			rw.secrets = append(rw.secrets, []byte(s))
		}
	}
	if len(rw.secrets) == 0 {
		return nil
	}
	return rw
}

func (w *redactWriter) Write(p []byte) (int, error) {
	masked := p
	for _, s := range w.secrets {
		if bytes.Contains(masked, s) {
			masked = bytes.ReplaceAll(masked, s, redactMask)
		}
	}
	if _, err := w.out.Write(masked); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Package log is the logging actor: a bounded ring buffer of recent
// records backed by a rotating on-disk file, serialised like every other
// core actor. The on-disk sink is gopkg.in/natefinch/lumberjack.v2 behind
// an io.Writer, wired to a log/slog handler rather than a bespoke
// formatter.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nahharris/patch-hub/internal/actor"
)

// Level is the four-step severity of Config's log_level option; it maps
// directly onto slog.Level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses a case-insensitive level name; unrecognised input
// defaults to Info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "Debug"
	case LevelWarn:
		return "Warn"
	case LevelError:
		return "Error"
	default:
		return "Info"
	}
}

// Record is one entry surfaced by GetLast, in delivery order. Trace is a
// correlation ID (a uuid) chosen by the caller of LogTrace: App logs the
// records of one command under a single trace, so GetLast output from a
// busy session can be grouped back into per-command threads, while each
// warning a cache reports carries a trace of its own.
type Record struct {
	Seq     uint64
	Level   Level
	Message string
	Time    time.Time
	Trace   string
}

// Handle is the operation surface of the Log actor.
type Handle interface {
	Log(ctx context.Context, level Level, message string) error
	// LogTrace is Log with an explicit correlation ID, for callers (App
	// command dispatch) that want related records groupable after the
	// fact. NewTrace generates the ID.
	LogTrace(ctx context.Context, level Level, trace, message string) error
	Flush(ctx context.Context) error
	CollectGarbage(ctx context.Context) error
	GetLast(ctx context.Context, n int) ([]Record, error)
	// SetLevel changes the minimum level for subsequent records. This is
	// the one mid-session configuration change that reconfigures a running
	// actor: Config's set_log_level propagates here via App.
	SetLevel(ctx context.Context, level Level) error
}

// NewTrace returns a fresh correlation ID for a command invocation.
func NewTrace() string {
	return uuid.NewString()
}

type opKind int

const (
	opLog opKind = iota
	opFlush
	opCollectGarbage
	opGetLast
	opSetLevel
)

type request struct {
	op      opKind
	level   Level
	message string
	trace   string
	n       int
	reply   chan response
}

type response struct {
	records []Record
	err     error
}

// live owns the ring buffer, the lumberjack-backed file, the slog logger
// built on top of it, and a monotonic sequence counter.
type live struct {
	mbox *actor.Mailbox[request]

	logDir     string
	maxAgeDays int
	minLevel   Level

	file   *lumberjack.Logger
	logger *slog.Logger

	ring    []Record
	ringCap int
	seq     uint64
}

// Spawn starts the Log actor. logDir is the directory holding rotated log
// files; ringCapacity bounds the in-memory buffer GetLast draws from.
func Spawn(ctx context.Context, logDir string, minLevel Level, maxAgeDays int, ringCapacity int) (Handle, actor.Join) {
	if ringCapacity < 1 {
		ringCapacity = 1
	}
	_ = os.MkdirAll(logDir, 0o755)

	lj := &lumberjack.Logger{
		Filename: filepath.Join(logDir, fmt.Sprintf("patch-hub-%s.log", time.Now().UTC().Format("20060102-150405"))),
		MaxAge:   maxAgeDays,
		Compress: false,
	}

	l := &live{
		mbox:       actor.NewMailbox[request](64),
		logDir:     logDir,
		maxAgeDays: maxAgeDays,
		minLevel:   minLevel,
		file:       lj,
		ringCap:    ringCapacity,
	}
	l.logger = slog.New(slog.NewTextHandler(lj, &slog.HandlerOptions{Level: minLevel.slog()}))

	join := make(chan struct{})
	go func() {
		defer close(join)
		l.mbox.Run(ctx, l.apply)
	}()
	return l, join
}

// Close stops the Log actor and closes its backing file.
func Close(h Handle) {
	if l, ok := h.(*live); ok {
		l.mbox.Close()
		_ = l.file.Close()
	}
}

func (l *live) apply(req request) {
	var resp response
	switch req.op {
	case opLog:
		l.doLog(req.level, req.trace, req.message)
	case opFlush:
		resp.err = l.sync()
	case opCollectGarbage:
		resp.err = l.collectGarbage()
	case opGetLast:
		resp.records = l.getLast(req.n)
	case opSetLevel:
		l.setLevel(req.level)
	}
	req.reply <- resp
}

func (l *live) doLog(level Level, trace, message string) {
	if level < l.minLevel {
		return
	}
	l.seq++
	rec := Record{Seq: l.seq, Level: level, Message: message, Time: time.Now(), Trace: trace}

	l.ring = append(l.ring, rec)
	if len(l.ring) > l.ringCap {
		l.ring = l.ring[len(l.ring)-l.ringCap:]
	}

	switch level {
	case LevelDebug:
		l.logger.Debug(message, "seq", rec.Seq, "trace", trace)
	case LevelWarn:
		l.logger.Warn(message, "seq", rec.Seq, "trace", trace)
	case LevelError:
		l.logger.Error(message, "seq", rec.Seq, "trace", trace)
	default:
		l.logger.Info(message, "seq", rec.Seq, "trace", trace)
	}
}

// setLevel replaces the threshold for both the ring buffer and the slog
// sink; the handler is rebuilt since slog levels are fixed at construction.
func (l *live) setLevel(level Level) {
	l.minLevel = level
	l.logger = slog.New(slog.NewTextHandler(l.file, &slog.HandlerOptions{Level: level.slog()}))
}

// sync fsyncs the current log file so Flush returns only after every record
// written so far is durable. lumberjack writes unbuffered but never fsyncs
// and does not expose its descriptor, so a second descriptor on the same
// path is synced instead; fsync flushes the inode's data regardless of
// which descriptor issued the writes. A missing file means nothing has been
// written yet, which is already durable.
func (l *live) sync() error {
	f, err := os.OpenFile(l.file.Filename, os.O_WRONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("log: open for sync: %w", err)
	}
	defer f.Close()
	if err := f.Sync(); err != nil {
		return fmt.Errorf("log: sync: %w", err)
	}
	return nil
}

var logFileTimestamp = regexp.MustCompile(`patch-hub-(\d{8})-\d{6}\.log`)

// collectGarbage deletes log files under logDir whose name-embedded date is
// older than maxAgeDays.
func (l *live) collectGarbage() error {
	if l.maxAgeDays <= 0 {
		return nil
	}
	entries, err := os.ReadDir(l.logDir)
	if err != nil {
		return err
	}
	cutoff := time.Now().AddDate(0, 0, -l.maxAgeDays)

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := logFileTimestamp.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		t, err := time.Parse("20060102", m[1])
		if err != nil {
			continue
		}
		if t.Before(cutoff) {
			_ = os.Remove(filepath.Join(l.logDir, e.Name()))
		}
	}
	return nil
}

func (l *live) getLast(n int) []Record {
	if n <= 0 || n > len(l.ring) {
		n = len(l.ring)
	}
	out := make([]Record, n)
	copy(out, l.ring[len(l.ring)-n:])
	return out
}

func (l *live) do(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)
	if err := l.mbox.Send(ctx, req); err != nil {
		return response{}, err
	}
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

func (l *live) Log(ctx context.Context, level Level, message string) error {
	_, err := l.do(ctx, request{op: opLog, level: level, message: message})
	return err
}

func (l *live) LogTrace(ctx context.Context, level Level, trace, message string) error {
	_, err := l.do(ctx, request{op: opLog, level: level, trace: trace, message: message})
	return err
}

func (l *live) Flush(ctx context.Context) error {
	resp, err := l.do(ctx, request{op: opFlush})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) CollectGarbage(ctx context.Context) error {
	resp, err := l.do(ctx, request{op: opCollectGarbage})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) SetLevel(ctx context.Context, level Level) error {
	_, err := l.do(ctx, request{op: opSetLevel, level: level})
	return err
}

func (l *live) GetLast(ctx context.Context, n int) ([]Record, error) {
	resp, err := l.do(ctx, request{op: opGetLast, n: n})
	if err != nil {
		return nil, err
	}
	return resp.records, resp.err
}

// mock records everything into the ring buffer but never touches disk.
type mock struct {
	mu       sync.Mutex
	ring     []Record
	seq      uint64
	flushed  int
	minLevel Level
}

// Mock returns an in-memory Log handle; Flush and CollectGarbage are no-ops.
func Mock() Handle {
	return &mock{}
}

func (m *mock) Log(_ context.Context, level Level, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level < m.minLevel {
		return nil
	}
	m.seq++
	m.ring = append(m.ring, Record{Seq: m.seq, Level: level, Message: message, Time: time.Now()})
	return nil
}

func (m *mock) LogTrace(_ context.Context, level Level, trace, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level < m.minLevel {
		return nil
	}
	m.seq++
	m.ring = append(m.ring, Record{Seq: m.seq, Level: level, Message: message, Time: time.Now(), Trace: trace})
	return nil
}

func (m *mock) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed++
	return nil
}

func (m *mock) CollectGarbage(_ context.Context) error { return nil }

func (m *mock) SetLevel(_ context.Context, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minLevel = level
	return nil
}

func (m *mock) GetLast(_ context.Context, n int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.ring) {
		n = len(m.ring)
	}
	out := make([]Record, n)
	copy(out, m.ring[len(m.ring)-n:])
	return out, nil
}

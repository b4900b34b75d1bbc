// Package config is the configuration actor: a single current value plus
// the path of its backing TOML file, loaded and saved through the same
// atomic-write discipline as the rest of patch-hub's on-disk state
// (internal/util.AtomicWriteFile).
package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/nahharris/patch-hub/internal/actor"
	"github.com/nahharris/patch-hub/internal/log"
	"github.com/nahharris/patch-hub/internal/util"
)

// Value is the recognised option set.
type Value struct {
	LogDir   string    `toml:"log_dir"`
	LogLevel log.Level `toml:"-"`
	MaxAge   int       `toml:"max_age"`

	// LogLevelName backs LogLevel's TOML (de)serialisation, since
	// log.Level itself has no TOML marshaller.
	LogLevelName string `toml:"log_level"`
}

// Default returns the built-in configuration used when no file and no env
// overrides are present.
func Default() Value {
	return Value{
		LogDir:       "",
		LogLevel:     log.LevelInfo,
		LogLevelName: "Info",
		MaxAge:       14,
	}
}

// Handle is the operation surface of the Config actor.
type Handle interface {
	Load(ctx context.Context) error
	Save(ctx context.Context) error
	GetPath(ctx context.Context) (string, error)
	SetPath(ctx context.Context, path string) error
	GetLogLevel(ctx context.Context) (log.Level, error)
	SetLogLevel(ctx context.Context, l log.Level) error
	GetUsize(ctx context.Context, key string) (int, error)
	SetUsize(ctx context.Context, key string, v int) error
}

// EnvHandle is the subset of env.Handle Config needs; kept narrow so
// Spawn/Mock don't have to import the env package's concrete types.
type EnvHandle interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

type opKind int

const (
	opLoad opKind = iota
	opSave
	opGetPath
	opSetPath
	opGetLogLevel
	opSetLogLevel
	opGetUsize
	opSetUsize
)

type request struct {
	op       opKind
	path     string
	level    log.Level
	key      string
	intValue int
	reply    chan response
}

type response struct {
	path     string
	level    log.Level
	intValue int
	err      error
}

// canonicalEnvName returns the PATCH_HUB_<OPTION> env var name that
// supersedes a file value at load().
func canonicalEnvName(option string) string {
	return "PATCH_HUB_" + option
}

type live struct {
	mbox *actor.Mailbox[request]
	env  EnvHandle

	path  string
	value Value
}

// Spawn starts the Config actor at path, with env consulted for overrides
// on every Load.
func Spawn(ctx context.Context, path string, env EnvHandle) (Handle, actor.Join) {
	l := &live{
		mbox:  actor.NewMailbox[request](32),
		env:   env,
		path:  path,
		value: Default(),
	}
	join := make(chan struct{})
	go func() {
		defer close(join)
		l.mbox.Run(ctx, l.apply)
	}()
	return l, join
}

// Close stops the Config actor.
func Close(h Handle) {
	if l, ok := h.(*live); ok {
		l.mbox.Close()
	}
}

func (l *live) apply(req request) {
	var resp response
	switch req.op {
	case opLoad:
		resp.err = l.load()
	case opSave:
		resp.err = l.save()
	case opGetPath:
		resp.path = l.path
	case opSetPath:
		l.path = req.path
	case opGetLogLevel:
		resp.level = l.value.LogLevel
	case opSetLogLevel:
		l.value.LogLevel = req.level
		l.value.LogLevelName = req.level.String()
	case opGetUsize:
		resp.intValue, resp.err = l.getUsize(req.key)
	case opSetUsize:
		resp.err = l.setUsize(req.key, req.intValue)
	}
	req.reply <- resp
}

func (l *live) getUsize(key string) (int, error) {
	switch key {
	case "max_age":
		return l.value.MaxAge, nil
	default:
		return 0, fmt.Errorf("config: unknown usize key %q", key)
	}
}

func (l *live) setUsize(key string, v int) error {
	if v < 0 {
		return fmt.Errorf("config: %s must be non-negative, got %d", key, v)
	}
	switch key {
	case "max_age":
		l.value.MaxAge = v
		return nil
	default:
		return fmt.Errorf("config: unknown usize key %q", key)
	}
}

// load replaces state with the file's contents (or defaults if the file is
// absent or unparseable) then applies env overrides.
func (l *live) load() error {
	v := Default()

	if data, err := os.ReadFile(l.path); err == nil {
		var fileValue Value
		if _, decErr := toml.Decode(string(data), &fileValue); decErr == nil {
			v = fileValue
		}
	}

	v.LogLevel = log.ParseLevel(v.LogLevelName)
	if v.LogLevelName == "" {
		v.LogLevel = log.LevelInfo
		v.LogLevelName = "Info"
	}

	l.applyEnvOverrides(&v)
	l.value = v
	return nil
}

func (l *live) applyEnvOverrides(v *Value) {
	if l.env == nil {
		return
	}
	ctx := context.Background()

	if val, ok, _ := l.env.Get(ctx, canonicalEnvName("LOG_DIR")); ok {
		v.LogDir = val
	}
	if val, ok, _ := l.env.Get(ctx, canonicalEnvName("LOG_LEVEL")); ok {
		v.LogLevelName = val
		v.LogLevel = log.ParseLevel(val)
	}
	if val, ok, _ := l.env.Get(ctx, canonicalEnvName("MAX_AGE")); ok {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			v.MaxAge = n
		}
	}
}

// save writes the current value to path atomically (write-temp+rename):
// a crash mid-save leaves either the old file or the new one, never a torn
// mix.
func (l *live) save() error {
	l.value.LogLevelName = l.value.LogLevel.String()

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(l.value); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return util.AtomicWriteFile(l.path, buf.Bytes(), 0o644)
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

func (l *live) Load(ctx context.Context) error {
	resp, err := l.do(ctx, request{op: opLoad})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) Save(ctx context.Context) error {
	resp, err := l.do(ctx, request{op: opSave})
	if err != nil {
		return err
	}
	return resp.err
}

func (l *live) GetPath(ctx context.Context) (string, error) {
	resp, err := l.do(ctx, request{op: opGetPath})
	if err != nil {
		return "", err
	}
	return resp.path, resp.err
}

func (l *live) SetPath(ctx context.Context, path string) error {
	_, err := l.do(ctx, request{op: opSetPath, path: path})
	return err
}

func (l *live) GetLogLevel(ctx context.Context) (log.Level, error) {
	resp, err := l.do(ctx, request{op: opGetLogLevel})
	if err != nil {
		return 0, err
	}
	return resp.level, resp.err
}

func (l *live) SetLogLevel(ctx context.Context, lvl log.Level) error {
	_, err := l.do(ctx, request{op: opSetLogLevel, level: lvl})
	return err
}

func (l *live) GetUsize(ctx context.Context, key string) (int, error) {
	resp, err := l.do(ctx, request{op: opGetUsize, key: key})
	if err != nil {
		return 0, err
	}
	return resp.intValue, resp.err
}

func (l *live) SetUsize(ctx context.Context, key string, v int) error {
	resp, err := l.do(ctx, request{op: opSetUsize, key: key, intValue: v})
	if err != nil {
		return err
	}
	return resp.err
}

// mock is an in-memory Handle; Load/Save are no-ops beyond tracking path.
type mock struct {
	path  string
	value Value
}

// Mock returns an in-memory Config handle seeded with initial (Default() if
// zero-valued).
func Mock(initial Value) Handle {
	if initial.LogLevelName == "" {
		initial = Default()
	}
	return &mock{value: initial}
}

func (m *mock) Load(_ context.Context) error { return nil }
func (m *mock) Save(_ context.Context) error { return nil }

func (m *mock) GetPath(_ context.Context) (string, error) { return m.path, nil }

func (m *mock) SetPath(_ context.Context, path string) error {
	m.path = path
	return nil
}

func (m *mock) GetLogLevel(_ context.Context) (log.Level, error) { return m.value.LogLevel, nil }

func (m *mock) SetLogLevel(_ context.Context, l log.Level) error {
	m.value.LogLevel = l
	return nil
}

func (m *mock) GetUsize(_ context.Context, key string) (int, error) {
	switch key {
	case "max_age":
		return m.value.MaxAge, nil
	default:
		return 0, fmt.Errorf("config: unknown usize key %q", key)
	}
}

func (m *mock) SetUsize(_ context.Context, key string, v int) error {
	switch key {
	case "max_age":
		m.value.MaxAge = v
		return nil
	default:
		return fmt.Errorf("config: unknown usize key %q", key)
	}
}

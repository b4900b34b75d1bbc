// Package app owns every other handle. Start brings collaborators up in
// dependency order (Env, Fs, Config, Log, Net, LoreApi, the caches, then
// Terminal when interactive) and Shutdown tears them down in reverse, with
// Log flushed last so every record of the session reaches disk. App holds
// no mailbox of its own; it is a coordinator called directly from
// internal/cmd's RunE closures, one method per subcommand.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/nahharris/patch-hub/internal/actor"
	"github.com/nahharris/patch-hub/internal/config"
	"github.com/nahharris/patch-hub/internal/constants"
	"github.com/nahharris/patch-hub/internal/env"
	"github.com/nahharris/patch-hub/internal/eventbus"
	"github.com/nahharris/patch-hub/internal/feedcache"
	"github.com/nahharris/patch-hub/internal/fs"
	"github.com/nahharris/patch-hub/internal/lock"
	"github.com/nahharris/patch-hub/internal/log"
	"github.com/nahharris/patch-hub/internal/loreapi"
	"github.com/nahharris/patch-hub/internal/mailinglistcache"
	"github.com/nahharris/patch-hub/internal/model"
	"github.com/nahharris/patch-hub/internal/patchcache"
	"github.com/nahharris/patch-hub/internal/terminal"
	"github.com/nahharris/patch-hub/internal/transport"
	"github.com/nahharris/patch-hub/internal/ui"
)

// Options configures Start. Zero-valued fields fall back to the OS user
// config/cache directories, lore.kernel.org, and a non-interactive
// Terminal.
type Options struct {
	// ConfigPath overrides <config_home>/patch-hub/config.toml. Normally
	// left empty; when it is, Start reads PATCH_HUB_CONFIG through Env and
	// uses that path if it is set.
	ConfigPath string
	// CacheDir overrides the default <cache_home>/patch-hub directory that
	// backs the mailing-list, feed, and patch caches.
	CacheDir string
	// BaseURL overrides the upstream archive base URL.
	BaseURL string
	// Interactive marks the process as attached to a real terminal, for
	// the `tui` command and any future interactive-only behaviour.
	Interactive bool
}

// App is the live coordinator: one instance per process, built by Start and
// torn down by Shutdown.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	envH    env.Handle
	fsH     fs.Handle
	cfgH    config.Handle
	logH    log.Handle
	netH    transport.Handle
	apiH    loreapi.Handle
	mlc     mailinglistcache.Handle
	feeds   feedcache.Handle
	patches patchcache.Handle
	term    terminal.Handle
	bus     *eventbus.Bus
	flock   *lock.Lock
	render  ui.Renderer

	joins []<-chan struct{}

	cacheDir string

	shutdownOnce sync.Once
}

// Start brings up every handle in dependency order and returns the
// coordinator. The caller is responsible for calling Shutdown exactly once
// (Shutdown itself is idempotent, but forgetting it leaks goroutines).
func Start(ctx context.Context, opts Options) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)
	a := &App{ctx: ctx, cancel: cancel}

	var joinEnv, joinFs, joinCfg, joinLog, joinNet, joinMlc, joinFeeds, joinPatches, joinTerm actor.Join

	a.envH, joinEnv = env.Spawn(ctx)
	a.joins = append(a.joins, joinEnv)

	a.fsH, joinFs = fs.Spawn(ctx)
	a.joins = append(a.joins, joinFs)

	configPath := opts.ConfigPath
	if configPath == "" {
		if v, ok, _ := a.envH.Get(ctx, "PATCH_HUB_CONFIG"); ok && v != "" {
			configPath = v
		} else {
			configPath = defaultConfigPath()
		}
	}
	a.cfgH, joinCfg = config.Spawn(ctx, configPath, a.envH)
	a.joins = append(a.joins, joinCfg)
	if err := a.cfgH.Load(ctx); err != nil {
		a.Shutdown(ctx)
		return nil, fmt.Errorf("app: load config: %w", err)
	}

	level, err := a.cfgH.GetLogLevel(ctx)
	if err != nil {
		a.Shutdown(ctx)
		return nil, fmt.Errorf("app: read log level: %w", err)
	}
	maxAge, err := a.cfgH.GetUsize(ctx, "max_age")
	if err != nil {
		a.Shutdown(ctx)
		return nil, fmt.Errorf("app: read max_age: %w", err)
	}

	resolvedLogDir := ""
	if v, ok, _ := a.envH.Get(ctx, "PATCH_HUB_LOG_DIR"); ok && v != "" {
		resolvedLogDir = v
	} else {
		resolvedLogDir = resolveLogDir(opts)
	}
	a.logH, joinLog = log.Spawn(ctx, resolvedLogDir, level, maxAge, constants.LogRingCapacity)
	a.joins = append(a.joins, joinLog)
	if err := a.logH.CollectGarbage(ctx); err != nil {
		_ = a.logH.LogTrace(ctx, log.LevelWarn, log.NewTrace(), fmt.Sprintf("collect_garbage: %v", err))
	}

	a.cacheDir = opts.CacheDir
	if a.cacheDir == "" {
		a.cacheDir = defaultCacheDir()
	}
	a.flock = lock.New(a.cacheDir)
	if err := a.flock.TryAcquire(); err != nil {
		_ = a.logH.LogTrace(ctx, log.LevelWarn, log.NewTrace(), fmt.Sprintf("cache_dir lock: %v", err))
	}

	a.netH, joinNet = transport.Spawn(ctx, &http.Client{})
	a.joins = append(a.joins, joinNet)

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = constants.DefaultBaseURL
	}
	a.apiH = loreapi.New(a.netH, baseURL)

	warn := func(msg string) {
		_ = a.logH.LogTrace(context.Background(), log.LevelWarn, log.NewTrace(), msg)
	}

	listsPath := filepath.Join(a.cacheDir, constants.MailingListsFileName)
	a.mlc, joinMlc = mailinglistcache.Spawn(ctx, a.fsH, a.apiH, listsPath, warn)
	a.joins = append(a.joins, joinMlc)

	feedDir := filepath.Join(a.cacheDir, constants.FeedDirName)
	a.feeds, joinFeeds = feedcache.Spawn(ctx, a.fsH, a.apiH, feedDir, warn)
	a.joins = append(a.joins, joinFeeds)

	patchDir := filepath.Join(a.cacheDir, constants.PatchDirName)
	a.patches, joinPatches = patchcache.Spawn(ctx, a.fsH, a.apiH, patchDir, constants.PatchCacheCapacity)
	a.joins = append(a.joins, joinPatches)

	a.bus = eventbus.New()
	a.render = ui.NewRenderer()

	if opts.Interactive {
		a.term, joinTerm = terminal.Spawn(ctx, true)
		a.joins = append(a.joins, joinTerm)
	} else {
		a.term = terminal.Mock(false, nil)
	}

	return a, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "patch-hub", "config.toml")
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "patch-hub")
}

// resolveLogDir places log files alongside the cache dir; the
// PATCH_HUB_LOG_DIR environment override is applied by Start before this
// fallback is consulted.
func resolveLogDir(opts Options) string {
	if opts.CacheDir != "" {
		return filepath.Join(opts.CacheDir, "logs")
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "patch-hub", "logs")
}

// Shutdown flushes and closes every handle in reverse dependency order.
// Idempotent: calling it more than once is a no-op after the first call.
func (a *App) Shutdown(ctx context.Context) {
	a.shutdownOnce.Do(func() {
		if a.bus != nil {
			a.bus.PublishShutdownRequested()
		}

		if a.term != nil {
			terminal.Close(a.term)
		}
		if a.patches != nil {
			patchcache.Close(a.patches)
		}
		if a.feeds != nil {
			feedcache.Close(a.feeds)
		}
		if a.mlc != nil {
			mailinglistcache.Close(a.mlc)
		}
		if a.netH != nil {
			transport.Close(a.netH)
		}
		if a.logH != nil {
			_ = a.logH.Flush(ctx)
			log.Close(a.logH)
		}
		if a.cfgH != nil {
			config.Close(a.cfgH)
		}
		if a.fsH != nil {
			fs.Close(a.fsH)
		}
		if a.envH != nil {
			env.Close(a.envH)
		}
		if a.flock != nil {
			_ = a.flock.Release()
		}
		if a.bus != nil {
			a.bus.Close()
		}
		a.cancel()
	})
}

// Lists returns a page of mailing lists for the `lists` command. A failed
// refresh degrades to serving the cached snapshot; with nothing cached the
// refresh error propagates.
func (a *App) Lists(ctx context.Context, page, count int) ([]model.MailingList, error) {
	trace := log.NewTrace()
	_ = a.logH.LogTrace(ctx, log.LevelInfo, trace, fmt.Sprintf("lists page=%d count=%d", page, count))

	if err := a.mlc.Refresh(ctx); err != nil {
		_ = a.logH.LogTrace(ctx, log.LevelWarn, trace, fmt.Sprintf("lists refresh: %v", err))
		if n, lenErr := a.mlc.Len(ctx); lenErr != nil || n == 0 {
			return nil, err
		}
	}
	start, end := constants.PageBounds(page, count)
	items, err := a.mlc.GetSlice(ctx, start, end)
	if err != nil {
		_ = a.logH.LogTrace(ctx, log.LevelError, trace, fmt.Sprintf("lists: %v", err))
	}
	return items, err
}

// Feed returns a page of one list's patch metadata for the `feed` command,
// with the same degrade-to-cache behaviour as Lists.
func (a *App) Feed(ctx context.Context, list string, page, count int) ([]model.PatchMeta, error) {
	trace := log.NewTrace()
	_ = a.logH.LogTrace(ctx, log.LevelInfo, trace, fmt.Sprintf("feed list=%s page=%d count=%d", list, page, count))

	if err := a.feeds.Refresh(ctx, list); err != nil {
		_ = a.logH.LogTrace(ctx, log.LevelWarn, trace, fmt.Sprintf("feed refresh(%s): %v", list, err))
		if n, lenErr := a.feeds.Len(ctx, list); lenErr != nil || n == 0 {
			return nil, err
		}
	}
	start, end := constants.PageBounds(page, count)
	items, err := a.feeds.GetSlice(ctx, list, start, end)
	if err != nil {
		_ = a.logH.LogTrace(ctx, log.LevelError, trace, fmt.Sprintf("feed(%s): %v", list, err))
	}
	return items, err
}

// Patch fetches a patch body for the `patch` command, optionally piping it
// through the html renderer.
func (a *App) Patch(ctx context.Context, list, messageID string, html bool) (string, error) {
	trace := log.NewTrace()
	_ = a.logH.LogTrace(ctx, log.LevelInfo, trace, fmt.Sprintf("patch list=%s id=%s html=%v", list, messageID, html))

	body, err := a.patches.Get(ctx, list, messageID)
	if err != nil {
		_ = a.logH.LogTrace(ctx, log.LevelError, trace, fmt.Sprintf("patch(%s,%s): %v", list, messageID, err))
		return "", err
	}
	if html {
		return a.render.Render(body), nil
	}
	return string(body), nil
}

// RunTUI enters interactive mode: App hands Ui's model to Terminal and
// drives it to completion.
func (a *App) RunTUI(ctx context.Context) error {
	model := ui.NewModel(ctx, a.mlc, a.feeds, a.patches, a.bus, a.render)
	_, err := a.term.Run(ctx, model)
	return err
}

// InvalidateList drops the feed cache for list, or the mailing-list
// snapshot when list is empty. Already-fetched patch bodies are kept; a
// published patch never changes.
func (a *App) InvalidateList(ctx context.Context, list string) error {
	trace := log.NewTrace()
	if list == "" {
		if err := a.mlc.Invalidate(ctx); err != nil {
			_ = a.logH.LogTrace(ctx, log.LevelError, trace, fmt.Sprintf("cache invalidate (all lists): %v", err))
			return err
		}
		a.bus.PublishCacheInvalidated("")
		return nil
	}
	if err := a.feeds.Invalidate(ctx, list); err != nil {
		_ = a.logH.LogTrace(ctx, log.LevelError, trace, fmt.Sprintf("cache invalidate(%s): %v", list, err))
		return err
	}
	a.bus.PublishCacheInvalidated(list)
	return nil
}

// CacheStatus reports the cache directory and its advisory lock state.
func (a *App) CacheStatus() (dir, status string) {
	return a.cacheDir, a.flock.Status()
}

// SetLogLevel updates the configured minimum log level, saves it, and
// propagates it to the running Log actor. This is the one mid-session
// configuration change that reconfigures a dependent actor; other set_*
// calls only mutate the in-memory config.
func (a *App) SetLogLevel(ctx context.Context, level log.Level) error {
	if err := a.cfgH.SetLogLevel(ctx, level); err != nil {
		return err
	}
	if err := a.cfgH.Save(ctx); err != nil {
		return fmt.Errorf("app: save config: %w", err)
	}
	return a.logH.SetLevel(ctx, level)
}

// ConfigPath reports the config file path in use, for the `config path`
// command.
func (a *App) ConfigPath(ctx context.Context) (string, error) {
	return a.cfgH.GetPath(ctx)
}

// Log exposes the App's Log handle so cmd can surface `GetLast` without
// App growing a bespoke "tail logs" command wrapper.
func (a *App) Log() log.Handle { return a.logH }

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
	"github.com/tartampluch/go-enroll/internal/metrics"
	"github.com/tartampluch/go-enroll/internal/server"
	"github.com/tartampluch/go-enroll/internal/store"
	"github.com/tartampluch/go-enroll/internal/ui"
	"golang.org/x/sync/errgroup"
)

// main delegates to runMain so deferred calls run before os.Exit.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
func runMain() int {
	// -------------------------------------------------------------------------
	// 1. CLI Argument Parsing
	// -------------------------------------------------------------------------
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	// -------------------------------------------------------------------------
	// 2. Logging Initialization
	// -------------------------------------------------------------------------
	logCloser := setupLogging(*debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close()
		}()
	}

	// -------------------------------------------------------------------------
	// 3. Context & Signal Handling
	// -------------------------------------------------------------------------
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo()

	// -------------------------------------------------------------------------
	// 4. Application Logic
	// -------------------------------------------------------------------------
	if err := run(ctx, config.FromEnv()); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run wires storage, metrics, the calendar server and the UI, then blocks
// until the main window closes.
func run(ctx context.Context, settings config.Settings) error {
	a := app.NewWithID(config.AppID)
	a.Preferences().SetString(config.PrefLastRun, config.Version)

	kv, health, closeKV, err := openStore(ctx, settings, a.Preferences())
	if err != nil {
		return err
	}
	defer closeKV()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clock := engine.RealClock{}
	repo := engine.NewRepository(store.NewAdapter(kv, store.NewKeyringVault()), clock)
	repo.Metrics = metrics.NewCollector(reg)
	if err := repo.Load(ctx); err != nil {
		// An unreadable store starts an empty household; the UI reports it on Start.
		slog.Error(config.ErrLoadHousehold,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
	}

	srv := server.NewCalendarServer(settings.ServerPort)
	srv.Metrics = metrics.Handler(reg)
	srv.Health = health

	gui := ui.NewEnrollApp(a, ctx, repo, clock, srv, engine.NewHTTPFetcher(), settings.SubmitDelay)

	srvCtx, stopServer := context.WithCancel(ctx)
	uiDone := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		return srv.Start(srvCtx)
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
			fyne.Do(a.Quit)
		case <-uiDone:
		}
		return nil
	})

	// Blocks until the last window closes.
	gui.Run()
	close(uiDone)
	stopServer()

	return g.Wait()
}

// openStore picks the key-value backend named in settings. The returned health
// check and closer are never nil.
func openStore(ctx context.Context, settings config.Settings, prefs fyne.Preferences) (store.KV, func(context.Context) error, func(), error) {
	noop := func() {}
	healthy := func(context.Context) error { return nil }

	slog.Info(config.MsgStorageBackend,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyBackend, settings.StorageBackend,
	)

	switch settings.StorageBackend {
	case config.StorageBackendRedis:
		client, err := store.NewRedisClient(ctx, settings.RedisURL)
		if err != nil {
			return nil, nil, noop, err
		}
		kv := store.NewRedisKV(client)
		return kv, kv.Health, func() { closeRedis(client) }, nil
	case config.StorageBackendMemory:
		return store.NewMemoryKV(), healthy, noop, nil
	default:
		return store.NewPreferencesKV(prefs), healthy, noop, nil
	}
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Warn(config.ErrStoreClose,
			config.LogKeyComponent, config.CompStore,
			config.LogKeyError, err,
		)
	}
}

// printVersion outputs the build information to stdout.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo() {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
	)
}

// setupLogging writes JSON logs to stdout and, when possible, to a file in
// the user's cache directory.
func setupLogging(debugMode bool) io.Closer {
	writers := []io.Writer{os.Stdout}
	var logFile *os.File

	if logPath, err := getLogFilePath(); err == nil {
		// O_TRUNC resets logs on restart to prevent indefinite growth.
		f, err := os.OpenFile(logPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, config.FilePermUserRW)
		if err == nil {
			writers = append(writers, f)
			logFile = f
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, logPath, err)
		}
	}

	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}))
	slog.SetDefault(logger)

	if logFile == nil {
		return nil
	}
	return logFile
}

// getLogFilePath returns the log location inside the platform cache directory.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}

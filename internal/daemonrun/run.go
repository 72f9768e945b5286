package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"reelpull/internal/admission"
	"reelpull/internal/cleanup"
	"reelpull/internal/config"
	"reelpull/internal/daemon"
	"reelpull/internal/ipc"
	"reelpull/internal/jobs"
	"reelpull/internal/loadmon"
	"reelpull/internal/logging"
	"reelpull/internal/preflight"
	"reelpull/internal/processor"
	"reelpull/internal/scheduler"
	"reelpull/internal/services/ytdlp"
	"reelpull/internal/tier"
)

// shutdownGrace bounds how long in-flight jobs may finish after a signal.
const shutdownGrace = 30 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the reelpull daemon runtime loop and blocks until SIGINT or
// SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	extractor, err := ytdlp.New(cfg.Tools.YtdlpBinary,
		ytdlp.WithMetadataTimeout(cfg.MetadataTimeout()),
		ytdlp.WithFFmpegResolver(ffmpegResolver(cfg)),
		ytdlp.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("create extractor: %w", err)
	}

	janitor := cleanup.NewJanitor(logger)
	proc := processor.New(extractor, store, janitor, processor.OptionsFromConfig(cfg, logger))

	monitor := loadmon.New(loadmon.HostSampler{},
		loadmon.WithSampleInterval(cfg.SampleInterval()),
		loadmon.WithAdjustInterval(cfg.AdjustInterval()),
		loadmon.WithThreshold(cfg.Load.OverloadPercent),
		loadmon.WithLogger(logger),
	)

	schedOpts := scheduler.OptionsFromConfig(cfg)
	schedOpts.Monitor = monitor
	schedOpts.Janitor = janitor
	schedOpts.Sweeper = &cleanup.Sweeper{
		Store:        store,
		AnonymousDir: filepath.Join(cfg.Paths.DownloadDir, "anonymous"),
		AnonymousTTL: cfg.AnonymousTTL(),
		Interval:     cfg.SweepInterval(),
		Logger:       logger,
	}
	schedOpts.Logger = logger
	sched := scheduler.New(proc.Process, schedOpts)

	router := admission.New(tier.NewStaticResolver(cfg.Entitlements.PremiumCallers), sched, proc.Process,
		admission.WithIntake(store),
		admission.WithRecorder(store),
		admission.WithLogger(logger),
	)

	d, err := daemon.New(cfg, daemon.Deps{
		Store:     store,
		Scheduler: sched,
		Router:    router,
		Extractor: extractor,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check that no other daemon holds the lock and the API port is free"),
		)
		return err
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		stopDaemon(d)
		return fmt.Errorf("start IPC server: %w", err)
	}
	ipcServer.Serve()

	logger.Info("reelpull daemon ready",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("api_address", d.APIAddress()),
		logging.String("socket", cfg.SocketPath()),
		logging.Bool("queue_configured", cfg.QueueEnabled()),
	)

	<-signalCtx.Done()
	logger.Info("reelpull daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	ipcServer.Close()
	stopDaemon(d)
	return nil
}

func stopDaemon(d *daemon.Daemon) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	d.Stop(ctx)
}

func ffmpegResolver(cfg *config.Config) func() string {
	return func() string {
		for _, status := range preflight.CheckSystemDeps(cfg) {
			if status.Name == "FFmpeg" && status.Available {
				return status.Command
			}
		}
		return ""
	}
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("queue_configured", cfg.QueueEnabled()),
		logging.Int("premium_callers", len(cfg.Entitlements.PremiumCallers)),
		logging.Bool("notifications_configured", cfg.Notifications.NtfyTopic != ""),
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, "-", ""))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}

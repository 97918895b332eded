package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"squash/internal/config"
	"squash/internal/daemon"
	"squash/internal/events"
	"squash/internal/ipc"
	"squash/internal/logging"
)

// DefaultShutdownTimeout bounds how long a stopping daemon waits for its
// jobs to reach a terminal state.
const DefaultShutdownTimeout = 15 * time.Second

// Options configures daemon process runtime behavior.
type Options struct {
	// SocketPath overrides cfg.SocketPath().
	SocketPath      string
	ShutdownTimeout time.Duration
	// EventCapacity sizes the event ring replayed to IPC pollers.
	EventCapacity int
	Runtime       daemon.RuntimeOptions
	// Ready, when set, is called once the IPC socket accepts connections.
	Ready func()
}

// Run hosts a daemon until a signal arrives, ctx ends or a client requests a
// stop over IPC. Unfinished jobs are cancelled before Run returns.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	capacity := opts.EventCapacity
	if capacity <= 0 {
		capacity = 4096
	}
	bus := events.NewBus(capacity)
	defer bus.Close()

	logger, err := logging.NewFromConfig(cfg, true, bus)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)

	d, err := daemon.New(cfg, logger, bus, opts.Runtime)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(cmdCtx), shutdownTimeout)
		defer stopCancel()
		if stopErr := d.Stop(stopCtx); stopErr != nil {
			logging.WarnWithContext(logger, "daemon shutdown incomplete", "daemon_stop_failed",
				logging.String(logging.FieldImpact, "some jobs may not have recorded history"),
				logging.Error(stopErr),
			)
		}
	}()

	// The pid file is written only after the lock is held so a second
	// instance cannot overwrite the first one's pid.
	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	socketPath := opts.SocketPath
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()
	if opts.Ready != nil {
		opts.Ready()
	}

	select {
	case <-signalCtx.Done():
	case <-d.StopRequested():
	}
	logger.Info("squash daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := cfg.FFmpegBinary()
	ffprobe := cfg.FFprobeBinary()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobe)),
		logging.String("ffprobe_binary", ffprobe),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.String("api_bind", cfg.API.Bind),
	)
}

func binaryAvailable(name string) bool {
	if name == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

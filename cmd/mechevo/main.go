// Command mechevo runs combat scenarios and records them.
//
//	mechevo [flags] scenario.json [scenario.yaml ...]
//	mechevo export [flags] runId [runId ...]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mechevo/simulator/internal/config"
	"github.com/mechevo/simulator/internal/logging"
	intOtel "github.com/mechevo/simulator/internal/otel"
	"github.com/mechevo/simulator/internal/simulator"
	"github.com/spf13/pflag"
)

// BuildDate can be set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"

	AppName = "mechevo"
)

// app holds the process-wide services shared by the subcommands.
type app struct {
	logManager *logging.SlogManager
	logger     *slog.Logger
	otel       *intOtel.Provider
	status     *simulator.Status
	logFile    *os.File
	closers    []io.Closer
	start      time.Time
}

// configKeys are the config keys exposed as flags on the run command.
var configKeys = []string{
	"logLevel",
	"logsDir",
	"defaultTag",
	"sim.tickDuration",
	"sim.maxTicks",
	"sim.stopWhenDecided",
	"sim.homingLostTarget",
	"storage.type",
	"storage.memory.outputDir",
	"storage.memory.compressOutput",
	"storage.memory.format",
	"storage.sqlite.path",
	"batch.workers",
	"api.upload",
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && strings.ToLower(args[0]) == "export" {
		return exportCommand(args[1:])
	}
	return runCommand(args)
}

// commonFlags declares the flags both subcommands understand.
func commonFlags(name string) (*pflag.FlagSet, *string) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	configDir := flags.String("config-dir", ".", "directory holding "+config.ConfigFileName)
	flags.String("logLevel", "info", "log level (debug, info, warn, error)")
	flags.String("logsDir", "./mechevologs", "directory for log files")
	return flags, configDir
}

// setup loads config and brings up logging. Flags must be parsed and bound.
func setup(configDir string) (*app, error) {
	a := &app{
		logManager: logging.NewSlogManager(),
		status:     simulator.NewStatus(),
		start:      time.Now(),
	}
	// console only until the config is known
	a.logManager.Setup(nil, "info", nil)
	a.logger = a.logManager.Logger()

	configErr := config.Load(configDir)

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}

	logPath := logging.LogFilePath(logsDir, AppName, a.start)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, logPath+".old")
	}
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		a.logger.Warn("Failed to open log file, logging to console", "error", err, "path", logPath)
	} else {
		a.logFile = logFile
	}

	if err := a.setupOTel(logsDir); err != nil {
		a.logger.Warn("Failed to set up OTel, continuing without it", "error", err)
	}

	opts := []logging.SetupOption{logging.WithContext(a.status.LogAttrs)}
	if config.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(config.GetString("graylog.address"), AppName)
		if err != nil {
			a.logger.Warn("Failed to connect to Graylog", "error", err)
		} else {
			a.closers = append(a.closers, gw)
			opts = append(opts, logging.WithGraylog(gw))
		}
	}

	var out io.Writer
	if a.logFile != nil {
		out = a.logFile
	}
	a.logManager.Setup(out, config.GetString("logLevel"), a.otel.LoggerProvider(), opts...)
	a.logger = a.logManager.Logger()

	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		a.logger.Info("Loaded config")
	}
	a.logger.Info("Starting up", "version", Version, "buildDate", BuildDate, "logFile", logPath)
	return a, nil
}

func (a *app) setupOTel(logsDir string) error {
	cfg := config.GetOTelConfig()
	otelCfg := intOtel.Config{
		Enabled:      cfg.Enabled,
		ServiceName:  cfg.ServiceName,
		BatchTimeout: cfg.BatchTimeout,
		Endpoint:     cfg.Endpoint,
		Insecure:     cfg.Insecure,
	}
	if cfg.Enabled {
		path := filepath.Join(logsDir, fmt.Sprintf("%s.%s.otel.log", AppName, a.start.Format("20060102_150405")))
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			a.otel, _ = intOtel.New(intOtel.Config{})
			return fmt.Errorf("opening otel log file: %w", err)
		}
		a.closers = append(a.closers, f)
		otelCfg.LogWriter = f
	}

	p, err := intOtel.New(otelCfg)
	if err != nil {
		a.otel, _ = intOtel.New(intOtel.Config{})
		return err
	}
	a.otel = p
	return nil
}

// shutdown flushes telemetry and closes log outputs.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a.logger.Info("Shutting down", "uptime", time.Since(a.start))
	if err := a.logManager.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flushing logs:", err)
	}
	if err := a.otel.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutting down otel:", err)
	}

	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.logFile != nil {
		errs = append(errs, a.logFile.Close())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, "closing outputs:", err)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

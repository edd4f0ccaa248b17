package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mechevo/simulator/internal/api"
	"github.com/mechevo/simulator/internal/config"
	"github.com/mechevo/simulator/internal/database"
	"github.com/mechevo/simulator/internal/influx"
	"github.com/mechevo/simulator/internal/monitor"
	"github.com/mechevo/simulator/internal/registry"
	"github.com/mechevo/simulator/internal/scenario"
	"github.com/mechevo/simulator/internal/simulator"
	"github.com/mechevo/simulator/internal/storage"
	"github.com/mechevo/simulator/pkg/core"
)

// StorageNone disables recording.
const StorageNone = "none"

func runCommand(args []string) error {
	flags, configDir := commonFlags("mechevo")
	flags.String("defaultTag", "Sim", "tag attached to stored and uploaded runs")
	flags.Float64("sim-tickDuration", 0.1, "simulated seconds per tick")
	flags.Int("sim-maxTicks", 600, "tick limit per run, 0 for none")
	flags.Bool("sim-stopWhenDecided", true, "stop once at most one team has live units")
	flags.String("sim-homingLostTarget", "continue", "homing missile with a dead target: continue or destroy")
	flags.String("storage-type", "memory", "storage backend: memory, sqlite, postgres, websocket or none")
	flags.String("storage-memory-outputDir", "./reports", "report output directory")
	flags.Bool("storage-memory-compressOutput", true, "gzip reports")
	flags.String("storage-memory-format", "json", "report format: json or msgpack")
	flags.String("storage-sqlite-path", "", "sqlite dump file, empty keeps the database in memory")
	flags.Int("batch-workers", 4, "scenarios simulated concurrently")
	flags.Bool("api-upload", false, "upload reports to the replay viewer")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := config.BindFlags(flags, configKeys...); err != nil {
		return err
	}

	paths := flags.Args()
	if len(paths) == 0 {
		return errors.New("no scenario files given")
	}

	a, err := setup(*configDir)
	if err != nil {
		return err
	}
	defer a.shutdown()

	scenarios := make([]core.Scenario, 0, len(paths))
	for _, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			a.logger.Error("Failed to load scenario", "error", err, "path", path)
			return err
		}
		scenarios = append(scenarios, sc)
	}
	a.logger.Info("Loaded scenarios", "count", len(scenarios))

	backend, err := a.initStorage()
	if err != nil {
		return err
	}
	if backend != nil {
		defer func() {
			if err := backend.Close(); err != nil {
				a.logger.Error("Failed to close storage backend", "error", err)
			}
		}()
	}

	metrics := influx.NewManager(config.GetInfluxConfig(), a.logManager.Zerolog(),
		filepath.Join(config.GetString("logsDir"), "influx_backup.log.gz"))
	ctx, cancel := signalContext()
	defer cancel()
	if err := metrics.Connect(ctx); err != nil && !errors.Is(err, influx.ErrDisabled) {
		a.logger.Warn("InfluxDB unavailable", "error", err)
	}
	defer func() {
		if err := metrics.Close(); err != nil {
			a.logger.Error("Failed to close InfluxDB manager", "error", err)
		}
	}()

	reg := registry.New()
	aliases := config.GetAliasConfig()
	if err := reg.AddAliases(aliases.Actions, aliases.Conditions); err != nil {
		a.logger.Error("Invalid scenario aliases", "error", err)
		return err
	}

	runner, err := simulator.NewRunner(config.GetSimConfig(), simulator.Dependencies{
		LogManager: a.logManager,
		Backend:    backend,
		Registry:   reg,
		Status:     a.status,
		Meter:      a.otel.Meter(simulator.InstrumentationName),
	})
	if err != nil {
		return err
	}

	mon := monitor.NewService(monitor.Dependencies{
		LogManager: a.logManager,
		Progress:   a.status,
		Metrics:    statusMetrics(metrics),
		StatusPath: filepath.Join(config.GetString("logsDir"), "status.json"),
	})
	mon.Start()

	var results []simulator.Result
	if len(scenarios) == 1 {
		res, runErr := runner.Run(ctx, scenarios[0])
		if runErr == nil {
			results = append(results, res)
		}
		err = runErr
	} else {
		results, err = runner.RunBatch(ctx, scenarios, config.GetInt("batch.workers"))
	}
	mon.Stop()
	if err != nil {
		a.logger.Error("Run failed", "error", err)
	}

	if flushErr := a.otel.Flush(context.Background()); flushErr != nil {
		a.logger.Warn("Failed to flush OTel", "error", flushErr)
	}

	for _, res := range results {
		if res.Info.ID == "" {
			continue
		}
		if werr := metrics.WriteRunSummary(res.Info, res.Summary); werr != nil && !errors.Is(werr, influx.ErrDisabled) {
			a.logger.Warn("Failed to write run metrics", "error", werr, "runId", res.Info.ID)
		}
	}

	if config.GetBool("api.upload") {
		client := api.New(config.GetString("api.serverUrl"), config.GetString("api.apiKey"))
		a.uploadReports(client, backend, results)
	}

	printSummaries(os.Stdout, results)
	return err
}

// statusMetrics returns the InfluxDB manager as a point sink when it is enabled.
func statusMetrics(m *influx.Manager) monitor.PointWriter {
	if !config.GetInfluxConfig().Enabled {
		return nil
	}
	return m
}

// initStorage creates and initializes the configured backend, or returns nil when recording is off.
func (a *app) initStorage() (storage.Backend, error) {
	cfg := config.GetStorageConfig()
	if strings.EqualFold(cfg.Type, StorageNone) {
		a.logger.Info("Storage disabled")
		return nil, nil
	}

	backend, err := storage.NewBackend(cfg, storage.Dependencies{
		LogManager: a.logManager,
		DBManager:  database.NewManager(a.logManager.Zerolog()),
		Tag:        config.GetString("defaultTag"),
		ServerURL:  config.GetString("api.serverUrl"),
	})
	if err != nil {
		a.logger.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		a.logger.Error("Failed to initialize storage backend", "error", err, "type", cfg.Type)
		return nil, fmt.Errorf("initializing %s storage: %w", cfg.Type, err)
	}
	a.logger.Info("Storage backend initialized", "type", cfg.Type)
	return backend, nil
}

// uploadReports pushes every finished run's report to the viewer and returns
// how many were accepted. Nothing is sent when the healthcheck fails.
func (a *app) uploadReports(client *api.Client, backend storage.Backend, results []simulator.Result) int {
	u, ok := backend.(storage.Uploadable)
	if !ok {
		a.logger.Warn("Storage backend does not produce uploadable files, skipping uploads")
		return 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := client.Healthcheck(ctx)
	cancel()
	if err != nil {
		a.logger.Warn("Replay viewer unreachable, skipping uploads", "error", err)
		return 0
	}

	uploaded := 0
	for _, res := range results {
		if res.Info.ID != "" && a.upload(client, u, res.Info.ID) {
			uploaded++
		}
	}
	return uploaded
}

// upload pushes an exported report to the viewer when the backend produced one.
func (a *app) upload(client *api.Client, u storage.Uploadable, runID string) bool {
	path, ok := u.ExportedFilePath(runID)
	if !ok {
		return false
	}
	meta, _ := u.ExportMetadata(runID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := client.Upload(ctx, path, meta); err != nil {
		a.logger.Error("Failed to upload report", "error", err, "runId", runID, "path", path)
		return false
	}
	a.logger.Info("Uploaded report", "runId", runID, "path", path)
	return true
}

// printSummaries writes one line per run.
func printSummaries(w io.Writer, results []simulator.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tRUN\tREASON\tTICKS\tTIME\tEVENTS\tWINNER\tSURVIVORS")
	for _, res := range results {
		if res.Info.ID == "" {
			continue
		}
		s := res.Summary
		winner := "-"
		if s.WinningTeam >= 0 {
			winner = fmt.Sprint(s.WinningTeam)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1fs\t%d\t%s\t%s\n",
			res.Info.ScenarioName, res.Info.ID, s.Reason, s.Ticks, s.TotalTime, s.EventCount, winner, formatSurvivors(s.Survivors))
	}
	_ = tw.Flush()
}

func formatSurvivors(survivors map[int]int) string {
	if len(survivors) == 0 {
		return "-"
	}
	teams := make([]int, 0, len(survivors))
	for team := range survivors {
		teams = append(teams, team)
	}
	sort.Ints(teams)
	parts := make([]string, 0, len(teams))
	for _, team := range teams {
		parts = append(parts, fmt.Sprintf("%d:%d", team, survivors[team]))
	}
	return strings.Join(parts, " ")
}

// Package influx writes run metrics to InfluxDB, falling back to a gzipped
// line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/mechevo/simulator/internal/config"
	"github.com/mechevo/simulator/pkg/core"
	"github.com/rs/zerolog"
)

// PerformanceBucket receives per-run simulator performance points.
const PerformanceBucket = "sim_performance"

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager. The run bucket comes from cfg.Bucket.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: []string{cfg.Bucket, PerformanceBucket},
		Logger:      log,
		BackupPath:  backupPath,
		cfg:         cfg,
	}
}

// Connect establishes a connection to InfluxDB, or opens the backup file if
// the server does not answer a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	m.IsValid = err == nil && running

	if !m.IsValid {
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB client failed to initialize, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}

	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Logger.Trace().Str("bucket", bucket).Msg("Creating InfluxDB writer")
		m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}

	m.Logger.Debug().Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IsValid {
		writer, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// SummaryPoint builds the run_summary point. Survivors become one field per team.
func SummaryPoint(info core.RunInfo, summary core.RunSummary, at time.Time) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement("run_summary").
		AddTag("scenario", info.ScenarioName).
		AddTag("reason", summary.Reason).
		AddTag("winningTeam", strconv.Itoa(summary.WinningTeam)).
		AddField("runId", summary.RunID).
		AddField("ticks", summary.Ticks).
		AddField("totalTime", summary.TotalTime).
		AddField("eventCount", summary.EventCount).
		AddField("shots", summary.Shots).
		AddField("hits", summary.Hits).
		AddField("units", info.Units).
		SetTime(at)

	teams := make([]int, 0, len(summary.Survivors))
	for team := range summary.Survivors {
		teams = append(teams, team)
	}
	sort.Ints(teams)
	for _, team := range teams {
		point.AddField("survivors_team_"+strconv.Itoa(team), summary.Survivors[team])
	}
	return point
}

// PerformancePoint builds the run_performance point from wall-clock timing.
func PerformancePoint(info core.RunInfo, summary core.RunSummary, at time.Time) *influxdb2_write.Point {
	perTick := 0.0
	if summary.Ticks > 0 {
		perTick = float64(summary.WallTime.Microseconds()) / float64(summary.Ticks)
	}
	return influxdb2_write.NewPointWithMeasurement("run_performance").
		AddTag("scenario", info.ScenarioName).
		AddField("runId", summary.RunID).
		AddField("wallTimeMs", summary.WallTime.Milliseconds()).
		AddField("usPerTick", perTick).
		SetTime(at)
}

// WriteRunSummary records both points of a finished run.
// Returns ErrDisabled when InfluxDB is turned off.
func (m *Manager) WriteRunSummary(info core.RunInfo, summary core.RunSummary) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}
	now := time.Now()
	if err := m.WritePoint(m.cfg.Bucket, SummaryPoint(info, summary, now)); err != nil {
		return err
	}
	return m.WritePoint(PerformanceBucket, PerformancePoint(info, summary, now))
}

// Close flushes pending writes and closes the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, writer := range m.Writers {
		writer.Flush()
	}
	m.Writers = make(map[string]influxdb2_api.WriteAPI)
	if m.Client != nil {
		m.Client.Close()
		m.Client = nil
	}

	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mechevo/simulator/internal/config"
	v1 "github.com/mechevo/simulator/internal/storage/memory/export/v1"
	"github.com/mechevo/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func testInfo(id string) core.RunInfo {
	return core.RunInfo{
		ID:           id,
		ScenarioName: "Arena: duel",
		StartedAt:    time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC),
		TickDuration: 0.1,
		Teams:        2,
		Units:        2,
	}
}

func testEvents() []core.Event {
	create := core.NewEvent(core.TitleCreatePlayer).Int("id", 1).Int("teamId", 1).
		Float("x", 10).Float("y", 20).Float("angle", 90).Str("color", "red").Int("hp", 100)
	move := core.NewEvent(core.TitleMovePlayer).Int("id", 1).Float("x", 15).Float("y", 20).Float("angle", 90)
	move.Time = 0.1
	return []core.Event{create, move}
}

func runOnce(t *testing.T, b *Backend, id string) {
	t.Helper()
	require.NoError(t, b.StartRun(testInfo(id)))
	for _, e := range testEvents() {
		require.NoError(t, b.RecordEvent(id, e))
	}
	require.NoError(t, b.EndRun(core.RunSummary{RunID: id, Ticks: 2, WinningTeam: 1, Reason: "decided"},
		core.Report{TotalTime: 0.2}))
}

func TestInit_RejectsUnknownFormat(t *testing.T) {
	assert.NoError(t, New(config.MemoryConfig{}, "Sim").Init())
	assert.NoError(t, New(config.MemoryConfig{Format: FormatMsgpack}, "Sim").Init())
	assert.Error(t, New(config.MemoryConfig{Format: "xml"}, "Sim").Init())
}

func TestEndRun_WritesJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, Format: FormatJSON}, "Sim")
	require.NoError(t, b.Init())

	runOnce(t, b, "0123456789abcdef")

	path, ok := b.ExportedFilePath("0123456789abcdef")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "Arena__duel_20260504_103000_01234567.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export v1.Export
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Equal(t, "0123456789abcdef", export.RunID)
	assert.Equal(t, "Sim", export.Tags)
	assert.Equal(t, 0.2, export.TotalTime)
	assert.Equal(t, 1, export.WinningTeam)
	require.Len(t, export.Entities, 2)
	assert.Len(t, export.Entities[1].Positions, 2)
	assert.Len(t, export.Events, 2)
}

func TestEndRun_WritesGzipJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true}, "Sim")
	require.NoError(t, b.Init())

	runOnce(t, b, "run-gz")

	path, ok := b.ExportedFilePath("run-gz")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(path, ".json.gz"))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var export v1.Export
	require.NoError(t, json.NewDecoder(gz).Decode(&export))
	assert.Equal(t, "run-gz", export.RunID)
}

func TestEndRun_WritesMsgpack(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, Format: FormatMsgpack}, "Sim")
	require.NoError(t, b.Init())

	runOnce(t, b, "run-mp")

	path, ok := b.ExportedFilePath("run-mp")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(path, ".msgpack"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var export v1.Export
	require.NoError(t, msgpack.Unmarshal(data, &export))
	assert.Equal(t, "run-mp", export.RunID)
	assert.Equal(t, "Arena: duel", export.ScenarioName)
	require.Len(t, export.Events, 2)
	assert.Equal(t, core.TitleMovePlayer, export.Events[1].Title)
}

func TestEndRun_FallsBackToReportEvents(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir}, "Sim")
	require.NoError(t, b.StartRun(testInfo("direct")))

	err := b.EndRun(core.RunSummary{RunID: "direct"}, core.Report{TotalTime: 0.2, Events: testEvents()})
	require.NoError(t, err)

	path, _ := b.ExportedFilePath("direct")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var export v1.Export
	require.NoError(t, json.Unmarshal(data, &export))
	assert.Len(t, export.Events, 2)
}

func TestExportMetadata(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, "Training")

	_, ok := b.ExportMetadata("run-1")
	assert.False(t, ok)

	runOnce(t, b, "run-1")

	meta, ok := b.ExportMetadata("run-1")
	require.True(t, ok)
	assert.Equal(t, core.UploadMetadata{
		RunID:        "run-1",
		ScenarioName: "Arena: duel",
		TotalTime:    0.2,
		Tag:          "Training",
	}, meta)
}

func TestRunLifecycleErrors(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, "Sim")

	assert.Error(t, b.RecordEvent("missing", core.NewEvent(core.TitleModifyHp)))
	assert.Error(t, b.EndRun(core.RunSummary{RunID: "missing"}, core.Report{}))

	require.NoError(t, b.StartRun(testInfo("dup")))
	assert.Error(t, b.StartRun(testInfo("dup")))

	require.NoError(t, b.Close())
	assert.Error(t, b.RecordEvent("dup", core.NewEvent(core.TitleModifyHp)), "close drops open runs")
}

func TestConcurrentRuns(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, "Sim")
	ids := []string{"aaaaaaaa-1", "bbbbbbbb-2", "cccccccc-3", "dddddddd-4"}

	done := make(chan struct{})
	for _, id := range ids {
		go func(id string) {
			defer func() { done <- struct{}{} }()
			runOnce(t, b, id)
		}(id)
	}
	for range ids {
		<-done
	}

	paths := map[string]bool{}
	for _, id := range ids {
		path, ok := b.ExportedFilePath(id)
		require.True(t, ok)
		paths[path] = true
	}
	assert.Len(t, paths, len(ids))
}

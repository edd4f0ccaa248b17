package monitor

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mechevo/simulator/internal/influx"
	"github.com/mechevo/simulator/internal/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
)

type fakeProgress struct {
	runs []simulator.Progress
}

func (f *fakeProgress) Active() []simulator.Progress { return f.runs }

type fakeWriter struct {
	mu      sync.Mutex
	buckets []string
	points  []*influxdb2_write.Point
	err     error
}

func (f *fakeWriter) WritePoint(bucket string, p *influxdb2_write.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets = append(f.buckets, bucket)
	f.points = append(f.points, p)
	return f.err
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func twoRuns() *fakeProgress {
	return &fakeProgress{runs: []simulator.Progress{
		{RunID: "a", Scenario: "duel", Tick: 12, Elapsed: 1.2},
		{RunID: "b", Scenario: "brawl", Tick: 40, Elapsed: 4},
	}}
}

func fieldValues(p *influxdb2_write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestPoint(t *testing.T) {
	snap := Snapshot{Time: time.Unix(100, 0), Runs: twoRuns().runs, Goroutines: 7, HeapMB: 1.5}
	p := Point(snap)

	assert.Equal(t, "process_status", p.Name())
	fields := fieldValues(p)
	assert.EqualValues(t, 2, fields["activeRuns"])
	assert.EqualValues(t, 40, fields["maxTick"])
	assert.EqualValues(t, 7, fields["goroutines"])
	assert.Equal(t, 1.5, fields["heapMb"])
}

func TestSample(t *testing.T) {
	s := NewService(Dependencies{Progress: twoRuns()})
	snap := s.Sample()
	assert.Len(t, snap.Runs, 2)
	assert.Positive(t, snap.Goroutines)
	assert.False(t, snap.Time.IsZero())
}

func TestStartStop_WritesStatusAndPoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	w := &fakeWriter{}
	s := NewService(Dependencies{
		Progress:   twoRuns(),
		Metrics:    w,
		StatusPath: path,
		Interval:   10 * time.Millisecond,
	})

	s.Start()
	assert.True(t, s.IsRunning())
	s.Start() // no second goroutine

	require.Eventually(t, func() bool { return w.count() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.False(t, s.IsRunning())

	stopped := w.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, w.count())

	w.mu.Lock()
	for _, b := range w.buckets {
		assert.Equal(t, influx.PerformanceBucket, b)
	}
	w.mu.Unlock()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Len(t, snap.Runs, 2)
	assert.Equal(t, "duel", snap.Runs[0].Scenario)
	assert.Equal(t, 40, snap.Runs[1].Tick)
}

func TestReport_SkipsPointWithoutRuns(t *testing.T) {
	w := &fakeWriter{}
	s := NewService(Dependencies{Progress: &fakeProgress{}, Metrics: w})
	s.report()
	assert.Zero(t, w.count())
}

func TestReport_WriterErrorIsLogged(t *testing.T) {
	w := &fakeWriter{err: errors.New("down")}
	s := NewService(Dependencies{Progress: twoRuns(), Metrics: w})
	assert.NotPanics(t, s.report)
	assert.Equal(t, 1, w.count())
}

func TestStop_BeforeStart(t *testing.T) {
	s := NewService(Dependencies{Progress: &fakeProgress{}})
	assert.NotPanics(t, s.Stop)
}

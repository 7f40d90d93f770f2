package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCounters(t *testing.T) {
	m := NewRun()

	m.ObservePage(100)
	m.ObservePage(42)
	m.ObserveRetry("503")
	m.ObserveRetry("503")
	m.ObserveRetry("transport")
	m.ObserveRequest(250 * time.Millisecond)
	m.ObserveKept(17)
	m.MarkSafetyCap()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetched))
	assert.Equal(t, 142.0, testutil.ToFloat64(m.RecordsFetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRetries.WithLabelValues("503")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRetries.WithLabelValues("transport")))
	assert.Equal(t, 17.0, testutil.ToFloat64(m.RecordsKept))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SafetyCap))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
}

func TestNilRunIsNoop(t *testing.T) {
	var m *Run
	assert.NotPanics(t, func() {
		m.ObservePage(1)
		m.ObserveRetry("429")
		m.ObserveRequest(time.Second)
		m.ObserveKept(1)
		m.MarkSafetyCap()
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := NewRun()
	m.ObservePage(5)

	path := filepath.Join(t.TempDir(), "textfile", "awardfinder.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "awardfinder_pages_fetched_total 1"))
	assert.True(t, strings.Contains(out, "awardfinder_records_fetched_total 5"))
	assert.True(t, strings.Contains(out, "# TYPE awardfinder_safety_cap_reached gauge"))

	assert.NoError(t, m.WriteTextfile(""), "empty path disables the textfile")
}

package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	piazzatest "github.com/roach88/piazza/internal/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLogin(time.Second, nil)
	m.ObserveMigrate("schema", time.Second)
	m.AddRows("Post", 3)
	m.SetMaterialization(1, 1)
}

func TestObserveLogin(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLogin(10*time.Millisecond, nil)
	m.ObserveLogin(20*time.Millisecond, nil)
	m.ObserveLogin(5*time.Millisecond, errors.New("boom"))

	assert.InDelta(t, 2, testutil.ToFloat64(m.logins.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.logins.WithLabelValues("error")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.loginDuration))
}

func TestAddRowsAndMaterialization(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AddRows("Post", 3)
	m.AddRows("Post", 2)
	m.AddRows("User", 0)
	m.SetMaterialization(42, 6)

	assert.InDelta(t, 5, testutil.ToFloat64(m.rowsWritten.WithLabelValues("Post")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.rowsWritten))
	assert.InDelta(t, 42, testutil.ToFloat64(m.rows), 0)
	assert.InDelta(t, 6, testutil.ToFloat64(m.views), 0)
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetMaterialization(7, 1)

	s, err := Listen("127.0.0.1:0", reg, piazzatest.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "piazza_materialized_rows 7"))
}

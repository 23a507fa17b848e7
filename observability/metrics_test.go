package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveTurn("completed", 120*time.Millisecond)
	m.ObserveTurn("completed", time.Second)
	m.ObserveTurn("clarification", time.Millisecond)
	m.HandlerSelected("Booker")
	m.Clarified("ambiguous")
	m.GeneratorCalled("classify", nil)
	m.GeneratorCalled("classify", errors.New("down"))
	m.ActionInvoked("Booker", "booking_handler", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("clarification")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandlerSelectionsTotal.WithLabelValues("Booker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClarificationsTotal.WithLabelValues("ambiguous")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeneratorCallsTotal.WithLabelValues("classify", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionInvocationsTotal.WithLabelValues("Booker", "booking_handler", "success")))

	count, err := testutil.GatherAndCount(reg, "agentroute_turn_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTurn("completed", time.Second)
		m.HandlerSelected("Booker")
		m.Clarified("unknown_handler")
		m.GeneratorCalled("classify", nil)
		m.ActionInvoked("Booker", "a", nil)
	})
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

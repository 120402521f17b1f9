package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.ObserveRequest("send", nil, 10*time.Millisecond)
	r.ObserveRequest("send", nil, 10*time.Millisecond)
	r.ObserveRequest("fetch", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.requests.WithLabelValues("send", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requests.WithLabelValues("fetch", "error")))
}

func TestRecorder_ObserveBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.ObserveBytes(DirectionSent, 40)
	r.ObserveBytes(DirectionSent, 2)
	r.ObserveBytes(DirectionReceived, 0)

	assert.Equal(t, 42.0, testutil.ToFloat64(r.bytes.WithLabelValues(DirectionSent)))
	// zero-byte observations do not create a series
	assert.Equal(t, 1, testutil.CollectAndCount(r.bytes))
}

func TestRecorder_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRequest("send", nil, time.Second)
		r.ObserveBytes(DirectionSent, 10)
	})
}

func TestDefault_Idempotent(t *testing.T) {
	assert.Same(t, Default(), Default())
}

package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation_Status(t *testing.T) {
	c := NewCollector()

	c.RecordOperation("buy_token", time.Millisecond, nil)
	c.RecordOperation("buy_token", time.Millisecond, errors.New("no pass"))
	c.RecordOperation("buy_token", time.Millisecond, context.Canceled)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("buy_token", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("buy_token", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("buy_token", "cancelled")))
}

func TestUpdateCurveAndFees(t *testing.T) {
	c := NewCollector()

	c.UpdateCurve(2_000_000, 1_500_000_000, 1_333_333)
	c.AddFees(30, 30, 0, 0)
	c.AddFees(0, 60, 0, 0)

	assert.Equal(t, 2_000_000.0, testutil.ToFloat64(c.reserve))
	assert.Equal(t, 1_333_333.0, testutil.ToFloat64(c.price))
	assert.Equal(t, 90.0, testutil.ToFloat64(c.feesPaid.WithLabelValues("protocol")))

	c.Reset()
	assert.Zero(t, testutil.ToFloat64(c.reserve))
}

func TestCollectorsAreIndependent(t *testing.T) {
	a, b := NewCollector(), NewCollector()
	a.LockSettled("matured")

	n, err := testutil.GatherAndCount(a.Registry(), "uponly_locks_settled_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testutil.GatherAndCount(b.Registry(), "uponly_locks_settled_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordOperation("x", 0, nil)
		c.UpdateCurve(1, 1, 1)
		c.CrankAttempt("ok")
	})
}

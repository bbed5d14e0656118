package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncReconcileRun("completed")
		ObserveReconcileDuration(150 * time.Millisecond)
		IncRoomFixFailure("write")
		SetQueueDepth(3)
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(roomsFixed)
	IncRoomFixed()
	assert.Equal(t, before+1, testutil.ToFloat64(roomsFixed))

	okBefore := testutil.ToFloat64(bookingOps.WithLabelValues("create", "ok"))
	errBefore := testutil.ToFloat64(bookingOps.WithLabelValues("create", "error"))
	IncBookingOp("create", nil)
	IncBookingOp("create", errors.New("boom"))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(bookingOps.WithLabelValues("create", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(bookingOps.WithLabelValues("create", "error")))

	alertBefore := testutil.ToFloat64(alertsSent.WithLabelValues("mqtt", "ok"))
	IncAlert("mqtt", nil)
	assert.Equal(t, alertBefore+1, testutil.ToFloat64(alertsSent.WithLabelValues("mqtt", "ok")))
}

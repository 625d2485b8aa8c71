package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/fleetlink/fleetlink/pkg/types"
)

func TestSetConnectionStateIsOneHot(t *testing.T) {
	SetConnectionState(types.StateAuthenticated)

	assert.Equal(t, 1.0, testutil.ToFloat64(ConnectionState.WithLabelValues(string(types.StateAuthenticated))))
	assert.Equal(t, 0.0, testutil.ToFloat64(ConnectionState.WithLabelValues(string(types.StateDisconnected))))
	assert.Equal(t, 0.0, testutil.ToFloat64(ConnectionState.WithLabelValues(string(types.StateFault))))

	SetConnectionState(types.StateUnreachable)

	assert.Equal(t, 0.0, testutil.ToFloat64(ConnectionState.WithLabelValues(string(types.StateAuthenticated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(ConnectionState.WithLabelValues(string(types.StateUnreachable))))
}

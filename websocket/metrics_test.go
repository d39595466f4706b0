package websocket

import (
	"testing"
	"time"

	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/models"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestHandlerWithMetrics(t *testing.T) {
	store, tree := newTestStore(t)

	env, close := NewTestingEnv(t, newTestHandler(store, nil))
	defer close()

	castsIn := wsMsgs.WithLabelValues(directionIn, MsgTypeCastRequest)
	castsOut := wsMsgs.WithLabelValues(directionOut, MsgTypeCastResponse)
	errorsOut := wsMsgs.WithLabelValues(directionOut, MsgTypeErrorResponse)
	bytesOut := wsBytes.WithLabelValues(directionOut, EncodingProto)

	initialCastsIn := counterValue(t, castsIn)
	initialCastsOut := counterValue(t, castsOut)
	initialErrorsOut := counterValue(t, errorsOut)
	initialBytesOut := counterValue(t, bytesOut)

	c := newTestClient(t, env.Dial("/ws?encoding="+EncodingProto), EncodingProto)

	c.send(MsgTypeCastRequest, 1, CastRequestData{
		TreeID:    tree.ID,
		Origin:    geom.NewVec2(1.5, 1.5),
		Direction: geom.NewVec2(1, 0),
	})
	require.Equal(t, MsgTypeCastResponse, c.receive().Type)

	c.send(MsgTypeCastRequest, 2, CastRequestData{
		TreeID:    "unknown",
		Origin:    geom.NewVec2(1.5, 1.5),
		Direction: geom.NewVec2(1, 0),
	})
	msg := c.receive()
	require.Equal(t, MsgTypeErrorResponse, msg.Type)

	var errRes ErrorResponseData
	require.NoError(t, msg.DataTo(&errRes))
	require.Equal(t, models.ErrTypeTreeNotFound, errRes.Code)

	require.Equal(t, initialCastsIn+2, counterValue(t, castsIn))

	require.Eventually(t, func() bool {
		return counterValue(t, castsOut) == initialCastsOut+1 &&
			counterValue(t, errorsOut) == initialErrorsOut+1
	}, time.Second, time.Millisecond*10)
	require.Greater(t, counterValue(t, bytesOut), initialBytesOut)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

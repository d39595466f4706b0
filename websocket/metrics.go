package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	directionIn  = "in"
	directionOut = "out"

	outcomeOK = "ok"
)

var (
	wsConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quadcast_ws_connections",
		Help: "The number of open cast connections by frame encoding.",
	}, []string{"encoding"})

	wsMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadcast_ws_msgs_total",
		Help: "The number of messages received (in) and sent (out).",
	}, []string{"direction", "msg_type"})

	wsBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadcast_ws_bytes_total",
		Help: "The number of frame bytes received (in) and sent (out).",
	}, []string{"direction", "encoding"})

	wsErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quadcast_ws_errors_total",
		Help: "The frames that could not be received (in) or sent (out).",
	}, []string{"direction", "error_type"})

	wsRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quadcast_ws_request_duration_seconds",
		Help:    "The time to answer a request, by outcome.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	}, []string{"msg_type", "outcome"})
)

// HandlerWithMetrics records open connections, traffic and the time taken by
// each request.
func HandlerWithMetrics(h Handler) Handler {
	return &handlerWithMetrics{Handler: h}
}

type handlerWithMetrics struct {
	Handler

	encoding string
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	h.encoding = EncodingJSON
	if conn.Request().URL.Query().Get("encoding") == EncodingProto {
		h.encoding = EncodingProto
	}
	wsConnections.WithLabelValues(h.encoding).Inc()

	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandlePing(ctx context.Context, sender ResponseSender, msg Msg) error {
	return h.observe(msg, func() error {
		return h.Handler.HandlePing(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleCast(ctx context.Context, sender ResponseSender, msg Msg) error {
	return h.observe(msg, func() error {
		return h.Handler.HandleCast(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleTreeInfo(ctx context.Context, sender ResponseSender, msg Msg) error {
	return h.observe(msg, func() error {
		return h.Handler.HandleTreeInfo(ctx, sender, msg)
	})
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	wsConnections.WithLabelValues(h.encoding).Dec()
	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil {
			wsErrors.WithLabelValues(directionIn, errors.Type(err)).Inc()
		} else {
			wsMsgs.WithLabelValues(directionIn, msg.TypeString()).Inc()
		}
		if n != 0 {
			wsBytes.WithLabelValues(directionIn, h.encoding).Add(float64(n))
		}
		return msg, n, err
	}
}

func (h *handlerWithMetrics) Sender() Sender {
	send := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		n, err := send(msg)
		if err != nil {
			wsErrors.WithLabelValues(directionOut, errors.Type(err)).Inc()
			return n, err
		}

		wsMsgs.WithLabelValues(directionOut, msg.TypeString()).Inc()
		wsBytes.WithLabelValues(directionOut, h.encoding).Add(float64(n))
		return n, nil
	}
}

func (h *handlerWithMetrics) observe(msg Msg, handle func() error) error {
	start := time.Now()
	err := handle()

	outcome := outcomeOK
	if err != nil {
		outcome = errors.Type(err)
	}
	wsRequestDuration.
		WithLabelValues(msg.TypeString(), outcome).
		Observe(time.Since(start).Seconds())
	return err
}

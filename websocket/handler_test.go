package websocket

import (
	"testing"
	"time"

	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/models"
	"github.com/aukilabs/quadcast/quadtree"
	"github.com/aukilabs/quadcast/raycast"
	"github.com/aukilabs/quadcast/signing"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestHandlerHandlePing(t *testing.T) {
	env, close := NewTestingEnv(t, newTestHandler(&models.TreeStore{}, nil))
	defer close()

	c := newTestClient(t, env.Dial("/ws"), EncodingJSON)
	c.send(MsgTypePingRequest, 1, nil)

	msg := c.receive()
	require.Equal(t, MsgTypePingResponse, msg.Type)
	require.Equal(t, uint32(1), msg.RequestID)
	require.NotZero(t, msg.Timestamp)
}

func TestHandlerHandleCast(t *testing.T) {
	store, tree := newTestStore(t)

	for _, encoding := range []string{EncodingJSON, EncodingProto} {
		t.Run(encoding, func(t *testing.T) {
			env, close := NewTestingEnv(t, newTestHandler(store, nil))
			defer close()

			c := newTestClient(t, env.Dial("/trees/"+tree.ID+"/ws?encoding="+encoding), encoding)

			origin := geom.NewVec2(1.5, 1.5)
			direction := geom.NewVec2(1, 0)
			c.send(MsgTypeCastRequest, 7, CastRequestData{
				Origin:    origin,
				Direction: direction,
			})

			msg := c.receive()
			require.Equal(t, MsgTypeCastResponse, msg.Type)
			require.Equal(t, uint32(7), msg.RequestID)

			var res CastResponseData
			require.NoError(t, msg.DataTo(&res))
			require.Equal(t, tree.ID, res.TreeID)
			require.Equal(t, raycast.CastRay(tree, origin, direction), res.Result)
			require.Equal(t, raycast.Collision, res.Result.Kind)
			require.Equal(t, geom.NewVec2(2, 1.5), res.Result.Point)
			require.Empty(t, res.Signature)
		})
	}
}

func TestHandlerHandleCastWithTreeID(t *testing.T) {
	store, tree := newTestStore(t)

	env, close := NewTestingEnv(t, newTestHandler(store, nil))
	defer close()

	c := newTestClient(t, env.Dial("/ws"), EncodingJSON)
	c.send(MsgTypeCastRequest, 1, CastRequestData{
		TreeID:    tree.ID,
		Origin:    geom.NewVec2(-1, 0.5),
		Direction: geom.NewVec2(1, 0),
	})

	msg := c.receive()
	require.Equal(t, MsgTypeCastResponse, msg.Type)

	var res CastResponseData
	require.NoError(t, msg.DataTo(&res))
	require.Equal(t, raycast.NoCollision, res.Result.Kind)
	require.Equal(t, raycast.ReasonExitedDomain, res.Result.Reason)
}

func TestHandlerHandleCastSigned(t *testing.T) {
	store, tree := newTestStore(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := signing.NewSigner(key)

	env, close := NewTestingEnv(t, newTestHandler(store, signer))
	defer close()

	c := newTestClient(t, env.Dial("/trees/"+tree.ID+"/ws"), EncodingJSON)
	c.send(MsgTypeCastRequest, 1, CastRequestData{
		Origin:    geom.NewVec2(1.5, 1.5),
		Direction: geom.NewVec2(1, 0),
	})

	msg := c.receive()
	require.Equal(t, MsgTypeCastResponse, msg.Type)

	var res CastResponseData
	require.NoError(t, msg.DataTo(&res))
	require.Equal(t, signer.Address(), res.SignerAddress)

	b, err := json.Marshal(res.Result)
	require.NoError(t, err)

	addr, err := signing.Recover(b, res.Signature)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), addr)
}

func TestHandlerHandleTreeInfo(t *testing.T) {
	store, tree := newTestStore(t)

	env, close := NewTestingEnv(t, newTestHandler(store, nil))
	defer close()

	c := newTestClient(t, env.Dial("/trees/"+tree.ID+"/ws"), EncodingJSON)
	c.send(MsgTypeTreeInfoRequest, 3, nil)

	msg := c.receive()
	require.Equal(t, MsgTypeTreeInfoResponse, msg.Type)
	require.Equal(t, uint32(3), msg.RequestID)

	var res models.TreeSummary
	require.NoError(t, msg.DataTo(&res))
	require.Equal(t, tree.ID, res.ID)
	require.Equal(t, tree.Stats(), res.Stats)
}

func TestHandlerErrorResponses(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		scenario  string
		path      string
		msgType   string
		data      any
		errorCode string
	}{
		{
			scenario:  "unknown tree",
			path:      "/trees/unknown/ws",
			msgType:   MsgTypeCastRequest,
			data:      CastRequestData{Direction: geom.NewVec2(1, 0)},
			errorCode: models.ErrTypeTreeNotFound,
		},
		{
			scenario:  "connection not bound to a tree",
			path:      "/ws",
			msgType:   MsgTypeTreeInfoRequest,
			errorCode: ErrTypeTreeRequired,
		},
		{
			scenario:  "unknown message type",
			path:      "/ws",
			msgType:   "entity_add_request",
			errorCode: ErrTypeUnknownMsgType,
		},
		{
			scenario:  "invalid payload",
			path:      "/ws",
			msgType:   MsgTypeCastRequest,
			data:      []int{1, 2},
			errorCode: ErrTypeMsgDecode,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			env, close := NewTestingEnv(t, newTestHandler(store, nil))
			defer close()

			c := newTestClient(t, env.Dial(test.path), EncodingJSON)
			c.send(test.msgType, 42, test.data)

			msg := c.receive()
			require.Equal(t, MsgTypeErrorResponse, msg.Type)
			require.Equal(t, uint32(42), msg.RequestID)

			var res ErrorResponseData
			require.NoError(t, msg.DataTo(&res))
			require.Equal(t, test.errorCode, res.Code)
			require.NotEmpty(t, res.Message)

			// The connection stays usable.
			c.send(MsgTypePingRequest, 43, nil)
			require.Equal(t, MsgTypePingResponse, c.receive().Type)
		})
	}
}

func TestHandlerMalformedFrame(t *testing.T) {
	env, close := NewTestingEnv(t, newTestHandler(&models.TreeStore{}, nil))
	defer close()

	conn := env.Dial("/ws")
	require.NoError(t, websocket.Message.Send(conn, "{"))

	c := newTestClient(t, conn, EncodingJSON)
	msg := c.receive()
	require.Equal(t, MsgTypeErrorResponse, msg.Type)

	var res ErrorResponseData
	require.NoError(t, msg.DataTo(&res))
	require.Equal(t, ErrTypeMsgDecode, res.Code)
}

func TestHandlerDisconnectOnIdleTimeout(t *testing.T) {
	env, close := NewTestingEnv(t, func() Handler {
		return &RealtimeHandler{
			ClientIdleTimeout: 0,
			Trees:             &models.TreeStore{},
		}
	})
	defer close()

	conn := env.Dial("/ws")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	_, _, err := NewReceiver(conn)()
	require.Error(t, err)
}

func newTestHandler(store *models.TreeStore, signer *signing.Signer) func() Handler {
	return func() Handler {
		var h Handler = &RealtimeHandler{
			ClientIdleTimeout: time.Minute,
			Trees:             store,
			Caster:            raycast.CasterWithLogs(raycast.NewEngine(raycast.Options{})),
			Signer:            signer,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h)
		return h
	}
}

func newTestStore(t *testing.T) (*models.TreeStore, *models.Tree) {
	qt, err := quadtree.Build(2, quadtree.OccupancyFromRows(
		"....",
		"....",
		"..#.",
		"....",
	))
	require.NoError(t, err)

	store := &models.TreeStore{}
	tree, err := store.Publish(qt, models.GeneratorOccupancy, models.BuildParams{Size: 2})
	require.NoError(t, err)
	return store, tree
}

type testClient struct {
	t       *testing.T
	conn    *websocket.Conn
	sender  Sender
	receive func() Msg
}

func newTestClient(t *testing.T, conn *websocket.Conn, encoding string) *testClient {
	receiver := NewReceiver(conn)

	return &testClient{
		t:      t,
		conn:   conn,
		sender: NewSender(conn, encoding),
		receive: func() Msg {
			require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second*5)))

			msg, _, err := receiver()
			require.NoError(t, err)
			return msg
		},
	}
}

func (c *testClient) send(msgType string, requestID uint32, data any) {
	msg, err := NewMsg(msgType, requestID, data)
	require.NoError(c.t, err)

	_, err = c.sender(msg)
	require.NoError(c.t, err)
}

package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/models"
	"github.com/aukilabs/quadcast/raycast"
	"github.com/aukilabs/quadcast/signing"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// CastResponseData is the payload of a cast response. When the server has a
// private key, Signature signs the JSON encoding of Result and
// SignerAddress is the wallet address of the server.
type CastResponseData struct {
	TreeID        string         `json:"tree_id"`
	Result        raycast.Result `json:"result"`
	Signature     string         `json:"signature,omitempty"`
	SignerAddress string         `json:"signer_address,omitempty"`
}

// TreeInfoRequestData is the payload of a tree info request.
type TreeInfoRequestData struct {
	TreeID string `json:"tree_id,omitempty"`
}

// RealtimeHandler serves casts to a single client over a WebSocket
// connection. A connection opened on /trees/{id}/ws is bound to that tree.
type RealtimeHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains the published trees.
	Trees *models.TreeStore

	Caster raycast.Caster

	// Signs cast results when set.
	Signer *signing.Signer

	conn     *websocket.Conn
	clientID string
	treeID   string
	encoding string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	req := conn.Request()

	h.clientID = req.Header.Get(httpcmn.HeaderPosemeshClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.treeID = req.PathValue("id")

	h.encoding = EncodingJSON
	if req.URL.Query().Get("encoding") == EncodingProto {
		h.encoding = EncodingProto
	}

	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	respond.Send(MsgTypePingResponse, msg.RequestID, nil)
	return nil
}

func (h *RealtimeHandler) HandleCast(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req CastRequestData
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	tree, err := h.tree(req.TreeID)
	if err != nil {
		return err
	}

	res, err := h.Caster.Cast(ctx, tree, geom.NewRay(req.Origin, req.Direction))
	if err != nil {
		return err
	}

	data := CastResponseData{
		TreeID: tree.ID,
		Result: res,
	}

	if h.Signer != nil {
		b, err := json.Marshal(res)
		if err != nil {
			return errors.New("encoding cast result failed").
				WithType(ErrTypeMsgEncode).
				Wrap(err)
		}

		if data.Signature, err = h.Signer.Sign(b); err != nil {
			return err
		}
		data.SignerAddress = h.Signer.Address()
	}

	respond.Send(MsgTypeCastResponse, msg.RequestID, data)
	return nil
}

func (h *RealtimeHandler) HandleTreeInfo(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req TreeInfoRequestData
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	tree, err := h.tree(req.TreeID)
	if err != nil {
		return err
	}

	respond.Send(MsgTypeTreeInfoResponse, msg.RequestID, tree.Summary())
	return nil
}

// tree returns the tree named by a request, or the tree the connection is
// bound to.
func (h *RealtimeHandler) tree(id string) (*models.Tree, error) {
	if id == "" {
		id = h.treeID
	}

	if id == "" {
		return nil, errors.New("no tree given and connection not bound to a tree").
			WithType(ErrTypeTreeRequired)
	}
	return h.Trees.Get(id)
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
}

func (h *RealtimeHandler) Receiver() Receiver {
	return NewReceiver(h.conn)
}

func (h *RealtimeHandler) Sender() Sender {
	return NewSender(h.conn, h.encoding)
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadcast/geom"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Message types exchanged with clients.
const (
	MsgTypePingRequest      = "ping"
	MsgTypePingResponse     = "pong"
	MsgTypeCastRequest      = "cast_request"
	MsgTypeCastResponse     = "cast_response"
	MsgTypeTreeInfoRequest  = "tree_info_request"
	MsgTypeTreeInfoResponse = "tree_info_response"
	MsgTypeErrorResponse    = "error_response"
)

const (
	ErrTypeMsgDecode      = "msg_decode_failed"
	ErrTypeMsgEncode      = "msg_encode_failed"
	ErrTypeUnknownMsgType = "unknown_msg_type"
	ErrTypeTreeRequired   = "tree_required"
)

// Encodings a client can pick with the encoding query parameter.
const (
	EncodingJSON  = "json"
	EncodingProto = "proto"
)

// Msg is a message exchanged over a WebSocket connection. Data holds the
// JSON payload specific to the message type.
type Msg struct {
	Type      string          `json:"type"`
	RequestID uint32          `json:"request_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMsg returns a message of the given type carrying data.
func NewMsg(msgType string, requestID uint32, data any) (Msg, error) {
	msg := Msg{
		Type:      msgType,
		RequestID: requestID,
		Timestamp: time.Now(),
	}

	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return Msg{}, errors.New("encoding message data failed").
				WithType(ErrTypeMsgEncode).
				WithTag("msg_type", msgType).
				Wrap(err)
		}
		msg.Data = b
	}
	return msg, nil
}

// DataTo decodes the message payload into v.
func (m Msg) DataTo(v any) error {
	if len(m.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message data failed").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

func (m Msg) TypeString() string {
	return m.Type
}

// CastRequestData is the payload of a cast request. TreeID is only needed
// on connections that are not bound to a tree.
type CastRequestData struct {
	TreeID    string    `json:"tree_id,omitempty"`
	Origin    geom.Vec2 `json:"origin"`
	Direction geom.Vec2 `json:"direction"`
}

// ErrorResponseData is the payload of an error response.
type ErrorResponseData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// encodeMsg encodes a message as a JSON text frame, or as a protobuf
// google.protobuf.Struct binary frame.
func encodeMsg(msg Msg, encoding string) ([]byte, byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, 0, errors.New("encoding message failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	if encoding != EncodingProto {
		return b, websocket.TextFrame, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, 0, errors.New("encoding message failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, 0, errors.New("converting message to protobuf failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}

	b, err = proto.Marshal(s)
	if err != nil {
		return nil, 0, errors.New("encoding protobuf message failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", msg.Type).
			Wrap(err)
	}
	return b, websocket.BinaryFrame, nil
}

// decodeMsg decodes a frame encoded by encodeMsg. The frame type tells the
// encoding apart.
func decodeMsg(data []byte, payloadType byte) (Msg, error) {
	if payloadType == websocket.BinaryFrame {
		var s structpb.Struct
		if err := proto.Unmarshal(data, &s); err != nil {
			return Msg{}, errors.New("decoding protobuf message failed").
				WithType(ErrTypeMsgDecode).
				Wrap(err)
		}

		b, err := json.Marshal(s.AsMap())
		if err != nil {
			return Msg{}, errors.New("decoding protobuf message failed").
				WithType(ErrTypeMsgDecode).
				Wrap(err)
		}
		data = b
	}

	var msg Msg
	if err := json.Unmarshal(data, &msg); err != nil {
		return Msg{}, errors.New("decoding message failed").
			WithType(ErrTypeMsgDecode).
			Wrap(err)
	}
	return msg, nil
}

type frame struct {
	data        []byte
	payloadType byte
}

// frameCodec reads and writes raw frames, keeping their payload type.
var frameCodec = websocket.Codec{
	Marshal: func(v interface{}) ([]byte, byte, error) {
		f := v.(frame)
		return f.data, f.payloadType, nil
	},
	Unmarshal: func(data []byte, payloadType byte, v interface{}) error {
		f := v.(*frame)
		f.data = data
		f.payloadType = payloadType
		return nil
	},
}

// Receiver receives a message and returns the number of bytes read.
type Receiver func() (Msg, int, error)

// Sender sends a message and returns the number of bytes written.
type Sender func(Msg) (int, error)

// ResponseSender queues messages to be sent to the client.
type ResponseSender interface {
	Send(msgType string, requestID uint32, data any)
	SendMsg(Msg)
}

// NewReceiver returns a receiver reading frames of any encoding from conn.
func NewReceiver(conn *websocket.Conn) Receiver {
	return func() (Msg, int, error) {
		var f frame
		if err := frameCodec.Receive(conn, &f); err != nil {
			return Msg{}, 0, err
		}

		msg, err := decodeMsg(f.data, f.payloadType)
		return msg, len(f.data), err
	}
}

// NewSender returns a sender writing frames with the given encoding to conn.
func NewSender(conn *websocket.Conn, encoding string) Sender {
	return func(msg Msg) (int, error) {
		b, payloadType, err := encodeMsg(msg, encoding)
		if err != nil {
			return 0, err
		}

		if err := frameCodec.Send(conn, frame{data: b, payloadType: payloadType}); err != nil {
			return 0, err
		}
		return len(b), nil
	}
}

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	httpcmn "github.com/aukilabs/hagall-common/http"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// TestingEnv is a server running handlers created by a handler factory,
// reachable on /ws and /trees/{id}/ws.
type TestingEnv struct {
	t      *testing.T
	server *httptest.Server
}

// NewTestingEnv creates a testing environment to unit test handlers. The
// returned function closes the environment.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*TestingEnv, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	wsServer := websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	mux.Handle("/trees/{id}/ws", wsServer)

	env := &TestingEnv{
		t:      t,
		server: httptest.NewServer(mux),
	}

	return env, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		env.server.Close()
	}
}

// Dial opens a client connection on the given path and query.
func (e *TestingEnv) Dial(path string) *websocket.Conn {
	config, err := websocket.NewConfig(
		strings.ReplaceAll(e.server.URL, "http://", "ws://")+path,
		"http://localhost",
	)
	if err != nil {
		e.t.Fatalf("error initializing web socket: %s", err)
	}

	config.Header.Set("User-Agent", "ted")
	config.Header.Set("X-Forwarded-for", "192.0.0.0")
	config.Header.Set(httpcmn.HeaderPosemeshClientID, uuid.NewString())

	conn, err := websocket.DialConfig(config)
	if err != nil {
		e.t.Fatalf("error dialing web socket: %s", err)
	}

	e.t.Cleanup(func() { conn.Close() })
	return conn
}

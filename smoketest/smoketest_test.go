package smoketest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/quadtree"
	"github.com/aukilabs/quadcast/raycast"
	"github.com/aukilabs/quadcast/signing"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	for _, s := range Scenarios() {
		t.Run(s.Name, func(t *testing.T) {
			tree, err := s.Build()
			require.NoError(t, err)
			require.NoError(t, quadtree.Validate(tree.Root()))

			res := raycast.CastRay(tree, s.Origin, s.Direction)
			require.True(t, s.Check(res), "unexpected result: %+v", res)
		})
	}
}

func TestSmokeTest(t *testing.T) {
	t.Run("smoke test success", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		results := make(chan Report, 1)
		smokeTest := HandleSmokeTest(ctx, Options{
			Endpoint: "http://localquadcast",
			Caster:   raycast.NewEngine(raycast.Options{}),
			SendResult: func(_ context.Context, report Report) error {
				results <- report
				return nil
			},
		})

		w := httptest.NewRecorder()
		smokeTest(w, httptest.NewRequest(http.MethodPost, "/smoke-test", strings.NewReader(`{"timeout_ms":1000}`)))
		require.Equal(t, http.StatusOK, w.Code)

		var report Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		require.True(t, report.Passed)
		require.Equal(t, "http://localquadcast", report.Endpoint)
		require.Len(t, report.Scenarios, len(Scenarios()))
		require.Empty(t, report.Signature)

		select {
		case sent := <-results:
			require.Equal(t, report.Scenarios, sent.Scenarios)
		case <-ctx.Done():
			t.Fatal("result not sent")
		}
	})

	t.Run("smoke test with empty body", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{
			Caster: raycast.NewEngine(raycast.Options{}),
		})

		w := httptest.NewRecorder()
		smokeTest(w, httptest.NewRequest(http.MethodPost, "/smoke-test", nil))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("smoke test bad request", func(t *testing.T) {
		smokeTest := HandleSmokeTest(context.Background(), Options{
			Caster: raycast.NewEngine(raycast.Options{}),
		})

		w := httptest.NewRecorder()
		smokeTest(w, httptest.NewRequest(http.MethodPost, "/smoke-test", strings.NewReader("{")))
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("smoke test failure", func(t *testing.T) {
		report, err := Run(context.Background(), Options{
			Caster: brokenCaster{},
		})
		require.NoError(t, err)
		require.False(t, report.Passed)

		for _, s := range report.Scenarios {
			require.False(t, s.Passed)
		}
	})
}

func TestRunSigned(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := signing.NewSigner(key)

	report, err := Run(context.Background(), Options{
		Endpoint: "http://localquadcast",
		Caster:   raycast.NewEngine(raycast.Options{}),
		Signer:   signer,
	})
	require.NoError(t, err)
	require.True(t, report.Passed)
	require.Equal(t, signer.Address(), report.SignerAddress)

	b, err := json.Marshal(report)
	require.NoError(t, err)

	var received Report
	require.NoError(t, json.Unmarshal(b, &received))

	signed, err := received.SignedBytes()
	require.NoError(t, err)

	addr, err := signing.Recover(signed, received.Signature)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), addr)
}

func TestNewResultSender(t *testing.T) {
	received := make(chan Report, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var report Report
		require.NoError(t, json.Unmarshal(b, &report))
		received <- report
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	send := NewResultSender(server.URL, nil)
	err := send(context.Background(), Report{Endpoint: "http://localquadcast", Passed: true})
	require.NoError(t, err)

	report := <-received
	require.Equal(t, "http://localquadcast", report.Endpoint)
	require.True(t, report.Passed)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	err = NewResultSender(failing.URL, nil)(context.Background(), Report{})
	require.Error(t, err)
}

type brokenCaster struct{}

func (brokenCaster) Cast(ctx context.Context, index quadtree.SpatialIndex, ray geom.Ray) (raycast.Result, error) {
	return raycast.Result{Kind: raycast.Inconclusive}, nil
}

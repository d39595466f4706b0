package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/models"
	"github.com/aukilabs/quadcast/quadtree"
	"github.com/aukilabs/quadcast/raycast"
	"github.com/golang-jwt/jwt/v4"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestAPIBuildTree(t *testing.T) {
	server, _, _ := newTestAPI(t, &models.TreeStore{}, nil)

	res, body := doRequest(t, http.MethodPost, server.URL+"/trees", `{"size":3,"seed":42}`, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var summary models.TreeSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	require.NotEmpty(t, summary.ID)
	require.Equal(t, models.GeneratorRandom, summary.Generator)
	require.NotNil(t, summary.Params)
	require.Equal(t, 3, summary.Params.Size)
	require.Equal(t, int64(42), summary.Params.Seed)
	require.Equal(t, 0.5, summary.Params.Subdivide)
	require.NotZero(t, summary.Stats.Leaves)

	res, body = doRequest(t, http.MethodGet, server.URL+"/trees/"+summary.ID, "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got models.TreeSummary
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, summary.ID, got.ID)
	require.Equal(t, summary.Stats, got.Stats)
}

func TestAPIBuildTreeDefaults(t *testing.T) {
	server, _, _ := newTestAPI(t, &models.TreeStore{}, nil)

	res, body := doRequest(t, http.MethodPost, server.URL+"/trees", "", nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var summary models.TreeSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	require.Equal(t, models.DefaultBuildParams(4, 1), *summary.Params)
}

func TestAPIBuildTreeErrors(t *testing.T) {
	tests := []struct {
		scenario  string
		store     *models.TreeStore
		body      string
		status    int
		errorType string
	}{
		{
			scenario:  "malformed body",
			store:     &models.TreeStore{},
			body:      `{`,
			status:    http.StatusBadRequest,
			errorType: ErrTypeBadRequest,
		},
		{
			scenario:  "size out of range",
			store:     &models.TreeStore{},
			body:      `{"size":-1}`,
			status:    http.StatusBadRequest,
			errorType: models.ErrTypeInvalidParams,
		},
		{
			scenario:  "probability out of range",
			store:     &models.TreeStore{},
			body:      `{"solid":1.5}`,
			status:    http.StatusBadRequest,
			errorType: models.ErrTypeInvalidParams,
		},
		{
			scenario:  "size above limit",
			store:     &models.TreeStore{},
			body:      `{"size":20,"subdivide":1}`,
			status:    http.StatusBadRequest,
			errorType: models.ErrTypeInvalidParams,
		},
		{
			scenario:  "size above configured limit",
			store:     &models.TreeStore{MaxTreeSize: 3},
			body:      `{"size":4}`,
			status:    http.StatusBadRequest,
			errorType: models.ErrTypeInvalidParams,
		},
		{
			scenario:  "store full",
			store:     &models.TreeStore{MaxTrees: 1},
			status:    http.StatusConflict,
			errorType: models.ErrTypeStoreFull,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			server, _, _ := newTestAPI(t, test.store, nil)

			res, body := doRequest(t, http.MethodPost, server.URL+"/trees", test.body, nil)
			require.Equal(t, test.status, res.StatusCode)

			var errRes ErrorResponse
			require.NoError(t, json.Unmarshal(body, &errRes))
			require.Equal(t, test.errorType, errRes.Type)
			require.NotEmpty(t, errRes.Error)
		})
	}
}

func TestAPIBodyTooLarge(t *testing.T) {
	store := &models.TreeStore{}
	mux := http.NewServeMux()
	api := &API{
		Trees:         store,
		Caster:        raycast.NewEngine(raycast.Options{}),
		DefaultParams: models.DefaultBuildParams(4, 1),
		MaxBodySize:   8,
	}
	api.Register(mux, nil)

	server := httptest.NewServer(mux)
	defer server.Close()

	res, _ := doRequest(t, http.MethodPost, server.URL+"/trees", `{"size":3,"seed":42}`, nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Zero(t, store.Len())
}

func TestAPIListAndDeleteTrees(t *testing.T) {
	server, store, tree := newTestAPI(t, &models.TreeStore{}, nil)

	_, err := store.Build(context.Background(), models.DefaultBuildParams(2, 7))
	require.NoError(t, err)

	res, body := doRequest(t, http.MethodGet, server.URL+"/trees", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var summaries []models.TreeSummary
	require.NoError(t, json.Unmarshal(body, &summaries))
	require.Len(t, summaries, 2)
	require.Equal(t, tree.ID, summaries[0].ID)
	require.Equal(t, models.GeneratorOccupancy, summaries[0].Generator)
	require.Nil(t, summaries[0].Params)
	require.Equal(t, models.GeneratorRandom, summaries[1].Generator)

	res, _ = doRequest(t, http.MethodDelete, server.URL+"/trees/"+tree.ID, "", nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, _ = doRequest(t, http.MethodGet, server.URL+"/trees/"+tree.ID, "", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = doRequest(t, http.MethodDelete, server.URL+"/trees/"+tree.ID, "", nil)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.Equal(t, 1, store.Len())
}

func TestAPIListLeaves(t *testing.T) {
	server, _, tree := newTestAPI(t, &models.TreeStore{}, nil)

	res, body := doRequest(t, http.MethodGet, server.URL+"/trees/"+tree.ID+"/leaves?solid=true", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var leaves []models.Leaf
	require.NoError(t, json.Unmarshal(body, &leaves))
	require.Equal(t, []models.Leaf{{X: 2, Y: 1, Side: 1, Solid: true}}, leaves)

	res, body = doRequest(t, http.MethodGet, server.URL+"/trees/"+tree.ID+"/leaves", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal(body, &leaves))
	require.Len(t, leaves, tree.Stats().Leaves)

	res, _ = doRequest(t, http.MethodGet, server.URL+"/trees/"+tree.ID+"/leaves?solid=maybe", "", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestAPICast(t *testing.T) {
	server, _, tree := newTestAPI(t, &models.TreeStore{}, nil)

	tests := []struct {
		scenario  string
		origin    geom.Vec2
		direction geom.Vec2
		kind      raycast.Kind
	}{
		{
			scenario:  "hit",
			origin:    geom.NewVec2(1.5, 1.5),
			direction: geom.NewVec2(1, 0),
			kind:      raycast.Collision,
		},
		{
			scenario:  "miss",
			origin:    geom.NewVec2(-1, 10),
			direction: geom.NewVec2(1, 0),
			kind:      raycast.NoCollision,
		},
		{
			scenario:  "degenerate direction",
			origin:    geom.NewVec2(1, 1),
			direction: geom.NewVec2(0, 0),
			kind:      raycast.NoCollision,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			b, err := json.Marshal(CastRequest{
				Origin:    test.origin,
				Direction: test.direction,
			})
			require.NoError(t, err)

			res, body := doRequest(t, http.MethodPost, server.URL+"/trees/"+tree.ID+"/cast", string(b), nil)
			require.Equal(t, http.StatusOK, res.StatusCode)

			var result raycast.Result
			require.NoError(t, json.Unmarshal(body, &result))
			require.Equal(t, test.kind, result.Kind)
			require.Equal(t, raycast.CastRay(tree, test.origin, test.direction), result)
		})
	}

	t.Run("unknown tree", func(t *testing.T) {
		res, _ := doRequest(t, http.MethodPost, server.URL+"/trees/unknown/cast", `{}`, nil)
		require.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}

func TestAPIWithAuth(t *testing.T) {
	verifier := TokenVerifier{
		Secret: []byte("secret"),
		Issuer: "quadcast-test",
	}

	server, _, tree := newTestAPI(t, &models.TreeStore{}, func(h http.Handler) http.Handler {
		return VerifyAuthTokenHandler(verifier, h)
	})

	validToken, err := verifier.Sign(jwt.RegisteredClaims{
		Issuer:    "quadcast-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	expiredToken, err := verifier.Sign(jwt.RegisteredClaims{
		Issuer:    "quadcast-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	require.NoError(t, err)

	otherIssuerToken, err := verifier.Sign(jwt.RegisteredClaims{
		Issuer: "someone-else",
	})
	require.NoError(t, err)

	otherSecretToken, err := TokenVerifier{Secret: []byte("other")}.Sign(jwt.RegisteredClaims{
		Issuer: "quadcast-test",
	})
	require.NoError(t, err)

	url := server.URL + "/trees/" + tree.ID

	tests := []struct {
		scenario string
		url      string
		headers  map[string]string
		status   int
	}{
		{
			scenario: "no token",
			url:      url,
			status:   http.StatusUnauthorized,
		},
		{
			scenario: "bearer token",
			url:      url,
			headers:  map[string]string{"Authorization": "Bearer " + validToken},
			status:   http.StatusOK,
		},
		{
			scenario: "query token",
			url:      url + "?token=" + validToken,
			status:   http.StatusOK,
		},
		{
			scenario: "basic auth",
			url:      url,
			headers:  map[string]string{"Authorization": "Basic " + validToken},
			status:   http.StatusUnauthorized,
		},
		{
			scenario: "expired token",
			url:      url,
			headers:  map[string]string{"Authorization": "Bearer " + expiredToken},
			status:   http.StatusUnauthorized,
		},
		{
			scenario: "other issuer",
			url:      url,
			headers:  map[string]string{"Authorization": "Bearer " + otherIssuerToken},
			status:   http.StatusUnauthorized,
		},
		{
			scenario: "other secret",
			url:      url,
			headers:  map[string]string{"Authorization": "Bearer " + otherSecretToken},
			status:   http.StatusUnauthorized,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			res, _ := doRequest(t, http.MethodGet, test.url, "", test.headers)
			require.Equal(t, test.status, res.StatusCode)
		})
	}
}

func TestTokenVerifierDisabled(t *testing.T) {
	claims, err := TokenVerifier{}.Verify("")
	require.NoError(t, err)
	require.NotNil(t, claims)
}

func newTestAPI(t *testing.T, store *models.TreeStore, wrap func(http.Handler) http.Handler) (*httptest.Server, *models.TreeStore, *models.Tree) {
	qt, err := quadtree.Build(2, quadtree.OccupancyFromRows(
		"....",
		"....",
		"..#.",
		"....",
	))
	require.NoError(t, err)

	tree, err := store.Publish(qt, models.GeneratorOccupancy, models.BuildParams{Size: 2})
	require.NoError(t, err)

	api := &API{
		Trees:         store,
		Caster:        raycast.NewEngine(raycast.Options{}),
		DefaultParams: models.DefaultBuildParams(4, 1),
	}

	mux := http.NewServeMux()
	api.Register(mux, wrap)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, store, tree
}

func doRequest(t *testing.T, method, url, body string, headers map[string]string) (*http.Response, []byte) {
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, b
}

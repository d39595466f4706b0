package http

import (
	"io"
	"net/http"
	"strconv"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcast/geom"
	"github.com/aukilabs/quadcast/models"
	"github.com/aukilabs/quadcast/raycast"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeBadRequest = "bad_request"

	defaultMaxBodySize = 1 << 20
)

// API serves the tree and cast endpoints.
type API struct {
	Trees  *models.TreeStore
	Caster raycast.Caster

	// The parameters used for the fields a build request leaves out.
	DefaultParams models.BuildParams

	// The maximum size of a request body. Defaults to 1MB.
	MaxBodySize int64
}

// CastRequest is the body of a cast request.
type CastRequest struct {
	Origin    geom.Vec2 `json:"origin"`
	Direction geom.Vec2 `json:"direction"`
}

// ErrorResponse is the body of failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

// Register adds the API routes to mux. Every route is wrapped with wrap
// when it is not nil.
func (a *API) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(h http.Handler) http.Handler { return h }
	}

	mux.Handle("POST /trees", wrap(http.HandlerFunc(a.HandleBuildTree)))
	mux.Handle("GET /trees", wrap(http.HandlerFunc(a.HandleListTrees)))
	mux.Handle("GET /trees/{id}", wrap(http.HandlerFunc(a.HandleGetTree)))
	mux.Handle("DELETE /trees/{id}", wrap(http.HandlerFunc(a.HandleDeleteTree)))
	mux.Handle("GET /trees/{id}/leaves", wrap(http.HandlerFunc(a.HandleListLeaves)))
	mux.Handle("POST /trees/{id}/cast", wrap(http.HandlerFunc(a.HandleCast)))
}

func (a *API) HandleBuildTree(w http.ResponseWriter, r *http.Request) {
	params := a.DefaultParams
	if err := a.decodeBody(r, &params); err != nil {
		writeError(w, err)
		return
	}

	tree, err := a.Trees.Build(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	logs.WithTag("tree_id", tree.ID).
		WithTag("size", params.Size).
		WithTag("seed", params.Seed).
		WithTag("leaves", tree.Stats().Leaves).
		Info("tree built")

	writeJSON(w, http.StatusCreated, tree.Summary())
}

func (a *API) HandleListTrees(w http.ResponseWriter, r *http.Request) {
	trees := a.Trees.List()

	summaries := make([]models.TreeSummary, 0, len(trees))
	for _, t := range trees {
		summaries = append(summaries, t.Summary())
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (a *API) HandleGetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := a.Trees.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree.Summary())
}

func (a *API) HandleDeleteTree(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.Trees.Remove(id); err != nil {
		writeError(w, err)
		return
	}

	logs.WithTag("tree_id", id).Info("tree removed")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleListLeaves(w http.ResponseWriter, r *http.Request) {
	tree, err := a.Trees.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var solidOnly bool
	if v := r.URL.Query().Get("solid"); v != "" {
		if solidOnly, err = strconv.ParseBool(v); err != nil {
			writeError(w, errors.New("invalid solid query parameter").
				WithType(ErrTypeBadRequest).
				WithTag("solid", v))
			return
		}
	}

	leaves := tree.Leaves(solidOnly)
	if leaves == nil {
		leaves = []models.Leaf{}
	}
	writeJSON(w, http.StatusOK, leaves)
}

func (a *API) HandleCast(w http.ResponseWriter, r *http.Request) {
	tree, err := a.Trees.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req CastRequest
	if err := a.decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := a.Caster.Cast(r.Context(), tree, geom.NewRay(req.Origin, req.Direction))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) decodeBody(r *http.Request, v any) error {
	maxBodySize := a.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	b, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errors.New("reading body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}

	if int64(len(b)) > maxBodySize {
		return errors.New("body too large").
			WithType(ErrTypeBadRequest).
			WithTag("max_body_size", maxBodySize)
	}

	if len(b) == 0 {
		return nil
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.New("decoding body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}

// StatusCode returns the HTTP status matching the type of err.
func StatusCode(err error) int {
	switch errors.Type(err) {
	case models.ErrTypeTreeNotFound:
		return http.StatusNotFound

	case ErrTypeBadRequest,
		models.ErrTypeInvalidParams,
		raycast.ErrTypeInvalidRay:
		return http.StatusBadRequest

	case ErrTypeUnauthorized:
		return http.StatusUnauthorized

	case models.ErrTypeStoreFull:
		return http.StatusConflict

	case raycast.ErrTypeCanceled:
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		logs.WithTag("status", status).Error(err)
	}

	writeJSON(w, status, ErrorResponse{
		Error: err.Error(),
		Type:  errors.Type(err),
	})
}

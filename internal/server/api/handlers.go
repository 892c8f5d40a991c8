// Package api exposes the object service over HTTP. It is a thin JSON
// translation layer; all semantics live in the objects and store packages.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/CanoaPBC/speckle-server/internal/core"
	"github.com/CanoaPBC/speckle-server/internal/objects"
)

// Server holds the HTTP server dependencies
type Server struct {
	svc *objects.Service
}

// New creates a new API server
func New(svc *objects.Service) *Server {
	return &Server{svc: svc}
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Post("/objects", s.CreateObjects)
		r.Get("/objects", s.GetObjects)
		r.Get("/objects/{id}", s.GetObject)
		r.Get("/objects/{id}/children", s.GetChildren)
		r.Post("/objects/{id}/query", s.QueryChildren)
		r.Post("/streams/{streamID}/commits", s.CreateCommit)
		r.Get("/streams/{streamID}/commits", s.ListCommits)
	})
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateObjectsRequest is the request body for creating objects
type CreateObjectsRequest struct {
	Objects []core.Document `json:"objects"`
}

// CreateObjectsResponse is the response for creating objects
type CreateObjectsResponse struct {
	IDs []string `json:"ids"`
}

// CreateObjects handles POST /api/objects
func (s *Server) CreateObjects(w http.ResponseWriter, r *http.Request) {
	var req CreateObjectsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ids, err := s.svc.CreateObjects(r.Context(), req.Objects)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateObjectsResponse{IDs: ids})
}

// GetObject handles GET /api/objects/{id}
func (s *Server) GetObject(w http.ResponseWriter, r *http.Request) {
	obj, err := s.svc.GetObject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

// GetObjects handles GET /api/objects?ids=a,b,c
func (s *Server) GetObjects(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("ids")
	if idsParam == "" {
		http.Error(w, "missing ids parameter", http.StatusBadRequest)
		return
	}

	objs, err := s.svc.GetObjects(r.Context(), strings.Split(idsParam, ","))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": emptyIfNil(objs)})
}

// ChildrenResponse is the response for the simple children query
type ChildrenResponse struct {
	Objects []*core.Object `json:"objects"`
	Cursor  string         `json:"cursor,omitempty"`
}

// GetChildren handles GET /api/objects/{id}/children
func (s *Server) GetChildren(w http.ResponseWriter, r *http.Request) {
	q := core.ChildrenQuery{
		ObjectID: chi.URLParam(r, "id"),
		Depth:    intParam(r, "depth"),
		Limit:    intParam(r, "limit"),
		Cursor:   r.URL.Query().Get("cursor"),
	}
	if fields := r.URL.Query().Get("fields"); fields != "" {
		q.Fields = strings.Split(fields, ",")
	}

	page, err := s.svc.GetObjectChildren(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChildrenResponse{
		Objects: emptyIfNil(page.Objects),
		Cursor:  page.Cursor,
	})
}

// QueryChildrenRequest is the request body for the filtered children query
type QueryChildrenRequest struct {
	Depth   int           `json:"depth,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Fields  []string      `json:"fields,omitempty"`
	Filters []core.Filter `json:"filters,omitempty"`
	OrderBy *core.OrderBy `json:"orderBy,omitempty"`
	Cursor  string        `json:"cursor,omitempty"`
}

// QueryChildrenResponse is the response for the filtered children query
type QueryChildrenResponse struct {
	TotalCount int            `json:"totalCount"`
	Objects    []*core.Object `json:"objects"`
	Cursor     *string        `json:"cursor"`
}

// QueryChildren handles POST /api/objects/{id}/query
func (s *Server) QueryChildren(w http.ResponseWriter, r *http.Request) {
	var req QueryChildrenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.svc.GetObjectChildrenQuery(r.Context(), core.ChildrenFilterQuery{
		ObjectID: chi.URLParam(r, "id"),
		Depth:    req.Depth,
		Limit:    req.Limit,
		Fields:   req.Fields,
		Filters:  req.Filters,
		OrderBy:  req.OrderBy,
		Cursor:   req.Cursor,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := QueryChildrenResponse{
		TotalCount: result.TotalCount,
		Objects:    emptyIfNil(result.Objects),
	}
	if result.Cursor != "" {
		resp.Cursor = &result.Cursor
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCommitRequest is the request body for creating a commit
type CreateCommitRequest struct {
	UserID string        `json:"userId"`
	Object core.Document `json:"object"`
}

// CreateCommit handles POST /api/streams/{streamID}/commits
func (s *Server) CreateCommit(w http.ResponseWriter, r *http.Request) {
	var req CreateCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := s.svc.CreateCommit(r.Context(), chi.URLParam(r, "streamID"), req.UserID, req.Object)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// ListCommits handles GET /api/streams/{streamID}/commits
func (s *Server) ListCommits(w http.ResponseWriter, r *http.Request) {
	objs, err := s.svc.GetCommitsByStreamID(r.Context(), chi.URLParam(r, "streamID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": emptyIfNil(objs)})
}

func intParam(r *http.Request, name string) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidOperator),
		errors.Is(err, core.ErrInvalidCursor),
		errors.Is(err, core.ErrEmptyField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrNotImplemented):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func emptyIfNil(objs []*core.Object) []*core.Object {
	if objs == nil {
		return []*core.Object{}
	}
	return objs
}

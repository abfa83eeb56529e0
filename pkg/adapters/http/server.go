package http

//go:generate go tool oapi-codegen -package http -generate types,chi-server,spec -o api.gen.go ../../../api/openapi.yaml

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// Server exposes a ports.VersionedStore over the state store protocol.
type Server struct {
	Store  ports.VersionedStore
	Token  string
	logger *slog.Logger
}

var _ ServerInterface = (*Server)(nil)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithToken requires every request to carry the token in X-State-Token.
func WithToken(token string) ServerOption {
	return func(s *Server) {
		s.Token = token
	}
}

// WithServerLogger sets the logger used for failed requests.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for store, including GET /openapi.yaml.
func NewHandler(store ports.VersionedStore, opts ...ServerOption) http.Handler {
	server := &Server{
		Store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		spec, err := rawSpec()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load spec")
			return
		}
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(spec)
	})

	return HandlerWithOptions(server, ChiServerOptions{
		BaseRouter:  r,
		Middlewares: []MiddlewareFunc{server.requireToken},
		ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, http.StatusBadRequest, err.Error())
		},
	})
}

// requireToken enforces the stateToken security scheme on the operations
// that declare it.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, secured := r.Context().Value(StateTokenScopes).([]string); secured &&
			s.Token != "" && r.Header.Get(HeaderStateToken) != s.Token {
			writeError(w, http.StatusUnauthorized, "invalid state token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetEntry handles GET /?scope=&organization_id=&project_id=&environment_id=&key=.
func (s *Server) GetEntry(w http.ResponseWriter, r *http.Request, params GetEntryParams) {
	var ns domain.Namespace
	if err := ns.Scope.UnmarshalText([]byte(params.Scope)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ns.OrganizationID = params.OrganizationId
	if params.ProjectId != nil {
		ns.ProjectID = *params.ProjectId
	}
	if params.EnvironmentId != nil {
		ns.EnvironmentID = *params.EnvironmentId
	}

	if !s.validate(w, ns, params.Key) {
		return
	}

	entry, err := s.Store.Get(r.Context(), ns, params.Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read entry")
		s.logger.Error("GetEntry failed", "error", err, "scope", ns.String(), "key", params.Key)
		return
	}
	if !entry.Exists() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	writeJSON(w, http.StatusOK, EntryResponse{Key: entry.Key, Value: entry.Value, Version: entry.Version})
}

// PutEntry handles the conditional PUT.
func (s *Server) PutEntry(w http.ResponseWriter, r *http.Request) {
	var body PutEntryJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("PutEntry: Invalid request body", "error", err)
		return
	}
	if !s.validate(w, body.Scope, body.Key) {
		return
	}

	version, err := s.Store.CompareAndSwap(r.Context(), body.Scope, body.Key, body.Value, body.Version)
	if errors.Is(err, domain.ErrVersionConflict) {
		writeError(w, http.StatusConflict, "version conflict")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write entry")
		s.logger.Error("PutEntry failed", "error", err, "scope", body.Scope.String(), "key", body.Key)
		return
	}

	writeJSON(w, http.StatusOK, WriteResponse{Version: version})
}

// DeleteEntry handles DELETE.
func (s *Server) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	var body DeleteEntryJSONRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("DeleteEntry: Invalid request body", "error", err)
		return
	}
	if !s.validate(w, body.Scope, body.Key) {
		return
	}

	if err := s.Store.Delete(r.Context(), body.Scope, body.Key); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete entry")
		s.logger.Error("DeleteEntry failed", "error", err, "scope", body.Scope.String(), "key", body.Key)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) validate(w http.ResponseWriter, ns domain.Namespace, key string) bool {
	if err := ns.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

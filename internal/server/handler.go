package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/k11v/telebuild/internal/access"
	"github.com/k11v/telebuild/internal/auth"
	"github.com/k11v/telebuild/internal/build"
	"github.com/k11v/telebuild/internal/project"
)

const (
	headerAuthorization = "Authorization"
	headerXChatID       = "X-Chat-ID"
)

// Service is implemented by *build.Service.
type Service interface {
	CreateBuild(ctx context.Context, params *build.CreateBuildParams) (*build.Build, error)
	GetBuild(ctx context.Context, params *build.GetBuildParams) (*build.GetBuildResult, error)
	ListBuilds(ctx context.Context, params *build.ListBuildsParams) ([]*build.Build, error)
	CancelBuild(ctx context.Context, params *build.CancelBuildParams) (*build.Build, error)
}

// Projects is implemented by *project.Lister.
type Projects interface {
	List() ([]*project.Project, error)
}

// Checker is implemented by *access.Checker.
type Checker interface {
	Check(userID, chatID int64) error
}

// Verifier is implemented by *auth.Verifier.
type Verifier interface {
	Verify(token string) (*auth.Token, error)
}

type handler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	service  Service
	projects Projects
	checker  Checker
	verifier Verifier
}

func newHandler(log *slog.Logger, service Service, projects Projects, checker Checker, verifier Verifier, metrics http.Handler) *handler {
	mux := http.NewServeMux()
	h := &handler{mux: mux, log: log, service: service, projects: projects, checker: checker, verifier: verifier}

	mux.HandleFunc("GET /health", h.GetHealth)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	mux.HandleFunc("GET /projects", h.ListProjects)

	mux.HandleFunc("POST /builds", h.CreateBuild)
	mux.HandleFunc("GET /builds/{id}", h.GetBuild)
	mux.HandleFunc("GET /builds", h.ListBuilds)
	mux.HandleFunc("POST /builds/{id}/cancel", h.CancelBuild)

	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}

	h.writeJSON(w, http.StatusOK, response{Status: "ok"})
}

func (h *handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Projects []string   `json:"projects"`
		Rows     [][]string `json:"rows"`
	}

	if _, _, ok := h.authorize(w, r); !ok {
		return
	}

	columns := 3
	if v := r.URL.Query().Get("columns"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, fmt.Sprintf("invalid columns query parameter %q", v), http.StatusUnprocessableEntity)
			return
		}
		columns = n
	}

	projects, err := h.projects.List()
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := response{Projects: make([]string, 0, len(projects)), Rows: make([][]string, 0)}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, p.Name)
	}
	for _, row := range project.Rows(projects, columns) {
		names := make([]string, 0, len(row))
		for _, p := range row {
			names = append(names, p.Name)
		}
		resp.Rows = append(resp.Rows, names)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) CreateBuild(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Project  *string `json:"project"`
		Platform *string `json:"platform"`
	}

	userID, chatID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, fmt.Errorf("invalid request body: %w", err).Error(), http.StatusUnprocessableEntity)
		return
	}
	if dec.More() {
		http.Error(w, "invalid request body: multiple top-level values", http.StatusUnprocessableEntity)
		return
	}

	if req.Project == nil || *req.Project == "" {
		http.Error(w, "invalid request body: missing project", http.StatusUnprocessableEntity)
		return
	}
	if req.Platform == nil {
		http.Error(w, "invalid request body: missing platform", http.StatusUnprocessableEntity)
		return
	}
	platform, known := build.ParsePlatform(*req.Platform)
	if !known {
		http.Error(w, fmt.Sprintf("invalid request body: unknown platform %q", *req.Platform), http.StatusUnprocessableEntity)
		return
	}

	b, err := h.service.CreateBuild(r.Context(), &build.CreateBuildParams{
		UserID:   userID,
		ChatID:   chatID,
		Project:  *req.Project,
		Platform: platform,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newBuildResponse(b))
}

func (h *handler) GetBuild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathValueID(w, r)
	if !ok {
		return
	}
	userID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetBuild(r.Context(), &build.GetBuildParams{ID: id, UserID: userID})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := newBuildResponse(result.Build)
	if result.LogURL != "" {
		resp.LogURL = &result.LogURL
	}
	if result.ArtifactURL != "" {
		resp.ArtifactURL = &result.ArtifactURL
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Builds []buildResponse `json:"builds"`
	}

	userID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}

	params := &build.ListBuildsParams{UserID: userID}
	for name, dst := range map[string]*int{"limit": &params.Limit, "offset": &params.Offset} {
		v := r.URL.Query().Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("invalid %s query parameter %q", name, v), http.StatusUnprocessableEntity)
			return
		}
		*dst = n
	}

	builds, err := h.service.ListBuilds(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := response{Builds: make([]buildResponse, 0, len(builds))}
	for _, b := range builds {
		resp.Builds = append(resp.Builds, newBuildResponse(b))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) CancelBuild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathValueID(w, r)
	if !ok {
		return
	}
	userID, _, ok := h.authorize(w, r)
	if !ok {
		return
	}

	b, err := h.service.CancelBuild(r.Context(), &build.CancelBuildParams{ID: id, UserID: userID})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, newBuildResponse(b))
}

type buildResponse struct {
	ID          uuid.UUID  `json:"id"`
	Project     string     `json:"project"`
	Platform    string     `json:"platform"`
	Status      string     `json:"status"`
	Done        bool       `json:"done"`
	SessionID   *uuid.UUID `json:"session_id,omitempty"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	Error       *string    `json:"error,omitempty"`
	LogURL      *string    `json:"log_url,omitempty"`
	ArtifactURL *string    `json:"artifact_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func newBuildResponse(b *build.Build) buildResponse {
	resp := buildResponse{
		ID:        b.ID,
		Project:   b.Project,
		Platform:  string(b.Platform),
		Status:    string(b.Status),
		Done:      b.Status.Done(),
		CreatedAt: b.CreatedAt,
	}
	if b.SessionID != uuid.Nil {
		sessionID := b.SessionID
		resp.SessionID = &sessionID
	}
	if b.Status.Done() && b.Status != build.StatusCanceled {
		exitCode := b.ExitCode
		resp.ExitCode = &exitCode
	}
	if b.Error != "" {
		e := b.Error
		resp.Error = &e
	}
	return resp
}

// authorize identifies the caller and checks their access.
// It writes an error response and returns false if the caller can't proceed.
func (h *handler) authorize(w http.ResponseWriter, r *http.Request) (userID, chatID int64, ok bool) {
	if err := checkHeaderCountIsOne(r.Header, headerAuthorization); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return 0, 0, false
	}
	tokenString, err := tokenFromAuthorizationHeader(r.Header.Get(headerAuthorization))
	if err != nil {
		http.Error(w, fmt.Errorf("invalid %s request header: %w", headerAuthorization, err).Error(), http.StatusUnauthorized)
		return 0, 0, false
	}
	token, err := h.verifier.Verify(tokenString)
	if err != nil {
		h.log.Info("rejected token", "error", err)
		http.Error(w, fmt.Sprintf("invalid %s request header: invalid token", headerAuthorization), http.StatusUnauthorized)
		return 0, 0, false
	}
	userID = token.UserID

	if values := r.Header.Values(headerXChatID); len(values) > 1 {
		http.Error(w, fmt.Sprintf("multiple %s request headers", headerXChatID), http.StatusUnprocessableEntity)
		return 0, 0, false
	} else if len(values) == 1 {
		chatID, err = strconv.ParseInt(values[0], 10, 64)
		if err != nil {
			http.Error(w, fmt.Errorf("invalid %s request header: %w", headerXChatID, err).Error(), http.StatusUnprocessableEntity)
			return 0, 0, false
		}
	}

	if err = h.checker.Check(userID, chatID); err != nil {
		h.log.Info("ignored request", "user_id", userID, "chat_id", chatID)
		http.Error(w, err.Error(), http.StatusForbidden)
		return 0, 0, false
	}

	return userID, chatID, true
}

func pathValueID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	const pathValueID = "id"
	id, err := uuid.Parse(r.PathValue(pathValueID))
	if err != nil {
		http.Error(w, fmt.Errorf("invalid %q request path value: %w", pathValueID, err).Error(), http.StatusUnprocessableEntity)
		return uuid.UUID{}, false
	}
	return id, true
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("didn't write response", "error", err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, build.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, build.ErrConfiguration):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, build.ErrAlreadyDone):
		http.Error(w, "build is already done", http.StatusConflict)
	case errors.Is(err, access.ErrDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		h.log.Error("didn't handle request", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func checkHeaderCountIsOne(header http.Header, key string) error {
	if got, want := len(header.Values(key)), 1; got != want {
		if got == 0 {
			return fmt.Errorf("missing %s request header", key)
		}
		return fmt.Errorf("multiple %s request headers", key)
	}
	return nil
}

// tokenFromAuthorizationHeader returns the token of a "Bearer <token>" header.
// It doesn't check for missing header or multiple headers.
func tokenFromAuthorizationHeader(h string) (string, error) {
	scheme, params, _ := strings.Cut(h, " ")

	if scheme == "" {
		return "", errors.New("no scheme")
	}

	if got, want := scheme, "Bearer"; !strings.EqualFold(got, want) {
		return "", fmt.Errorf("got unsupported scheme %q, want %q", got, want)
	}

	if params == "" {
		return "", errors.New("no token")
	}

	return params, nil
}

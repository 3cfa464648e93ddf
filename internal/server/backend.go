package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/repositories"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
)

// APIPrefix is where the backend mounts its routes.
const APIPrefix = "/api/v1"

const (
	defaultListLimit    = 9999
	defaultCatalogLimit = 10000
	maxBodyBytes        = 1 << 20
)

// Backend is the development tracking backend: the REST surface of the production service served from SQLite.
type Backend struct {
	backups *repositories.BackupRepository
	users   *repositories.UserRepository
	catalog *repositories.CatalogRepository
	tokens  *TokenStore
	logger  *log.Logger
	router  *BasicRouter
}

// NewBackend wires the backend over a migrated database.
func NewBackend(db *sql.DB, logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	b := &Backend{
		backups: repositories.NewBackupRepository(db),
		users:   repositories.NewUserRepository(db),
		catalog: repositories.NewCatalogRepository(db),
		tokens:  NewTokenStore(),
		logger:  logger,
		router:  NewBasicRouter(APIPrefix),
	}

	b.router.Use(RequestID(), Logging(logger), Recover(logger), BearerAuth(b.tokens))
	b.router.Handler(&backupHandler{b})
	b.router.Handler(&authHandler{b})
	b.router.Handler(&catalogHandler{b})
	return b
}

// Users exposes the user repository for seeding.
func (b *Backend) Users() *repositories.UserRepository { return b.users }

// Catalog exposes the catalog repository for seeding.
func (b *Backend) Catalog() *repositories.CatalogRepository { return b.catalog }

// ServeHTTP implements [http.Handler].
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (b *Backend) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           b,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		b.logger.Info("starting development backend", "addr", addr, "prefix", APIPrefix)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		b.logger.Warn("error shutting down server", "error", err)
		return err
	}
	b.logger.Info("development backend stopped")
	return nil
}

// errorBody is the error envelope, matching what the client's error decoding expects.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrConflictLost):
		return http.StatusConflict
	case errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (b *Backend) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		b.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", RequestIDFrom(r.Context()))
		detail = "internal error"
	}
	writeError(w, status, detail)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, shared.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: malformed body: %w", shared.ErrValidation, err)
	}
	return nil
}

func limitParam(r *http.Request, fallback int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", shared.ErrValidation)
	}
	return n, nil
}

func recordParam(r *http.Request) (models.RecordID, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: backup record %q", shared.ErrNotFound, r.PathValue("id"))
	}
	return models.RecordID(id), nil
}

// actorParam reads the acting user from the user_id query parameter.
//
// When the request carries a bearer token, the parameter must name the token's user.
func (b *Backend) actorParam(r *http.Request) (models.UserID, error) {
	raw := r.URL.Query().Get("user_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: user_id query parameter is required", shared.ErrValidation)
	}
	actor := models.UserID(id)

	if owner, ok := tokenUser(r.Context()); ok && owner != actor {
		return 0, fmt.Errorf("%w: token does not belong to user %d", shared.ErrAuthFailed, actor)
	}
	if _, err := b.users.Get(actor); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return 0, fmt.Errorf("%w: unknown user %d", shared.ErrValidation, actor)
		}
		return 0, err
	}
	return actor, nil
}

type backupHandler struct{ *Backend }

func (h *backupHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/backup-status", Handler: h.list},
		{Method: http.MethodPost, Path: "/backup-status", Handler: h.create},
		{Method: http.MethodGet, Path: "/backup-status/{id}", Handler: h.get},
		{Method: http.MethodPut, Path: "/backup-status/{id}", Handler: h.update},
		{Method: http.MethodPatch, Path: "/backup-status/{id}", Handler: h.patch},
		{Method: http.MethodDelete, Path: "/backup-status/{id}", Handler: h.delete},
	}
}

func (h *backupHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultListLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	records, err := h.backups.List(limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]services.BackupStatusItem, len(records))
	for i, rec := range records {
		items[i] = services.ItemFromRecord(rec)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *backupHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := recordParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.backups.Get(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ItemFromRecord(rec))
}

func (h *backupHandler) create(w http.ResponseWriter, r *http.Request) {
	actor, err := h.actorParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req services.BackupCreateRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	draft, err := req.Draft()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := draft.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.backups.Create(draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("created backup record", "record", rec.ID, "actor", actor)
	writeJSON(w, http.StatusCreated, services.ItemFromRecord(rec))
}

func (h *backupHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := recordParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	actor, err := h.actorParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req services.BackupUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	draft, err := req.Draft()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := draft.Validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	rec, err := h.backups.Update(id, draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("updated backup record", "record", id, "actor", actor)
	writeJSON(w, http.StatusOK, services.ItemFromRecord(rec))
}

// patch applies a partial stage update. The verifier stamped on completed stages is the acting user.
func (h *backupHandler) patch(w http.ResponseWriter, r *http.Request) {
	id, err := recordParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	actor, err := h.actorParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req services.CompletionRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Actor != 0 && req.Actor != actor {
		h.fail(w, r, fmt.Errorf("%w: checker %d does not match user_id %d", shared.ErrValidation, req.Actor, actor))
		return
	}

	rec, err := h.backups.ApplyCompletion(id, req.Changes, actor, req.ExpectedVersion)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("applied stage changes", "record", id, "actor", actor, "stages", len(req.Changes), "version", rec.Version)
	writeJSON(w, http.StatusOK, services.ItemFromRecord(rec))
}

func (h *backupHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := recordParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	actor, err := h.actorParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.backups.Delete(id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("deleted backup record", "record", id, "actor", actor)
	w.WriteHeader(http.StatusNoContent)
}

type authHandler struct{ *Backend }

func (h *authHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Path: "/auth/login", Handler: h.login},
		{Method: http.MethodGet, Path: "/auth/users", Handler: h.listUsers},
	}
}

func (h *authHandler) login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.users.Authenticate(req.Nickname, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("login", "user", user.ID)
	writeJSON(w, http.StatusOK, services.LoginResponse{
		AccessToken: h.tokens.Issue(user.ID),
		TokenType:   "bearer",
		User:        services.ItemFromUser(user),
	})
}

func (h *authHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	items := make([]services.UserItem, len(users))
	for i, u := range users {
		items[i] = services.ItemFromUser(u)
	}
	writeJSON(w, http.StatusOK, items)
}

type catalogHandler struct{ *Backend }

func (h *catalogHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodGet, Path: "/storage-catalogs", Handler: h.list},
	}
}

func (h *catalogHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultCatalogLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, total, err := h.catalog.List(limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := services.CatalogResponse{Items: make([]services.CatalogItem, len(items)), Total: total}
	for i, it := range items {
		out.Items[i] = services.ItemFromActivity(it)
	}
	writeJSON(w, http.StatusOK, out)
}

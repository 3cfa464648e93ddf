package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/isaac-jh/ym-library/internal/models"
	"github.com/isaac-jh/ym-library/internal/services"
	"github.com/isaac-jh/ym-library/internal/shared"
	"github.com/isaac-jh/ym-library/internal/tasks"
	tu "github.com/isaac-jh/ym-library/internal/testing"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return tu.MemoryDB(t)
}

type fixture struct {
	backend *Backend
	server  *httptest.Server
	client  *services.Client
	alice   models.User
	bob     models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := NewBackend(setupTestDB(t), nil)
	alice, err := backend.Users().Create("Alice", "alice", "secret")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	bob, err := backend.Users().Create("Bob", "bob", "hunter2")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	return &fixture{
		backend: backend,
		server:  srv,
		client:  services.NewClient(srv.URL + APIPrefix),
		alice:   alice,
		bob:     bob,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+APIPrefix+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBasicRouter(t *testing.T) {
	t.Run("routes by method below the prefix", func(t *testing.T) {
		r := NewBasicRouter("/api/v1/")
		r.Handle(http.MethodGet, "/items/{id}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Write([]byte("get " + req.PathValue("id")))
		}))
		r.Handle(http.MethodDelete, "/items/{id}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items/42", nil))
		if rec.Body.String() != "get 42" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/items/42", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/items/42", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 outside the prefix, got %d", rec.Code)
		}
	})

	t.Run("middleware runs in the order added", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, req)
				})
			}
		}

		r := NewBasicRouter("")
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			order = append(order, "handler")
		}))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if diff := cmp.Diff([]string{"first", "second", "handler"}, order); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(RequestIDFrom(r.Context())))
	})

	t.Run("RequestID keeps the caller's id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		RequestID()(ok).ServeHTTP(rec, req)

		if rec.Body.String() != "abc" || rec.Header().Get(RequestIDHeader) != "abc" {
			t.Errorf("expected id abc, got body %q header %q", rec.Body.String(), rec.Header().Get(RequestIDHeader))
		}
	})

	t.Run("RequestID assigns one", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequestID()(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Body.String() == "" || rec.Body.String() != rec.Header().Get(RequestIDHeader) {
			t.Errorf("expected generated id, got %q", rec.Body.String())
		}
	})

	t.Run("Recover answers 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
		Recover(shared.NewLogger(&bytes.Buffer{}))(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Logging records the status", func(t *testing.T) {
		var buf bytes.Buffer
		notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })
		Logging(shared.NewLogger(&buf))(notFound).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		if !strings.Contains(buf.String(), "status=404") || !strings.Contains(buf.String(), "path=/x") {
			t.Errorf("unexpected log line %q", buf.String())
		}
	})

	t.Run("BearerAuth", func(t *testing.T) {
		tokens := NewTokenStore()
		token := tokens.Issue(7)
		var seen models.UserID
		handler := BearerAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = tokenUser(r.Context())
		}))

		tests := []struct {
			name   string
			header string
			status int
			user   models.UserID
		}{
			{name: "no header passes", status: http.StatusOK},
			{name: "valid token", header: "Bearer " + token, status: http.StatusOK, user: 7},
			{name: "lowercase scheme", header: "bearer " + token, status: http.StatusOK, user: 7},
			{name: "unknown token", header: "Bearer nope", status: http.StatusUnauthorized},
			{name: "other scheme", header: "Basic abc", status: http.StatusUnauthorized},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				seen = 0
				rec := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				if tt.header != "" {
					req.Header.Set("Authorization", tt.header)
				}
				handler.ServeHTTP(rec, req)

				if rec.Code != tt.status {
					t.Errorf("expected %d, got %d", tt.status, rec.Code)
				}
				if seen != tt.user {
					t.Errorf("expected user %d, got %d", tt.user, seen)
				}
			})
		}
	})
}

func TestBackendWithClient(t *testing.T) {
	ctx := context.Background()

	t.Run("login issues a bearer session", func(t *testing.T) {
		f := newFixture(t)

		session, err := f.client.Login(ctx, "alice", "secret")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if session.User.ID != f.alice.ID || session.AccessToken == "" || session.TokenType != "bearer" {
			t.Errorf("unexpected session %+v", session)
		}

		if _, err := f.client.WithSession(&session).ListUsers(ctx); err != nil {
			t.Errorf("expected authenticated request to pass, got %v", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.client.Login(ctx, "alice", "nope"); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("token cannot act for another user", func(t *testing.T) {
		f := newFixture(t)
		session, err := f.client.Login(ctx, "alice", "secret")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}

		_, err = f.client.WithSession(&session).CreateBackup(ctx, f.bob.ID, models.NewBackupDraft("x"))
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("users", func(t *testing.T) {
		f := newFixture(t)
		users, err := f.client.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if diff := cmp.Diff([]models.User{f.alice, f.bob}, users); diff != "" {
			t.Errorf("users mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("create and fetch", func(t *testing.T) {
		f := newFixture(t)

		draft := models.NewBackupDraft("Sunday service")
		draft.EventName = "Easter"
		draft.DisplayedDate, _ = models.ParseDate("2024-03-31")
		draft.Track[models.StageMaster] = false
		draft.ProducerIDs = []models.UserID{f.bob.ID}

		created, err := f.client.CreateBackup(ctx, f.alice.ID, draft)
		if err != nil {
			t.Fatalf("CreateBackup failed: %v", err)
		}
		if created.Cam.State != models.Incomplete || created.Master.State != models.NotApplicable {
			t.Errorf("unexpected initial states cam=%s master=%s", created.Cam.State, created.Master.State)
		}
		if diff := cmp.Diff([]string{"Bob"}, created.Producers); diff != "" {
			t.Errorf("producers mismatch (-want +got):\n%s", diff)
		}

		got, err := f.client.GetBackup(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetBackup failed: %v", err)
		}
		if diff := cmp.Diff(created, got); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
		if got.DateKey() != "2024-03-31" || got.EventName != "Easter" {
			t.Errorf("unexpected fields %+v", got)
		}
	})

	t.Run("create rejects a missing name", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodPost, "/backup-status?user_id=1", `{"name": ""}`, nil)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", resp.StatusCode)
		}
	})

	t.Run("mutations require user_id", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodPost, "/backup-status", `{"name": "x"}`, nil)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", resp.StatusCode)
		}

		var body errorBody
		json.NewDecoder(resp.Body).Decode(&body)
		if !strings.Contains(body.Detail, "user_id") {
			t.Errorf("expected detail to name user_id, got %q", body.Detail)
		}
	})

	t.Run("unknown record", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.client.GetBackup(ctx, 404); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := f.client.DeleteBackup(ctx, f.alice.ID, 404); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("partial update stamps the acting user", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.client.CreateBackup(ctx, f.alice.ID, models.NewBackupDraft("Youth night"))

		req := services.CompletionRequest{
			Changes:         map[models.Stage]models.StageState{models.StageCam: models.Complete},
			Actor:           f.alice.ID,
			ExpectedVersion: rec.Version,
		}
		got, err := f.client.MarkComplete(ctx, rec.ID, req)
		if err != nil {
			t.Fatalf("MarkComplete failed: %v", err)
		}

		if got.Cam.State != models.Complete || got.Cam.VerifiedBy == nil || *got.Cam.VerifiedBy != f.alice.ID {
			t.Errorf("expected cam verified by alice, got %+v", got.Cam)
		}
		if got.Cam.VerifierName != "Alice" {
			t.Errorf("expected checker name Alice, got %q", got.Cam.VerifierName)
		}
		if got.Master.State != models.Incomplete {
			t.Error("expected untouched stages to stay incomplete")
		}
		if got.Version != rec.Version+1 {
			t.Errorf("expected version %d, got %d", rec.Version+1, got.Version)
		}
	})

	t.Run("stale version loses", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.client.CreateBackup(ctx, f.alice.ID, models.NewBackupDraft("Youth night"))

		first := services.CompletionRequest{
			Changes:         map[models.Stage]models.StageState{models.StageCam: models.Complete},
			Actor:           f.alice.ID,
			ExpectedVersion: rec.Version,
		}
		if _, err := f.client.MarkComplete(ctx, rec.ID, first); err != nil {
			t.Fatalf("MarkComplete failed: %v", err)
		}

		second := first
		second.Actor = f.bob.ID
		second.Changes = map[models.Stage]models.StageState{models.StageClean: models.Complete}
		if _, err := f.client.MarkComplete(ctx, rec.ID, second); !errors.Is(err, shared.ErrConflictLost) {
			t.Errorf("expected ErrConflictLost, got %v", err)
		}
	})

	t.Run("not applicable stages cannot be set", func(t *testing.T) {
		f := newFixture(t)
		draft := models.NewBackupDraft("x")
		draft.Track[models.StageMaster] = false
		rec, _ := f.client.CreateBackup(ctx, f.alice.ID, draft)

		req := services.CompletionRequest{
			Changes: map[models.Stage]models.StageState{models.StageMaster: models.Complete},
			Actor:   f.alice.ID,
		}
		if _, err := f.client.MarkComplete(ctx, rec.ID, req); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("checker must match user_id", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.client.CreateBackup(ctx, f.alice.ID, models.NewBackupDraft("x"))

		path := "/backup-status/" + rec.ID.String() + "?user_id=" + f.alice.ID.String()
		resp := f.do(t, http.MethodPatch, path, `{"cam": true, "cam_checker": `+f.bob.ID.String()+`}`, nil)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", resp.StatusCode)
		}
	})

	t.Run("update keeps stages", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.client.CreateBackup(ctx, f.alice.ID, models.NewBackupDraft("Youth night"))
		f.client.MarkComplete(ctx, rec.ID, services.CompletionRequest{
			Changes: map[models.Stage]models.StageState{models.StageCam: models.Complete},
			Actor:   f.alice.ID,
		})

		draft := models.DraftFrom(rec)
		draft.Name = "Youth night (recap)"
		draft.Description = "second half"
		got, err := f.client.UpdateBackup(ctx, f.alice.ID, rec.ID, draft)
		if err != nil {
			t.Fatalf("UpdateBackup failed: %v", err)
		}
		if got.Name != "Youth night (recap)" || got.Description != "second half" {
			t.Errorf("unexpected fields %+v", got)
		}
		if got.Cam.State != models.Complete {
			t.Error("expected stage states untouched by update")
		}
	})

	t.Run("delete", func(t *testing.T) {
		f := newFixture(t)
		rec, _ := f.client.CreateBackup(ctx, f.alice.ID, models.NewBackupDraft("x"))

		if err := f.client.DeleteBackup(ctx, f.alice.ID, rec.ID); err != nil {
			t.Fatalf("DeleteBackup failed: %v", err)
		}
		records, err := f.client.ListBackups(ctx)
		if err != nil {
			t.Fatalf("ListBackups failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records, got %d", len(records))
		}
	})

	t.Run("list honours limit", func(t *testing.T) {
		f := newFixture(t)
		for _, name := range []string{"a", "b", "c"} {
			f.client.CreateBackup(ctx, f.alice.ID, models.NewBackupDraft(name))
		}

		limited := services.NewClient(f.server.URL+APIPrefix, services.WithLimits(2, 0))
		records, err := limited.ListBackups(ctx)
		if err != nil {
			t.Fatalf("ListBackups failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}

		resp := f.do(t, http.MethodGet, "/backup-status?limit=zero", "", nil)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("expected 422 for a bad limit, got %d", resp.StatusCode)
		}
	})

	t.Run("catalog", func(t *testing.T) {
		f := newFixture(t)
		for _, item := range []models.ActivityItem{
			{Storage: "NAS-1", Category: "Worship", Year: 2023, Month: 12, ActivityName: "Christmas"},
			{Storage: "NAS-2", Category: "Worship", Year: 2024, Month: 3, ActivityName: "Easter", Description: "sunrise"},
		} {
			if _, err := f.backend.Catalog().Create(item); err != nil {
				t.Fatalf("failed to seed catalog: %v", err)
			}
		}

		items, err := f.client.ListCatalog(ctx)
		if err != nil {
			t.Fatalf("ListCatalog failed: %v", err)
		}
		if len(items) != 2 || items[0].ActivityName != "Easter" || items[0].Description != "sunrise" {
			t.Errorf("unexpected catalog %+v", items)
		}
	})

	t.Run("request id is echoed", func(t *testing.T) {
		f := newFixture(t)
		resp := f.do(t, http.MethodGet, "/auth/users", "", http.Header{RequestIDHeader: {"trace-1"}})
		if resp.Header.Get(RequestIDHeader) != "trace-1" {
			t.Errorf("expected echoed request id, got %q", resp.Header.Get(RequestIDHeader))
		}
	})
}

func TestBoardAgainstBackend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	draft := models.NewBackupDraft("Sunday service")
	draft.Track[models.StageMaster] = false
	rec, err := f.client.CreateBackup(ctx, f.alice.ID, draft)
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	session, err := f.client.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	client := f.client.WithSession(&session)
	board := tasks.NewBoard(client, tasks.WithDirectory(client))
	if err := board.Load(ctx, nil); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := board.Toggle(rec.ID, models.StageMaster); !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected ErrValidation for the excluded stage, got %v", err)
	}
	if _, err := board.Toggle(rec.ID, models.StageCam); err != nil {
		t.Fatalf("Toggle failed: %v", err)
	}

	got, err := board.Submit(ctx, &session, rec.ID)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got.Cam.State != models.Complete || got.Cam.VerifierName != "Alice" {
		t.Errorf("expected cam completed by Alice, got %+v", got.Cam)
	}
	if len(board.Pending(rec.ID)) != 0 {
		t.Errorf("expected nothing pending, got %v", board.Pending(rec.ID))
	}

	// Another user completes a stage, so the board's version is now stale.
	if _, err := f.client.MarkComplete(ctx, rec.ID, services.CompletionRequest{
		Changes: map[models.Stage]models.StageState{models.StageClean: models.Complete},
		Actor:   f.bob.ID,
	}); err != nil {
		t.Fatalf("MarkComplete failed: %v", err)
	}

	board.Toggle(rec.ID, models.StageFinalProduct)
	_, err = board.Submit(ctx, &session, rec.ID)

	var submitErr *tasks.SubmitError
	if !errors.As(err, &submitErr) || !errors.Is(err, shared.ErrConflictLost) {
		t.Fatalf("expected a lost version race, got %v", err)
	}
	if len(board.Pending(rec.ID)) != 1 {
		t.Errorf("expected the change to stay pending, got %v", board.Pending(rec.ID))
	}
}

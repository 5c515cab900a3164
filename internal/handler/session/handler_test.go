package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/catalyst/backend/internal/model/chat"
	chatService "github.com/zhouzirui/catalyst/backend/internal/service/chat"
	"github.com/zhouzirui/catalyst/backend/internal/storage"
)

func setupRouter(t *testing.T) (*chi.Mux, *chatService.Service) {
	t.Helper()
	svc := chatService.NewService(context.Background(), storage.NewMemoryStore(), chatService.Options{Greeting: "Hello!"})
	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, svc
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestStateReturnsGreeting(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(r, http.MethodGet, "/state", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var snap chatService.Snapshot
	if err := json.Unmarshal(resp.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Text != "Hello!" {
		t.Fatalf("unexpected messages: %+v", snap.Messages)
	}
	if snap.Mode != chat.ModeChat {
		t.Fatalf("expected chat mode, got %s", snap.Mode)
	}
}

func TestSetModeValidation(t *testing.T) {
	r, svc := setupRouter(t)

	if resp := do(r, http.MethodPut, "/mode", map[string]string{"mode": "sing"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp := do(r, http.MethodPut, "/mode", map[string]string{"mode": "analyze"}); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if svc.Mode() != chat.ModeAnalyze {
		t.Fatalf("mode not applied")
	}
}

func TestSessionLifecycle(t *testing.T) {
	r, svc := setupRouter(t)
	ctx := context.Background()

	if _, err := svc.SubmitUserText(ctx, "Vertical farms"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	first := svc.CurrentID()

	resp := do(r, http.MethodPost, "/sessions", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
	if svc.CurrentID() == first {
		t.Fatalf("expected a new session id")
	}

	resp = do(r, http.MethodGet, "/sessions", nil)
	var list []sessionSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != first || list[0].Title != "Vertical farms" || list[0].Current {
		t.Fatalf("unexpected list: %+v", list)
	}

	if resp := do(r, http.MethodPost, "/sessions/"+first+"/load", nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on load, got %d", resp.Code)
	}
	if svc.CurrentID() != first {
		t.Fatalf("load did not switch session")
	}

	if resp := do(r, http.MethodDelete, "/sessions/"+first, nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.Code)
	}
	if svc.CurrentID() == first || len(svc.Sessions()) != 0 {
		t.Fatalf("delete of current session did not reset")
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	r, _ := setupRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/sessions/missing"},
		{http.MethodPost, "/sessions/missing/load"},
		{http.MethodDelete, "/sessions/missing"},
	} {
		if resp := do(r, tc.method, tc.path, nil); resp.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestSetDraft(t *testing.T) {
	r, svc := setupRouter(t)

	if resp := do(r, http.MethodPut, "/draft", map[string]string{"text": "half an idea"}); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if got := svc.Snapshot().Draft; got != "half an idea" {
		t.Fatalf("unexpected draft %q", got)
	}
}

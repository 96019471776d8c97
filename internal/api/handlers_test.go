package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"docentgo/internal/identity"
	"docentgo/internal/models"
	"docentgo/internal/pipeline"
	"docentgo/internal/prefs"
	"docentgo/internal/service/inference"
	"docentgo/internal/state"
	"docentgo/internal/status"
	"docentgo/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

type stubExtractor struct{ text string }

func (s *stubExtractor) Extract(context.Context, string, []byte) (string, error) {
	return s.text, nil
}

type stubCrawler struct{ logs []string }

func (s *stubCrawler) Crawl(context.Context, string, int) ([]string, error) {
	return s.logs, nil
}

type stubEngine struct{ resp inference.Response }

func (s *stubEngine) Generate(context.Context, inference.Request) (inference.Response, error) {
	return s.resp, nil
}

func newTestServer(t *testing.T) (*gin.Engine, *sql.DB, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := storage.NewStore(db)
	prefStore := prefs.NewStore(filepath.Join(t.TempDir(), "preferences.json"))
	app := state.NewAppState(store)
	reporter := status.NewReporter()
	orch := pipeline.NewOrchestrator(
		store,
		prefStore,
		app,
		reporter,
		&stubExtractor{},
		&stubCrawler{logs: []string{"Crawling https://example.com"}},
		&stubEngine{resp: inference.Response{Answer: "stub answer", Sources: []string{"https://example.com"}}},
		zerolog.Nop(),
	)
	ident := identity.NewProvider("")
	ident.Resolve()

	handler := NewHandler(store, prefStore, app, reporter, orch, ident, zerolog.Nop())
	router := gin.New()
	handler.RegisterRoutes(router)
	return router, db, handler
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func postQuery(t *testing.T, router *gin.Engine, text string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if text != "" {
		if err := writer.WriteField("text", text); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/query", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func waitForPhase(t *testing.T, router *gin.Engine, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := doJSONRequest(t, router, http.MethodGet, "/api/status", nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("status endpoint returned %d", resp.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if body["phase"] == want {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("phase %q never reached", want)
	return nil
}

func TestQueryFlowEndToEnd(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := postQuery(t, router, "explain https://example.com please")
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	body := waitForPhase(t, router, "done")
	activeID, _ := body["active_conversation_id"].(string)
	if activeID == "" {
		t.Fatalf("no conversation adopted after successful run")
	}
	logLines, _ := body["log"].([]any)
	if len(logLines) < 3 {
		t.Fatalf("expected at least 3 log entries, got %d", len(logLines))
	}

	// The conversation is listed and its transcript reloads from disk.
	listResp := doJSONRequest(t, router, http.MethodGet, "/api/conversations", nil)
	var listBody struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(listResp.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode conversations: %v", err)
	}
	if len(listBody.Conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(listBody.Conversations))
	}

	msgResp := doJSONRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/conversations/%s/messages", activeID), nil)
	var msgBody struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(msgResp.Body.Bytes(), &msgBody); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(msgBody.Messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgBody.Messages))
	}
	if msgBody.Messages[1].Role != models.RoleAssistant || len(msgBody.Messages[1].Sources) != 1 {
		t.Fatalf("assistant reply not persisted with sources: %#v", msgBody.Messages[1])
	}
}

func TestQueryRejectsEmptyInput(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := postQuery(t, router, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", resp.Code)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	getResp := doJSONRequest(t, router, http.MethodGet, "/api/preferences", nil)
	var current models.Preferences
	if err := json.Unmarshal(getResp.Body.Bytes(), &current); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if current != models.DefaultPreferences() {
		t.Fatalf("expected defaults, got %#v", current)
	}

	putResp := doJSONRequest(t, router, http.MethodPut, "/api/preferences", map[string]any{
		"verbosity": "detailed",
		"theme":     "emerald",
	})
	if putResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", putResp.Code, putResp.Body.String())
	}
	var updated models.Preferences
	if err := json.Unmarshal(putResp.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Verbosity != models.VerbosityDetailed || updated.Theme != models.ThemeEmerald {
		t.Fatalf("patch not applied: %#v", updated)
	}
	if updated.CrawlDepth != current.CrawlDepth {
		t.Fatalf("unpatched field changed: %#v", updated)
	}

	badResp := doJSONRequest(t, router, http.MethodPut, "/api/preferences", map[string]any{
		"theme": "neon",
	})
	if badResp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid theme, got %d", badResp.Code)
	}
}

func TestDeleteAccountWipesEverything(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	postQuery(t, router, "seed a conversation")
	waitForPhase(t, router, "done")

	delResp := doJSONRequest(t, router, http.MethodDelete, "/api/account", nil)
	if delResp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", delResp.Code)
	}

	listResp := doJSONRequest(t, router, http.MethodGet, "/api/conversations", nil)
	var listBody struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	if err := json.Unmarshal(listResp.Body.Bytes(), &listBody); err != nil {
		t.Fatalf("decode conversations: %v", err)
	}
	if len(listBody.Conversations) != 0 {
		t.Fatalf("conversations survived account deletion")
	}

	var orphans int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&orphans); err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("%d orphaned messages after wipe", orphans)
	}
}

func TestOpenConversationMirrorsTranscript(t *testing.T) {
	router, db, handler := newTestServer(t)
	defer db.Close()

	postQuery(t, router, "first question")
	body := waitForPhase(t, router, "done")
	activeID, _ := body["active_conversation_id"].(string)

	// Switch away, then reopen.
	newResp := doJSONRequest(t, router, http.MethodPost, "/api/conversations/new", nil)
	if newResp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", newResp.Code)
	}
	if got := handler.app.ActiveConversationID.Get(); got != "" {
		t.Fatalf("active id not cleared: %q", got)
	}

	openResp := doJSONRequest(t, router, http.MethodPost,
		fmt.Sprintf("/api/conversations/%s/open", activeID), nil)
	if openResp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", openResp.Code)
	}
	var openBody struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(openResp.Body.Bytes(), &openBody); err != nil {
		t.Fatalf("decode open response: %v", err)
	}
	if len(openBody.Messages) != 2 {
		t.Fatalf("expected 2 messages after reopen, got %d", len(openBody.Messages))
	}
	if !strings.Contains(openBody.Messages[0].Content, "first question") {
		t.Fatalf("transcript content wrong: %#v", openBody.Messages[0])
	}
}

func TestRestoreReattachesToLastActiveConversation(t *testing.T) {
	router, db, handler := newTestServer(t)
	defer db.Close()

	postQuery(t, router, "remember this")
	body := waitForPhase(t, router, "done")
	activeID, _ := body["active_conversation_id"].(string)

	// A fresh view starts with an empty transcript but the marker intact.
	handler.app.ActiveMessages.Set(nil)

	resp := doJSONRequest(t, router, http.MethodPost, "/api/restore", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var restored struct {
		ConversationID string           `json:"conversation_id"`
		Messages       []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &restored); err != nil {
		t.Fatalf("decode restore response: %v", err)
	}
	if restored.ConversationID != activeID {
		t.Fatalf("restored %q, want %q", restored.ConversationID, activeID)
	}
	if len(restored.Messages) != 2 {
		t.Fatalf("expected 2 restored messages, got %d", len(restored.Messages))
	}

	// After a wipe the marker dangles; restore clears it instead of failing.
	doJSONRequest(t, router, http.MethodDelete, "/api/account", nil)
	handler.app.AdoptConversation(activeID)
	resp = doJSONRequest(t, router, http.MethodPost, "/api/restore", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("dangling marker must not fail restore, got %d", resp.Code)
	}
	if handler.app.Marker() != "" {
		t.Fatalf("dangling marker not cleared")
	}
}

func TestIdentityEndpointReportsTriState(t *testing.T) {
	router, db, _ := newTestServer(t)
	defer db.Close()

	resp := doJSONRequest(t, router, http.MethodGet, "/api/identity", nil)
	var body struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	if body.State != string(identity.StateUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %q", body.State)
	}
}

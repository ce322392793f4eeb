package handler_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mindease/backend/internal/auth"
	"github.com/mindease/backend/internal/handler"
	"github.com/mindease/backend/internal/service/llm"
	profileService "github.com/mindease/backend/internal/service/profile"
	sessionService "github.com/mindease/backend/internal/service/session"
	trackingService "github.com/mindease/backend/internal/service/tracking"
	"github.com/mindease/backend/internal/store"
)

// setupServer wires the full router against in-memory storage and a
// stub completion endpoint.
func setupServer(t *testing.T) *httptest.Server {
	t.Helper()

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"event\":\"delta\",\"content\":\"I'm listening.\"}\n\n")
		fmt.Fprint(w, "data: {\"event\":\"end\",\"finished\":true}\n\n")
	}))
	t.Cleanup(endpoint.Close)

	records := store.NewMemoryStore()
	profiles := profileService.NewService(records)
	tracking := trackingService.NewService(records, profiles)

	client := llm.NewClient(5*time.Second, "")
	sessions := sessionService.NewRegistry(client, func() *llm.FailoverPolicy {
		return llm.NewFailoverPolicy(endpoint.URL, endpoint.URL, time.Millisecond)
	}, llm.NewFallbackResponder())

	tokens := auth.NewManager("test-secret", time.Hour)

	srv := httptest.NewServer(handler.NewRouter(profiles, tracking, sessions, tokens))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, data
}

func login(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{"name": name})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", resp.StatusCode, body)
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected a session token")
	}
	return payload.Token
}

func TestAuthIsRequired(t *testing.T) {
	srv := setupServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/profile", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/profile", "garbage", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestLoginRequiresName(t *testing.T) {
	srv := setupServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without name, got %d", resp.StatusCode)
	}
}

func TestProfileLifecycle(t *testing.T) {
	srv := setupServer(t)
	token := login(t, srv, "Dana")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/profile", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get profile status %d: %s", resp.StatusCode, body)
	}
	var user struct {
		Name        string `json:"name"`
		Preferences struct {
			Theme string `json:"theme"`
		} `json:"preferences"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if user.Name != "Dana" || user.Preferences.Theme != "light" {
		t.Fatalf("unexpected profile: %s", body)
	}

	resp, body = doJSON(t, http.MethodPatch, srv.URL+"/api/profile", token, map[string]string{"theme": "night"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"night"`) {
		t.Fatalf("expected updated theme, got %s", body)
	}

	// Deletion needs the explicit confirm flag.
	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/profile", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without confirm, got %d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/profile?confirm=true", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", resp.StatusCode, body)
	}

	// The old token no longer matches a profile.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/profile", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after deletion, got %d", resp.StatusCode)
	}
}

func TestMoodAndCheckinRoutes(t *testing.T) {
	srv := setupServer(t)
	token := login(t, srv, "Dana")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/mood", token, map[string]any{"mood": 4, "note": "steady"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save mood status %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/mood", token, map[string]any{"mood": 9})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range mood, got %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/mood", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list mood status %d: %s", resp.StatusCode, body)
	}
	var moods []struct {
		Mood int    `json:"mood"`
		Note string `json:"note"`
	}
	if err := json.Unmarshal(body, &moods); err != nil {
		t.Fatalf("decode moods: %v", err)
	}
	if len(moods) != 1 || moods[0].Mood != 4 || moods[0].Note != "steady" {
		t.Fatalf("unexpected mood list: %s", body)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/checkin", token, map[string]string{"gratitude": "sunlight"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save checkin status %d: %s", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/checkin?limit=5", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list checkin status %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "sunlight") {
		t.Fatalf("expected checkin in list, got %s", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/profile/export", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "moodData") || !strings.Contains(string(body), "sunlight") {
		t.Fatalf("expected full export bundle, got %s", body)
	}
}

func TestChatSessionOverHTTP(t *testing.T) {
	srv := setupServer(t)
	token := login(t, srv, "Dana")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/chat/session", token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status %d: %s", resp.StatusCode, body)
	}
	var snap struct {
		SessionID string `json:"sessionId"`
		State     string `json:"state"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.SessionID == "" || snap.State != "idle" {
		t.Fatalf("unexpected snapshot: %s", body)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Content != sessionService.WelcomeMessage {
		t.Fatalf("expected the welcome message, got %s", body)
	}

	// Subscribe to events first, then submit; the snapshot frame marks
	// the subscription as live.
	eventsResp, err := http.Get(srv.URL + "/api/chat/" + snap.SessionID + "/events?token=" + token)
	if err != nil {
		t.Fatalf("open event stream: %v", err)
	}
	defer eventsResp.Body.Close()
	if eventsResp.StatusCode != http.StatusOK {
		t.Fatalf("event stream status %d", eventsResp.StatusCode)
	}
	scanner := bufio.NewScanner(eventsResp.Body)
	readFrame := func() map[string]any {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var frame map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &frame); err != nil {
				t.Fatalf("decode frame %q: %v", line, err)
			}
			return frame
		}
		t.Fatalf("event stream ended early: %v", scanner.Err())
		return nil
	}

	if frame := readFrame(); frame["type"] != "snapshot" {
		t.Fatalf("expected the snapshot frame first, got %v", frame)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/chat/"+snap.SessionID+"/messages", token, map[string]string{"content": "hello"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status %d: %s", resp.StatusCode, body)
	}

	var sawReply bool
	for {
		frame := readFrame()
		if frame["type"] == "message" {
			if msg, ok := frame["message"].(map[string]any); ok && msg["content"] == "I'm listening." {
				sawReply = true
			}
		}
		if frame["type"] == "state" && frame["state"] == "idle" {
			break
		}
	}
	if !sawReply {
		t.Fatal("expected the streamed assistant reply in the event feed")
	}

	// Empty submissions and unknown sessions map to client errors.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/chat/"+snap.SessionID+"/messages", token, map[string]string{"content": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/chat/nope/messages", token, map[string]string{"content": "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/api/chat/"+snap.SessionID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end session status %d: %s", resp.StatusCode, body)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/chat/"+snap.SessionID+"/messages", token, map[string]string{"content": "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after session end, got %d", resp.StatusCode)
	}
}

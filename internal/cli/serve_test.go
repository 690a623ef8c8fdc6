package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"

	"github.com/wadash/wadash/internal/bot"
	"github.com/wadash/wadash/internal/botlog"
	"github.com/wadash/wadash/internal/command"
	"github.com/wadash/wadash/internal/store"
)

// stubSession satisfies bot.Session without touching the network.
type stubSession struct{}

func (stubSession) Connect() error                        { return nil }
func (stubSession) Disconnect()                           {}
func (stubSession) Close()                                {}
func (stubSession) AddEventHandler(fn func(any)) uint32   { return 1 }
func (stubSession) RemoveEventHandler(id uint32) bool     { return true }
func (stubSession) NeedsPairing() bool                    { return false }
func (stubSession) PairedID() string                      { return "628123" }
func (stubSession) SendText(ctx context.Context, chatJID, text string) error { return nil }
func (stubSession) MarkRead(chat, sender types.JID, ids []string) error      { return nil }
func (stubSession) RejectCall(from types.JID, callID string) error           { return nil }

func (stubSession) QRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return nil, context.Canceled
}

func newTestAPI(t *testing.T) (*apiServer, *http.ServeMux) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := command.NewRegistry()
	reg.Freeze()
	broadcaster := botlog.NewBroadcaster()
	router := command.NewRouter(reg, st, nil)
	bots := bot.NewRegistryWithFactory(t.TempDir(), st, broadcaster, router, nil,
		func(ctx context.Context, tenantID, dir string) (bot.Session, error) {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, err
			}
			return stubSession{}, nil
		})

	api := &apiServer{bots: bots, store: st, broadcaster: broadcaster}
	mux := http.NewServeMux()
	api.register(mux)
	return api, mux
}

func TestHandleAction_StartReturnsStatus(t *testing.T) {
	_, mux := newTestAPI(t)

	req := httptest.NewRequest("POST", "/api/bot",
		strings.NewReader(`{"action":"start","tenant":"owner@example.com"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var snap bot.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != bot.StatusInitializing {
		t.Errorf("snapshot status = %q", snap.Status)
	}
}

func TestHandleAction_Validation(t *testing.T) {
	_, mux := newTestAPI(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing tenant", `{"action":"start"}`},
		{"unknown action", `{"action":"reboot","tenant":"owner@example.com"}`},
		{"garbage body", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/bot", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp["error"] == "" {
				t.Error("missing error message")
			}
		})
	}
}

func TestHandleAction_StopAndDeleteSession(t *testing.T) {
	api, mux := newTestAPI(t)

	start := httptest.NewRequest("POST", "/api/bot",
		strings.NewReader(`{"action":"start","tenant":"owner@example.com"}`))
	mux.ServeHTTP(httptest.NewRecorder(), start)

	stop := httptest.NewRequest("POST", "/api/bot",
		strings.NewReader(`{"action":"stop","tenant":"owner@example.com"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, stop)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d", rec.Code)
	}
	if snap := api.bots.Status("owner@example.com"); snap.Status != bot.StatusDisconnected {
		t.Errorf("status after stop = %q", snap.Status)
	}

	del := httptest.NewRequest("POST", "/api/bot",
		strings.NewReader(`{"action":"delete-session","tenant":"owner@example.com"}`))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, del)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if snap := api.bots.Status("owner@example.com"); snap.Session.Exists {
		t.Error("session data survived delete-session")
	}
}

func TestHandleStatus(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/bot/status", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing tenant should 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/bot/status?tenant=owner@example.com", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap bot.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Status != bot.StatusDisconnected {
		t.Errorf("unknown tenant status = %q", snap.Status)
	}
	if snap.Logs == nil {
		t.Error("logs must serialize as an array, not null")
	}
}

func TestHandleInstances(t *testing.T) {
	_, mux := newTestAPI(t)

	start := httptest.NewRequest("POST", "/api/bot",
		strings.NewReader(`{"action":"start","tenant":"owner@example.com"}`))
	mux.ServeHTTP(httptest.NewRecorder(), start)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/bot/instances", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var infos []bot.InstanceInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].TenantID != "owner@example.com" {
		t.Errorf("instances = %+v", infos)
	}
}

func TestHandleSettings_Roundtrip(t *testing.T) {
	_, mux := newTestAPI(t)

	// Defaults come back before anything is saved.
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/settings?tenant=owner@example.com", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var set store.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatal(err)
	}
	if set.Prefix != "!" || !set.PublicMode {
		t.Errorf("default settings = %+v", set)
	}

	// An empty prefix is normalized on save.
	body := `{"tenant":"owner@example.com","settings":{"prefix":"","publicMode":false,"botName":"Custom Bot"}}`
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("POST", "/api/settings", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/settings?tenant=owner@example.com", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatal(err)
	}
	if set.Prefix != "!" {
		t.Errorf("prefix = %q, want normalized !", set.Prefix)
	}
	if set.PublicMode || set.BotName != "Custom Bot" {
		t.Errorf("saved settings = %+v", set)
	}
}

func TestHandleLogs_StreamsLiveEntries(t *testing.T) {
	api, mux := newTestAPI(t)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/bot/logs?tenant=owner@example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	// Wait for the subscription before publishing so the entry is not lost.
	deadline := time.Now().Add(2 * time.Second)
	for api.broadcaster.Subscribers("owner@example.com") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	api.broadcaster.Publish("owner@example.com", botlog.NewEntry("system", "live entry", nil))

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	if data == "" {
		t.Fatal("no SSE data line received")
	}
	var entry botlog.Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		t.Fatal(err)
	}
	if entry.Message != "live entry" {
		t.Errorf("entry message = %q", entry.Message)
	}
}

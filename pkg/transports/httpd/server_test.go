package httpd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mbeckert/papagei/pkg/history"
	"github.com/mbeckert/papagei/pkg/monitor"
	"github.com/mbeckert/papagei/pkg/providers/mock"
	"github.com/mbeckert/papagei/pkg/session"
)

type fixture struct {
	srv   *httptest.Server
	api   *Server
	store *history.Store
	mon   *monitor.Monitor
}

func newFixture(t *testing.T, ready bool) *fixture {
	t.Helper()

	store := history.NewStore(filepath.Join(t.TempDir(), "history.json"), nil)
	mon := monitor.New(nil)
	if ready {
		mon.SetReady("Model loaded")
	}
	ctrl := session.NewController(session.Options{
		Recorder: mock.NewRecorder(mock.RecorderConfig{Samples: make([]float32, 1600)}),
		Engine:   mock.NewEngine(mock.EngineConfig{Transcript: "hello from the mock"}),
		Monitor:  mon,
		Store:    store,
	})
	s := New(Config{}, ctrl, mon, store, nil)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = s.Stop() })
	return &fixture{srv: srv, api: s, store: store, mon: mon}
}

func (f *fixture) do(t *testing.T, method, path string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealthWhileLoading(t *testing.T) {
	f := newFixture(t, false)

	var resp healthResponse
	if code := f.do(t, http.MethodGet, "/health", &resp); code != http.StatusOK {
		t.Fatalf("health status %d", code)
	}
	if resp.Ready || resp.Status != monitor.StateLoading {
		t.Fatalf("expected loading health, got %+v", resp)
	}
	if resp.Recording || resp.SessionState != "idle" {
		t.Fatalf("expected idle session, got %+v", resp)
	}
	if resp.PID == 0 {
		t.Fatalf("expected pid")
	}
}

func TestStartRejectedUntilReady(t *testing.T) {
	f := newFixture(t, false)

	var errResp errorResponse
	if code := f.do(t, http.MethodPost, "/start", &errResp); code != http.StatusConflict {
		t.Fatalf("expected 409 before ready, got %d", code)
	}
	if errResp.Reason != "model_not_ready" {
		t.Fatalf("unexpected reason %q", errResp.Reason)
	}

	f.mon.SetReady("Model loaded")
	if code := f.do(t, http.MethodPost, "/start", nil); code != http.StatusOK {
		t.Fatalf("expected start to succeed once ready, got %d", code)
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	f := newFixture(t, true)

	if code := f.do(t, http.MethodPost, "/start", nil); code != http.StatusOK {
		t.Fatalf("start status %d", code)
	}

	var health healthResponse
	f.do(t, http.MethodGet, "/health", &health)
	if !health.Recording || health.SessionState != "recording" {
		t.Fatalf("expected recording health, got %+v", health)
	}

	var stop stopResponse
	if code := f.do(t, http.MethodPost, "/stop", &stop); code != http.StatusOK {
		t.Fatalf("stop status %d", code)
	}
	if stop.Text != "hello from the mock" {
		t.Fatalf("unexpected transcript %q", stop.Text)
	}
	if stop.Item.ID == "" || stop.Item.Text != stop.Text {
		t.Fatalf("expected persisted item in response, got %+v", stop.Item)
	}

	items, err := f.store.All()
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one record, got %d", len(items))
	}
}

func TestStopWithoutSession(t *testing.T) {
	f := newFixture(t, true)

	var errResp errorResponse
	if code := f.do(t, http.MethodPost, "/stop", &errResp); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if errResp.Reason != "not_recording" {
		t.Fatalf("unexpected reason %q", errResp.Reason)
	}
}

func TestSecondStartConflicts(t *testing.T) {
	f := newFixture(t, true)

	f.do(t, http.MethodPost, "/start", nil)
	var errResp errorResponse
	if code := f.do(t, http.MethodPost, "/start", &errResp); code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
	if errResp.Reason != "already_recording" {
		t.Fatalf("unexpected reason %q", errResp.Reason)
	}
}

func TestStopPlainMode(t *testing.T) {
	f := newFixture(t, true)

	f.do(t, http.MethodPost, "/start", nil)
	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/stop?plain=true", nil)
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected plain content type, got %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hello from the mock" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHistoryPagination(t *testing.T) {
	f := newFixture(t, true)
	for i := 0; i < 7; i++ {
		if err := f.store.Append(history.NewRecord(fmt.Sprintf("utterance %d", i), 1)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var page historyPage
	f.do(t, http.MethodGet, "/history?limit=5", &page)
	if page.Total != 7 || len(page.Items) != 5 || page.Limit != 5 || page.Offset != 0 {
		t.Fatalf("unexpected first page %+v", page)
	}
	if page.Items[0].Text != "utterance 6" {
		t.Fatalf("expected newest first, got %q", page.Items[0].Text)
	}

	f.do(t, http.MethodGet, "/history?limit=5&offset=5", &page)
	if page.Total != 7 || len(page.Items) != 2 {
		t.Fatalf("unexpected second page %+v", page)
	}

	// Out-of-range values fall back to sane bounds instead of failing.
	if code := f.do(t, http.MethodGet, "/history?limit=-3&offset=-1", &page); code != http.StatusOK {
		t.Fatalf("expected 200 on clamped query, got %d", code)
	}
	if page.Limit != 1 || page.Offset != 0 {
		t.Fatalf("expected clamped paging, got %+v", page)
	}
	f.do(t, http.MethodGet, "/history?limit=500", &page)
	if page.Limit != 50 {
		t.Fatalf("expected limit capped at 50, got %d", page.Limit)
	}
}

func TestHistoryAll(t *testing.T) {
	f := newFixture(t, true)
	for i := 0; i < 3; i++ {
		_ = f.store.Append(history.NewRecord(fmt.Sprintf("utterance %d", i), 1))
	}

	var resp struct {
		Total int              `json:"total"`
		Items []history.Record `json:"items"`
	}
	f.do(t, http.MethodGet, "/history/all", &resp)
	if resp.Total != 3 || len(resp.Items) != 3 {
		t.Fatalf("unexpected dump %+v", resp)
	}
}

func TestHistoryDeleteIdempotent(t *testing.T) {
	f := newFixture(t, true)
	rec := history.NewRecord("to delete", 1)
	_ = f.store.Append(rec)

	var resp struct {
		OK      bool `json:"ok"`
		Removed bool `json:"removed"`
	}
	if code := f.do(t, http.MethodDelete, "/history/"+rec.ID, &resp); code != http.StatusOK {
		t.Fatalf("delete status %d", code)
	}
	if !resp.Removed {
		t.Fatalf("expected removal")
	}

	if code := f.do(t, http.MethodDelete, "/history/"+rec.ID, &resp); code != http.StatusOK {
		t.Fatalf("second delete status %d", code)
	}
	if resp.Removed {
		t.Fatalf("expected removed=false on second delete")
	}
}

func TestCORSPreflightAndOrigin(t *testing.T) {
	f := newFixture(t, true)

	req, _ := http.NewRequest(http.MethodOptions, f.srv.URL+"/start", nil)
	req.Header.Set("Origin", "http://localhost:4310")
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:4310" {
		t.Fatalf("unexpected allow origin %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, f.srv.URL+"/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("expected unknown origin to be refused a CORS grant")
	}
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t, true)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	readEvent := func() Event {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return ev
	}

	if ev := readEvent(); ev.Event != "connected" {
		t.Fatalf("expected connected handshake, got %q", ev.Event)
	}

	f.do(t, http.MethodPost, "/start", nil)
	f.do(t, http.MethodPost, "/stop", nil)

	for deadline := time.Now().Add(2 * time.Second); ; {
		ev := readEvent()
		if ev.Event == "history_added" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history_added never arrived")
		}
	}
}

func TestEventsPublishDuringDisconnect(t *testing.T) {
	f := newFixture(t, true)
	hub := f.api.Events()
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/events"

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
				hub.Publish("status", map[string]int{"tick": i})
			}
		}
	}()

	// Subscribers churn while the publisher fans out.
	for i := 0; i < 30; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		if resp != nil {
			resp.Body.Close()
		}
		conn.Close()
	}
	close(stop)
	wg.Wait()

	// Detach happens when the read loop notices the close.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected all subscribers detached, %d left", hub.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

package handler

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/domain"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/events"
	"github.com/XProfessional1130/Getravio-Image-Processing/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newGatewayServer(t *testing.T) (*httptest.Server, *events.Bus) {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	if err := db.Create(&domain.AuthToken{Key: "valid-token", UserID: "user-1"}).Error; err != nil {
		t.Fatalf("seed token: %v", err)
	}

	bus := events.NewBus(16, nil)
	gateway := NewGatewayHandler(repository.NewTokenRepository(db), bus, config.CORSConfig{AllowAllOrigins: true})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/jobs", gateway.Serve)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, bus
}

func wsURL(srv *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/jobs"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func TestGatewayRejectsBadTokenBeforeUpgrade(t *testing.T) {
	srv, _ := newGatewayServer(t)

	for _, token := range []string{"", "wrong-token"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, token), nil)
		if err == nil {
			t.Fatalf("dial with token %q succeeded, want rejection", token)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: response = %+v, want HTTP 401", token, resp)
		}
	}
}

func TestGatewaySendsGreetingFirst(t *testing.T) {
	srv, _ := newGatewayServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "valid-token"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var ev events.Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if ev.Type != events.TypeConnectionEstablished {
		t.Fatalf("first message type = %s, want %s", ev.Type, events.TypeConnectionEstablished)
	}
}

func TestGatewayForwardsOwnerEvents(t *testing.T) {
	srv, bus := newGatewayServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "valid-token"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var greeting events.Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}

	// The subscription is registered during the handshake, but give the
	// server goroutines a moment on slow machines.
	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount("user-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish("user-1", events.NewJobProgress("job-1", domain.ViewRear, 3, 10))

	var ev events.Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != events.TypeJobProgressUpdate {
		t.Fatalf("event type = %s, want %s", ev.Type, events.TypeJobProgressUpdate)
	}
	if ev.Progress == nil || ev.Progress.Step != 3 || ev.Progress.Percentage != 30 {
		t.Fatalf("progress = %+v", ev.Progress)
	}
}

func TestGatewayCleansUpSubscriptionOnDisconnect(t *testing.T) {
	srv, bus := newGatewayServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "valid-token"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var greeting events.Event
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("read greeting: %v", err)
	}

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for bus.SubscriberCount("user-1") != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := bus.SubscriberCount("user-1"); n != 0 {
		t.Fatalf("subscribers after disconnect = %d, want 0", n)
	}
}

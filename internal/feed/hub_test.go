package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"groupomania/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestClient(h *Hub, userID uint) *Client {
	return &Client{hub: h, userID: userID, send: make(chan []byte, 64)}
}

// waitOnline 轮询直到在线连接数等于 want，超时则失败。
func waitOnline(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.Online() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Online() = %d, want %d", h.Online(), want)
}

func TestHub_Online_Empty(t *testing.T) {
	h := NewHub()
	defer h.Stop()
	if h.Online() != 0 {
		t.Errorf("Online() for empty hub = %d, want 0", h.Online())
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := NewHub()
	defer h.Stop()
	c := newTestClient(h, 1)

	h.register <- c
	waitOnline(t, h, 1)

	h.unregister <- c
	waitOnline(t, h, 0)

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_PublishReachesAllClients(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = newTestClient(h, uint(i+1))
		h.register <- clients[i]
	}
	waitOnline(t, h, 3)

	h.Publish(Event{Type: PostLiked, PostID: 9, UserID: 2})

	var wg sync.WaitGroup
	received := make([]Event, 3)
	for i, c := range clients {
		wg.Add(1)
		go func(idx int, client *Client) {
			defer wg.Done()
			select {
			case msg := <-client.send:
				_ = json.Unmarshal(msg, &received[idx])
			case <-time.After(500 * time.Millisecond):
			}
		}(i, c)
	}
	wg.Wait()

	for i, evt := range received {
		if evt.Type != PostLiked || evt.PostID != 9 || evt.At.IsZero() {
			t.Errorf("client %d got %+v", i, evt)
		}
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	h := NewHub()
	defer h.Stop()
	slow := &Client{hub: h, userID: 1, send: make(chan []byte)}
	h.register <- slow
	waitOnline(t, h, 1)

	h.Publish(Event{Type: PostCreated, PostID: 1})
	waitOnline(t, h, 0)
}

func TestHub_Concurrent(t *testing.T) {
	h := NewHub()
	defer h.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h.register <- newTestClient(h, uint(id))
		}(i)
	}
	wg.Wait()
	waitOnline(t, h, 10)
}

func TestHub_StopClosesClients(t *testing.T) {
	h := NewHub()
	c := newTestClient(h, 1)
	h.register <- c
	waitOnline(t, h, 1)

	h.Stop()
	h.Stop() // idempotent

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed after Stop")
	}
}

func TestServe_WebSocket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub()
	defer h.Stop()
	iss := auth.NewIssuer("secret", time.Hour)
	token, _, err := iss.Issue(5)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	r := gin.New()
	r.GET("/ws", auth.Middleware(iss, "jwt"), Serve(h, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, nil); err == nil {
		t.Fatal("dial without session should fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("dial without session: resp = %v, err = %v", resp, err)
	}

	hdr := http.Header{}
	hdr.Set("Cookie", "jwt="+token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	waitOnline(t, h, 1)

	h.Publish(Event{Type: PostCreated, PostID: 3, UserID: 5})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var evt Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if evt.Type != PostCreated || evt.PostID != 3 {
		t.Errorf("got %+v", evt)
	}
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://app.example"})
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "api.example", true},
		{"https://app.example", "api.example", true},
		{"https://api.example", "api.example", true},
		{"https://evil.example", "api.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Host = tt.host
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := check(req); got != tt.want {
			t.Errorf("checkOrigin(%q, host %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}

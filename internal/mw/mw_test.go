package mw

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func init() { gin.SetMode(gin.TestMode) }

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		origin      string
		method      string
		wantAllowed bool
		wantStatus  int
	}{
		{"dev echoes any origin", "dev", "http://localhost:3000", http.MethodGet, true, http.StatusOK},
		{"prod allowed origin", "prod", "https://app.example", http.MethodGet, true, http.StatusOK},
		{"prod same host", "prod", "http://example.com", http.MethodGet, true, http.StatusOK},
		{"prod foreign origin", "prod", "https://evil.example", http.MethodGet, false, http.StatusOK},
		{"preflight", "prod", "https://app.example", http.MethodOptions, true, http.StatusNoContent},
		{"no origin", "prod", "", http.MethodGet, false, http.StatusOK},
	}

	r := func(env string) *gin.Engine {
		e := gin.New()
		e.Use(CORS(env, []string{"https://app.example/"}))
		e.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		e.OPTIONS("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		return e
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r(tt.env).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			got := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantAllowed && got != tt.origin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.wantAllowed && got != "" {
				t.Errorf("Allow-Origin = %q, want empty", got)
			}
			if tt.wantAllowed && w.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("Allow-Credentials should be true for allowed origins")
			}
		})
	}
}

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(rate.Every(time.Hour), 2, time.Minute)
	defer l.Stop()

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests within burst should pass")
	}
	if l.Allow("a") {
		t.Error("third request should be limited")
	}
	if !l.Allow("b") {
		t.Error("other keys have their own bucket")
	}
}

func TestLimiter_Sweep(t *testing.T) {
	l := NewLimiter(rate.Every(time.Second), 1, time.Minute)
	defer l.Stop()
	l.Allow("a")
	l.Allow("b")

	l.sweep(time.Now())
	if l.size() != 2 {
		t.Errorf("size() = %d, want 2 before ttl", l.size())
	}
	l.sweep(time.Now().Add(2 * time.Minute))
	if l.size() != 0 {
		t.Errorf("size() = %d, want 0 after ttl", l.size())
	}
	l.Stop()
	l.Stop()
}

func TestLimiter_BackgroundSweep(t *testing.T) {
	l := NewLimiter(rate.Every(time.Hour), 1, 20*time.Millisecond)
	defer l.Stop()
	l.Allow("a")

	deadline := time.Now().Add(2 * time.Second)
	for l.size() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("idle bucket was not collected without any middleware attached")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l := NewLimiter(rate.Every(time.Hour), 1, time.Minute)
	defer l.Stop()
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = orig }()

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	out := buf.String()
	for _, want := range []string{`"level":"error"`, `"path":"/boom"`, `"status":500`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %s", out, want)
		}
	}
}

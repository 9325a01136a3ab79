package server

import (
	"context"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type tick struct {
	N int `json:"n"`
}

func TestStream_UntilChannelCloses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ticks", func(c *gin.Context) {
		ch := make(chan tick, 2)
		ch <- tick{N: 1}
		ch <- tick{N: 2}
		close(ch)
		Stream(c, "tick", ch, time.Minute)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ticks", nil))

	ct := w.Header().Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := w.Body.String()
	if strings.Count(body, "event:tick") != 2 {
		t.Errorf("expected two events, got %q", body)
	}
	if !strings.Contains(body, `{"n":1}`) || !strings.Contains(body, `{"n":2}`) {
		t.Errorf("missing payloads in %q", body)
	}
}

func TestStream_KeepAliveAndClientGone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	done := make(chan struct{})
	r.GET("/idle", func(c *gin.Context) {
		defer close(done)
		Stream(c, "tick", make(chan tick), 10*time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/idle", nil).WithContext(ctx))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end with the request context")
	}
	if !strings.Contains(w.Body.String(), ": keepalive") {
		t.Errorf("expected keepalive comments, got %q", w.Body.String())
	}
}

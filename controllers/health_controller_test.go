package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeCounter struct {
	count int64
	err   error
}

func (f *fakeCounter) Count(ctx context.Context) (int64, error) {
	return f.count, f.err
}

func healthRouter(counter CandleCounter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", NewHealthController(counter).CheckHealth)
	return router
}

func TestCheckHealthOK(t *testing.T) {
	router := healthRouter(&fakeCounter{count: 342})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Candles int64  `json:"candles"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" || body.Candles != 342 {
		t.Fatalf("body = %+v, want ok/342", body)
	}
}

func TestCheckHealthDegraded(t *testing.T) {
	router := healthRouter(&fakeCounter{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"socialapi/config"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func TestSeededMemoryBackendServesLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)
	ctx := context.Background()

	cfg := &config.Config{
		StoreBackend:   config.BackendMemory,
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		RequestTimeout: 5 * time.Second,
		SeedUsers:      []string{"ann,Ann@Example.com,pa,ss"},
	}
	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		t.Fatalf("openBackend() error: %v", err)
	}
	defer b.close(log)

	seeds := append(cfg.SeedUsers, "bob,bob@example.com,secret", "ann,ann@example.com,other")
	if err := seedUsers(ctx, b.users, seeds, log); err != nil {
		t.Fatalf("seedUsers() error: %v", err)
	}
	router := newRouter(cfg, b, log)

	tests := []struct {
		body string
		want int
	}{
		{`{"email":"ann@example.com","password":"pa,ss"}`, http.StatusOK},
		{`{"email":"bob@example.com","password":"secret"}`, http.StatusOK},
		// the duplicate entry did not replace ann's password
		{`{"email":"ann@example.com","password":"other"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/authenticate", strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("authenticate %s: status = %d, want %d (body %s)", tt.body, rec.Code, tt.want, rec.Body.String())
			continue
		}
		if tt.want != http.StatusOK {
			continue
		}
		var login struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil || login.Token == "" {
			t.Fatalf("authenticate %s: body %s", tt.body, rec.Body.String())
		}

		req = httptest.NewRequest(http.MethodGet, "/api/user", nil)
		req.Header.Set("Authorization", "Bearer "+login.Token)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET /api/user status = %d, want 200", rec.Code)
		}
	}
}

func TestParseUserEntryRejects(t *testing.T) {
	for _, entry := range []string{"", "ann", "ann,ann@example.com", " ,ann@example.com,pw", "ann, ,pw", "ann,ann@example.com,"} {
		if _, err := parseUserEntry(entry); err == nil {
			t.Errorf("parseUserEntry(%q) succeeded, want error", entry)
		}
	}
}

func TestSeedUsersReturnsEntryError(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{StoreBackend: config.BackendMemory}
	b, err := openBackend(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("openBackend() error: %v", err)
	}

	err = seedUsers(context.Background(), b.users, []string{"ann,ann@example.com,pw", "broken"}, log)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("seedUsers() error = %v, want the bad entry named", err)
	}
}

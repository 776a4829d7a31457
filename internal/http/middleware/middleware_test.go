package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/correspondence-backend/internal/platform/ctxutil"
	"github.com/yungbote/correspondence-backend/internal/platform/logger"
)

const testSecret = "test-secret"

func newAuthRouter(t *testing.T, extra ...gin.HandlerFunc) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	am, err := NewAuthMiddleware(logger.NewNop(), testSecret)
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}
	r := gin.New()
	handlers := append([]gin.HandlerFunc{am.RequireAuth()}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		rd := ctxutil.GetRequestData(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user": rd.UserID.String(), "name": rd.DisplayName, "role": rd.Role})
	})
	r.GET("/me", handlers...)
	return r
}

func TestRequireAuth(t *testing.T) {
	userID := uuid.New()
	valid, err := SignToken(testSecret, userID, "Dana", "manager", time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	expired, _ := SignToken(testSecret, userID, "Dana", "manager", -time.Minute)
	foreign, _ := SignToken("other-secret", userID, "Dana", "manager", time.Hour)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"},
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"valid header", "Bearer " + valid, "", http.StatusOK},
		{"valid query", "", valid, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, "", http.StatusUnauthorized},
		{"alg none", "Bearer " + noneAlg, "", http.StatusUnauthorized},
		{"bad subject", "Bearer " + badSubject, "", http.StatusUnauthorized},
	}
	r := newAuthRouter(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := "/me"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newAuthRouter(t, RequireRole("manager", "admin"))
	for role, want := range map[string]int{"Manager": http.StatusOK, "admin": http.StatusOK, "staff": http.StatusForbidden, "": http.StatusForbidden} {
		tok, _ := SignToken(testSecret, uuid.New(), "x", role, time.Hour)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("role %q: status=%d want %d", role, rec.Code, want)
		}
	}
}

func TestNewAuthMiddlewareRequiresSecret(t *testing.T) {
	if _, err := NewAuthMiddleware(logger.NewNop(), " "); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestAttachTraceContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext(), RequestLogger(logger.NewNop()))
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen == nil || seen.RequestID != "req-42" || seen.TraceID == "" {
		t.Fatalf("trace data=%+v", seen)
	}
	if rec.Header().Get(headerRequestID) != "req-42" || rec.Header().Get(headerTraceID) != seen.TraceID {
		t.Fatalf("headers=%v", rec.Header())
	}
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		origins []string
		origin  string
	}{
		{nil, "http://localhost:5173"},
		{[]string{"https://desk.example.com"}, "https://desk.example.com"},
	} {
		r := gin.New()
		r.Use(CORS(tc.origins))
		r.OPTIONS("/api/assistant/ask", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		req := httptest.NewRequest(http.MethodOptions, "/api/assistant/ask", nil)
		req.Header.Set("Origin", tc.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.origin {
			t.Fatalf("allow-origin=%q want %q", got, tc.origin)
		}
	}
}

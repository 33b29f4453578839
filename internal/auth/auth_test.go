package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIssueAndParse(t *testing.T) {
	s := NewSigner("studytracker", "secret", time.Minute, time.Hour)
	pair, err := s.Issue("admin", RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := s.Parse(pair.AccessToken, KindAccess)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Subject != "admin" || claims.Role != RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
	if _, err := s.Parse(pair.RefreshToken, KindAccess); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := s.Parse(pair.AccessToken, KindRefresh); err == nil {
		t.Fatal("access token accepted as refresh token")
	}
}

func TestParseRejectsForeignTokens(t *testing.T) {
	a := NewSigner("studytracker", "secret", time.Minute, time.Hour)
	pair, _ := a.Issue("admin", RoleAdmin)

	if _, err := NewSigner("studytracker", "other", time.Minute, time.Hour).Parse(pair.AccessToken, KindAccess); err == nil {
		t.Error("token with wrong key accepted")
	}
	if _, err := NewSigner("someone-else", "secret", time.Minute, time.Hour).Parse(pair.AccessToken, KindAccess); err == nil {
		t.Error("token with wrong issuer accepted")
	}

	late := NewSigner("studytracker", "secret", time.Minute, time.Hour)
	late.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := late.Parse(pair.AccessToken, KindAccess); err == nil {
		t.Error("expired token accepted")
	}
}

func newRouter(s *Signer) *gin.Engine {
	r := gin.New()
	NewHandler(s, "key-123").Register(r.Group("/v1"))
	r.GET("/v1/admin/ping", RequireRole(s, RoleAdmin), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"sub": claims.Subject})
	})
	return r
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTokenFlow(t *testing.T) {
	s := NewSigner("studytracker", "secret", time.Minute, time.Hour)
	r := newRouter(s)

	if w := postJSON(r, "/v1/auth/token", map[string]string{"api_key": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status %d", w.Code)
	}

	w := postJSON(r, "/v1/auth/token", map[string]string{"api_key": "key-123"})
	if w.Code != http.StatusCreated {
		t.Fatalf("token: status %d: %s", w.Code, w.Body)
	}
	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("ping with access token: status %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tokens.RefreshToken)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("ping with refresh token: status %d", w.Code)
	}

	if w := postJSON(r, "/v1/auth/refresh", map[string]string{"refresh_token": tokens.RefreshToken}); w.Code != http.StatusCreated {
		t.Fatalf("refresh: status %d", w.Code)
	}
	if w := postJSON(r, "/v1/auth/refresh", map[string]string{"refresh_token": tokens.AccessToken}); w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh with access token: status %d", w.Code)
	}
}

func TestRequireRoleRejectsOtherRoles(t *testing.T) {
	s := NewSigner("studytracker", "secret", time.Minute, time.Hour)
	pair, _ := s.Issue("viewer", "viewer")
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w := httptest.NewRecorder()
	newRouter(s).ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d, want 403", w.Code)
	}
}

package csrf

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Middleware())
	engine.GET("/read", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	engine.POST("/write", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return engine
}

func TestMiddlewareAllowsSafeMethods(t *testing.T) {
	engine := newTestEngine()
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/read", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET without token = %d, want 200", rec.Code)
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	engine := newTestEngine()
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/write", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("POST without cookie = %d, want 403", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != ErrorCode {
		t.Fatalf("code = %q, want %q", body["code"], ErrorCode)
	}
}

func TestMiddlewareRejectsMismatchedToken(t *testing.T) {
	engine := newTestEngine()
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-value"})
	req.Header.Set(HeaderName, "different-value")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mismatched token = %d, want 403", rec.Code)
	}
}

func TestMiddlewareRejectsHeaderWithoutCookie(t *testing.T) {
	engine := newTestEngine()
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set(HeaderName, "orphan-value")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("header without cookie = %d, want 403", rec.Code)
	}
}

func TestMiddlewareAllowsMatchingToken(t *testing.T) {
	engine := newTestEngine()
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "match-me"})
	req.Header.Set(HeaderName, "match-me")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("matching token = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestMiddlewareAcceptsFormField(t *testing.T) {
	engine := newTestEngine()
	form := strings.NewReader("_csrf=match-me")
	req := httptest.NewRequest(http.MethodPost, "/write", form)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "match-me"})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("form token = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestEnsureTokenMintsOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/token", func(c *gin.Context) {
		token, err := EnsureToken(c)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, token)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("mint = %d, want 200", rec.Code)
	}
	minted := rec.Body.String()
	if minted == "" {
		t.Fatal("empty minted token")
	}
	cookies := rec.Result().Cookies()
	var cookieValue string
	for _, cookie := range cookies {
		if cookie.Name == CookieName {
			cookieValue = cookie.Value
		}
	}
	if cookieValue != minted {
		t.Fatalf("cookie %q does not match minted token %q", cookieValue, minted)
	}

	// A request that already carries the cookie gets the same value back.
	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: minted})
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Body.String() != minted {
		t.Fatalf("second mint %q, want echo of %q", rec.Body.String(), minted)
	}
}

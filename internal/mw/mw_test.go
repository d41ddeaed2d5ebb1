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
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestResponseCache(t *testing.T) {
	calls := 0
	rc := NewResponseCache(time.Minute)

	r := gin.New()
	r.Use(rc.Middleware())
	r.GET("/meals", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.POST("/meals", func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})
	r.GET("/broken", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	get := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, target, nil)
		r.ServeHTTP(w, req)
		return w
	}

	first := get("/meals?limit=4&a=1")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := get("/meals?a=1&limit=4")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rc.Len())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/meals", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, 2, calls)

	rc.Invalidate()
	assert.Zero(t, rc.Len())
	third := get("/meals?limit=4&a=1")
	assert.JSONEq(t, `{"calls":3}`, third.Body.String())

	// Failures are never cached.
	get("/broken")
	get("/broken")
	assert.Equal(t, 5, calls)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// A different client has its own bucket.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&buf)))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/missing", nil)
	r.ServeHTTP(w, req)

	out := buf.String()
	assert.True(t, strings.Contains(out, `"level":"warn"`), out)
	assert.True(t, strings.Contains(out, `"path":"/missing"`), out)
	assert.True(t, strings.Contains(out, `"status":404`), out)
}

package http

import (
	"crypto/subtle"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Request wraps *http.Request with the lookups the bridge endpoints need.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Query returns a query-string value, or fallback when it is empty.
func (req *Request) Query(key string, fallback ...string) string {
	if v := req.raw.URL.Query().Get(key); v != "" {
		return v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// RouteParam returns a chi route parameter; "*" is the wildcard tail.
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// Header returns a request header value.
func (req *Request) Header(key string) string {
	return req.raw.Header.Get(key)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func (req *Request) BearerToken() string {
	token, ok := strings.CutPrefix(req.Header("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}

// ContentType returns the media type of the body without parameters, in
// lower case. It is empty when the header is missing or malformed.
func (req *Request) ContentType() string {
	mt, _, err := mime.ParseMediaType(req.Header("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// IsJSON reports whether the body is declared as application/json.
func (req *Request) IsJSON() bool {
	return req.ContentType() == "application/json"
}

// ── Middleware ───────────────────────────────────────────────────────────────

// RequireBearer rejects requests whose bearer token is not secret with a
// 401 JSON response. An empty secret lets everything through.
//
//	r.Middleware(gohttp.RequireBearer(cfg.Bridge.Secret))
func RequireBearer(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := NewRequest(r).BearerToken()
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				NewResponse(w).Unauthorized()
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON answers 415 to requests whose body is not application/json.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := NewRequest(r)
		if !req.IsJSON() {
			NewResponse(w).Error(http.StatusUnsupportedMediaType,
				"Content-Type must be application/json, got %q.", req.Header("Content-Type"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

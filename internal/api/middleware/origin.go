package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultOrigins are the loopback origins a local UI is served from.
var DefaultOrigins = []string{
	"http://localhost:1420",
	"http://127.0.0.1:1420",
	"http://tauri.localhost",
	"tauri://localhost",
}

// OriginPolicy decides which browser origins may call the API. Requests
// without an Origin header come from non-browser clients and are allowed.
type OriginPolicy struct {
	any     bool
	allowed map[string]bool
}

// NewOriginPolicy creates a policy over origins. "*" allows every origin;
// an empty list falls back to DefaultOrigins.
func NewOriginPolicy(origins []string) *OriginPolicy {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}
	p := &OriginPolicy{allowed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		o = normalizeOrigin(o)
		if o == "*" {
			p.any = true
		}
		if o != "" {
			p.allowed[o] = true
		}
	}
	return p
}

// Origins returns the allowed origins in configuration form.
func (p *OriginPolicy) Origins() []string {
	if p.any {
		return []string{"*"}
	}
	origins := make([]string, 0, len(p.allowed))
	for o := range p.allowed {
		origins = append(origins, o)
	}
	return origins
}

// Allows reports whether origin may call the API.
func (p *OriginPolicy) Allows(origin string) bool {
	if origin == "" || p.any {
		return true
	}
	return p.allowed[normalizeOrigin(origin)]
}

// AllowsRequest checks the Origin header of r. It fits
// websocket.Upgrader.CheckOrigin.
func (p *OriginPolicy) AllowsRequest(r *http.Request) bool {
	return p.Allows(r.Header.Get("Origin"))
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
}

// OriginGuard rejects browser requests from origins outside policy with
// 403, same-host origins included.
func OriginGuard(policy *OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !policy.AllowsRequest(c.Request) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "origin not allowed",
			})
			return
		}
		c.Next()
	}
}

// RequireJSON rejects request bodies not declared as application/json
// with 415. Browsers send text/plain and form bodies cross-origin without
// a preflight; JSON always needs one.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if err != nil || mediaType != "application/json" {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "Content-Type must be application/json",
			})
			return
		}
		c.Next()
	}
}

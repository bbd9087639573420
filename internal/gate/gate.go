// Package gate enforces the internal-only trust model: every non-exempt
// request must present the shared internal token, and optionally a source
// identity from a configured allowlist, before any business logic runs.
package gate

import (
	"crypto/subtle"
	"net/http"
	"sort"
	"strings"

	"github.com/nirasova/ether-gateway/common/httputil"
	"github.com/nirasova/ether-gateway/common/middleware"
	"github.com/nirasova/ether-gateway/internal/contract"
	"github.com/nirasova/ether-gateway/internal/meta"
)

// HeaderInternalToken carries the shared secret on every internal call.
const HeaderInternalToken = "X-Ether-Internal-Token"

// defaultExemptPrefixes bypass the gate entirely. "/" is matched exactly,
// the rest by prefix.
var defaultExemptPrefixes = []string{"/health", "/readyz", "/version", "/metrics", "/"}

// Config holds the gate's credentials and allowlist.
type Config struct {
	// Secret is the shared internal token. An empty secret on a non-exempt
	// path is a fail-closed misconfiguration, not open access.
	Secret string

	// AllowedSources restricts which declared sources may pass. Empty
	// means no allowlist enforcement at the transport level.
	AllowedSources []string

	// ExemptPrefixes overrides the default exempt path list when non-nil.
	ExemptPrefixes []string
}

// Gate is the transport-level access check.
type Gate struct {
	secret         []byte
	allowedSources map[string]struct{}
	allowedSorted  []string
	exemptPrefixes []string
}

// New builds a Gate from configuration. Source names are trimmed and
// empty entries dropped.
func New(cfg Config) *Gate {
	g := &Gate{
		secret:         []byte(cfg.Secret),
		allowedSources: make(map[string]struct{}),
		exemptPrefixes: cfg.ExemptPrefixes,
	}
	if g.exemptPrefixes == nil {
		g.exemptPrefixes = defaultExemptPrefixes
	}
	for _, s := range cfg.AllowedSources {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := g.allowedSources[s]; !ok {
			g.allowedSources[s] = struct{}{}
			g.allowedSorted = append(g.allowedSorted, s)
		}
	}
	sort.Strings(g.allowedSorted)
	return g
}

// Wrap returns next guarded by the gate. The deny paths respond with the
// canonical error envelope and never reach next.
func (g *Gate) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.exempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		requestID := middleware.GetRequestID(r.Context())

		if len(g.secret) == 0 {
			e := contract.DependencyDown("gateway is sealed; internal token is not configured")
			httputil.WriteJSON(w, e.HTTPStatus(), contract.NewErrorResponse(requestID, e))
			return
		}

		token := r.Header.Get(HeaderInternalToken)
		if subtle.ConstantTimeCompare([]byte(token), g.secret) != 1 {
			e := contract.UnauthorizedCaller("missing or invalid internal token")
			httputil.WriteJSON(w, e.HTTPStatus(), contract.NewErrorResponse(requestID, e))
			return
		}

		m := meta.Extract(r)
		if m.Source != "" && len(g.allowedSources) > 0 {
			if _, ok := g.allowedSources[m.Source]; !ok {
				e := contract.Forbidden("source '" + m.Source + "' is not allowed").WithDetails(map[string]any{
					"allowed_sources": g.allowedSorted,
				})
				httputil.WriteJSON(w, e.HTTPStatus(), contract.NewErrorResponse(requestID, e))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (g *Gate) exempt(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, pfx := range g.exemptPrefixes {
		if pfx == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, pfx) {
			return true
		}
	}
	return false
}

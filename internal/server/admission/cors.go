package admission

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORSPolicyName names the only CORS policy the server registers.
const CORSPolicyName = "allow-specific-origins"

// corsMethods lists every method a cross-origin request may use.
var corsMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodConnect,
	http.MethodTrace,
}

// CORSPolicy restricts cross-origin requests to a fixed origin list.
type CORSPolicy struct {
	Name    string
	Origins []string
	cors    *cors.Cors
	rec     Recorder
}

// NormalizeOrigins prefixes https:// to origins that carry no http: or
// https: scheme. Blank entries are dropped; order is preserved.
func NormalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		lower := strings.ToLower(o)
		if !strings.HasPrefix(lower, "http:") && !strings.HasPrefix(lower, "https:") {
			o = "https://" + o
		}
		out = append(out, o)
	}
	return out
}

// NewCORSPolicy returns nil when origins is empty, after warning that
// browsers will refuse cross-origin calls.
func NewCORSPolicy(origins []string, logger *slog.Logger, rec Recorder) *CORSPolicy {
	normalized := NormalizeOrigins(origins)
	if len(normalized) == 0 {
		logger.Warn("No allowed origins specified, CORS requests will fail")
		return nil
	}

	logger.Info("cors policy configured",
		"policy", CORSPolicyName,
		"origins", normalized,
	)

	return &CORSPolicy{
		Name:    CORSPolicyName,
		Origins: normalized,
		cors: cors.New(cors.Options{
			AllowedOrigins: normalized,
			AllowedMethods: corsMethods,
			AllowedHeaders: []string{"*"},
		}),
		rec: rec,
	}
}

// Middleware applies the policy.
func (p *CORSPolicy) Middleware(next http.Handler) http.Handler {
	h := p.cors.Handler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions && r.Header.Get("Origin") != "" &&
			r.Header.Get("Access-Control-Request-Method") != "" {
			p.rec.IncCORSPreflight()
		}
		h.ServeHTTP(w, r)
	})
}

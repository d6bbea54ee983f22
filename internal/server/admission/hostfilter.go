package admission

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/webhost-go/internal/core/domain"
)

// HostFilter admits requests whose Host header matches an allowlist.
//
// Entries are matched case-insensitively against the host without port.
// "*" admits every host; "*.example.com" admits any subdomain of
// example.com but not example.com itself. Requests without a Host header
// are admitted.
type HostFilter struct {
	exact    map[string]struct{}
	suffixes []string
	any      bool
	logger   *slog.Logger
	rec      Recorder
}

// NewHostFilter returns nil when hosts is empty.
func NewHostFilter(hosts []string, logger *slog.Logger, rec Recorder) *HostFilter {
	f := &HostFilter{
		exact:  make(map[string]struct{}),
		logger: logger,
		rec:    rec,
	}

	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
			continue
		case h == "*":
			f.any = true
		case strings.HasPrefix(h, "*."):
			f.suffixes = append(f.suffixes, h[1:])
		default:
			f.exact[stripBrackets(h)] = struct{}{}
		}
	}

	if !f.any && len(f.exact) == 0 && len(f.suffixes) == 0 {
		return nil
	}
	return f
}

// Allowed reports whether a Host header value passes the filter.
func (f *HostFilter) Allowed(hostHeader string) bool {
	if f.any || hostHeader == "" {
		return true
	}

	host := strings.ToLower(hostOnly(hostHeader))
	if _, ok := f.exact[host]; ok {
		return true
	}
	for _, suffix := range f.suffixes {
		if len(host) > len(suffix) && strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// Middleware rejects disallowed hosts with 400.
func (f *HostFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Allowed(r.Host) {
			f.rec.IncHostRejected()
			f.logger.Debug("request rejected by host filter",
				"host", r.Host,
				"path", r.URL.Path,
			)
			writeError(w, http.StatusBadRequest, domain.ErrHostNotAllowed.Code, domain.ErrHostNotAllowed.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// hostOnly strips an optional port and IPv6 brackets.
func hostOnly(hostport string) string {
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return host
	}
	return stripBrackets(hostport)
}

func stripBrackets(host string) string {
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host[1 : len(host)-1]
	}
	return host
}

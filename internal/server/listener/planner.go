package listener

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/netip"
	"strconv"
	"strings"

	"github.com/yndnr/webhost-go/internal/core/domain"
	"github.com/yndnr/webhost-go/internal/server/config"
)

const maxPort = 65535

// Scheme identifies the protocol served on a listener.
type Scheme string

// Listener schemes.
const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
)

// CertificateResolver loads TLS identities. *tlscert.Resolver implements it.
type CertificateResolver interface {
	Resolve(certPath, keyPath, password string) (*tls.Certificate, error)
	Development(hosts []string) (*tls.Certificate, error)
}

// Spec describes one planned listener.
type Spec struct {
	Scheme  Scheme
	Address string
	Port    int

	// TLS is nil for plain HTTP.
	TLS *tls.Config

	// Development is set when the TLS identity is a generated self-signed
	// certificate.
	Development bool
}

func (s Spec) String() string {
	if s.Development {
		return fmt.Sprintf("%s://%s (development certificate)", s.Scheme, s.Address)
	}
	return fmt.Sprintf("%s://%s", s.Scheme, s.Address)
}

// Plan is the ordered list of listeners to bind.
type Plan struct {
	// BindAddress is the explicit address, or the zero Addr for any address.
	BindAddress netip.Addr
	Specs       []Spec
}

// Planner builds listen plans.
type Planner struct {
	resolver CertificateResolver
	logger   *slog.Logger
}

// NewPlanner creates a planner.
func NewPlanner(resolver CertificateResolver, logger *slog.Logger) *Planner {
	return &Planner{resolver: resolver, logger: logger}
}

// Plan derives the listeners from settings.
//
// The certificate is only resolved when the HTTPS slot is active. Any
// error aborts planning before a socket is opened.
func (p *Planner) Plan(s *config.ServerSettings) (*Plan, error) {
	if err := checkPorts(s); err != nil {
		return nil, err
	}

	if s.HTTPPort == 0 && s.HTTPSPort == 0 {
		p.logger.Error("no server ports defined",
			"http_port", s.HTTPPort,
			"https_port", s.HTTPSPort,
		)
		return nil, domain.ErrNoServerPorts
	}

	addr, ok := ParseBindAddress(s.BindAddress)
	if !ok {
		p.logger.Warn("bind address is not an IP literal, listening on any address",
			"bind_address", s.BindAddress,
		)
	}

	plan := &Plan{BindAddress: addr}

	if s.HTTPPort > 0 {
		plan.Specs = append(plan.Specs, Spec{
			Scheme:  SchemeHTTP,
			Address: hostPort(addr, s.HTTPPort),
			Port:    s.HTTPPort,
		})
	}

	if s.HTTPSPort > 0 {
		spec, err := p.planTLS(s, addr)
		if err != nil {
			return nil, err
		}
		plan.Specs = append(plan.Specs, spec)
	}

	for _, spec := range plan.Specs {
		p.logger.Debug("listener planned", "listener", spec.String())
	}
	return plan, nil
}

// checkPorts rejects ports that do not fit in a TCP port number.
func checkPorts(s *config.ServerSettings) error {
	var diags []string
	for _, port := range []struct {
		key   string
		value int
	}{
		{"web_server.http_port", s.HTTPPort},
		{"web_server.https_port", s.HTTPSPort},
	} {
		if port.value < 0 || port.value > maxPort {
			diags = append(diags, fmt.Sprintf("%s: must be between 0 and %d (got %d)", port.key, maxPort, port.value))
		}
	}
	if len(diags) > 0 {
		return domain.ErrSettingsModel.WithDetails("listener ports").WithDiagnostics(diags)
	}
	return nil
}

func (p *Planner) planTLS(s *config.ServerSettings, addr netip.Addr) (Spec, error) {
	spec := Spec{
		Scheme:  SchemeHTTPS,
		Address: hostPort(addr, s.HTTPSPort),
		Port:    s.HTTPSPort,
	}

	var (
		cert *tls.Certificate
		err  error
	)
	if s.SSLCertificateFile == "" {
		p.logger.Warn("Https port specified without certificate file",
			"https_port", s.HTTPSPort,
		)
		cert, err = p.resolver.Development(s.AllowedHosts)
		spec.Development = true
	} else {
		cert, err = p.resolver.Resolve(s.SSLCertificateFile, s.SSLCertificateKeyFile, s.SSLCertificatePassword)
	}
	if err != nil {
		p.logger.Error("ssl certificate could not be resolved",
			"file", s.SSLCertificateFile,
			"error", err,
		)
		return Spec{}, err
	}

	spec.TLS = &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}
	return spec, nil
}

// ParseBindAddress parses the bind_address setting.
//
// It returns the explicit address and true for an IP literal (brackets
// around IPv6 literals are accepted). "*" and "" return the zero Addr and
// true. Anything else returns the zero Addr and false; callers listen on
// any address in that case.
func ParseBindAddress(raw string) (netip.Addr, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return netip.Addr{}, true
	}

	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}

// hostPort renders the listen address; the zero Addr means any address.
func hostPort(addr netip.Addr, port int) string {
	if !addr.IsValid() {
		return ":" + strconv.Itoa(port)
	}
	return netip.AddrPortFrom(addr, uint16(port)).String()
}

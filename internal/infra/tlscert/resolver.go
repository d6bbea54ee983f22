package tlscert

import (
	"bytes"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yndnr/webhost-go/internal/core/domain"
)

// Resolver turns certificate settings into a *tls.Certificate.
type Resolver struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger for the resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithClock overrides the time source used for expiry checks and
// development certificates.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a certificate resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads the identity stored at certPath.
//
// keyPath is only consulted for .pem certificates. password may be empty.
func (r *Resolver) Resolve(certPath, keyPath, password string) (*tls.Certificate, error) {
	var (
		cert *tls.Certificate
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(certPath)); ext {
	case "":
		var data []byte
		if data, err = readFile(certPath); err != nil {
			return nil, err
		}
		if looksLikePEM(data) {
			cert, err = parsePEM(data, data, password)
		} else {
			cert, err = parsePKCS12(data, password)
		}
	case ".pem":
		cert, err = r.resolvePEM(certPath, keyPath, password)
	case ".pfx", ".p12":
		var data []byte
		if data, err = readFile(certPath); err != nil {
			return nil, err
		}
		cert, err = parsePKCS12(data, password)
	default:
		return nil, domain.ErrCertificateFormat.WithDetails(certPath)
	}

	if err != nil {
		return nil, annotate(err, certPath)
	}

	if now := r.now(); now.After(cert.Leaf.NotAfter) {
		r.logger.Warn("ssl certificate has expired",
			"path", certPath,
			"subject", cert.Leaf.Subject.CommonName,
			"not_after", cert.Leaf.NotAfter,
		)
	}

	r.logger.Debug("ssl certificate loaded",
		"path", certPath,
		"subject", cert.Leaf.Subject.CommonName,
		"chain", len(cert.Certificate),
	)
	return cert, nil
}

func (r *Resolver) resolvePEM(certPath, keyPath, password string) (*tls.Certificate, error) {
	certData, err := readFile(certPath)
	if err != nil {
		return nil, err
	}

	keyData := certData
	if keyPath != "" {
		if keyData, err = readFile(keyPath); err != nil {
			return nil, err
		}
	}

	return parsePEM(certData, keyData, password)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrCertificateLoad.WithDetails(path).WithCause(err)
	}
	return data, nil
}

func looksLikePEM(data []byte) bool {
	return bytes.Contains(data, []byte("-----BEGIN "))
}

// newCertificate assembles the identity and checks that the key belongs
// to the leaf certificate.
func newCertificate(leaf *x509.Certificate, chain [][]byte, key crypto.PrivateKey) (*tls.Certificate, error) {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, domain.ErrCertificateLoad.WithCause(fmt.Errorf("unsupported private key type %T", key))
	}

	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(leaf.PublicKey) {
		return nil, domain.ErrCertificateLoad.WithCause(fmt.Errorf("private key does not match certificate %q", leaf.Subject.CommonName))
	}

	return &tls.Certificate{
		Certificate: chain,
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// annotate records the certificate path on errors that lack details.
func annotate(err error, path string) error {
	de, ok := err.(*domain.DomainError)
	if !ok {
		return domain.ErrCertificateLoad.WithDetails(path).WithCause(err)
	}
	if de.Details == "" {
		return de.WithDetails(path)
	}
	return de
}

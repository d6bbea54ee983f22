package tlscert

import (
	"crypto/tls"
	"errors"

	"software.sslmate.com/src/go-pkcs12"

	"github.com/yndnr/webhost-go/internal/core/domain"
)

// parsePKCS12 decodes a PKCS#12 archive holding one key, its certificate
// and optional intermediates.
func parsePKCS12(data []byte, password string) (*tls.Certificate, error) {
	key, leaf, cas, err := pkcs12.DecodeChain(data, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, domain.ErrCertificatePassword.WithCause(err)
		}
		return nil, domain.ErrCertificateLoad.WithCause(err)
	}

	chain := make([][]byte, 0, 1+len(cas))
	chain = append(chain, leaf.Raw)
	for _, ca := range cas {
		chain = append(chain, ca.Raw)
	}

	return newCertificate(leaf, chain, key)
}

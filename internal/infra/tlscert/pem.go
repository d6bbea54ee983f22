package tlscert

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/youmark/pkcs8"

	"github.com/yndnr/webhost-go/internal/core/domain"
)

var (
	errNoCertificate = errors.New("no CERTIFICATE block found")
	errNoPrivateKey  = errors.New("no private key block found")
	errKeyEncrypted  = errors.New("private key is encrypted but no password was given")
	errKeyPlain      = errors.New("a password was given but the private key is not encrypted")
)

// parsePEM loads the certificate chain from certData and the private key
// from keyData. Both may be the same buffer.
func parsePEM(certData, keyData []byte, password string) (*tls.Certificate, error) {
	chain, leaf, err := parseChain(certData)
	if err != nil {
		return nil, err
	}

	key, err := parseKey(keyData, password)
	if err != nil {
		return nil, err
	}

	return newCertificate(leaf, chain, key)
}

// parseChain collects every CERTIFICATE block in order. The first one is
// the leaf.
func parseChain(data []byte) ([][]byte, *x509.Certificate, error) {
	var (
		chain [][]byte
		leaf  *x509.Certificate
	)

	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, domain.ErrCertificateLoad.WithCause(fmt.Errorf("parse certificate: %w", err))
		}
		if leaf == nil {
			leaf = c
		}
		chain = append(chain, block.Bytes)
	}

	if leaf == nil {
		return nil, nil, domain.ErrCertificateLoad.WithCause(errNoCertificate)
	}
	return chain, leaf, nil
}

// parseKey returns the first private key found in data.
func parseKey(data []byte, password string) (crypto.PrivateKey, error) {
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}

		switch block.Type {
		case "ENCRYPTED PRIVATE KEY":
			if password == "" {
				return nil, domain.ErrCertificateLoad.WithCause(errKeyEncrypted)
			}
			key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, []byte(password))
			if err != nil {
				return nil, domain.ErrCertificatePassword.WithCause(err)
			}
			return key, nil

		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			der := block.Bytes
			//nolint:staticcheck // legacy Proc-Type encryption is still found in the wild
			encrypted := x509.IsEncryptedPEMBlock(block)
			switch {
			case encrypted && password == "":
				return nil, domain.ErrCertificateLoad.WithCause(errKeyEncrypted)
			case encrypted:
				var err error
				//nolint:staticcheck
				der, err = x509.DecryptPEMBlock(block, []byte(password))
				if err != nil {
					if errors.Is(err, x509.IncorrectPasswordError) {
						return nil, domain.ErrCertificatePassword.WithCause(err)
					}
					return nil, domain.ErrCertificateLoad.WithCause(err)
				}
			case password != "":
				return nil, domain.ErrCertificateLoad.WithCause(errKeyPlain)
			}
			return parseDERKey(block.Type, der)
		}
	}

	return nil, domain.ErrCertificateLoad.WithCause(errNoPrivateKey)
}

func parseDERKey(blockType string, der []byte) (crypto.PrivateKey, error) {
	var (
		key crypto.PrivateKey
		err error
	)
	switch blockType {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(der)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(der)
	default:
		key, err = x509.ParsePKCS8PrivateKey(der)
	}
	if err != nil {
		return nil, domain.ErrCertificateLoad.WithCause(fmt.Errorf("parse private key: %w", err))
	}
	return key, nil
}

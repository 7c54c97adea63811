// Package tlsconfig implements the TLS/mTLS acceptor factory (§4.A):
// given PEM paths, it produces a configured *tls.Config or a
// gasketerrors.GasketError of type TLSConfigError. Grounded in
// original_source/tls_utils.rs's CertificateManager, which builds an
// openssl SslAcceptor from the "mozilla_intermediate" profile for plain
// TLS and a stricter profile for mTLS; crypto/tls's cipher-suite list is
// fixed for TLS 1.3 and configurable only for 1.2, so the two profiles
// here are expressed as a minimum TLS version plus, for the TLS-1.2
// floor, an explicit intermediate-equivalent cipher suite list.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/teilomillet/gasket/internal/gasketerrors"
)

// intermediateCipherSuites mirrors the Mozilla "intermediate" compatibility
// profile: forward-secret AEAD suites only, still allowing TLS 1.2 clients.
var intermediateCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// NewTLSAcceptor builds the plain-TLS server config (§4.A): Mozilla
// "intermediate"-equivalent profile, session cache disabled.
func NewTLSAcceptor(privateKeyPath, certificateChainPath string) (*tls.Config, error) {
	cert, err := loadKeyPair(privateKeyPath, certificateChainPath)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates:           []tls.Certificate{cert},
		MinVersion:             tls.VersionTLS12,
		CipherSuites:           intermediateCipherSuites,
		SessionTicketsDisabled: true,
	}, nil
}

// NewMTLSAcceptor builds the mTLS server config (§4.A): stricter "modern"
// profile (TLS 1.3 floor), client certificates required and verified
// against clientCAPath, session cache disabled.
func NewMTLSAcceptor(privateKeyPath, certificateChainPath, clientCAPath string) (*tls.Config, error) {
	cert, err := loadKeyPair(privateKeyPath, certificateChainPath)
	if err != nil {
		return nil, err
	}

	caPEM, err := os.ReadFile(clientCAPath)
	if err != nil {
		return nil, gasketerrors.NewTLSConfigError("read client CA bundle", err)
	}

	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caPEM); !ok {
		return nil, gasketerrors.NewTLSConfigError("parse client CA bundle", nil)
	}

	return &tls.Config{
		Certificates:           []tls.Certificate{cert},
		MinVersion:             tls.VersionTLS13,
		ClientAuth:             tls.RequireAndVerifyClientCert,
		ClientCAs:              pool,
		SessionTicketsDisabled: true,
	}, nil
}

func loadKeyPair(privateKeyPath, certificateChainPath string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certificateChainPath, privateKeyPath)
	if err != nil {
		return tls.Certificate{}, gasketerrors.NewTLSConfigError("load certificate/key pair", err)
	}
	return cert, nil
}

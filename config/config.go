// Package config provides configuration management for Gasket. Unlike the
// teacher's YAML-file configuration, Gasket has no config file (spec §6):
// options are parsed from CLI flags and one environment variable, matching
// the precedence and default-path rules of §6 exactly.
package config

import (
	"flag"
	"fmt"
	"os"
)

const (
	defaultPort = 3000

	defaultPrivateKeyPath       = "private_key.pem"
	defaultCertificateChainPath = "certificate_chain.pem"
	defaultTLSCertPath          = "certificate_chain.crt"
	defaultClientCAPath         = "client_cert_path.pem"
)

// GasketOptions holds every value parsed from flags and the environment,
// per spec §6's CLI/flag table.
type GasketOptions struct {
	// Execute is the backend command line (§4.G); empty means no child is
	// spawned and the supervisor stays inert.
	Execute string

	PrivateKeyPath       string
	CertificateChainPath string
	ClientCAPath         string

	TLS  bool
	MTLS bool

	Throttling     bool
	CircuitBreaker bool
	Backoff        bool

	// Port is the inbound bind port, read from PORT (default 3000).
	// BackendPort is always Port+1.
	Port        int
	BackendPort int
}

// ParseFlags parses args (normally os.Args[1:]) into a GasketOptions,
// applying §6's long/short flag pairs, precedence, and default-path rules.
// PORT is read from the environment the way the teacher's cmd/hapax/main.go
// reads flags: parsed once, defaulted, never re-read.
func ParseFlags(args []string) (*GasketOptions, error) {
	fs := flag.NewFlagSet("gasket", flag.ContinueOnError)

	opts := &GasketOptions{}

	var execute string
	fs.StringVar(&execute, "execute", "", "backend command to supervise")
	fs.StringVar(&execute, "e", "", "backend command to supervise (shorthand)")

	var privateKey string
	fs.StringVar(&privateKey, "private-key", "", "path to the TLS private key")
	fs.StringVar(&privateKey, "p", "", "path to the TLS private key (shorthand)")

	var certChain string
	fs.StringVar(&certChain, "certificate-chain", "", "path to the TLS certificate chain")
	fs.StringVar(&certChain, "c", "", "path to the TLS certificate chain (shorthand)")

	var clientCA string
	fs.StringVar(&clientCA, "client-ca", "", "path to the mTLS client CA bundle")
	fs.StringVar(&clientCA, "a", "", "path to the mTLS client CA bundle (shorthand)")

	var tlsFlag, tlsShort bool
	fs.BoolVar(&tlsFlag, "tls", false, "terminate TLS")
	fs.BoolVar(&tlsShort, "t", false, "terminate TLS (shorthand)")

	var mtlsFlag, mtlsShort bool
	fs.BoolVar(&mtlsFlag, "mtls", false, "terminate mTLS")
	fs.BoolVar(&mtlsShort, "m", false, "terminate mTLS (shorthand)")

	var throttleFlag, throttleShort bool
	fs.BoolVar(&throttleFlag, "throttling", false, "throttling flag (recorded in the options; no throttling is applied)")
	fs.BoolVar(&throttleShort, "r", false, "throttling flag (shorthand)")

	var cbFlag, cbShort bool
	fs.BoolVar(&cbFlag, "circuitbreaker", false, "circuit breaker flag (recorded in the options; the breaker is always active)")
	fs.BoolVar(&cbShort, "b", false, "circuit breaker flag (shorthand)")

	var backoffFlag, backoffShort bool
	fs.BoolVar(&backoffFlag, "backoff", false, "enable the retry driver")
	fs.BoolVar(&backoffShort, "k", false, "enable the retry driver (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	opts.Execute = execute
	opts.PrivateKeyPath = privateKey
	opts.CertificateChainPath = certChain
	opts.ClientCAPath = clientCA
	opts.TLS = tlsFlag || tlsShort
	opts.MTLS = mtlsFlag || mtlsShort
	opts.Throttling = throttleFlag || throttleShort
	opts.CircuitBreaker = cbFlag || cbShort
	opts.Backoff = backoffFlag || backoffShort

	opts.applyDefaultPaths()

	opts.Port = portFromEnv()
	opts.BackendPort = opts.Port + 1

	return opts, nil
}

// applyDefaultPaths fills in the default PEM paths named in §6 when a TLS
// or mTLS flag was set but the corresponding path flag was omitted.
func (o *GasketOptions) applyDefaultPaths() {
	if !o.TLS && !o.MTLS {
		return
	}
	if o.PrivateKeyPath == "" {
		o.PrivateKeyPath = defaultPrivateKeyPath
	}
	if o.CertificateChainPath == "" {
		if o.MTLS {
			o.CertificateChainPath = defaultCertificateChainPath
		} else {
			o.CertificateChainPath = defaultTLSCertPath
		}
	}
	if o.MTLS && o.ClientCAPath == "" {
		o.ClientCAPath = defaultClientCAPath
	}
}

// Mode reports which §4.F server variant these options select. mTLS
// supersedes TLS; neither flag means plain HTTP.
func (o *GasketOptions) Mode() ServerMode {
	switch {
	case o.MTLS:
		return ModeMTLS
	case o.TLS:
		return ModeTLS
	default:
		return ModePlain
	}
}

// ServerMode names the §4.F server variant selected by flag precedence.
type ServerMode int

const (
	ModePlain ServerMode = iota
	ModeTLS
	ModeMTLS
)

func portFromEnv() int {
	raw := os.Getenv("PORT")
	if raw == "" {
		return defaultPort
	}
	port, err := parsePositiveInt(raw)
	if err != nil {
		return defaultPort
	}
	return port
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("non-positive port: %d", n)
	}
	return n, nil
}

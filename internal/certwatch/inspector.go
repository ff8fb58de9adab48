// Package certwatch annotates probes with certificate expiry warnings.
//
// The [Inspector] runs inside the TLS handshake of every probe. It never
// changes the trust decision: the verdict it hands back to crypto/tls is
// exactly the one the standard verifier would have reached.
package certwatch

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"
)

// DefaultThreshold is how close to expiry a certificate must be to warn.
const DefaultThreshold = 30 * 24 * time.Hour

const expiryLayout = "2006-01-02 15:04:05"

// Sink receives diagnostic messages for the current probe attempt.
type Sink interface {
	Add(msg string)
}

// Inspector checks leaf certificates for upcoming expiry.
type Inspector struct {
	threshold time.Duration
	roots     *x509.CertPool
	now       func() time.Time
}

// NewInspector creates an [Inspector].
//
// A threshold of zero uses [DefaultThreshold]. A nil roots pool verifies
// against the system roots.
func NewInspector(threshold time.Duration, roots *x509.CertPool) *Inspector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Inspector{
		threshold: threshold,
		roots:     roots,
		now:       time.Now,
	}
}

// Annotate appends an expiry warning to sink when cert expires within the
// threshold. It reports whether a warning was added.
func (in *Inspector) Annotate(cert *x509.Certificate, sink Sink) bool {
	if cert == nil {
		return false
	}
	now := in.now().UTC()
	if !cert.NotAfter.Before(now.Add(in.threshold)) {
		return false
	}
	days := int(cert.NotAfter.Sub(now).Hours() / 24)
	sink.Add(fmt.Sprintf("Certificate is expiring in %d days at %s UTC",
		days, cert.NotAfter.UTC().Format(expiryLayout)))
	return true
}

// VerifyConnection returns a hook for [tls.Config.VerifyConnection].
//
// The hook annotates the leaf certificate and then verifies the presented
// chain against the negotiated server name and the configured roots.
// serverName is used when the handshake carried no SNI (IP literals). The
// caller must set InsecureSkipVerify so the hook also sees certificates the
// standard verifier would reject; the hook then rejects them itself.
func (in *Inspector) VerifyConnection(serverName string, sink Sink) func(tls.ConnectionState) error {
	return func(cs tls.ConnectionState) error {
		if len(cs.PeerCertificates) == 0 {
			return errors.New("tls: server presented no certificates")
		}
		in.Annotate(cs.PeerCertificates[0], sink)
		name := cs.ServerName
		if name == "" {
			name = serverName
		}
		return in.verify(name, cs.PeerCertificates)
	}
}

// verify mirrors the checks crypto/tls performs for a client handshake.
func (in *Inspector) verify(serverName string, chain []*x509.Certificate) error {
	opts := x509.VerifyOptions{
		Roots:         in.roots,
		DNSName:       serverName,
		CurrentTime:   in.now(),
		Intermediates: x509.NewCertPool(),
	}
	for _, cert := range chain[1:] {
		opts.Intermediates.AddCert(cert)
	}
	_, err := chain[0].Verify(opts)
	return err
}

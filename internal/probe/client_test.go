package probe

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jpalmerr/peek/internal/certwatch"
	"github.com/jpalmerr/peek/internal/status"
)

func TestClient_Probe_StatusAndContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/welcome":
			_, _ = w.Write([]byte("<h1>Welcome</h1>"))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("nothing here"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Welcome, but down"))
		}
	}))
	defer server.Close()

	client := NewClient(5*time.Second, nil)
	defer client.Close()

	tests := []struct {
		name    string
		path    string
		pattern string
		want    status.Code
	}{
		{"content found", "/welcome", "Welcome", 200},
		{"content missing", "/welcome", "Goodbye", -200},
		{"wildcard", "/welcome", "*", 200},
		{"empty pattern", "/welcome", "", 200},
		{"not found without content", "/missing", "Welcome", -404},
		{"error status with content", "/down", "Welcome", 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := client.Probe(context.Background(), server.URL+tt.path, tt.pattern)
			if got := res.Code(); got != tt.want {
				t.Errorf("Probe().Code() = %v, want %v (message %q)", got, tt.want, res.Message)
			}
			if res.Err != nil {
				t.Errorf("Probe().Err = %v, want nil", res.Err)
			}
			if res.Message != "" {
				t.Errorf("Probe().Message = %q, want empty for plain http", res.Message)
			}
		})
	}
}

func TestClient_Probe_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	client := NewClient(2*time.Second, nil)
	res := client.Probe(context.Background(), target, "*")

	if got := res.Code(); got != 410 {
		t.Errorf("Probe().Code() = %v, want 410", got)
	}
	if !res.Outcome.TransportFailed {
		t.Error("Outcome.TransportFailed = false, want true")
	}
	if res.Err == nil || res.Message == "" {
		t.Errorf("expected error text in message, got err=%v message=%q", res.Err, res.Message)
	}
}

func TestClient_Probe_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient(50*time.Millisecond, nil)
	start := time.Now()
	res := client.Probe(context.Background(), server.URL, "*")

	if got := res.Code(); got != 410 {
		t.Errorf("Probe().Code() = %v, want 410 on timeout", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("probe took %v, want it bounded by the timeout", elapsed)
	}
}

func TestClient_Probe_BodyReadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Welcome"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, nil)

	res := client.Probe(context.Background(), server.URL, "Welcome")
	if got := res.Code(); got != -200 {
		t.Errorf("Probe().Code() = %v, want -200 when the body cannot be read", got)
	}
	if res.Message == "" {
		t.Error("Probe().Message is empty, want the read error")
	}

	res = client.Probe(context.Background(), server.URL, "*")
	if got := res.Code(); got != 200 {
		t.Errorf("Probe(*).Code() = %v, want 200 when no content is required", got)
	}
}

func TestClient_Probe_InvalidURL(t *testing.T) {
	client := NewClient(time.Second, nil)
	res := client.Probe(context.Background(), "http://[::1", "*")
	if got := res.Code(); got != 410 {
		t.Errorf("Probe().Code() = %v, want 410", got)
	}
}

// selfSignedServer starts a TLS server on 127.0.0.1 whose certificate
// expires at notAfter and returns it with a pool trusting it.
func selfSignedServer(t *testing.T, notAfter time.Time) (*httptest.Server, *x509.CertPool) {
	t.Helper()
	return selfSignedServerWith(t, notAfter, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Welcome"))
	}))
}

// selfSignedServerWith is selfSignedServer with a custom handler.
func selfSignedServerWith(t *testing.T, notAfter time.Time, handler http.Handler) (*httptest.Server, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "127.0.0.1"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate() error = %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.TLS = &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key, Leaf: cert}},
	}
	server.StartTLS()

	roots := x509.NewCertPool()
	roots.AddCert(cert)
	return server, roots
}

func TestClient_Probe_ExpiringCertificate(t *testing.T) {
	server, roots := selfSignedServer(t, time.Now().Add(10*24*time.Hour+time.Hour))
	defer server.Close()

	client := NewClient(5*time.Second, certwatch.NewInspector(0, roots))
	res := client.Probe(context.Background(), server.URL, "Welcome")

	if got := res.Code(); got != 200 {
		t.Fatalf("Probe().Code() = %v, want 200 (message %q)", got, res.Message)
	}
	if !strings.HasPrefix(res.Message, "Certificate is expiring in 10 days at ") {
		t.Errorf("Probe().Message = %q, want certificate warning", res.Message)
	}
}

func TestClient_Probe_HealthyCertificateNoMessage(t *testing.T) {
	server, roots := selfSignedServer(t, time.Now().Add(365*24*time.Hour))
	defer server.Close()

	client := NewClient(5*time.Second, certwatch.NewInspector(0, roots))
	res := client.Probe(context.Background(), server.URL, "Welcome")

	if got := res.Code(); got != 200 {
		t.Fatalf("Probe().Code() = %v, want 200 (message %q)", got, res.Message)
	}
	if res.Message != "" {
		t.Errorf("Probe().Message = %q, want empty", res.Message)
	}
}

func TestClient_Probe_UntrustedCertificateRejected(t *testing.T) {
	server, _ := selfSignedServer(t, time.Now().Add(5*24*time.Hour))
	defer server.Close()

	// empty pool: nothing is trusted
	client := NewClient(5*time.Second, certwatch.NewInspector(0, x509.NewCertPool()))
	res := client.Probe(context.Background(), server.URL, "*")

	if got := res.Code(); got != 410 {
		t.Fatalf("Probe().Code() = %v, want 410 for an untrusted certificate", got)
	}
	if !strings.HasPrefix(res.Message, "Certificate is expiring in ") {
		t.Errorf("Probe().Message = %q, want the expiry warning first", res.Message)
	}
	if !strings.Contains(res.Message, ", request failed") {
		t.Errorf("Probe().Message = %q, want the handshake error appended", res.Message)
	}
}

// TestClient_Probe_HandshakePerProbe verifies that every probe performs its
// own handshake, so certificate warnings are reported on every attempt.
func TestClient_Probe_HandshakePerProbe(t *testing.T) {
	server, roots := selfSignedServer(t, time.Now().Add(3*24*time.Hour))
	defer server.Close()

	client := NewClient(5*time.Second, certwatch.NewInspector(0, roots))
	for i := 0; i < 3; i++ {
		res := client.Probe(context.Background(), server.URL, "*")
		if !strings.HasPrefix(res.Message, "Certificate is expiring") {
			t.Fatalf("probe %d message = %q, want certificate warning", i, res.Message)
		}
	}
}

func TestClient_Probe_RedirectsWarnOnce(t *testing.T) {
	server, roots := selfSignedServerWith(t, time.Now().Add(5*24*time.Hour),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/":
				http.Redirect(w, r, "/a", http.StatusFound)
			case "/a":
				http.Redirect(w, r, "/b", http.StatusFound)
			default:
				_, _ = w.Write([]byte("Welcome"))
			}
		}))
	defer server.Close()

	client := NewClient(5*time.Second, certwatch.NewInspector(0, roots))
	res := client.Probe(context.Background(), server.URL+"/", "Welcome")

	if got := res.Code(); got != 200 {
		t.Fatalf("Probe().Code() = %v, want 200 (message %q)", got, res.Message)
	}
	if n := strings.Count(res.Message, "Certificate is expiring"); n != 1 {
		t.Errorf("Probe().Message has %d certificate warnings, want 1: %q", n, res.Message)
	}
}

func TestClient_Probe_LargeBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 3<<20)))
		_, _ = w.Write([]byte("Welcome"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, nil)

	res := client.Probe(context.Background(), server.URL, "Welcome")
	if got := res.Code(); got != 200 {
		t.Errorf("Probe().Code() = %v, want 200 for content past the first megabytes (message %q)", got, res.Message)
	}
	if res.Message != "" {
		t.Errorf("Probe().Message = %q, want empty", res.Message)
	}

	res = client.Probe(context.Background(), server.URL, "Goodbye")
	if got := res.Code(); got != -200 {
		t.Errorf("Probe(Goodbye).Code() = %v, want -200", got)
	}
}

func TestClient_Probe_ConcurrentDiagnosticsIsolated(t *testing.T) {
	expiring, expiringRoots := selfSignedServer(t, time.Now().Add(3*24*time.Hour))
	defer expiring.Close()
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer plain.Close()

	client := NewClient(5*time.Second, certwatch.NewInspector(0, expiringRoots))

	var wg sync.WaitGroup
	errs := make(chan string, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if res := client.Probe(context.Background(), expiring.URL, "*"); res.Message == "" {
				errs <- "tls probe lost its warning"
			}
		}()
		go func() {
			defer wg.Done()
			if res := client.Probe(context.Background(), plain.URL, "*"); res.Message != "" {
				errs <- "plain probe got " + res.Message
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestClient_Close(t *testing.T) {
	client := NewClient(0, nil)
	if client.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", client.Timeout(), DefaultTimeout)
	}
	client.Close()
	client.Close()

	var nilClient *Client
	nilClient.Close()
}

func TestDiagnostics(t *testing.T) {
	d := &Diagnostics{}
	if d.String() != "" {
		t.Errorf("empty String() = %q", d.String())
	}
	d.Add("first")
	d.Add("  ")
	d.Add("second")
	d.Add("first")
	if got, want := d.String(), "first, second"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}

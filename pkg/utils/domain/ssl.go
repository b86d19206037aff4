package domain

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

type CertificateInfo struct {
	Domain             string       `json:"domain"`
	IsValid            bool         `json:"is_valid"`
	Issuer             string       `json:"issuer"`
	Subject            string       `json:"subject"`
	CommonName         string       `json:"common_name"`
	SerialNumber       string       `json:"serial_number"`
	NotBefore          time.Time    `json:"not_before"`
	NotAfter           time.Time    `json:"not_after"`
	DaysUntilExpiry    int          `json:"days_until_expiry"`
	SubjectAltNames    []string     `json:"subject_alt_names"`
	SignatureAlgorithm string       `json:"signature_algorithm"`
	PublicKeyAlgorithm string       `json:"public_key_algorithm"`
	KeySize            int          `json:"key_size"`
	Version            int          `json:"version"`
	IsSelfSigned       bool         `json:"is_self_signed"`
	IsWildcard         bool         `json:"is_wildcard"`
	Chain              []ChainEntry `json:"chain"`
	TLSVersion         string       `json:"tls_version"`
	CipherSuite        string       `json:"cipher_suite"`
	ValidationErrors   []string     `json:"validation_errors"`
	ParsedBy           string       `json:"parsed_by"` // tls or openssl
}

type ChainEntry struct {
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	IsCA      bool      `json:"is_ca"`
	KeyUsage  []string  `json:"key_usage"`
}

// CertInspector fetches and inspects the certificate a host presents.
type CertInspector struct {
	Port    int
	Timeout time.Duration
	// Dial opens the TCP connection. Defaults to a net.Dialer.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
	// Runner executes openssl when the leaf carries no names.
	Runner CommandRunner
	// Roots used for chain verification; nil means the system pool.
	Roots *x509.CertPool
	Now   func() time.Time
}

// NewCertInspector returns an inspector for port (443 when zero).
func NewCertInspector(port int, timeout time.Duration, runner CommandRunner) *CertInspector {
	if port <= 0 {
		port = 443
	}
	return &CertInspector{Port: port, Timeout: timeout, Runner: runner}
}

// Inspect performs a TLS handshake with SNI and reports on the leaf
// certificate. Verification is skipped during the handshake so broken
// certificates can still be described; the leaf is validated afterwards.
func (i *CertInspector) Inspect(ctx context.Context, domain string) (*CertificateInfo, error) {
	if i.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}

	port := i.Port
	if port <= 0 {
		port = 443
	}
	address := net.JoinHostPort(domain, strconv.Itoa(port))

	dial := i.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	raw, err := dial(ctx, "tcp", address)
	if err != nil {
		return nil, i.dialError(domain, address, err)
	}
	defer raw.Close()

	conn := tls.Client(raw, &tls.Config{
		ServerName:         domain,
		InsecureSkipVerify: true, // #nosec G402 -- the leaf is validated below
	})
	if err := conn.HandshakeContext(ctx); err != nil {
		if classify(err) == KindTimeout || ctx.Err() != nil {
			return nil, &LookupError{Kind: KindTimeout, Op: "tls", Domain: domain, Source: address, Err: err}
		}
		return nil, &LookupError{Kind: KindNotFound, Op: "tls", Domain: domain, Source: address, Err: fmt.Errorf("%w: handshake failed: %v", ErrNoCertificateService, err)}
	}

	state := conn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, &LookupError{Kind: KindNotFound, Op: "tls", Domain: domain, Source: address, Err: fmt.Errorf("%w: no peer certificate", ErrNoCertificateService)}
	}

	info := i.describe(domain, state)
	if info.CommonName == "" && len(info.SubjectAltNames) == 0 {
		i.parseWithOpenSSL(ctx, state.PeerCertificates[0], info)
	}
	return info, nil
}

func (i *CertInspector) dialError(domain, address string, err error) *LookupError {
	le := &LookupError{Kind: classify(err), Op: "tls", Domain: domain, Source: address, Err: err}
	if isConnRefused(err) {
		le.Kind = KindTransport
		le.Err = fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	}
	return le
}

func (i *CertInspector) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *CertInspector) describe(domain string, state tls.ConnectionState) *CertificateInfo {
	cert := state.PeerCertificates[0]
	now := i.now()

	info := &CertificateInfo{
		Domain:             domain,
		Issuer:             cert.Issuer.String(),
		Subject:            cert.Subject.String(),
		CommonName:         cert.Subject.CommonName,
		SerialNumber:       cert.SerialNumber.String(),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		DaysUntilExpiry:    int(cert.NotAfter.Sub(now).Hours() / 24),
		SubjectAltNames:    append([]string{}, cert.DNSNames...),
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		PublicKeyAlgorithm: cert.PublicKeyAlgorithm.String(),
		KeySize:            getKeySize(cert),
		Version:            cert.Version,
		IsSelfSigned:       cert.Issuer.String() == cert.Subject.String(),
		TLSVersion:         getTLSVersion(state.Version),
		CipherSuite:        tls.CipherSuiteName(state.CipherSuite),
		ParsedBy:           "tls",
	}

	for _, name := range cert.DNSNames {
		if strings.HasPrefix(name, "*.") {
			info.IsWildcard = true
			break
		}
	}

	info.ValidationErrors = i.validateCertificate(cert, state.PeerCertificates[1:], domain, now)
	info.IsValid = len(info.ValidationErrors) == 0

	for _, peerCert := range state.PeerCertificates {
		info.Chain = append(info.Chain, ChainEntry{
			Subject:   peerCert.Subject.String(),
			Issuer:    peerCert.Issuer.String(),
			NotBefore: peerCert.NotBefore,
			NotAfter:  peerCert.NotAfter,
			IsCA:      peerCert.IsCA,
			KeyUsage:  getKeyUsage(peerCert),
		})
	}
	return info
}

// validateCertificate checks validity window, hostname and chain of trust.
func (i *CertInspector) validateCertificate(cert *x509.Certificate, intermediates []*x509.Certificate, domain string, now time.Time) []string {
	errs := []string{}

	if now.After(cert.NotAfter) {
		errs = append(errs, "certificate has expired")
	}
	if now.Before(cert.NotBefore) {
		errs = append(errs, "certificate is not yet valid")
	}
	if !matchesDomain(cert, domain) {
		errs = append(errs, "certificate does not match domain")
	}

	pool := x509.NewCertPool()
	for _, c := range intermediates {
		pool.AddCert(c)
	}
	_, err := cert.Verify(x509.VerifyOptions{
		Roots:         i.Roots,
		Intermediates: pool,
		CurrentTime:   now,
	})
	var unknownAuthority x509.UnknownAuthorityError
	switch {
	case err == nil:
	case errors.As(err, &unknownAuthority):
		errs = append(errs, "certificate is not signed by a trusted authority")
	default:
		var invalid x509.CertificateInvalidError
		// Expiry is already reported above.
		if !errors.As(err, &invalid) || invalid.Reason != x509.Expired {
			errs = append(errs, "chain verification failed: "+err.Error())
		}
	}
	return errs
}

// parseWithOpenSSL fills names from `openssl x509 -text` for leaves whose
// subject and SAN extension are empty to crypto/x509.
func (i *CertInspector) parseWithOpenSSL(ctx context.Context, cert *x509.Certificate, info *CertificateInfo) {
	if i.Runner == nil {
		return
	}
	out, err := i.Runner.Run(ctx, cert.Raw, "openssl", "x509", "-inform", "DER", "-noout", "-text")
	if err != nil {
		info.ValidationErrors = append(info.ValidationErrors, "openssl fallback failed: "+err.Error())
		info.IsValid = false
		return
	}

	subject, cn, sans := parseOpenSSLText(out)
	if subject == "" && len(sans) == 0 {
		info.ValidationErrors = append(info.ValidationErrors, "openssl fallback found no subject or alternative names")
		info.IsValid = false
		return
	}
	if subject != "" {
		info.Subject = subject
	}
	info.CommonName = cn
	info.SubjectAltNames = sans
	for _, name := range sans {
		if strings.HasPrefix(name, "*.") {
			info.IsWildcard = true
		}
	}
	info.ParsedBy = "openssl"
}

func parseOpenSSLText(out []byte) (subject, cn string, sans []string) {
	sans = []string{}
	inSAN := false
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Subject:"):
			subject = strings.TrimSpace(strings.TrimPrefix(line, "Subject:"))
			for _, part := range strings.Split(subject, ",") {
				k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
				if ok && strings.TrimSpace(k) == "CN" {
					cn = strings.TrimSpace(v)
				}
			}
		case strings.HasPrefix(line, "X509v3 Subject Alternative Name"):
			inSAN = true
		case inSAN:
			inSAN = false
			for _, entry := range strings.Split(line, ",") {
				if name, ok := strings.CutPrefix(strings.TrimSpace(entry), "DNS:"); ok {
					sans = append(sans, name)
				}
			}
		}
	}
	return subject, cn, sans
}

// matchesDomain checks if certificate matches the domain
func matchesDomain(cert *x509.Certificate, domain string) bool {
	if strings.EqualFold(cert.Subject.CommonName, domain) {
		return true
	}

	for _, name := range cert.DNSNames {
		if strings.EqualFold(name, domain) {
			return true
		}
		// A wildcard covers exactly one label.
		if strings.HasPrefix(name, "*.") {
			wildcard := name[2:]
			if rest, ok := strings.CutSuffix(domain, "."+wildcard); ok && rest != "" && !strings.Contains(rest, ".") {
				return true
			}
		}
	}
	return false
}

// getKeySize determines the key size based on public key type
func getKeySize(cert *x509.Certificate) int {
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return pub.N.BitLen()
	case *ecdsa.PublicKey:
		return pub.Curve.Params().BitSize
	case ed25519.PublicKey:
		return 256
	default:
		return 0
	}
}

// getTLSVersion converts TLS version constant to string
func getTLSVersion(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("Unknown (%d)", version)
	}
}

// getKeyUsage extracts key usage information
func getKeyUsage(cert *x509.Certificate) []string {
	usage := []string{}

	if cert.KeyUsage&x509.KeyUsageDigitalSignature != 0 {
		usage = append(usage, "Digital Signature")
	}
	if cert.KeyUsage&x509.KeyUsageContentCommitment != 0 {
		usage = append(usage, "Content Commitment")
	}
	if cert.KeyUsage&x509.KeyUsageKeyEncipherment != 0 {
		usage = append(usage, "Key Encipherment")
	}
	if cert.KeyUsage&x509.KeyUsageDataEncipherment != 0 {
		usage = append(usage, "Data Encipherment")
	}
	if cert.KeyUsage&x509.KeyUsageKeyAgreement != 0 {
		usage = append(usage, "Key Agreement")
	}
	if cert.KeyUsage&x509.KeyUsageCertSign != 0 {
		usage = append(usage, "Certificate Signing")
	}
	if cert.KeyUsage&x509.KeyUsageCRLSign != 0 {
		usage = append(usage, "CRL Signing")
	}
	return usage
}

// Package ddr implements the certificate-matching half of Discovery of
// Designated Resolvers (DDR): given an SVCB target's bootstrap address and
// hostname, open a TLS connection and confirm the presented certificate's
// SAN entries name either one, per RFC 9462. Ported from the reference
// implementation's _SVCBInfo.ddr_check_certificate and _get_nameservers_sync
// (_examples/original_source/dns/_ddr.py, fully implemented there); the
// resolver-level orchestration (querying _dns.resolver.arpa, replacing the
// nameserver list) lives in package resolver's TryDDR to avoid an import
// cycle between the two packages.
package ddr

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
)

// Candidate is one SVCB target worth probing: the bootstrap address to
// dial (per the resolved Open Question in SPEC_FULL.md §9, this is the
// SVCB target's text form, not a separately resolved address hint), the
// port to dial it on, and the hostname/IP the presented certificate's SAN
// must match.
type Candidate struct {
	BootstrapAddress string
	Port             int
	Hostname         string
}

// CheckCertificate reports whether cert's SAN entries name either
// candidate's hostname (DNSName SAN) or its bootstrap address (IPAddress
// SAN), matching the reference's ddr_check_certificate.
func CheckCertificate(cert *x509.Certificate, candidate Candidate) bool {
	bootstrapIP := net.ParseIP(candidate.BootstrapAddress)
	for _, name := range cert.DNSNames {
		if name == candidate.Hostname {
			return true
		}
	}
	if bootstrapIP != nil {
		for _, ip := range cert.IPAddresses {
			if ip.Equal(bootstrapIP) {
				return true
			}
		}
	}
	return false
}

// Verify dials candidate over TLS, and on success reports whether the peer
// certificate's SAN matches, per CheckCertificate. The connection is always
// closed before returning.
func Verify(ctx context.Context, candidate Candidate) (bool, error) {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: candidate.Hostname}}
	addr := net.JoinHostPort(candidate.BootstrapAddress, fmt.Sprintf("%d", candidate.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, fmt.Errorf("ddr: dialing %s: %w", addr, err)
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return false, fmt.Errorf("ddr: unexpected connection type for %s", addr)
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return false, fmt.Errorf("ddr: %s presented no certificate", addr)
	}
	return CheckCertificate(state.PeerCertificates[0], candidate), nil
}

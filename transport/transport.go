// Package transport provides the client-side dialers the resolver engine
// dispatches queries over: plaintext Do53 (UDP/TCP), DNS-over-TLS, and
// DNS-over-HTTPS, behind one capability interface. Structurally grounded on
// the teacher's internal/transport Handler/HandlerFunc capability-interface
// pattern (internal/transport/doh.go, dot.go), inverted from the teacher's
// listener (server) role to a dialer (client) role, since a stub resolver
// originates queries rather than accepting them.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Kind identifies which wire transport a Nameserver speaks.
type Kind int

const (
	KindDo53 Kind = iota // plaintext UDP, falling back to TCP on truncation
	KindDoT              // DNS-over-TLS, RFC 7858
	KindDoH              // DNS-over-HTTPS, RFC 8484
)

func (k Kind) String() string {
	switch k {
	case KindDo53:
		return "Do53"
	case KindDoT:
		return "DoT"
	case KindDoH:
		return "DoH"
	default:
		return "Unknown"
	}
}

// Nameserver is an address+port+transport-kind tuple. It is opaque to the
// resolver except for dispatch, per SPEC_FULL.md §3.
type Nameserver struct {
	Addr string // IP address, no port
	Port int
	Kind Kind

	// TLSServerName is consulted for DoT/DoH certificate verification,
	// defaulting to Addr when empty.
	TLSServerName string
	// URL is the DoH endpoint (e.g. "https://dns.example/dns-query"); only
	// meaningful when Kind == KindDoH.
	URL string
}

func (ns Nameserver) hostport() string {
	return net.JoinHostPort(ns.Addr, fmt.Sprintf("%d", ns.Port))
}

// HostPort returns the "host:port" form of ns, for callers outside this
// package that need to dial it directly (e.g. xfr.Transfer's long-lived TCP
// session, which outlives a single Transport.Query round trip).
func (ns Nameserver) HostPort() string {
	return ns.hostport()
}

// WriteFramed writes msg to w with its RFC 1035 §4.2.2 2-byte length
// prefix.
func WriteFramed(w io.Writer, msg []byte) error {
	_, err := w.Write(wireFrame(msg))
	return err
}

// ReadFramed reads one length-prefixed TCP DNS message from r.
func ReadFramed(r io.Reader) ([]byte, error) {
	return readFramedMessage(r)
}

// Transport is the capability a resolver dispatches queries through. One
// Transport implementation may serve every Kind, dispatching internally, or
// callers may compose Kind-specific implementations — the resolver only
// ever calls Query.
type Transport interface {
	// Query sends msg (an already-rendered wire-format query) to server
	// and returns the raw wire-format response. forceTCP requests TCP even
	// for a Do53 server (used for retransmission after a truncated UDP
	// response).
	Query(ctx context.Context, server Nameserver, msg []byte, forceTCP bool) ([]byte, error)
}

// Dialer is the default Transport, dispatching each Kind to its own dial
// logic. Zero value is ready to use.
type Dialer struct {
	// NetDialer customizes the underlying net.Dial calls; nil uses
	// net.Dialer{} zero value.
	NetDialer *net.Dialer
	// TLSConfig is cloned and its ServerName overridden per-nameserver for
	// DoT/DoH dials; nil uses an empty *tls.Config.
	TLSConfig *tls.Config
	// HTTPClient is used for DoH; nil constructs one per call against an
	// http.Transport that dials ns.Addr:ns.Port directly.
	HTTPClient *http.Client
}

func (d *Dialer) netDialer() *net.Dialer {
	if d.NetDialer != nil {
		return d.NetDialer
	}
	return &net.Dialer{}
}

// Query implements Transport.
func (d *Dialer) Query(ctx context.Context, server Nameserver, msg []byte, forceTCP bool) ([]byte, error) {
	kind := server.Kind
	if forceTCP && kind == KindDo53 {
		return d.queryTCP(ctx, server, msg)
	}
	switch kind {
	case KindDo53:
		return d.queryUDP(ctx, server, msg)
	case KindDoT:
		return d.queryTLS(ctx, server, msg)
	case KindDoH:
		return d.queryHTTPS(ctx, server, msg)
	default:
		return nil, fmt.Errorf("transport: unknown nameserver kind %v", kind)
	}
}

func (d *Dialer) queryUDP(ctx context.Context, server Nameserver, msg []byte) ([]byte, error) {
	conn, err := d.netDialer().DialContext(ctx, "udp", server.hostport())
	if err != nil {
		return nil, fmt.Errorf("transport: udp dial %s: %w", server.hostport(), err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(msg); err != nil {
		return nil, fmt.Errorf("transport: udp write: %w", err)
	}
	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("transport: udp read: %w", err)
	}
	return buf[:n], nil
}

// wireFrame prefixes msg with its 2-byte big-endian length, per RFC 1035
// §4.2.2 TCP message framing.
func wireFrame(msg []byte) []byte {
	out := make([]byte, 2+len(msg))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(msg)))
	copy(out[2:], msg)
	return out
}

func readFramedMessage(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("transport: reading tcp length prefix: %w", err)
	}
	length := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("transport: reading tcp message body: %w", err)
	}
	return buf, nil
}

func (d *Dialer) queryTCP(ctx context.Context, server Nameserver, msg []byte) ([]byte, error) {
	conn, err := d.netDialer().DialContext(ctx, "tcp", server.hostport())
	if err != nil {
		return nil, fmt.Errorf("transport: tcp dial %s: %w", server.hostport(), err)
	}
	defer conn.Close()
	return d.exchangeFramed(ctx, conn, msg)
}

func (d *Dialer) exchangeFramed(ctx context.Context, conn net.Conn, msg []byte) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(wireFrame(msg)); err != nil {
		return nil, fmt.Errorf("transport: framed write: %w", err)
	}
	return readFramedMessage(conn)
}

func (d *Dialer) tlsConfigFor(server Nameserver) *tls.Config {
	var cfg *tls.Config
	if d.TLSConfig != nil {
		cfg = d.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		if server.TLSServerName != "" {
			cfg.ServerName = server.TLSServerName
		} else {
			cfg.ServerName = server.Addr
		}
	}
	return cfg
}

func (d *Dialer) queryTLS(ctx context.Context, server Nameserver, msg []byte) ([]byte, error) {
	conn, err := tls.DialWithDialer(d.netDialer(), "tcp", server.hostport(), d.tlsConfigFor(server))
	if err != nil {
		return nil, fmt.Errorf("transport: dot dial %s: %w", server.hostport(), err)
	}
	defer conn.Close()
	return d.exchangeFramed(ctx, conn, msg)
}

func (d *Dialer) queryHTTPS(ctx context.Context, server Nameserver, msg []byte) ([]byte, error) {
	client := d.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: d.tlsConfigFor(server),
				DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
					return d.netDialer().DialContext(ctx, network, server.hostport())
				},
			},
		}
	}
	url := server.URL
	if url == "" {
		url = fmt.Sprintf("https://%s/dns-query", server.TLSServerName)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg))
	if err != nil {
		return nil, fmt.Errorf("transport: building doh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: doh request to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transport: doh %s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 65535))
}

var _ Transport = (*Dialer)(nil)

// Package resolvconf reads /etc/resolv.conf-style configuration: the
// nameserver, domain, search, and options directives that seed a stub
// resolver's default Options. Ported line-for-line from the reference
// implementation's BaseResolver._read_resolv_conf
// (_examples/original_source/dns/resolver.py, fully implemented there).
package resolvconf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/transport"
)

// DefaultPath is the conventional location read_resolv_conf() defaults to
// absent an explicit path.
const DefaultPath = "/etc/resolv.conf"

// Config is the parsed contents of a resolv.conf file. Callers copy its
// fields into resolver.Options themselves; NameserverList converts the
// nameserver addresses.
type Config struct {
	Nameservers []string
	Domain      *dnsname.Name
	Search      []dnsname.Name
	Rotate      bool
	Timeout     time.Duration
	Ndots       int
	UseEDNS     bool
}

// ReadFile opens path and parses it with Parse. Opening DefaultPath is the
// normal case; the path parameter exists so callers (and tests) can point
// at an alternate file the way the reference's read_resolv_conf(f) does
// when passed a filename.
func ReadFile(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("resolvconf: opening %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads resolv.conf-format directives from r. Unrecognized
// directives and malformed lines (fewer than two tokens) are silently
// skipped, matching the reference's tolerant line-by-line scan.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") {
			continue
		}
		tokens := strings.Fields(trimmed)
		if len(tokens) < 2 {
			continue
		}
		switch tokens[0] {
		case "nameserver":
			cfg.Nameservers = append(cfg.Nameservers, tokens[1:]...)
		case "domain":
			n, err := dnsname.FromText(tokens[1], &dnsname.Root)
			if err != nil {
				return nil, fmt.Errorf("resolvconf: domain directive: %w", err)
			}
			cfg.Domain = &n
		case "search":
			cfg.Search = cfg.Search[:0]
			for _, tok := range tokens[1:] {
				n, err := dnsname.FromText(tok, &dnsname.Root)
				if err != nil {
					return nil, fmt.Errorf("resolvconf: search directive: %w", err)
				}
				cfg.Search = append(cfg.Search, n)
			}
		case "options":
			for _, tok := range tokens[1:] {
				switch {
				case tok == "rotate":
					cfg.Rotate = true
				case tok == "edns0":
					cfg.UseEDNS = true
				case strings.HasPrefix(tok, "timeout:"):
					secs, err := strconv.ParseFloat(strings.TrimPrefix(tok, "timeout:"), 64)
					if err != nil {
						return nil, fmt.Errorf("resolvconf: options timeout: %w", err)
					}
					cfg.Timeout = time.Duration(secs * float64(time.Second))
				case strings.HasPrefix(tok, "ndots:"):
					n, err := strconv.Atoi(strings.TrimPrefix(tok, "ndots:"))
					if err != nil {
						return nil, fmt.Errorf("resolvconf: options ndots: %w", err)
					}
					cfg.Ndots = n
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("resolvconf: reading: %w", err)
	}
	return cfg, nil
}

// NameserverList converts the raw address strings into Do53 nameservers on
// port 53, the reference's Do53Nameserver default for plain resolv.conf
// entries.
func (c *Config) NameserverList() []transport.Nameserver {
	out := make([]transport.Nameserver, 0, len(c.Nameservers))
	for _, addr := range c.Nameservers {
		out = append(out, transport.Nameserver{Addr: addr, Port: 53, Kind: transport.KindDo53})
	}
	return out
}

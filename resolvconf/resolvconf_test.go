package resolvconf

import (
	"strings"
	"testing"
	"time"
)

const sample = `
# a comment line
nameserver 192.0.2.1
nameserver 192.0.2.2
domain example.com
search example.com corp.example.com
options rotate timeout:2.5 ndots:2 edns0
`

func TestParseDirectives(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	// Each "nameserver" line adds one server, in file order.
	if len(cfg.Nameservers) != 2 || cfg.Nameservers[0] != "192.0.2.1" || cfg.Nameservers[1] != "192.0.2.2" {
		t.Fatalf("nameservers = %v", cfg.Nameservers)
	}
	if cfg.Domain == nil || cfg.Domain.String() != "example.com." {
		t.Fatalf("domain = %v", cfg.Domain)
	}
	if len(cfg.Search) != 2 {
		t.Fatalf("search = %v", cfg.Search)
	}
	if !cfg.Rotate || !cfg.UseEDNS {
		t.Fatalf("expected rotate and edns0 set")
	}
	if cfg.Timeout != 2500*time.Millisecond {
		t.Fatalf("timeout = %v", cfg.Timeout)
	}
	if cfg.Ndots != 2 {
		t.Fatalf("ndots = %d", cfg.Ndots)
	}
}

func TestNameserverListUsesDo53Port53(t *testing.T) {
	cfg, err := Parse(strings.NewReader("nameserver 10.0.0.1\nnameserver 10.0.0.2\n"))
	if err != nil {
		t.Fatal(err)
	}
	nss := cfg.NameserverList()
	if len(nss) != 2 {
		t.Fatalf("expected 2 nameservers, got %d", len(nss))
	}
	for _, ns := range nss {
		if ns.Port != 53 {
			t.Errorf("expected port 53, got %d", ns.Port)
		}
	}
}

func TestBlankAndMalformedLinesSkipped(t *testing.T) {
	cfg, err := Parse(strings.NewReader("\n\n; comment\nnameserver\nnameserver 10.0.0.1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Nameservers) != 1 || cfg.Nameservers[0] != "10.0.0.1" {
		t.Fatalf("nameservers = %v", cfg.Nameservers)
	}
}

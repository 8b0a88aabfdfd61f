package zone

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// dnsZoneFile is the YAML shape loaded from a ".dnszone" file. Adapted
// from _examples/straticus1-dnsscienced/internal/zone/parser_dnszone.go's
// DNSZoneFile, trimmed to the record types this module's wire codecs
// support (A/AAAA/CNAME/MX/NS/TXT/SRV/PTR/SOA) — dropping that file's
// TLSA/HTTPS/SVCB/CAA/templates/apply/DNSSEC sections, since none of
// those rdata shapes are implemented in package wire.
type dnsZoneFile struct {
	Zone    yamlZoneSection           `yaml:"zone"`
	SOA     yamlSOASection            `yaml:"soa"`
	Records map[string]yamlRecordSection `yaml:"records"`
}

type yamlZoneSection struct {
	Name string `yaml:"name"`
	TTL  string `yaml:"ttl,omitempty"`
}

type yamlSOASection struct {
	PrimaryNS   string `yaml:"primary_ns"`
	Contact     string `yaml:"contact"`
	Serial      string `yaml:"serial"`
	Refresh     string `yaml:"refresh"`
	Retry       string `yaml:"retry"`
	Expire      string `yaml:"expire"`
	NegativeTTL string `yaml:"negative_ttl"`
}

type yamlRecordSection struct {
	A     interface{} `yaml:"A,omitempty"`
	AAAA  interface{} `yaml:"AAAA,omitempty"`
	CNAME string      `yaml:"CNAME,omitempty"`
	MX    interface{} `yaml:"MX,omitempty"`
	NS    interface{} `yaml:"NS,omitempty"`
	TXT   interface{} `yaml:"TXT,omitempty"`
	SRV   interface{} `yaml:"SRV,omitempty"`
	PTR   string      `yaml:"PTR,omitempty"`
	TTL   int         `yaml:"ttl,omitempty"`
}

type yamlMXEntry struct {
	Priority int    `yaml:"priority"`
	Target   string `yaml:"target"`
}

type yamlSRVEntry struct {
	Priority int    `yaml:"priority"`
	Weight   int    `yaml:"weight"`
	Port     int    `yaml:"port"`
	Target   string `yaml:"target"`
}

// ParseYAMLZone parses a ".dnszone"-format YAML document into a new Zone.
func ParseYAMLZone(r io.Reader, cfg Config) (*Zone, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zone: reading yaml zone: %w", err)
	}
	var zf dnsZoneFile
	if err := yaml.Unmarshal(data, &zf); err != nil {
		return nil, fmt.Errorf("zone: parsing yaml zone: %w", err)
	}

	origin, err := dnsname.FromText(zf.Zone.Name, &dnsname.Root)
	if err != nil {
		return nil, fmt.Errorf("zone: zone.name: %w", err)
	}
	z := New(origin)

	defaultTTL := cfg.DefaultTTL
	if zf.Zone.TTL != "" {
		ttl, err := parseYAMLTime(zf.Zone.TTL)
		if err != nil {
			return nil, fmt.Errorf("zone: zone.ttl: %w", err)
		}
		defaultTTL = ttl
	}

	soaRR, err := buildYAMLSOA(&zf, origin, defaultTTL)
	if err != nil {
		return nil, fmt.Errorf("zone: soa: %w", err)
	}
	if err := z.AddRecord(soaRR); err != nil {
		return nil, err
	}

	for owner, section := range zf.Records {
		ttl := defaultTTL
		if section.TTL > 0 {
			ttl = uint32(section.TTL)
		}
		fqdn, err := fullyQualify(owner, origin)
		if err != nil {
			return nil, fmt.Errorf("zone: owner %q: %w", owner, err)
		}
		if err := addYAMLRecords(z, fqdn, origin, section, ttl); err != nil {
			return nil, fmt.Errorf("zone: records for %q: %w", owner, err)
		}
	}

	if cfg.Strict {
		if err := z.Validate(); err != nil {
			return nil, fmt.Errorf("zone: validation: %w", err)
		}
	}
	return z, nil
}

func fullyQualify(name string, origin dnsname.Name) (dnsname.Name, error) {
	if name == "" || name == "@" {
		return origin, nil
	}
	return dnsname.FromText(name, &origin)
}

func buildYAMLSOA(zf *dnsZoneFile, origin dnsname.Name, ttl uint32) (wire.RR, error) {
	mname, err := dnsname.FromText(zf.SOA.PrimaryNS, &origin)
	if err != nil {
		return wire.RR{}, fmt.Errorf("primary_ns: %w", err)
	}
	rname, err := dnsname.FromText(strings.ReplaceAll(zf.SOA.Contact, "@", "."), &origin)
	if err != nil {
		return wire.RR{}, fmt.Errorf("contact: %w", err)
	}

	var serial uint64
	if zf.SOA.Serial == "auto" {
		serial = uint64(todaySerialBase(time.Now()))
	} else {
		serial, err = strconv.ParseUint(zf.SOA.Serial, 10, 32)
		if err != nil {
			return wire.RR{}, fmt.Errorf("serial: %w", err)
		}
	}

	refresh, err := parseYAMLTime(zf.SOA.Refresh)
	if err != nil {
		return wire.RR{}, fmt.Errorf("refresh: %w", err)
	}
	retry, err := parseYAMLTime(zf.SOA.Retry)
	if err != nil {
		return wire.RR{}, fmt.Errorf("retry: %w", err)
	}
	expire, err := parseYAMLTime(zf.SOA.Expire)
	if err != nil {
		return wire.RR{}, fmt.Errorf("expire: %w", err)
	}
	minimum, err := parseYAMLTime(zf.SOA.NegativeTTL)
	if err != nil {
		return wire.RR{}, fmt.Errorf("negative_ttl: %w", err)
	}

	rdata := wire.EncodeSOA(wire.SOA{
		MName: mname, RName: rname, Serial: uint32(serial),
		Refresh: refresh, Retry: retry, Expire: expire, Minimum: minimum,
	})
	return buildRR(origin, wire.TypeSOA, wire.ClassINET, ttl, rdata)
}

func addYAMLRecords(z *Zone, owner, origin dnsname.Name, section yamlRecordSection, ttl uint32) error {
	for _, ipStr := range stringsOf(section.A) {
		ip := net.ParseIP(ipStr).To4()
		if ip == nil {
			return fmt.Errorf("invalid A address %q", ipStr)
		}
		if err := addBuiltRecord(z, owner, wire.TypeA, wire.ClassINET, ttl, wire.EncodeA(ip)); err != nil {
			return err
		}
	}
	for _, ipStr := range stringsOf(section.AAAA) {
		ip := net.ParseIP(ipStr).To16()
		if ip == nil {
			return fmt.Errorf("invalid AAAA address %q", ipStr)
		}
		if err := addBuiltRecord(z, owner, wire.TypeAAAA, wire.ClassINET, ttl, wire.EncodeAAAA(ip)); err != nil {
			return err
		}
	}
	if section.CNAME != "" {
		target, err := dnsname.FromText(section.CNAME, &origin)
		if err != nil {
			return fmt.Errorf("CNAME target: %w", err)
		}
		if err := addBuiltRecord(z, owner, wire.TypeCNAME, wire.ClassINET, ttl, wire.EncodeName(target)); err != nil {
			return err
		}
	}
	if section.PTR != "" {
		target, err := dnsname.FromText(section.PTR, &origin)
		if err != nil {
			return fmt.Errorf("PTR target: %w", err)
		}
		if err := addBuiltRecord(z, owner, wire.TypePTR, wire.ClassINET, ttl, wire.EncodeName(target)); err != nil {
			return err
		}
	}
	for _, ns := range stringsOf(section.NS) {
		target, err := dnsname.FromText(ns, &origin)
		if err != nil {
			return fmt.Errorf("NS target: %w", err)
		}
		if err := addBuiltRecord(z, owner, wire.TypeNS, wire.ClassINET, ttl, wire.EncodeName(target)); err != nil {
			return err
		}
	}
	for _, txt := range stringsOf(section.TXT) {
		if err := addBuiltRecord(z, owner, wire.TypeTXT, wire.ClassINET, ttl, wire.EncodeTXT([]string{txt})); err != nil {
			return err
		}
	}
	for _, mx := range mxEntriesOf(section.MX) {
		target, err := dnsname.FromText(mx.Target, &origin)
		if err != nil {
			return fmt.Errorf("MX target: %w", err)
		}
		rdata := wire.EncodeMX(wire.MX{Preference: uint16(mx.Priority), Exchange: target})
		if err := addBuiltRecord(z, owner, wire.TypeMX, wire.ClassINET, ttl, rdata); err != nil {
			return err
		}
	}
	for _, srv := range srvEntriesOf(section.SRV) {
		target, err := dnsname.FromText(srv.Target, &origin)
		if err != nil {
			return fmt.Errorf("SRV target: %w", err)
		}
		rdata := wire.EncodeSRV(wire.SRV{
			Priority: uint16(srv.Priority), Weight: uint16(srv.Weight), Port: uint16(srv.Port), Target: target,
		})
		if err := addBuiltRecord(z, owner, wire.TypeSRV, wire.ClassINET, ttl, rdata); err != nil {
			return err
		}
	}
	return nil
}

func addBuiltRecord(z *Zone, owner dnsname.Name, typ wire.Type, class wire.Class, ttl uint32, rdata []byte) error {
	rr, err := buildRR(owner, typ, class, ttl, rdata)
	if err != nil {
		return err
	}
	return z.AddRecord(rr)
}

// stringsOf normalizes the YAML "scalar or list of scalars" convention the
// teacher's A/AAAA/NS/TXT fields use (a bare string or a []interface{} of
// strings) into a flat []string.
func stringsOf(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mxEntriesOf(v interface{}) []yamlMXEntry {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []yamlMXEntry
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var e yamlMXEntry
		if p, ok := m["priority"].(int); ok {
			e.Priority = p
		}
		if t, ok := m["target"].(string); ok {
			e.Target = t
		}
		out = append(out, e)
	}
	return out
}

func srvEntriesOf(v interface{}) []yamlSRVEntry {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []yamlSRVEntry
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var e yamlSRVEntry
		if p, ok := m["priority"].(int); ok {
			e.Priority = p
		}
		if w, ok := m["weight"].(int); ok {
			e.Weight = w
		}
		if p, ok := m["port"].(int); ok {
			e.Port = p
		}
		if t, ok := m["target"].(string); ok {
			e.Target = t
		}
		out = append(out, e)
	}
	return out
}

// parseYAMLTime parses "1h", "30m", "1d", "2w", or a bare seconds count,
// matching the teacher's parseTime/parseDuration pair.
func parseYAMLTime(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return uint32(days) * 86400, nil
	}
	if strings.HasSuffix(s, "w") {
		weeks, err := strconv.Atoi(strings.TrimSuffix(s, "w"))
		if err != nil {
			return 0, err
		}
		return uint32(weeks) * 7 * 86400, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return uint32(d.Seconds()), nil
	}
	seconds, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid time format %q", s)
	}
	return uint32(seconds), nil
}

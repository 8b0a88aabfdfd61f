package zone

import (
	"strings"
	"testing"

	"github.com/dnsscience/stubresolver/internal/wire"
)

const sampleYAMLZone = `
zone:
  name: example.com.
  ttl: 1h

soa:
  primary_ns: ns1.example.com.
  contact: hostmaster@example.com
  serial: "2024010100"
  refresh: 2h
  retry: 1h
  expire: 2w
  negative_ttl: 5m

records:
  "@":
    NS:
      - ns1.example.com.
      - ns2.example.com.
  ns1:
    A: 192.0.2.1
  ns2:
    A: 192.0.2.2
  www:
    A:
      - 192.0.2.10
      - 192.0.2.11
    TXT: "hello from yaml"
  mail:
    A: 192.0.2.20
    MX:
      - priority: 10
        target: mail.example.com.
`

func TestParseYAMLZoneBasic(t *testing.T) {
	z, err := ParseYAMLZone(strings.NewReader(sampleYAMLZone), DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	soa, err := z.SOA.SOA()
	if err != nil {
		t.Fatal(err)
	}
	if soa.Serial != 2024010100 {
		t.Errorf("serial = %d", soa.Serial)
	}
	if soa.Refresh != 7200 || soa.Retry != 3600 {
		t.Errorf("refresh/retry = %d/%d", soa.Refresh, soa.Retry)
	}
	if soa.Expire != 14*86400 {
		t.Errorf("expire = %d", soa.Expire)
	}
	if soa.Minimum != 300 {
		t.Errorf("minimum = %d", soa.Minimum)
	}

	ns := z.GetNameservers()
	if len(ns) != 2 {
		t.Fatalf("expected 2 NS records, got %d", len(ns))
	}

	www := z.GetRecords(mustName(t, "www.example.com."), wire.TypeA)
	if len(www) != 2 {
		t.Fatalf("expected 2 A records for www, got %d", len(www))
	}

	mx := z.GetRecords(mustName(t, "mail.example.com."), wire.TypeMX)
	if len(mx) != 1 {
		t.Fatalf("expected 1 MX record, got %d", len(mx))
	}
	decoded, err := mx[0].MX()
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Preference != 10 || !decoded.Exchange.Equal(mustName(t, "mail.example.com.")) {
		t.Errorf("MX mismatch: %+v", decoded)
	}
}

func TestParseYAMLZoneStrictValidationCatchesMissingGlue(t *testing.T) {
	const missingGlue = `
zone:
  name: example.com.
soa:
  primary_ns: ns1.example.com.
  contact: hostmaster@example.com
  serial: "1"
  refresh: 1h
  retry: 1h
  expire: 1h
  negative_ttl: 1h
records:
  "@":
    NS:
      - ns1.example.com.
`
	_, err := ParseYAMLZone(strings.NewReader(missingGlue), DefaultConfig())
	if err == nil {
		t.Fatal("expected strict validation to reject an in-zone NS with no glue")
	}
}

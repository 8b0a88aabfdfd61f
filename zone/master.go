package zone

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// ParseMasterFile reads an RFC 1035 §5 master file from r into a new Zone
// rooted at origin. It supports $ORIGIN, $TTL, and $GENERATE directives,
// parenthesized multi-line records, ';'-to-end-of-line comments, owner-name
// elision (a record line that starts with whitespace repeats the previous
// owner), and the A/NS/CNAME/SOA/PTR/MX/TXT/AAAA/SRV record types this
// module's wire codecs know how to encode. Built fresh against RFC 1035's
// grammar and against the reference parser's Reader._generate_line (see
// generateRecords below); no pack dependency implements a miekg/dns-free
// zone-file parser wholesale (see DESIGN.md).
func ParseMasterFile(r io.Reader, origin dnsname.Name, cfg Config) (*Zone, error) {
	z := New(origin)
	curOrigin := origin
	curTTL := cfg.DefaultTTL
	var lastOwner dnsname.Name
	haveLastOwner := false

	lines, err := assembleLogicalLines(r)
	if err != nil {
		return nil, err
	}

	for _, ln := range lines {
		if len(ln.fields) == 0 {
			continue
		}
		first := ln.fields[0]
		if strings.HasPrefix(first, "$") {
			switch strings.ToUpper(first) {
			case "$ORIGIN":
				if len(ln.fields) < 2 {
					return nil, fmt.Errorf("zone: $ORIGIN missing argument")
				}
				n, err := dnsname.FromText(ln.fields[1], &curOrigin)
				if err != nil {
					return nil, fmt.Errorf("zone: $ORIGIN: %w", err)
				}
				curOrigin = n
			case "$TTL":
				if len(ln.fields) < 2 {
					return nil, fmt.Errorf("zone: $TTL missing argument")
				}
				ttl, err := strconv.ParseUint(ln.fields[1], 10, 32)
				if err != nil {
					return nil, fmt.Errorf("zone: $TTL: %w", err)
				}
				curTTL = uint32(ttl)
			case "$INCLUDE":
				if !cfg.AllowIncludes {
					return nil, fmt.Errorf("zone: $INCLUDE directive disallowed (AllowIncludes is false)")
				}
				return nil, fmt.Errorf("zone: $INCLUDE requires a filesystem loader, not a bare io.Reader")
			case "$GENERATE":
				if err := generateRecords(z, ln.fields[1:], curOrigin, curTTL); err != nil {
					return nil, fmt.Errorf("zone: %w", err)
				}
			default:
				return nil, fmt.Errorf("zone: unsupported directive %s", first)
			}
			continue
		}

		fields := ln.fields
		var owner dnsname.Name
		if ln.hasOwner {
			n, err := dnsname.FromText(fields[0], &curOrigin)
			if err != nil {
				return nil, fmt.Errorf("zone: owner name %q: %w", fields[0], err)
			}
			owner = n
			fields = fields[1:]
		} else {
			if !haveLastOwner {
				return nil, fmt.Errorf("zone: record has no owner and none precedes it")
			}
			owner = lastOwner
		}
		lastOwner = owner
		haveLastOwner = true

		ttl := curTTL
		class := wire.ClassINET
		for len(fields) > 0 {
			if n, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
				ttl = uint32(n)
				fields = fields[1:]
				continue
			}
			if strings.EqualFold(fields[0], "IN") {
				class = wire.ClassINET
				fields = fields[1:]
				continue
			}
			break
		}
		if len(fields) == 0 {
			return nil, fmt.Errorf("zone: record at %s missing type", owner)
		}
		typeName := strings.ToUpper(fields[0])
		rdataFields := fields[1:]

		rdata, typ, err := encodeMasterRData(typeName, rdataFields, curOrigin)
		if err != nil {
			return nil, fmt.Errorf("zone: %s record at %s: %w", typeName, owner, err)
		}
		rr, err := buildRR(owner, typ, class, ttl, rdata)
		if err != nil {
			return nil, err
		}
		if err := z.AddRecord(rr); err != nil {
			return nil, err
		}
	}
	if cfg.Strict {
		if err := z.Validate(); err != nil {
			return nil, fmt.Errorf("zone: validation: %w", err)
		}
	}
	return z, nil
}

func encodeMasterRData(typeName string, fields []string, origin dnsname.Name) ([]byte, wire.Type, error) {
	switch typeName {
	case "A":
		if len(fields) != 1 {
			return nil, 0, fmt.Errorf("expected exactly one address")
		}
		ip := net.ParseIP(fields[0]).To4()
		if ip == nil {
			return nil, 0, fmt.Errorf("invalid IPv4 address %q", fields[0])
		}
		return wire.EncodeA(ip), wire.TypeA, nil
	case "AAAA":
		if len(fields) != 1 {
			return nil, 0, fmt.Errorf("expected exactly one address")
		}
		ip := net.ParseIP(fields[0]).To16()
		if ip == nil {
			return nil, 0, fmt.Errorf("invalid IPv6 address %q", fields[0])
		}
		return wire.EncodeAAAA(ip), wire.TypeAAAA, nil
	case "NS", "CNAME", "PTR":
		if len(fields) != 1 {
			return nil, 0, fmt.Errorf("expected exactly one name")
		}
		n, err := dnsname.FromText(fields[0], &origin)
		if err != nil {
			return nil, 0, err
		}
		typ := map[string]wire.Type{"NS": wire.TypeNS, "CNAME": wire.TypeCNAME, "PTR": wire.TypePTR}[typeName]
		return wire.EncodeName(n), typ, nil
	case "SOA":
		if len(fields) != 7 {
			return nil, 0, fmt.Errorf("expected mname rname serial refresh retry expire minimum, got %d fields", len(fields))
		}
		mname, err := dnsname.FromText(fields[0], &origin)
		if err != nil {
			return nil, 0, err
		}
		rname, err := dnsname.FromText(fields[1], &origin)
		if err != nil {
			return nil, 0, err
		}
		nums := make([]uint32, 5)
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseUint(fields[2+i], 10, 32)
			if err != nil {
				return nil, 0, fmt.Errorf("SOA numeric field %d: %w", i, err)
			}
			nums[i] = uint32(v)
		}
		return wire.EncodeSOA(wire.SOA{
			MName: mname, RName: rname, Serial: nums[0], Refresh: nums[1],
			Retry: nums[2], Expire: nums[3], Minimum: nums[4],
		}), wire.TypeSOA, nil
	case "MX":
		if len(fields) != 2 {
			return nil, 0, fmt.Errorf("expected preference exchange")
		}
		pref, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, 0, err
		}
		exch, err := dnsname.FromText(fields[1], &origin)
		if err != nil {
			return nil, 0, err
		}
		return wire.EncodeMX(wire.MX{Preference: uint16(pref), Exchange: exch}), wire.TypeMX, nil
	case "SRV":
		if len(fields) != 4 {
			return nil, 0, fmt.Errorf("expected priority weight port target")
		}
		nums := make([]uint64, 3)
		for i := 0; i < 3; i++ {
			v, err := strconv.ParseUint(fields[i], 10, 16)
			if err != nil {
				return nil, 0, err
			}
			nums[i] = v
		}
		target, err := dnsname.FromText(fields[3], &origin)
		if err != nil {
			return nil, 0, err
		}
		return wire.EncodeSRV(wire.SRV{
			Priority: uint16(nums[0]), Weight: uint16(nums[1]), Port: uint16(nums[2]), Target: target,
		}), wire.TypeSRV, nil
	case "TXT":
		strs := make([]string, len(fields))
		for i, f := range fields {
			strs[i] = strings.Trim(f, `"`)
		}
		return wire.EncodeTXT(strs), wire.TypeTXT, nil
	default:
		return nil, 0, fmt.Errorf("unsupported record type %s", typeName)
	}
}

// generateRecords expands one $GENERATE directive into a run of records,
// ported from the reference Reader._generate_line: a numeric range, an
// owner-name template, a record type, and an rdata template, where every
// literal '$' in the owner and rdata templates is substituted with the
// decimal iteration counter. Unlike the reference (which reads exactly one
// rdata token), the rdata template here may be multiple fields, so
// $GENERATE can drive record types (MX, SRV, SOA) whose rdata does not fit
// in a single token.
func generateRecords(z *Zone, fields []string, origin dnsname.Name, ttl uint32) error {
	if len(fields) < 3 {
		return fmt.Errorf("$GENERATE requires range name type rdata")
	}
	start, stop, step, err := parseGenerateRange(fields[0])
	if err != nil {
		return err
	}
	nameTemplate := fields[1]
	typeName := strings.ToUpper(fields[2])
	rdataTemplate := fields[3:]
	if len(rdataTemplate) == 0 {
		return fmt.Errorf("$GENERATE missing rdata for %s", typeName)
	}

	for i := start; i <= stop; i += step {
		counter := strconv.Itoa(i)
		ownerText := strings.ReplaceAll(nameTemplate, "$", counter)
		rdataFields := make([]string, len(rdataTemplate))
		for j, f := range rdataTemplate {
			rdataFields[j] = strings.ReplaceAll(f, "$", counter)
		}

		owner, err := dnsname.FromText(ownerText, &origin)
		if err != nil {
			return fmt.Errorf("$GENERATE owner %q: %w", ownerText, err)
		}
		rdata, typ, err := encodeMasterRData(typeName, rdataFields, origin)
		if err != nil {
			return fmt.Errorf("$GENERATE %s record at %s: %w", typeName, owner, err)
		}
		rr, err := buildRR(owner, typ, wire.ClassINET, ttl, rdata)
		if err != nil {
			return err
		}
		if err := z.AddRecord(rr); err != nil {
			return err
		}
	}
	return nil
}

// parseGenerateRange parses a $GENERATE range of the form "start-stop" or
// "start-stop/step" (step defaults to 1), matching dns.grange.from_text's
// grammar for the range argument.
func parseGenerateRange(s string) (start, stop, step int, err error) {
	step = 1
	rangePart := s
	if idx := strings.IndexByte(s, '/'); idx >= 0 {
		rangePart = s[:idx]
		step, err = strconv.Atoi(s[idx+1:])
		if err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid $GENERATE step in %q", s)
		}
	}
	parts := strings.SplitN(rangePart, "-", 2)
	if len(parts) == 1 {
		start, err = strconv.Atoi(parts[0])
		if err != nil || start < 0 {
			return 0, 0, 0, fmt.Errorf("invalid $GENERATE range %q", s)
		}
		return start, start, step, nil
	}
	start, err = strconv.Atoi(parts[0])
	if err != nil || start < 0 {
		return 0, 0, 0, fmt.Errorf("invalid $GENERATE range %q", s)
	}
	stop, err = strconv.Atoi(parts[1])
	if err != nil || stop < start {
		return 0, 0, 0, fmt.Errorf("invalid $GENERATE range %q", s)
	}
	return start, stop, step, nil
}

// logicalLine is one physical-or-joined-by-parens master-file record, with
// the tokens already split on whitespace (honoring quoted strings) and a
// flag recording whether its first line starts in column one (names an
// owner) rather than with whitespace (repeats the previous owner).
type logicalLine struct {
	fields   []string
	hasOwner bool
}

// assembleLogicalLines strips ';' comments, joins parenthesized
// continuations into one logical record, and tokenizes each record while
// keeping double-quoted strings (used by TXT rdata) intact.
func assembleLogicalLines(r io.Reader) ([]logicalLine, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []logicalLine
	var pending strings.Builder
	depth := 0
	pendingHasOwner := false
	sawAnyOnPending := false

	flush := func() {
		if pending.Len() == 0 {
			return
		}
		fields := tokenize(pending.String())
		if len(fields) > 0 {
			out = append(out, logicalLine{fields: fields, hasOwner: pendingHasOwner})
		}
		pending.Reset()
		sawAnyOnPending = false
	}

	for scanner.Scan() {
		raw := scanner.Text()
		stripped := stripComment(raw)
		if strings.TrimSpace(stripped) == "" {
			if depth == 0 {
				continue
			}
		}
		if depth == 0 && !sawAnyOnPending {
			pendingHasOwner = len(stripped) > 0 && stripped[0] != ' ' && stripped[0] != '\t'
		}
		sawAnyOnPending = true
		pending.WriteByte(' ')
		pending.WriteString(stripped)
		for _, c := range stripped {
			switch c {
			case '(':
				depth++
			case ')':
				depth--
			}
		}
		if depth <= 0 {
			depth = 0
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("zone: reading master file: %w", err)
	}
	flush()
	return out, nil
}

// stripComment removes a ';' comment to end-of-line, respecting
// double-quoted strings so a ';' inside TXT rdata is not mistaken for one.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// tokenize splits s on whitespace, treating '(' and ')' as plain
// whitespace (their continuation role was already consumed by
// assembleLogicalLines) and keeping the contents of a double-quoted
// string as one token without its quotes.
func tokenize(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
			cur.WriteByte(c)
		case c == '(' || c == ')':
			// continuation markers only, already handled
		case c == ' ' || c == '\t':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

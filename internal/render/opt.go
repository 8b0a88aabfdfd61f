package render

import (
	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// AddOPT appends an EDNS(0) OPT pseudo-RR to the ADDITIONAL section. It
// must be the last RR added before an optional trailing TSIG.
//
// When pad > 0, the OPT's RDATA is padded with a zero-filled padding option
// (code 12) so that the total message length, including optSize additional
// bytes the caller knows it will still add and tsigSize bytes for a
// following TSIG RR, rounds up to the next multiple of pad. This mirrors
// the fully-implemented reference dns.renderer.Renderer.add_opt, including
// its "best effort" tolerance for an imprecise tsigSize (e.g. a GSS-TSIG
// digest whose size isn't known up front): a negative computed pad length
// is simply clamped to zero rather than treated as an error.
func (r *Renderer) AddOPT(payload uint16, extRcode uint8, version uint8, flags uint16, options []wire.Option, pad int, optSize int, tsigSize int) error {
	if err := r.setSection(SectionAdditional); err != nil {
		return err
	}
	before := len(r.buf)

	rdata := wire.EncodeOptions(options)
	ttl := wire.EncodeOPTTTL(extRcode, version, flags)
	if err := r.AddRR(SectionAdditional, dnsname.Root, wire.TypeOPT, wire.Class(payload), ttl, rdata); err != nil {
		return err
	}

	if pad <= 0 {
		return nil
	}

	after := len(r.buf)
	// 4 bytes for the padding option's own code/length header.
	currentLength := after + 4 + optSize + tsigSize
	desiredLength := (((currentLength - 1) / pad) + 1) * pad
	padLength := desiredLength - currentLength
	if padLength < 0 {
		padLength = 0
	}

	options = append(options, wire.Option{Code: wire.OptCodePadding, Value: make([]byte, padLength)})
	rdata = wire.EncodeOptions(options)
	r.buf = r.buf[:before]
	r.counts[SectionAdditional]--
	return r.AddRR(SectionAdditional, dnsname.Root, wire.TypeOPT, wire.Class(payload), ttl, rdata)
}

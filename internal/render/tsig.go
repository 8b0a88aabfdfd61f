package render

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// TSIGContext threads a running MAC between successive messages of a
// multi-envelope zone transfer, so that AddMultiTSIG can be called once per
// message while still covering the whole stream, per RFC 8945 §4.4.
type TSIGContext struct {
	mac []byte
}

// AddTSIG signs the renderer's current buffer contents and appends a TSIG
// RR to ADDITIONAL, recording the resulting MAC (retrievable via LastMAC).
func (r *Renderer) AddTSIG(keyName dnsname.Name, secret []byte, algorithm dnsname.Name, timeSigned uint64, fudge uint16, origID uint16, errorCode uint16, otherData []byte) error {
	_, err := r.addTSIG(keyName, secret, algorithm, timeSigned, fudge, origID, errorCode, otherData, nil)
	return err
}

// AddMultiTSIG is AddTSIG for one envelope of a multi-message transfer: ctx
// (nil for the first call) carries the prior envelope's MAC so it can be
// folded into this envelope's signed data, per RFC 8945's TSIG-chaining
// requirement for zone transfers.
func (r *Renderer) AddMultiTSIG(ctx *TSIGContext, keyName dnsname.Name, secret []byte, algorithm dnsname.Name, timeSigned uint64, fudge uint16, origID uint16, errorCode uint16, otherData []byte) (*TSIGContext, error) {
	return r.addTSIG(keyName, secret, algorithm, timeSigned, fudge, origID, errorCode, otherData, ctx)
}

func (r *Renderer) addTSIG(keyName dnsname.Name, secret []byte, algorithm dnsname.Name, timeSigned uint64, fudge uint16, origID uint16, errorCode uint16, otherData []byte, ctx *TSIGContext) (*TSIGContext, error) {
	if err := r.setSection(SectionAdditional); err != nil {
		return nil, err
	}

	var signedData []byte
	if ctx != nil && len(ctx.mac) > 0 {
		var macLen [2]byte
		binary.BigEndian.PutUint16(macLen[:], uint16(len(ctx.mac)))
		signedData = append(signedData, macLen[:]...)
		signedData = append(signedData, ctx.mac...)
	}
	signedData = append(signedData, r.buf...)
	signedData = append(signedData, tsigVariables(keyName, algorithm, timeSigned, fudge, errorCode, otherData)...)

	h := hmac.New(sha256.New, secret)
	h.Write(signedData)
	mac := h.Sum(nil)

	rdata := wire.EncodeName(algorithm)
	var tail [6]byte
	tail[0] = byte(timeSigned >> 40)
	tail[1] = byte(timeSigned >> 32)
	binary.BigEndian.PutUint32(tail[2:6], uint32(timeSigned))
	rdata = append(rdata, tail[:]...)
	var fudgeBuf [2]byte
	binary.BigEndian.PutUint16(fudgeBuf[:], fudge)
	rdata = append(rdata, fudgeBuf[:]...)
	var macSize [2]byte
	binary.BigEndian.PutUint16(macSize[:], uint16(len(mac)))
	rdata = append(rdata, macSize[:]...)
	rdata = append(rdata, mac...)
	var origIDBuf [2]byte
	binary.BigEndian.PutUint16(origIDBuf[:], origID)
	rdata = append(rdata, origIDBuf[:]...)
	var errBuf [2]byte
	binary.BigEndian.PutUint16(errBuf[:], errorCode)
	rdata = append(rdata, errBuf[:]...)
	var otherLen [2]byte
	binary.BigEndian.PutUint16(otherLen[:], uint16(len(otherData)))
	rdata = append(rdata, otherLen[:]...)
	rdata = append(rdata, otherData...)

	if err := r.AddRR(SectionAdditional, keyName, wire.TypeTSIG, wire.ClassANY, 0, rdata); err != nil {
		return nil, err
	}

	r.mac = mac
	return &TSIGContext{mac: mac}, nil
}

func tsigVariables(keyName dnsname.Name, algorithm dnsname.Name, timeSigned uint64, fudge uint16, errorCode uint16, otherData []byte) []byte {
	var out []byte
	out = append(out, wire.EncodeName(keyName)...)
	var classBuf [2]byte
	binary.BigEndian.PutUint16(classBuf[:], uint16(wire.ClassANY))
	out = append(out, classBuf[:]...)
	var ttlBuf [4]byte
	out = append(out, ttlBuf[:]...)
	out = append(out, wire.EncodeName(algorithm)...)
	var timeBuf [6]byte
	timeBuf[0] = byte(timeSigned >> 40)
	timeBuf[1] = byte(timeSigned >> 32)
	binary.BigEndian.PutUint32(timeBuf[2:6], uint32(timeSigned))
	out = append(out, timeBuf[:]...)
	var fudgeBuf [2]byte
	binary.BigEndian.PutUint16(fudgeBuf[:], fudge)
	out = append(out, fudgeBuf[:]...)
	var errBuf [2]byte
	binary.BigEndian.PutUint16(errBuf[:], errorCode)
	out = append(out, errBuf[:]...)
	var otherLen [2]byte
	binary.BigEndian.PutUint16(otherLen[:], uint16(len(otherData)))
	out = append(out, otherLen[:]...)
	out = append(out, otherData...)
	return out
}

// Package wire defines cream's fixed-layout binary protocol and its codec.
//
// A request is a 12-byte header — three little-endian uint32 fields: request
// code, key size, value size — followed by the key bytes and then the value
// bytes. A response is an 8-byte header — response code and value size —
// followed by the value bytes on an OK answer to GET.
//
// The numeric values below are load-bearing: clients depend on them, so they
// must not change. The little-endian layout matches the x86 host order in
// which the original server wrote its C structs.
package wire

import (
	"encoding/binary"
	"io"
)

// Request codes. The high nibble tags a cream request; the low nibble is a
// one-hot operation bit, so a request carries exactly one operation.
// Dispatch tests (code & op) == op in the priority order Put, Get, Evict,
// Clear; codes missing the tag bit match nothing and are unsupported.
const (
	OpPut   uint32 = 0x11
	OpGet   uint32 = 0x12
	OpEvict uint32 = 0x14
	OpClear uint32 = 0x18
)

// Response codes.
const (
	StatusOK          uint32 = 200
	StatusUnsupported uint32 = 220
	StatusBadRequest  uint32 = 400
	StatusNotFound    uint32 = 404
)

// Payload bounds enforced by the request handler.
const (
	MinKeySize   = 1
	MaxKeySize   = 64
	MinValueSize = 1
	MaxValueSize = 1024
)

// Header sizes in bytes.
const (
	RequestHeaderSize  = 12
	ResponseHeaderSize = 8
)

// byteOrder is the wire byte order for all header fields.
var byteOrder = binary.LittleEndian

// RequestHeader is the fixed-layout header that opens every request.
type RequestHeader struct {
	Code      uint32
	KeySize   uint32
	ValueSize uint32
}

// ResponseHeader is the fixed-layout header that opens every response.
// ValueSize is nonzero only on an OK answer to GET.
type ResponseHeader struct {
	Code      uint32
	ValueSize uint32
}

// Op resolves the header's request code to a single operation bit, testing
// in the fixed priority order Put, Get, Evict, Clear. It returns 0 when no
// operation's full code (tag bit plus operation bit) is contained in Code.
func (h RequestHeader) Op() uint32 {
	for _, op := range [...]uint32{OpPut, OpGet, OpEvict, OpClear} {
		if h.Code&op == op {
			return op
		}
	}
	return 0
}

// ValidKeySize reports whether n is within the protocol's key bounds.
func ValidKeySize(n uint32) bool { return n >= MinKeySize && n <= MaxKeySize }

// ValidValueSize reports whether n is within the protocol's value bounds.
func ValidValueSize(n uint32) bool { return n >= MinValueSize && n <= MaxValueSize }

// ReadRequestHeader reads exactly one request header from r.
func ReadRequestHeader(r io.Reader) (RequestHeader, error) {
	var buf [RequestHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return RequestHeader{}, err
	}
	return RequestHeader{
		Code:      byteOrder.Uint32(buf[0:4]),
		KeySize:   byteOrder.Uint32(buf[4:8]),
		ValueSize: byteOrder.Uint32(buf[8:12]),
	}, nil
}

// WriteRequestHeader writes h to w.
func WriteRequestHeader(w io.Writer, h RequestHeader) error {
	var buf [RequestHeaderSize]byte
	byteOrder.PutUint32(buf[0:4], h.Code)
	byteOrder.PutUint32(buf[4:8], h.KeySize)
	byteOrder.PutUint32(buf[8:12], h.ValueSize)
	_, err := w.Write(buf[:])
	return err
}

// ReadResponseHeader reads exactly one response header from r.
func ReadResponseHeader(r io.Reader) (ResponseHeader, error) {
	var buf [ResponseHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ResponseHeader{}, err
	}
	return ResponseHeader{
		Code:      byteOrder.Uint32(buf[0:4]),
		ValueSize: byteOrder.Uint32(buf[4:8]),
	}, nil
}

// WriteResponseHeader writes h to w.
func WriteResponseHeader(w io.Writer, h ResponseHeader) error {
	var buf [ResponseHeaderSize]byte
	byteOrder.PutUint32(buf[0:4], h.Code)
	byteOrder.PutUint32(buf[4:8], h.ValueSize)
	_, err := w.Write(buf[:])
	return err
}

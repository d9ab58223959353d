// Package wire implements the binary scene protocol: a protobuf-compatible
// encoding of FrameMessage and InputMessage plus varint length framing.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"scenecast.dev/internal/protocol"
)

var (
	ErrTruncated       = protocol.NewCodedError(protocol.CodeTruncated, "wire: truncated data")
	ErrMalformedVarint = protocol.NewCodedError(protocol.CodeMalformedVarint, "wire: malformed varint")
	ErrInvalidTag      = protocol.NewCodedError(protocol.CodeInvalidTag, "wire: invalid tag")
)

// maxVarintLen is the longest legal varint encoding of a 64-bit value.
const maxVarintLen = 10

// Encoding helpers. Scalars equal to their zero value are elided; floats
// compare by bit pattern so -0 and NaN survive a round trip.

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendUint(b, num, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendUint(b, num, 1)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	bits := math.Float32bits(v)
	if bits == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, bits)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendMessage writes a length-delimited submessage produced by body. The
// body is appended in place and the length prefix fixed up afterwards. When
// always is false an empty body drops the field entirely, which is the zero
// predicate for every singular submessage.
func appendMessage(b []byte, num protowire.Number, always bool, body func([]byte) []byte) []byte {
	tagStart := len(b)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	start := len(b)
	b = append(b, 0)
	b = body(b)
	n := len(b) - start - 1
	if n == 0 && !always {
		return b[:tagStart]
	}
	if n < 0x80 {
		b[start] = byte(n)
		return b
	}
	sz := protowire.SizeVarint(uint64(n))
	b = append(b, make([]byte, sz-1)...)
	copy(b[start+sz:], b[start+1:start+1+n])
	protowire.AppendVarint(b[start:start], uint64(n))
	return b
}

// decoder walks the fields of one message.
type decoder struct {
	b   []byte
	off int
	msg string
}

func newDecoder(msg string, b []byte) *decoder { return &decoder{b: b, msg: msg} }

func (d *decoder) done() bool { return d.off >= len(d.b) }

func (d *decoder) fail(sentinel error, num protowire.Number, detail string) error {
	if num > 0 {
		return fmt.Errorf("%w: %s field %d at offset %d: %s", sentinel, d.msg, num, d.off, detail)
	}
	return fmt.Errorf("%w: %s at offset %d: %s", sentinel, d.msg, d.off, detail)
}

// nested wraps an error from a submessage decode with this message's context.
func (d *decoder) nested(num protowire.Number, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%d: %w", d.msg, num, err)
}

func (d *decoder) rawVarint(num protowire.Number) (uint64, error) {
	rest := d.b[d.off:]
	v, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		// A varint can only be cut short when fewer than ten bytes remain;
		// otherwise the encoding itself is invalid.
		if len(rest) >= maxVarintLen {
			return 0, d.fail(ErrMalformedVarint, num, "varint longer than 10 bytes")
		}
		return 0, d.fail(ErrTruncated, num, "varint")
	}
	d.off += n
	return v, nil
}

// next reads the next field tag.
func (d *decoder) next() (protowire.Number, protowire.Type, error) {
	v, err := d.rawVarint(0)
	if err != nil {
		return 0, 0, err
	}
	num, typ := protowire.DecodeTag(v)
	if num < protowire.MinValidNumber || num > protowire.MaxValidNumber {
		return 0, 0, d.fail(ErrInvalidTag, 0, fmt.Sprintf("field number %d", v>>3))
	}
	switch typ {
	case protowire.VarintType, protowire.Fixed32Type, protowire.Fixed64Type,
		protowire.BytesType, protowire.StartGroupType:
	default:
		return 0, 0, d.fail(ErrInvalidTag, num, fmt.Sprintf("wire type %d", typ))
	}
	return num, typ, nil
}

func (d *decoder) expect(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return d.fail(ErrInvalidTag, num, fmt.Sprintf("wire type %d, want %d", got, want))
	}
	return nil
}

func (d *decoder) uint64(num protowire.Number, typ protowire.Type) (uint64, error) {
	if err := d.expect(num, typ, protowire.VarintType); err != nil {
		return 0, err
	}
	return d.rawVarint(num)
}

func (d *decoder) uint32(num protowire.Number, typ protowire.Type) (uint32, error) {
	v, err := d.uint64(num, typ)
	return uint32(v), err
}

func (d *decoder) int32(num protowire.Number, typ protowire.Type) (int32, error) {
	v, err := d.uint64(num, typ)
	return int32(v), err
}

func (d *decoder) bool(num protowire.Number, typ protowire.Type) (bool, error) {
	v, err := d.uint64(num, typ)
	return protowire.DecodeBool(v), err
}

func (d *decoder) float(num protowire.Number, typ protowire.Type) (float32, error) {
	if err := d.expect(num, typ, protowire.Fixed32Type); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeFixed32(d.b[d.off:])
	if n < 0 {
		return 0, d.fail(ErrTruncated, num, "fixed32")
	}
	d.off += n
	return math.Float32frombits(v), nil
}

// bytes returns a slice aliasing the input buffer.
func (d *decoder) bytes(num protowire.Number, typ protowire.Type) ([]byte, error) {
	if err := d.expect(num, typ, protowire.BytesType); err != nil {
		return nil, err
	}
	l, err := d.rawVarint(num)
	if err != nil {
		return nil, err
	}
	if l > uint64(len(d.b)-d.off) {
		return nil, d.fail(ErrTruncated, num, fmt.Sprintf("length %d exceeds remaining %d", l, len(d.b)-d.off))
	}
	v := d.b[d.off : d.off+int(l) : d.off+int(l)]
	d.off += int(l)
	return v, nil
}

func (d *decoder) string(num protowire.Number, typ protowire.Type) (string, error) {
	v, err := d.bytes(num, typ)
	return string(v), err
}

// skip discards a field this decoder does not know.
func (d *decoder) skip(num protowire.Number, typ protowire.Type) error {
	switch typ {
	case protowire.VarintType:
		_, err := d.rawVarint(num)
		return err
	case protowire.Fixed32Type:
		if len(d.b)-d.off < 4 {
			return d.fail(ErrTruncated, num, "fixed32")
		}
		d.off += 4
	case protowire.Fixed64Type:
		if len(d.b)-d.off < 8 {
			return d.fail(ErrTruncated, num, "fixed64")
		}
		d.off += 8
	case protowire.BytesType:
		_, err := d.bytes(num, typ)
		return err
	case protowire.StartGroupType:
		n := protowire.ConsumeFieldValue(num, typ, d.b[d.off:])
		if n < 0 {
			return d.fail(ErrTruncated, num, "group: "+protowire.ParseError(n).Error())
		}
		d.off += n
	default:
		return d.fail(ErrInvalidTag, num, fmt.Sprintf("wire type %d", typ))
	}
	return nil
}

// message decodes a length-delimited submessage with fn.
func message[T any](d *decoder, num protowire.Number, typ protowire.Type, fn func([]byte) (T, error)) (T, error) {
	var zero T
	raw, err := d.bytes(num, typ)
	if err != nil {
		return zero, err
	}
	v, err := fn(raw)
	if err != nil {
		return zero, d.nested(num, err)
	}
	return v, nil
}

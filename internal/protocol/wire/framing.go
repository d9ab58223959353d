package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"scenecast.dev/internal/protocol"
)

// MaxPrefixLen is the longest accepted length prefix.
const MaxPrefixLen = 5

var (
	ErrFrameTooLarge = protocol.NewCodedError(protocol.CodeFrameTooLarge, "wire: message exceeds size limit")
	ErrFramingDesync = protocol.NewCodedError(protocol.CodeFramingDesync, "wire: framing desynchronized")
)

// Limits constrains framed message sizes.
type Limits struct {
	MaxMessageBytes int
}

func DefaultLimits() Limits {
	return Limits{MaxMessageBytes: 16 * 1024 * 1024}
}

// AppendDelimited appends msg to dst preceded by its varint length.
func AppendDelimited(dst, msg []byte) []byte {
	dst = protowire.AppendVarint(dst, uint64(len(msg)))
	return append(dst, msg...)
}

func WriteDelimited(w io.Writer, msg []byte, limits Limits) error {
	if limits.MaxMessageBytes > 0 && len(msg) > limits.MaxMessageBytes {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(msg))
	}
	buf := make([]byte, 0, MaxPrefixLen+len(msg))
	_, err := w.Write(AppendDelimited(buf, msg))
	return err
}

// ReadDelimited reads one length-prefixed message. io.EOF is returned only
// when the stream ends cleanly between messages; any other failure means the
// stream can no longer be trusted.
func ReadDelimited(r *bufio.Reader, limits Limits) ([]byte, error) {
	var (
		size  uint64
		shift uint
	)
	for i := 0; ; i++ {
		c, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if i == 0 {
					return nil, io.EOF
				}
				return nil, fmt.Errorf("%w: %w", ErrFramingDesync, io.ErrUnexpectedEOF)
			}
			return nil, err
		}
		if i == MaxPrefixLen {
			return nil, fmt.Errorf("%w: length prefix longer than %d bytes", ErrFramingDesync, MaxPrefixLen)
		}
		size |= uint64(c&0x7f) << shift
		if c < 0x80 {
			break
		}
		shift += 7
	}
	if limits.MaxMessageBytes > 0 && size > uint64(limits.MaxMessageBytes) {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(r, msg); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrFramingDesync, io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	return msg, nil
}

// SplitDelimited splits a buffer holding one or more length-prefixed messages.
// The returned slices alias buf.
func SplitDelimited(buf []byte, limits Limits) ([][]byte, error) {
	var out [][]byte
	for len(buf) > 0 {
		size, n := protowire.ConsumeVarint(buf)
		if n < 0 || n > MaxPrefixLen {
			return out, fmt.Errorf("%w: bad length prefix", ErrFramingDesync)
		}
		if limits.MaxMessageBytes > 0 && size > uint64(limits.MaxMessageBytes) {
			return out, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
		}
		buf = buf[n:]
		if size > uint64(len(buf)) {
			return out, fmt.Errorf("%w: length %d exceeds remaining %d", ErrFramingDesync, size, len(buf))
		}
		out = append(out, buf[:size:size])
		buf = buf[size:]
	}
	return out, nil
}

// IsFatal reports whether err leaves the transport stream unusable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFrameTooLarge) || errors.Is(err, ErrFramingDesync)
}

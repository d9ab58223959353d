package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestDelimitedStream(t *testing.T) {
	msgs := [][]byte{
		{},
		[]byte("a"),
		bytes.Repeat([]byte{0x42}, 300),
		MarshalFrame(sampleFrame()),
	}
	var buf bytes.Buffer
	for _, m := range msgs {
		if err := WriteDelimited(&buf, m, DefaultLimits()); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	raw := append([]byte(nil), buf.Bytes()...)

	r := bufio.NewReader(&buf)
	for i, want := range msgs {
		got, err := ReadDelimited(r, DefaultLimits())
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("message %d mismatch", i)
		}
	}
	if _, err := ReadDelimited(r, DefaultLimits()); err != io.EOF {
		t.Fatalf("expected clean EOF, got %v", err)
	}

	parts, err := SplitDelimited(raw, DefaultLimits())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(parts) != len(msgs) {
		t.Fatalf("split into %d parts, want %d", len(parts), len(msgs))
	}
	for i := range msgs {
		if !bytes.Equal(parts[i], msgs[i]) {
			t.Fatalf("part %d mismatch", i)
		}
	}
}

func TestFramingLimits(t *testing.T) {
	limits := Limits{MaxMessageBytes: 16}
	big := AppendDelimited(nil, make([]byte, 17))

	if _, err := ReadDelimited(bufio.NewReader(bytes.NewReader(big)), limits); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("read: expected ErrFrameTooLarge, got %v", err)
	}
	if _, err := SplitDelimited(big, limits); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("split: expected ErrFrameTooLarge, got %v", err)
	}
	if err := WriteDelimited(io.Discard, make([]byte, 17), limits); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("write: expected ErrFrameTooLarge, got %v", err)
	}
	if !IsFatal(ErrFrameTooLarge) {
		t.Fatalf("oversized frames must be fatal")
	}
}

func TestFramingDesync(t *testing.T) {
	cases := map[string][]byte{
		"prefix_too_long": {0x80, 0x80, 0x80, 0x80, 0x80, 0x01},
		"body_cut_short":  {0x05, 'a', 'b'},
		"prefix_cut":      {0x80},
	}
	for name, b := range cases {
		_, err := ReadDelimited(bufio.NewReader(bytes.NewReader(b)), Limits{})
		if !errors.Is(err, ErrFramingDesync) {
			t.Fatalf("%s: read: expected ErrFramingDesync, got %v", name, err)
		}
		if !IsFatal(err) {
			t.Fatalf("%s: expected fatal", name)
		}
		if _, err := SplitDelimited(b, Limits{}); !errors.Is(err, ErrFramingDesync) {
			t.Fatalf("%s: split: expected ErrFramingDesync, got %v", name, err)
		}
	}
}

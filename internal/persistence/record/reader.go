package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"scenecast.dev/internal/protocol/wire"
)

var ErrEmptyRecord = errors.New("record: empty record")

type Record struct {
	Kind    Kind
	Payload []byte
}

type Reader struct {
	f      *os.File
	dec    *zstd.Decoder
	r      *bufio.Reader
	limits wire.Limits
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Reader{f: f, dec: dec, r: bufio.NewReaderSize(dec, 256*1024), limits: wire.DefaultLimits()}, nil
}

// Next returns the next record or io.EOF at the end of the file.
func (r *Reader) Next() (Record, error) {
	body, err := wire.ReadDelimited(r.r, wire.Limits{MaxMessageBytes: r.limits.MaxMessageBytes + 1})
	if err != nil {
		return Record{}, err
	}
	if len(body) == 0 {
		return Record{}, ErrEmptyRecord
	}
	return Record{Kind: Kind(body[0]), Payload: body[1:]}, nil
}

func (r *Reader) Close() error {
	r.dec.Close()
	return r.f.Close()
}

// ListFiles returns the recording files in dir, oldest hour first.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Each calls fn for every record in files, in order.
func Each(files []string, fn func(Record) error) error {
	for _, p := range files {
		if err := eachInFile(p, fn); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

func eachInFile(path string, fn func(Record) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

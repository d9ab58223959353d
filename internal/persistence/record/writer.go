// Package record stores received frame payloads in hourly zstd files so a
// session can be replayed through the pipeline later.
package record

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"scenecast.dev/internal/protocol/wire"
)

// Kind tags each stored record.
type Kind byte

const (
	// KindSession marks the start of a connection; its payload is a label
	// such as the remote URL. Replays reset pipeline state here.
	KindSession Kind = 1
	// KindFrame holds one encoded FrameMessage exactly as received.
	KindFrame Kind = 2
)

const fileSuffix = ".rec.zst"

// Writer appends records to <dir>/<prefix>-YYYY-MM-DD-HH.rec.zst, rotating
// on the UTC hour. Each record is a varint length, a kind byte and the payload.
type Writer struct {
	baseDir string
	prefix  string
	now     func() time.Time

	// onClosed receives the path of every file the writer finishes with.
	onClosed func(path string)

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	scratch []byte
}

func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{baseDir: baseDir, prefix: prefix, now: time.Now}
}

// OnFileClosed registers fn to be called, with the writer locked, after an
// hour file is rotated away from or closed.
func (w *Writer) OnFileClosed(fn func(path string)) {
	w.mu.Lock()
	w.onClosed = fn
	w.mu.Unlock()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) WriteSession(label string) error { return w.write(KindSession, []byte(label)) }

func (w *Writer) WriteFrame(payload []byte) error { return w.write(KindFrame, payload) }

func (w *Writer) write(kind Kind, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	body := append(w.scratch[:0], byte(kind))
	body = append(body, payload...)
	w.scratch = body
	if _, err := w.w.Write(wire.AppendDelimited(nil, body)); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	// Appending starts a new zstd frame in the same file; readers decode
	// concatenated frames transparently.
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	var closed string
	if w.f != nil {
		closed = w.f.Name()
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	if closed != "" && w.onClosed != nil {
		w.onClosed(closed)
	}
	return err1
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s%s", w.prefix, hour, fileSuffix))
}

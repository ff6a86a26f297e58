package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"biomemap.ai/internal/sim/world/terrain/imagemap"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files
// <baseDir>/<prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time
	// OnClose, if set, receives the path of each finished segment.
	OnClose func(path string)

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	dir := filepath.Dir(w.pathForHour(hour))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
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

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
		if w.OnClose != nil {
			w.OnClose(w.pathForHour(w.curHour))
		}
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// ReadJSONL decodes every line of a zstd JSONL file into fn.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 128*1024)
	for {
		line, err := br.ReadBytes('\n')
		if line = bytes.TrimRight(line, "\n"); len(line) > 0 {
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// DiagnosticEntry is one line of the diagnostics log.
type DiagnosticEntry struct {
	TS      string                  `json:"ts"`
	Kind    string                  `json:"kind"` // "UNKNOWN_COLORS","DECODE_FAILED","ENCODE_FAILED","BUILD"
	Path    string                  `json:"path"`
	Error   string                  `json:"error,omitempty"`
	Unknown []imagemap.UnknownColor `json:"unknown,omitempty"`
	Build   *BuildEntry             `json:"build,omitempty"`
}

type BuildEntry struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Orientation   string `json:"orientation"`
	Mode          string `json:"mode"`
	UnknownColors int    `json:"unknown_colors"`
	Passes        int    `json:"passes"`
	RepairedCells int    `json:"repaired_cells"`
	FixedImage    string `json:"fixed_image,omitempty"`
	FromSnapshot  bool   `json:"from_snapshot"`
	ElapsedMs     int64  `json:"elapsed_ms"`
}

// DiagnosticsLogger records build diagnostics as compressed JSONL. It is an
// imagemap.Sink; write failures go to Logger.
type DiagnosticsLogger struct {
	w      *JSONLZstdWriter
	Logger *stdlog.Logger
}

var _ imagemap.Sink = (*DiagnosticsLogger)(nil)

func NewDiagnosticsLogger(dataDir string) *DiagnosticsLogger {
	return &DiagnosticsLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "diagnostics"), "diagnostics")}
}

func (l *DiagnosticsLogger) UnknownColors(path string, report []imagemap.UnknownColor) {
	l.write(DiagnosticEntry{Kind: "UNKNOWN_COLORS", Path: path, Unknown: report})
}

func (l *DiagnosticsLogger) DecodeFailed(path string, err error) {
	l.write(DiagnosticEntry{Kind: "DECODE_FAILED", Path: path, Error: err.Error()})
}

func (l *DiagnosticsLogger) EncodeFailed(path string, err error) {
	l.write(DiagnosticEntry{Kind: "ENCODE_FAILED", Path: path, Error: err.Error()})
}

func (l *DiagnosticsLogger) WriteBuild(path string, b BuildEntry) error {
	return l.w.Write(DiagnosticEntry{TS: l.ts(), Kind: "BUILD", Path: path, Build: &b})
}

func (l *DiagnosticsLogger) Close() error { return l.w.Close() }

// OnSegmentClosed registers fn for finished hourly segments.
func (l *DiagnosticsLogger) OnSegmentClosed(fn func(path string)) { l.w.OnClose = fn }

func (l *DiagnosticsLogger) ts() string { return l.w.now().UTC().Format(time.RFC3339Nano) }

func (l *DiagnosticsLogger) write(e DiagnosticEntry) {
	e.TS = l.ts()
	if err := l.w.Write(e); err != nil && l.Logger != nil {
		l.Logger.Printf("diagnostics write (%s): %v", e.Kind, err)
	}
}

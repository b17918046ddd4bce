package archive

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/Sternrassler/leaderboard-archiver/pkg/aggregate"
	"github.com/goccy/go-json"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// TimestampLayout is the ISO-8601 layout of the snapshot timestamp.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// DefaultDictCap is the LZMA dictionary size of the highest xz preset.
const DefaultDictCap = 64 << 20

// Snapshot is the on-disk document shape.
type Snapshot struct {
	Timestamp string            `json:"timestamp"`
	Data      map[string]string `json:"data"`
}

// Time parses Timestamp.
func (s *Snapshot) Time() (time.Time, error) {
	return time.Parse(TimestampLayout, s.Timestamp)
}

// Encode serializes doc to minimal-whitespace JSON with sorted keys. HTML
// characters in response bodies are kept as is.
func Encode(doc *aggregate.Document) ([]byte, error) {
	snap := Snapshot{
		Timestamp: doc.Timestamp.Format(TimestampLayout),
		Data:      doc.Data(),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return nil, &Error{Op: OpEncode, Err: err}
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Compress writes data to w as an xz stream. The dictionary is capped at the
// payload size; a larger one cannot improve the ratio.
func Compress(w io.Writer, data []byte, dictCap int) error {
	if dictCap <= 0 {
		dictCap = DefaultDictCap
	}
	if dictCap > len(data) {
		dictCap = len(data)
	}
	if dictCap < lzma.MinDictCap {
		dictCap = lzma.MinDictCap
	}

	cfg := xz.WriterConfig{
		DictCap:  dictCap,
		CheckSum: xz.CRC64,
	}

	zw, err := cfg.NewWriter(w)
	if err != nil {
		return &Error{Op: OpCompress, Err: fmt.Errorf("create xz writer: %w", err)}
	}
	if _, err := zw.Write(data); err != nil {
		return &Error{Op: OpCompress, Err: err}
	}
	if err := zw.Close(); err != nil {
		return &Error{Op: OpCompress, Err: fmt.Errorf("close xz writer: %w", err)}
	}
	return nil
}

// Decode decompresses and parses a snapshot stream.
func Decode(r io.Reader) (*Snapshot, error) {
	zr, err := xz.NewReader(r)
	if err != nil {
		return nil, &Error{Op: OpDecode, Err: fmt.Errorf("open xz stream: %w", err)}
	}

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, &Error{Op: OpDecode, Err: fmt.Errorf("decompress: %w", err)}
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &Error{Op: OpDecode, Err: fmt.Errorf("parse json: %w", err)}
	}
	if snap.Data == nil {
		snap.Data = map[string]string{}
	}
	return &snap, nil
}

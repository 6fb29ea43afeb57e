package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ReadJSONL calls fn for every non-blank line of r. index counts records,
// starting at zero; blank lines are not counted.
func ReadJSONL(r io.Reader, fn func(index int, line []byte) error) error {
	br := bufio.NewReaderSize(r, 1<<20)
	index := 0

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			trimmed := bytes.TrimSpace(line)
			if len(trimmed) > 0 {
				if ferr := fn(index, trimmed); ferr != nil {
					return ferr
				}
				index++
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read line %d: %w", index+1, err)
		}
	}
}

// ReadSamples decodes a JSONL stream of reward samples
func ReadSamples(r io.Reader) ([]RewardSampleRow, error) {
	var rows []RewardSampleRow
	err := ReadJSONL(r, func(index int, line []byte) error {
		row := RewardSampleRow{Line: index}
		if err := json.Unmarshal(line, &row.Sample); err != nil {
			row.Err = fmt.Errorf("decode sample: %w", err)
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// JSONLWriter writes one JSON document per line
type JSONLWriter struct {
	buf   *bufio.Writer
	enc   *json.Encoder
	count int
}

// NewJSONLWriter creates a buffered writer; call Flush when done
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{buf: buf, enc: enc}
}

// Write encodes v as one line
func (w *JSONLWriter) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode line %d: %w", w.count+1, err)
	}
	w.count++
	return nil
}

// Count returns the number of lines written
func (w *JSONLWriter) Count() int {
	return w.count
}

// Flush writes buffered data to the underlying writer
func (w *JSONLWriter) Flush() error {
	return w.buf.Flush()
}

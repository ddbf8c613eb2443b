// Package sink serializes record sets to the newline-delimited JSON
// artifact consumed by the warehouse loader.
package sink

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
)

// WriteLines writes one JSON object per line, preserving record order.
// The write is not atomic; a crash can leave a partial file. That is
// acceptable because the loader only runs after WriteLines returns.
func WriteLines[T any](records []T, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "sink: create %s", path)
	}
	defer file.Close() //nolint:errcheck

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		// Encode appends the newline that delimits records.
		if err := enc.Encode(rec); err != nil {
			return eris.Wrapf(err, "sink: encode record to %s", path)
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "sink: flush %s", path)
	}
	return file.Close()
}

// ReadLines decodes a newline-delimited JSON artifact in line order.
// Blank lines are skipped.
func ReadLines[T any](path string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sink: open %s", path)
	}
	defer file.Close() //nolint:errcheck

	var out []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, eris.Wrapf(err, "sink: decode %s line %d", path, line)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "sink: scan %s", path)
	}
	return out, nil
}

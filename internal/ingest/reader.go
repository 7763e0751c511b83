package ingest

import (
	"bufio"
	"fmt"
	"io"
)

// ReadRows reads newline-delimited CSV from r, discards the required
// header line, and returns the remaining raw rows unmodified. Returns
// an error only when the underlying read fails.
func ReadRows(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var rows []string
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		rows = append(rows, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return rows, nil
}

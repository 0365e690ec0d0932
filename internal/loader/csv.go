package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\uFEFF"

// sniffCandidates are the delimiters considered when none is forced.
var sniffCandidates = []rune{',', ';', '\t', '|'}

func readCSV(ctx context.Context, r io.Reader, delim rune, cells cellReader) (grid, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	if delim == 0 {
		peek, err := br.Peek(br.Size())
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
			return grid{}, fmt.Errorf("csv peek: %w", err)
		}
		delim = sniffDelimiter(string(peek))
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	hdr, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return grid{}, ErrNoColumns
	}
	if err != nil {
		return grid{}, fmt.Errorf("read header: %w", err)
	}
	header := append([]string(nil), hdr...)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if len(header) == 1 && strings.TrimSpace(header[0]) == "" {
		return grid{}, ErrNoColumns
	}

	g := grid{header: header}
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return grid{}, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return g, nil
		}
		if err != nil {
			return grid{}, fmt.Errorf("csv read line %d: %w", line, err)
		}
		g.rows = append(g.rows, cells.row(rec))
	}
}

// sniffDelimiter picks the candidate that occurs most often outside quotes on
// the first line of sample. Ties and no hits fall back to ','.
func sniffDelimiter(sample string) rune {
	sample = strings.TrimPrefix(sample, utf8BOM)

	counts := make(map[rune]int, len(sniffCandidates))
	inQuotes := false
	for _, r := range sample {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if inQuotes {
			continue
		}
		if r == '\n' || r == '\r' {
			break
		}
		counts[r]++
	}

	best, bestN := ',', 0
	for _, c := range sniffCandidates {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}
	return best
}

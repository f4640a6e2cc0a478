// Package ingest parses transaction files for loading into the store.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/eargollo/fraudscan/internal/store"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ReadCSV parses amount[,timestamp[,card_number_encrypted]] records. A first
// row whose amount is not numeric is treated as a header. Empty timestamps
// are left zero so the store stamps them at insert time.
func ReadCSV(r io.Reader) ([]store.NewTransaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []store.NewTransaction
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if len(rec) > 3 {
			return nil, fmt.Errorf("line %d: %d fields, want at most 3", line, len(rec))
		}

		amount, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: amount %q: %w", line, rec[0], err)
		}
		t := store.NewTransaction{Amount: amount}
		if len(rec) > 1 {
			if t.Timestamp, err = parseTimestamp(rec[1]); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		if len(rec) > 2 {
			t.CardNumberEncrypted = strings.TrimSpace(rec[2])
		}
		out = append(out, t)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: unrecognised format", s)
}

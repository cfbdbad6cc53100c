package calibration

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Header is the first row written by Write.
var Header = []string{"Voltage", "FanPercent", "PWM"}

// Read parses calibration rows from r.
//
// A leading UTF-8 byte-order mark is ignored. The first row is a header when
// none of its first three fields is a number; any other unparsable row is an
// error naming its line. Blank rows and rows with fewer than three fields are
// skipped. Parsing stops once the Set is full; remaining rows are not
// inspected.
func Read(r io.Reader) (Set, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var set Set
	first := true
	for !set.Full() {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Set{}, fmt.Errorf("calibration: read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		isFirst := first
		first = false
		if isFirst && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		}

		if len(rec) < 3 {
			continue
		}
		if isFirst && isHeader(rec) {
			continue
		}
		sm, err := parseRow(rec)
		if err != nil {
			return Set{}, fmt.Errorf("calibration: line %d: %w", line, err)
		}
		set.add(sm)
	}
	return set, nil
}

func isHeader(rec []string) bool {
	for i := 0; i < 3; i++ {
		if _, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 32); err == nil {
			return false
		}
	}
	return true
}

func parseRow(rec []string) (Sample, error) {
	var vals [3]float32
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 32)
		if err != nil {
			return Sample{}, fmt.Errorf("field %d (%q): %w", i+1, rec[i], err)
		}
		vals[i] = float32(f)
	}
	return Sample{Voltage: vals[0], FanPercent: vals[1], PWMPercent: vals[2]}, nil
}

// Write emits Header followed by one row per sample.
func Write(w io.Writer, set Set) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("calibration: write csv: %w", err)
	}
	for _, sm := range set.Samples() {
		row := []string{formatFloat(sm.Voltage), formatFloat(sm.FanPercent), formatFloat(sm.PWMPercent)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("calibration: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("calibration: write csv: %w", err)
	}
	return nil
}

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// Package export serializes charging plans for downstream tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetcharge/core/report"
)

// Format selects the serialization of an export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

var (
	recordHeader     = []string{"vehicle", "hour", "energy_kwh"}
	assignmentHeader = []string{"hour", "class_id", "slot", "vehicle", "energy_kwh"}
)

// WriteJSON writes v to w in indented JSON format.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteYAML writes v to w in YAML format.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// WriteRecordsCSV writes one row per (vehicle, hour) cell.
func WriteRecordsCSV(w io.Writer, recs []report.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			strconv.Itoa(r.Vehicle),
			strconv.Itoa(r.Hour),
			strconv.FormatFloat(r.Energy, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAssignmentsCSV writes one row per occupied charging slot.
func WriteAssignmentsCSV(w io.Writer, recs []report.AssignmentRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(assignmentHeader); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			strconv.Itoa(r.Hour),
			strconv.Itoa(r.ClassID),
			strconv.Itoa(r.Slot),
			strconv.Itoa(r.Vehicle),
			strconv.FormatFloat(r.Energy, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Records writes recs in the requested format.
func Records(w io.Writer, f Format, recs []report.Record) error {
	switch f {
	case FormatCSV:
		return WriteRecordsCSV(w, recs)
	case FormatJSON:
		return WriteJSON(w, recs)
	case FormatYAML:
		return WriteYAML(w, recs)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// Assignments writes recs in the requested format.
func Assignments(w io.Writer, f Format, recs []report.AssignmentRecord) error {
	switch f {
	case FormatCSV:
		return WriteAssignmentsCSV(w, recs)
	case FormatJSON:
		return WriteJSON(w, recs)
	case FormatYAML:
		return WriteYAML(w, recs)
	}
	return fmt.Errorf("unknown export format %q", f)
}

// ReadRecordsCSV parses the output of WriteRecordsCSV.
func ReadRecordsCSV(r io.Reader) ([]report.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(recordHeader)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if strings.Join(rows[0], ",") != strings.Join(recordHeader, ",") {
		return nil, fmt.Errorf("unexpected header %v", rows[0])
	}
	out := make([]report.Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		v, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: vehicle: %w", i+2, err)
		}
		h, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: hour: %w", i+2, err)
		}
		e, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: energy: %w", i+2, err)
		}
		out = append(out, report.Record{Vehicle: v, Hour: h, Energy: e})
	}
	return out, nil
}

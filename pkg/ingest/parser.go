// Package ingest normalizes incoming log payloads into records and
// drives them through classification: single lines from agents and
// batch files from the dashboard share one path.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/anomi-sec/anomi/pkg/model"
)

// ErrEmptyInput marks a batch with zero parseable records.
var ErrEmptyInput = errors.New("ingest: no parseable records in payload")

// ValidationError rejects malformed single submissions. The request
// has no side effects when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Batch is a parsed upload: normalized records plus the dataset
// profile detected from its shape.
type Batch struct {
	Records []model.Record
	Headers []string
	Profile string
}

// Dataset profiles steer attack-type labelling per upload shape.
const (
	ProfileIDSLog     = "ids-log"
	ProfileServiceLog = "service-log"
	ProfileSensor     = "sensor"
	ProfileFreeform   = "freeform"
	ProfileLive       = "live"
)

// ParseBatch parses an uploaded file into records. CSV payloads use
// the first row as field names; everything else is treated as freeform
// lines, except text files whose first lines look tabular, which get
// the CSV treatment too (exports saved with a .txt extension are
// common).
func ParseBatch(filename string, data []byte) (Batch, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Batch{}, ErrEmptyInput
	}

	if strings.HasSuffix(strings.ToLower(filename), ".csv") || looksTabular(data) {
		batch, err := parseCSV(data)
		if err == nil && len(batch.Records) > 0 {
			batch.Profile = detectProfile(batch.Headers, filename)
			return batch, nil
		}
		// A header row with no data rows is an empty upload, not a
		// freeform payload: never classify column names as a record.
		if errors.Is(err, ErrEmptyInput) || (err == nil && len(batch.Records) == 0) {
			return Batch{}, ErrEmptyInput
		}
		// Fall through to freeform on ragged or degenerate CSV.
	}

	batch := parseLines(data)
	if len(batch.Records) == 0 {
		return Batch{}, ErrEmptyInput
	}
	batch.Profile = detectProfile(nil, filename)
	return batch, nil
}

func parseCSV(data []byte) (Batch, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return Batch{}, fmt.Errorf("csv parse failed: %w", err)
	}
	if len(rows) < 2 {
		return Batch{}, ErrEmptyInput
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var records []model.Record
	for _, row := range rows[1:] {
		fields := make(map[string]string, len(headers))
		for i, cell := range row {
			if i >= len(headers) {
				break
			}
			fields[headers[i]] = strings.TrimSpace(cell)
		}
		if len(fields) == 0 {
			continue
		}
		records = append(records, model.Record{
			Fields: fields,
			Raw:    strings.Join(row, ","),
		})
	}
	return Batch{Records: records, Headers: headers}, nil
}

func parseLines(data []byte) Batch {
	var records []model.Record
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		records = append(records, model.NewTextRecord(line))
	}
	return Batch{Records: records}
}

// looksTabular reports whether the payload's first rows share a stable
// comma-separated column count with a non-numeric header row.
func looksTabular(data []byte) bool {
	lines := strings.SplitN(string(data), "\n", 4)
	if len(lines) < 2 {
		return false
	}
	header := strings.Split(strings.TrimSpace(lines[0]), ",")
	if len(header) < 2 {
		return false
	}
	for _, h := range header {
		if _, err := strconv.ParseFloat(strings.TrimSpace(h), 64); err == nil {
			return false
		}
	}
	second := strings.Split(strings.TrimSpace(lines[1]), ",")
	return len(second) == len(header)
}

// detectProfile picks the attack-type vocabulary for a batch from its
// column names, falling back to filename hints.
func detectProfile(headers []string, filename string) string {
	set := make(map[string]bool, len(headers))
	for _, h := range headers {
		set[h] = true
	}
	switch {
	case set["signature"] || set["alert"] || set["src_ip"] || set["source_ip"]:
		return ProfileIDSLog
	case set["endpoint"] || set["status_code"] || set["service"] || set["api"]:
		return ProfileServiceLog
	case set["value"] || set["reading"] || set["power_kw"] || set["voltage"] || set["temperature"]:
		return ProfileSensor
	}

	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "ids") || strings.Contains(name, "firewall"):
		return ProfileIDSLog
	case strings.Contains(name, "api") || strings.Contains(name, "service"):
		return ProfileServiceLog
	case strings.Contains(name, "sensor") || strings.Contains(name, "meter"):
		return ProfileSensor
	}
	return ProfileFreeform
}

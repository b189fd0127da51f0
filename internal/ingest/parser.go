package ingest

import (
	"encoding/csv"
	"errors"
	"regexp"
	"strings"

	"brewble/internal/normalize"
)

var (
	reTimestamp = regexp.MustCompile(`^\s*([0-9]{4}-[0-9]{2}-[0-9]{2}[ T][0-9:.+-Z]+)`)
	reKV        = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_.]*)=(\S+)`)
)

// Parser understands the three wire forms of a remote advertisement: JSON,
// CSV with a header row, and key=value text such as
//
//	2026-02-23T12:34:56Z address=AA:BB:CC:DD:EE:FF rssi=-60 mfg.0x004c=0215...
//
// Manufacturer and service data columns or keys are prefixed mfg. and svc.
type Parser struct {
	csv *CSVParser
}

func NewParser() *Parser {
	return &Parser{csv: NewCSVParser()}
}

// ParseLine returns nil fields for blank lines and CSV headers.
func (p *Parser) ParseLine(line string) (*normalize.AdvertisementFields, error) {
	trim := strings.TrimSpace(line)
	if trim == "" {
		return nil, nil
	}
	if looksLikeJSON(trim) {
		fields, err := ParseJSONBytes([]byte(trim))
		if err != nil {
			return nil, err
		}
		fields.Raw = line
		return fields, nil
	}
	if strings.Contains(trim, ",") && !strings.Contains(trim, "=") {
		fields, err := p.csv.Parse(trim)
		if err != nil || fields == nil {
			return nil, err
		}
		fields.Raw = line
		return fields, nil
	}
	fields, err := parsePlain(trim)
	if err != nil {
		return nil, err
	}
	fields.Raw = line
	return fields, nil
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func parsePlain(line string) (*normalize.AdvertisementFields, error) {
	fields := newFields()
	ts, _ := extractTimestamp(line)
	fields.Timestamp = ts

	matches := reKV.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil, errors.New("no key=value pairs")
	}
	for _, match := range matches {
		assignField(fields, match[1], match[2])
	}
	return fields, nil
}

func extractTimestamp(line string) (string, string) {
	m := reTimestamp.FindStringSubmatchIndex(line)
	if len(m) >= 4 {
		ts := strings.TrimSpace(line[m[2]:m[3]])
		rest := strings.TrimSpace(line[m[3]:])
		return ts, rest
	}
	return "", line
}

func firstNonEmpty(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

func newFields() *normalize.AdvertisementFields {
	return &normalize.AdvertisementFields{
		ManufacturerData: map[string]string{},
		ServiceData:      map[string]string{},
	}
}

// CSVParser remembers the header row of a capture file.
type CSVParser struct {
	header []string
}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

func (p *CSVParser) Parse(line string) (*normalize.AdvertisementFields, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.TrimLeadingSpace = true
	record, err := r.Read()
	if err != nil {
		return nil, err
	}
	if len(record) == 0 {
		return nil, nil
	}
	if looksLikeHeader(record) {
		p.header = normalizeHeader(record)
		return nil, nil
	}
	if p.header == nil {
		return nil, errors.New("csv advertisement without header row")
	}
	fields := newFields()
	for i, name := range p.header {
		if i >= len(record) {
			break
		}
		assignField(fields, name, record[i])
	}
	return fields, nil
}

func looksLikeHeader(record []string) bool {
	for _, v := range record {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "timestamp", "time", "ts", "address", "addr", "mac", "rssi":
			return true
		}
	}
	return false
}

func normalizeHeader(record []string) []string {
	out := make([]string, len(record))
	for i, v := range record {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func assignField(fields *normalize.AdvertisementFields, name string, value string) {
	name = strings.ToLower(strings.TrimSpace(name))
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	switch {
	case strings.HasPrefix(name, "mfg."):
		fields.ManufacturerData[strings.TrimPrefix(name, "mfg.")] = value
		return
	case strings.HasPrefix(name, "svc."):
		fields.ServiceData[strings.TrimPrefix(name, "svc.")] = value
		return
	}
	switch name {
	case "timestamp", "time", "ts":
		fields.Timestamp = value
	case "address", "addr", "mac":
		fields.Address = value
	case "name", "local_name":
		fields.Name = value
	case "rssi":
		fields.RSSI = value
	}
}

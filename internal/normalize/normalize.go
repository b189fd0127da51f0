// Package normalize turns loosely typed advertisement fields from remote
// feeds into model.Advertisement values the decoders accept.
package normalize

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"brewble/internal/model"
)

// bluetoothBaseSuffix completes 16- and 32-bit service ids to 128 bits.
const bluetoothBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// AdvertisementFields is the raw, string-typed form of one advertisement as
// parsed from JSON, CSV or key=value text. Manufacturer data is keyed by the
// company id as written, service data by the service id as written.
type AdvertisementFields struct {
	Timestamp        string
	Address          string
	Name             string
	RSSI             string
	ManufacturerData map[string]string
	ServiceData      map[string]string
	Raw              string
}

func Normalize(fields AdvertisementFields, source string) (model.Advertisement, error) {
	addr := strings.ToUpper(strings.TrimSpace(fields.Address))
	if addr == "" {
		return model.Advertisement{}, errors.New("missing address")
	}

	ts := time.Now().UTC()
	if fields.Timestamp != "" {
		parsed, err := ParseTimestamp(fields.Timestamp, time.UTC)
		if err != nil {
			return model.Advertisement{}, fmt.Errorf("parse timestamp: %w", err)
		}
		ts = parsed.UTC()
	}

	rssi := 0
	if v := strings.TrimSpace(fields.RSSI); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return model.Advertisement{}, fmt.Errorf("parse rssi %q: %w", v, err)
		}
		rssi = n
	}

	adv := model.Advertisement{
		Timestamp: ts,
		Address:   addr,
		Name:      strings.TrimSpace(fields.Name),
		RSSI:      rssi,
		Source:    source,
	}
	if len(fields.ManufacturerData) > 0 {
		adv.ManufacturerData = make(map[uint16][]byte, len(fields.ManufacturerData))
		for k, v := range fields.ManufacturerData {
			id, err := ParseCompanyID(k)
			if err != nil {
				return model.Advertisement{}, err
			}
			data, err := DecodeHex(v)
			if err != nil {
				return model.Advertisement{}, fmt.Errorf("manufacturer data %s: %w", k, err)
			}
			adv.ManufacturerData[id] = data
		}
	}
	if len(fields.ServiceData) > 0 {
		adv.ServiceData = make(map[string][]byte, len(fields.ServiceData))
		for k, v := range fields.ServiceData {
			id, err := ExpandServiceUUID(k)
			if err != nil {
				return model.Advertisement{}, err
			}
			data, err := DecodeHex(v)
			if err != nil {
				return model.Advertisement{}, fmt.Errorf("service data %s: %w", k, err)
			}
			adv.ServiceData[id] = data
		}
	}
	return adv, nil
}

// ParseCompanyID accepts a decimal id or a 0x-prefixed hex id.
func ParseCompanyID(value string) (uint16, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	base := 10
	if strings.HasPrefix(v, "0x") {
		v = v[2:]
		base = 16
	}
	n, err := strconv.ParseUint(v, base, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid company id %q", value)
	}
	return uint16(n), nil
}

// ExpandServiceUUID returns the lowercase 128-bit form of a 16-bit, 32-bit
// or full service UUID.
func ExpandServiceUUID(value string) (string, error) {
	v := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	switch len(v) {
	case 4:
		v = "0000" + v + bluetoothBaseSuffix
	case 8:
		v = v + bluetoothBaseSuffix
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return "", fmt.Errorf("invalid service uuid %q", value)
	}
	return id.String(), nil
}

// DecodeHex decodes hex with optional 0x prefix and ':', '-' or space
// separators.
func DecodeHex(value string) ([]byte, error) {
	v := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	v = strings.NewReplacer(":", "", "-", "", " ", "").Replace(v)
	return hex.DecodeString(v)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05Z0700",
}

func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if isNumeric(value) {
		if ts, err := parseUnix(value); err == nil {
			return ts, nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	if len(value) >= 13 {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"brewble/internal/normalize"
)

// ParseJSONBytes reads one advertisement in the JSON wire form:
//
//	{"address":"AA:..","name":"..","rssi":-60,"timestamp":"..",
//	 "manufacturer_data":{"0x004c":"0215.."},"service_data":{"feaa":"2000.."}}
func ParseJSONBytes(data []byte) (*normalize.AdvertisementFields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return ParseJSONMap(obj), nil
}

func ParseJSONMap(obj map[string]any) *normalize.AdvertisementFields {
	flat := map[string]string{}
	fields := &normalize.AdvertisementFields{
		ManufacturerData: map[string]string{},
		ServiceData:      map[string]string{},
	}
	for key, val := range obj {
		key = strings.ToLower(key)
		switch key {
		case "manufacturer_data", "mfg":
			copyStringMap(fields.ManufacturerData, val)
		case "service_data", "svc":
			copyStringMap(fields.ServiceData, val)
		default:
			flat[key] = stringify(val)
		}
	}
	fields.Timestamp = firstNonEmpty(flat, "timestamp", "time", "ts")
	fields.Address = firstNonEmpty(flat, "address", "addr", "mac")
	fields.Name = firstNonEmpty(flat, "name", "local_name")
	fields.RSSI = firstNonEmpty(flat, "rssi")
	return fields
}

func copyStringMap(dst map[string]string, val any) {
	m, ok := val.(map[string]any)
	if !ok {
		return
	}
	for k, v := range m {
		dst[k] = stringify(v)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

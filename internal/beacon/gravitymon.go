package beacon

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"brewble/internal/model"
)

var gravitymonTag = []byte("GRAVMON.")

var eddystoneTLMHeader = []byte{0x20, 0x00}

// Eddystone frame: header(2) battery(2) temp(2) value(2) value(2) chip(4).
const eddystoneLen = 14

func chipID(v uint32) string {
	return strconv.FormatUint(uint64(v), 16)
}

// decodeGravitymonIBeacon parses chip(4) angle(2) battery(2) gravity(2) temp(2).
func decodeGravitymonIBeacon(b []byte) (model.Reading, bool) {
	if len(b) < 12 {
		return model.Reading{}, false
	}
	return gravitymonReading(
		model.FormatGravitymonIBeacon,
		binary.BigEndian.Uint32(b[0:4]),
		binary.BigEndian.Uint16(b[4:6]),
		binary.BigEndian.Uint16(b[6:8]),
		binary.BigEndian.Uint16(b[8:10]),
		binary.BigEndian.Uint16(b[10:12]),
	), true
}

func gravitymonReading(format model.Format, chip uint32, angle, battery, gravity, temp uint16) model.Reading {
	id := chipID(chip)
	return model.Reading{
		Kind:        model.KindGravity,
		Format:      format,
		DeviceKey:   id,
		ChipID:      id,
		Temperature: float64(temp) / 1000,
		TempUnits:   "C",
		Gravity:     model.Float(float64(gravity) / 10000),
		Angle:       model.Float(float64(angle) / 100),
		Battery:     model.Float(float64(battery) / 1000),
	}
}

// decodeEddystone handles the TLM-shaped frames sent by Gravitymon and
// Pressuremon. Both use the same header, so the advertised name picks the
// layout; an unnamed frame matches neither.
func decodeEddystone(data []byte, name string) (model.Reading, bool) {
	if len(data) < eddystoneLen || !bytes.HasPrefix(data, eddystoneTLMHeader) {
		return model.Reading{}, false
	}
	battery := binary.BigEndian.Uint16(data[2:4])
	temp := binary.BigEndian.Uint16(data[4:6])
	v1 := binary.BigEndian.Uint16(data[6:8])
	v2 := binary.BigEndian.Uint16(data[8:10])
	chip := binary.BigEndian.Uint32(data[10:14])

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gravitymon":
		return gravitymonReading(model.FormatGravitymonEddystone, chip, v2, battery, v1, temp), true
	case "pressuremon":
		return pressuremonReading(model.FormatPressuremonEddystone, chip, v1, v2, battery, temp), true
	}
	return model.Reading{}, false
}

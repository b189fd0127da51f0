package beacon

import (
	"encoding/binary"

	"brewble/internal/model"
)

var pressuremonTag = []byte("PRESMON.")

// pressureNotMeasured marks an unused pressure channel.
const pressureNotMeasured = 0xFFFF

func psi(raw uint16) float64 {
	if raw == pressureNotMeasured {
		return 0
	}
	return float64(raw) / 100
}

// decodePressuremonIBeacon parses chip(4) pressure(2) pressure1(2) battery(2) temp(2).
func decodePressuremonIBeacon(b []byte) (model.Reading, bool) {
	if len(b) < 12 {
		return model.Reading{}, false
	}
	return pressuremonReading(
		model.FormatPressuremonIBeacon,
		binary.BigEndian.Uint32(b[0:4]),
		binary.BigEndian.Uint16(b[4:6]),
		binary.BigEndian.Uint16(b[6:8]),
		binary.BigEndian.Uint16(b[8:10]),
		binary.BigEndian.Uint16(b[10:12]),
	), true
}

func pressuremonReading(format model.Format, chip uint32, pressure, pressure1, battery, temp uint16) model.Reading {
	id := chipID(chip)
	return model.Reading{
		Kind:        model.KindPressure,
		Format:      format,
		DeviceKey:   id,
		ChipID:      id,
		Temperature: float64(temp) / 1000,
		TempUnits:   "C",
		Pressure:    model.Float(psi(pressure)),
		Pressure1:   model.Float(psi(pressure1)),
		Battery:     model.Float(float64(battery) / 1000),
	}
}

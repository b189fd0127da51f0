package beacon

import (
	"bytes"
	"encoding/binary"
	"math"

	"brewble/internal/model"
)

var (
	raptV1Tag = []byte{'P', 'T', 0x01}
	raptV2Tag = []byte{'P', 'T', 0x02}
)

// Both RAPT versions are 23 bytes after the company id and share the offsets
// of temperature, gravity and battery.
const (
	raptLen           = 23
	raptTempOffset    = 9
	raptGravityOffset = 11
	raptBatteryOffset = 21
)

// decodeRapt handles RAPT Pill frames. They carry no usable identifier, so the
// device key falls back to the radio address.
func decodeRapt(data []byte) (model.Reading, bool) {
	if len(data) < raptLen {
		return model.Reading{}, false
	}
	var format model.Format
	switch {
	case bytes.HasPrefix(data, raptV1Tag):
		format = model.FormatRaptV1
	case bytes.HasPrefix(data, raptV2Tag):
		format = model.FormatRaptV2
	default:
		return model.Reading{}, false
	}

	tempRaw := binary.BigEndian.Uint16(data[raptTempOffset : raptTempOffset+2])
	gravityRaw := math.Float32frombits(binary.BigEndian.Uint32(data[raptGravityOffset : raptGravityOffset+4]))
	batteryRaw := binary.BigEndian.Uint16(data[raptBatteryOffset : raptBatteryOffset+2])

	r := model.Reading{
		Kind:           model.KindGravity,
		Format:         format,
		Temperature:    round2(float64(tempRaw)/128 - 273.15),
		TempUnits:      "C",
		Gravity:        model.Float(float64(gravityRaw) / 1000),
		BatteryPercent: model.Float(float64(batteryRaw) / 256),
	}
	if format == model.FormatRaptV2 && data[4] != 0 {
		velocity := math.Float32frombits(binary.BigEndian.Uint32(data[5:9]))
		r.Velocity = model.Float(float64(velocity))
	}
	return r, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

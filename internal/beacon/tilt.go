package beacon

import (
	"encoding/binary"

	"github.com/google/uuid"

	"brewble/internal/model"
)

// A minor above this value is read as a Tilt Pro frame carrying one more
// decimal in both temperature and gravity. There is no explicit format flag.
const tiltProMinorThreshold = 5000

// decodeTilt parses the 20 bytes following the iBeacon header:
// uuid(16) major(2) minor(2).
func decodeTilt(body []byte) (model.Reading, bool) {
	if len(body) < 20 {
		return model.Reading{}, false
	}
	id, err := uuid.FromBytes(body[:16])
	if err != nil {
		return model.Reading{}, false
	}
	name, ok := LookupColor(id)
	if !ok {
		return model.Reading{}, false
	}
	major := binary.BigEndian.Uint16(body[16:18])
	minor := binary.BigEndian.Uint16(body[18:20])

	tempF := float64(major)
	gravity := float64(minor) / 1000
	if minor > tiltProMinorThreshold {
		tempF = float64(major) / 10
		gravity = float64(minor) / 10000
	}
	return model.Reading{
		Kind:        model.KindGravity,
		Format:      model.FormatTilt,
		DeviceKey:   name,
		Color:       name,
		Temperature: tempF,
		TempUnits:   "F",
		Gravity:     model.Float(gravity),
	}, true
}

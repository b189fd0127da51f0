package beacon

import (
	"encoding/binary"

	"brewble/internal/model"
)

var chamberTag = []byte("CHAMBER.")

// decodeChamberIBeacon parses chip(4) chamberTemp(2) beerTemp(2) reserved(4).
// Temperatures are signed so a chamber below freezing still decodes.
func decodeChamberIBeacon(b []byte) (model.Reading, bool) {
	if len(b) < 8 {
		return model.Reading{}, false
	}
	id := chipID(binary.BigEndian.Uint32(b[0:4]))
	chamber := float64(int16(binary.BigEndian.Uint16(b[4:6]))) / 1000
	beer := float64(int16(binary.BigEndian.Uint16(b[6:8]))) / 1000
	return model.Reading{
		Kind:        model.KindChamber,
		Format:      model.FormatChamberIBeacon,
		DeviceKey:   id,
		ChipID:      id,
		Temperature: chamber,
		TempUnits:   "C",
		ChamberTemp: model.Float(chamber),
		BeerTemp:    model.Float(beer),
	}, true
}

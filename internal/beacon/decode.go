// Package beacon decodes passively observed BLE advertisements from brewing
// sensors into normalized readings.
//
// Every supported family has a fixed layout with a leading tag. Decode
// inspects the carrier (company id or service UUID) and the leading bytes once
// and hands the blob to exactly one family decoder. A blob that is too short
// or carries the wrong tag is not an error; it simply does not match.
package beacon

import (
	"bytes"

	"brewble/internal/model"
)

const (
	// CompanyApple carries iBeacon frames (Tilt, Gravitymon, Pressuremon, Chamber).
	CompanyApple uint16 = 0x004C
	// CompanyRapt is the "RA" prefix of RAPT Pill frames read as a little-endian id.
	CompanyRapt uint16 = 0x4152

	// EddystoneServiceUUID is the 0xFEAA service expanded to the Bluetooth base UUID.
	EddystoneServiceUUID = "0000feaa-0000-1000-8000-00805f9b34fb"
)

var ibeaconHeader = []byte{0x02, 0x15}

// iBeacon manufacturer payload: header(2) uuid(16) major(2) minor(2) power(1).
const ibeaconLen = 23

// Decode returns the reading carried by adv, or false when no decoder
// matches. At most one reading is produced per advertisement.
func Decode(adv model.Advertisement) (model.Reading, bool) {
	r, ok := decode(adv)
	if !ok {
		return model.Reading{}, false
	}
	r.Address = adv.Address
	r.Name = adv.Name
	r.RSSI = adv.RSSI
	r.ReceivedAt = adv.Timestamp
	if r.DeviceKey == "" {
		r.DeviceKey = adv.Address
	}
	return r, true
}

func decode(adv model.Advertisement) (model.Reading, bool) {
	if data, ok := adv.ManufacturerData[CompanyApple]; ok {
		if r, ok := decodeIBeacon(data); ok {
			return r, true
		}
	}
	if data, ok := adv.ManufacturerData[CompanyRapt]; ok {
		if r, ok := decodeRapt(data); ok {
			return r, true
		}
	}
	if data, ok := adv.ServiceData[EddystoneServiceUUID]; ok {
		if r, ok := decodeEddystone(data, adv.Name); ok {
			return r, true
		}
	}
	return model.Reading{}, false
}

func decodeIBeacon(data []byte) (model.Reading, bool) {
	if len(data) < ibeaconLen || !bytes.HasPrefix(data, ibeaconHeader) {
		return model.Reading{}, false
	}
	body := data[2:22]
	power := int(int8(data[22]))

	var (
		r  model.Reading
		ok bool
	)
	switch {
	case bytes.HasPrefix(body, gravitymonTag):
		r, ok = decodeGravitymonIBeacon(body[len(gravitymonTag):])
	case bytes.HasPrefix(body, pressuremonTag):
		r, ok = decodePressuremonIBeacon(body[len(pressuremonTag):])
	case bytes.HasPrefix(body, chamberTag):
		r, ok = decodeChamberIBeacon(body[len(chamberTag):])
	default:
		r, ok = decodeTilt(body)
	}
	if !ok {
		return model.Reading{}, false
	}
	r.TxPower = power
	return r, true
}

package model

import "time"

type Kind string

const (
	KindGravity  Kind = "gravity"
	KindPressure Kind = "pressure"
	KindChamber  Kind = "chamber"
)

type Format string

const (
	FormatTilt                 Format = "tilt"
	FormatGravitymonIBeacon    Format = "gravitymon-ibeacon"
	FormatGravitymonEddystone  Format = "gravitymon-eddystone"
	FormatPressuremonIBeacon   Format = "pressuremon-ibeacon"
	FormatPressuremonEddystone Format = "pressuremon-eddystone"
	FormatChamberIBeacon       Format = "chamber-ibeacon"
	FormatRaptV1               Format = "rapt-v1"
	FormatRaptV2               Format = "rapt-v2"
)

// Advertisement is one radio observation. Manufacturer data is keyed by the
// 16-bit company id (the id itself is not part of the bytes); service data by
// the full lowercase 128-bit UUID string.
type Advertisement struct {
	Timestamp        time.Time         `json:"timestamp"`
	Address          string            `json:"address"`
	Name             string            `json:"name,omitempty"`
	RSSI             int               `json:"rssi"`
	ManufacturerData map[uint16][]byte `json:"-"`
	ServiceData      map[string][]byte `json:"-"`
	Source           string            `json:"source,omitempty"`
}

// Reading is the normalized output of a decoder. Optional measurements are
// nil when the format does not carry them.
type Reading struct {
	Kind       Kind      `json:"kind"`
	Format     Format    `json:"format"`
	DeviceKey  string    `json:"device_key"`
	ReceivedAt time.Time `json:"received_at"`
	Address    string    `json:"address,omitempty"`
	Name       string    `json:"name,omitempty"`
	RSSI       int       `json:"rssi"`
	TxPower    int       `json:"tx_power,omitempty"`

	Color  string `json:"color,omitempty"`
	ChipID string `json:"chip_id,omitempty"`

	Temperature float64 `json:"temperature"`
	TempUnits   string  `json:"temp_units"`

	Gravity        *float64 `json:"gravity,omitempty"`
	Angle          *float64 `json:"angle,omitempty"`
	Pressure       *float64 `json:"pressure,omitempty"`
	Pressure1      *float64 `json:"pressure1,omitempty"`
	Battery        *float64 `json:"battery,omitempty"`
	BatteryPercent *float64 `json:"battery_percent,omitempty"`
	ChamberTemp    *float64 `json:"chamber_temp,omitempty"`
	BeerTemp       *float64 `json:"beer_temp,omitempty"`
	Velocity       *float64 `json:"velocity,omitempty"`
}

type DispatchStatus string

const (
	DispatchSent   DispatchStatus = "sent"
	DispatchFailed DispatchStatus = "failed"
)

// DispatchRecord is the outcome of one forward to the ingestion endpoint.
type DispatchRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	DeviceKey  string         `json:"device_key"`
	Format     Format         `json:"format"`
	URL        string         `json:"url"`
	Status     DispatchStatus `json:"status"`
	StatusCode int            `json:"status_code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// DeviceInfo is the registry view of a device that has produced at least one
// reading.
type DeviceInfo struct {
	DeviceKey   string    `json:"device_key"`
	Format      Format    `json:"format"`
	Kind        Kind      `json:"kind"`
	Address     string    `json:"address"`
	Name        string    `json:"name,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastForward time.Time `json:"last_forward,omitempty"`
}

func Float(v float64) *float64 {
	return &v
}

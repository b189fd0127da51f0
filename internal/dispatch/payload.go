package dispatch

import "brewble/internal/model"

// TiltPayload is the body the gravity endpoint accepts for Tilt hydrometers.
// Temperature is Fahrenheit as broadcast.
type TiltPayload struct {
	Color       string  `json:"color"`
	Gravity     float64 `json:"gravity"`
	Temperature float64 `json:"temperature"`
	RSSI        int     `json:"RSSI"`
}

// GravityPayload is the body for self-describing hydrometers.
type GravityPayload struct {
	Name        string   `json:"name"`
	ID          string   `json:"ID"`
	Token       string   `json:"token"`
	Interval    int      `json:"interval"`
	Temperature float64  `json:"temperature"`
	TempUnits   string   `json:"temp_units"`
	Gravity     float64  `json:"gravity"`
	Angle       float64  `json:"angle"`
	Battery     float64  `json:"battery"`
	RSSI        int      `json:"RSSI"`
	CorrGravity *float64 `json:"corr-gravity,omitempty"`
	GravityUnit string   `json:"gravity-unit,omitempty"`
	RunTime     *float64 `json:"run-time,omitempty"`
}

type PressurePayload struct {
	Name          string  `json:"name"`
	ID            string  `json:"id"`
	Interval      int     `json:"interval"`
	Temp          float64 `json:"temp"`
	TempUnits     string  `json:"temp_units"`
	Pressure      float64 `json:"pressure"`
	Pressure1     float64 `json:"pressure1"`
	PressureUnits string  `json:"pressure_units"`
	Battery       float64 `json:"battery"`
	RSSI          int     `json:"rssi"`
	RunTime       float64 `json:"run-time"`
}

// BuildPayload maps a reading onto the body and endpoint path of its
// ingestion contract. ok is false for kinds that are never forwarded.
func BuildPayload(r model.Reading, gravityPath, pressurePath string) (body any, path string, ok bool) {
	switch r.Kind {
	case model.KindGravity:
		if r.Format == model.FormatTilt {
			return TiltPayload{
				Color:       r.Color,
				Gravity:     deref(r.Gravity),
				Temperature: r.Temperature,
				RSSI:        r.RSSI,
			}, gravityPath, true
		}
		battery := deref(r.Battery)
		if r.Battery == nil && r.BatteryPercent != nil {
			battery = *r.BatteryPercent
		}
		return GravityPayload{
			ID:          r.DeviceKey,
			Temperature: r.Temperature,
			TempUnits:   tempUnits(r),
			Gravity:     deref(r.Gravity),
			Angle:       deref(r.Angle),
			Battery:     battery,
			RSSI:        r.RSSI,
		}, gravityPath, true
	case model.KindPressure:
		return PressurePayload{
			ID:            r.DeviceKey,
			Temp:          r.Temperature,
			TempUnits:     tempUnits(r),
			Pressure:      deref(r.Pressure),
			Pressure1:     deref(r.Pressure1),
			PressureUnits: "PSI",
			Battery:       deref(r.Battery),
			RSSI:          r.RSSI,
		}, pressurePath, true
	default:
		return nil, "", false
	}
}

func tempUnits(r model.Reading) string {
	if r.TempUnits == "" {
		return "C"
	}
	return r.TempUnits
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

package normalize

import (
	"bytes"
	"testing"
	"time"
)

func TestNormalizeAdvertisement(t *testing.T) {
	fields := AdvertisementFields{
		Timestamp:        "2026-02-23T12:34:56Z",
		Address:          "aa:bb:cc:dd:ee:ff",
		Name:             " gravitymon ",
		RSSI:             "-67",
		ManufacturerData: map[string]string{"0x004C": "0215 a495"},
		ServiceData:      map[string]string{"feaa": "20:00:0e:d8"},
	}
	adv, err := Normalize(fields, "mqtt")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if adv.Address != "AA:BB:CC:DD:EE:FF" || adv.Name != "gravitymon" || adv.RSSI != -67 || adv.Source != "mqtt" {
		t.Fatalf("unexpected advertisement: %+v", adv)
	}
	if !adv.Timestamp.Equal(time.Date(2026, 2, 23, 12, 34, 56, 0, time.UTC)) {
		t.Fatalf("timestamp: %v", adv.Timestamp)
	}
	if !bytes.Equal(adv.ManufacturerData[0x004C], []byte{0x02, 0x15, 0xa4, 0x95}) {
		t.Fatalf("manufacturer data: %x", adv.ManufacturerData[0x004C])
	}
	if !bytes.Equal(adv.ServiceData["0000feaa-0000-1000-8000-00805f9b34fb"], []byte{0x20, 0x00, 0x0e, 0xd8}) {
		t.Fatalf("service data: %v", adv.ServiceData)
	}
}

func TestNormalizeRequiresAddress(t *testing.T) {
	if _, err := Normalize(AdvertisementFields{RSSI: "-50"}, "rest"); err == nil {
		t.Fatalf("expected missing address error")
	}
}

func TestNormalizeRejectsBadHex(t *testing.T) {
	fields := AdvertisementFields{Address: "x", ManufacturerData: map[string]string{"76": "zz"}}
	if _, err := Normalize(fields, "rest"); err == nil {
		t.Fatalf("expected hex error")
	}
}

func TestParseCompanyID(t *testing.T) {
	cases := map[string]uint16{"76": 0x004C, "0x004c": 0x004C, "0X4152": 0x4152, "16722": 0x4152}
	for in, want := range cases {
		got, err := ParseCompanyID(in)
		if err != nil || got != want {
			t.Fatalf("%s: got %#x err %v", in, got, err)
		}
	}
	if _, err := ParseCompanyID("70000"); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestExpandServiceUUID(t *testing.T) {
	cases := map[string]string{
		"FEAA":                                 "0000feaa-0000-1000-8000-00805f9b34fb",
		"0xfeaa":                               "0000feaa-0000-1000-8000-00805f9b34fb",
		"0000FEAA-0000-1000-8000-00805F9B34FB": "0000feaa-0000-1000-8000-00805f9b34fb",
	}
	for in, want := range cases {
		got, err := ExpandServiceUUID(in)
		if err != nil || got != want {
			t.Fatalf("%s: got %s err %v", in, got, err)
		}
	}
	if _, err := ExpandServiceUUID("nope"); err == nil {
		t.Fatalf("expected invalid uuid error")
	}
}

func TestParseTimestampUnix(t *testing.T) {
	ts, err := ParseTimestamp("1700000000", time.UTC)
	if err != nil || ts.Unix() != 1700000000 {
		t.Fatalf("seconds: %v %v", ts, err)
	}
	ts, err = ParseTimestamp("1700000000123", time.UTC)
	if err != nil || ts.UnixMilli() != 1700000000123 {
		t.Fatalf("millis: %v %v", ts, err)
	}
}

package ingest

import "testing"

func TestParsePlainText(t *testing.T) {
	p := NewParser()
	line := "2026-02-23T12:34:56Z address=AA:BB:CC:DD:EE:FF name=gravitymon rssi=-61 svc.feaa=2000 mfg.0x004c=0215"
	fields, err := p.ParseLine(line)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.Timestamp != "2026-02-23T12:34:56Z" {
		t.Fatalf("timestamp: %s", fields.Timestamp)
	}
	if fields.Address != "AA:BB:CC:DD:EE:FF" || fields.Name != "gravitymon" || fields.RSSI != "-61" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if fields.ServiceData["feaa"] != "2000" || fields.ManufacturerData["0x004c"] != "0215" {
		t.Fatalf("data fields: %+v %+v", fields.ServiceData, fields.ManufacturerData)
	}
}

func TestParsePlainTextWithoutPairs(t *testing.T) {
	p := NewParser()
	if _, err := p.ParseLine("nothing to see here"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseCSV(t *testing.T) {
	p := NewParser()
	if fields, _ := p.ParseLine("timestamp,address,rssi,mfg.0x004c"); fields != nil {
		t.Fatalf("expected header to return nil")
	}
	fields, err := p.ParseLine("2026-02-23T12:34:56Z,AA:BB:CC:DD:EE:FF,-70,0215a495bb10")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.Address != "AA:BB:CC:DD:EE:FF" || fields.RSSI != "-70" {
		t.Fatalf("csv parse mismatch: %+v", fields)
	}
	if fields.ManufacturerData["0x004c"] != "0215a495bb10" {
		t.Fatalf("csv data mismatch: %+v", fields.ManufacturerData)
	}
}

func TestParseCSVWithoutHeader(t *testing.T) {
	p := NewParser()
	if _, err := p.ParseLine("a,b,c"); err == nil {
		t.Fatalf("expected error without header")
	}
}

func TestParseJSON(t *testing.T) {
	p := NewParser()
	line := `{"timestamp":1700000000,"address":"aa:bb","rssi":-58,"manufacturer_data":{"76":"0215"},"service_data":{"feaa":"2000"}}`
	fields, err := p.ParseLine(line)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if fields.Timestamp != "1700000000" || fields.RSSI != "-58" || fields.Address != "aa:bb" {
		t.Fatalf("json parse mismatch: %+v", fields)
	}
	if fields.ManufacturerData["76"] != "0215" || fields.ServiceData["feaa"] != "2000" {
		t.Fatalf("json data mismatch: %+v", fields)
	}
}

func TestParseBlankLine(t *testing.T) {
	p := NewParser()
	fields, err := p.ParseLine("   ")
	if err != nil || fields != nil {
		t.Fatalf("expected nil, nil for blank line")
	}
}

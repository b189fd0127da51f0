package ingest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"brewble/internal/model"
)

func TestRESTAcceptsBatch(t *testing.T) {
	out := make(chan model.Advertisement, 4)
	h := NewRESTHandler(out, nil)
	body := `[
		{"address":"aa:bb:cc:dd:ee:ff","rssi":-60,"manufacturer_data":{"0x004c":"0215"}},
		{"rssi":-60}
	]`
	req := httptest.NewRequest(http.MethodPost, "/advertisements", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["accepted"] != float64(1) || resp["failed"] != float64(1) || resp["batch_id"] == "" {
		t.Fatalf("unexpected response: %v", resp)
	}
	adv := <-out
	if adv.Address != "AA:BB:CC:DD:EE:FF" || adv.Source != "rest" || len(adv.ManufacturerData[0x004C]) != 2 {
		t.Fatalf("unexpected advertisement: %+v", adv)
	}
}

func TestRESTRejectsBadRequests(t *testing.T) {
	h := NewRESTHandler(make(chan model.Advertisement, 1), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/advertisements", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/advertisements", strings.NewReader("{oops")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status: %d", rec.Code)
	}
}

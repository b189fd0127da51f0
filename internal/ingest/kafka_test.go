package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"brewble/internal/model"
)

type fakeReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	if m.Value == nil {
		return kafka.Message{}, errors.New("broker unavailable")
	}
	return m, nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func TestConsumeKafkaUsesMessageKeyAsAddress(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Key: []byte("aa:bb:cc:dd:ee:ff"), Value: []byte(`{"rssi":-70,"manufacturer_data":{"0x004C":"0215"}}`)},
		{Value: []byte("not json and no equals")},
		{Value: []byte(`{"address":"11:22:33:44:55:66","rssi":-50}`)},
	}}
	out := make(chan model.Advertisement, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consumeKafka(ctx, reader, NewParser(), out, nil)
		close(done)
	}()

	var got []model.Advertisement
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case adv := <-out:
			got = append(got, adv)
		case <-timeout:
			t.Fatalf("expected two advertisements, got %d", len(got))
		}
	}
	cancel()
	<-done

	if got[0].Address != "AA:BB:CC:DD:EE:FF" || got[0].Source != "kafka" {
		t.Fatalf("unexpected first advertisement: %+v", got[0])
	}
	if len(got[0].ManufacturerData[0x004C]) != 2 {
		t.Fatalf("manufacturer data not decoded: %+v", got[0].ManufacturerData)
	}
	if got[1].Address != "11:22:33:44:55:66" {
		t.Fatalf("unexpected second advertisement: %+v", got[1])
	}
	if !reader.closed {
		t.Fatalf("reader not closed on shutdown")
	}
}

package mq

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestToKafkaMessage(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := &Message{ID: "1", Body: []byte(`{"code":0}`), Headers: map[string]string{"trace": "abc"}, Timestamp: ts}

	got := toKafkaMessage("judge.events", msg)
	if got.Topic != "judge.events" || string(got.Key) != "1" || string(got.Value) != `{"code":0}` {
		t.Fatalf("unexpected message %+v", got)
	}
	headers := make(map[string]string, len(got.Headers))
	for _, h := range got.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["trace"] != "abc" || headers[headerID] != "1" || headers[headerTimestamp] != ts.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected headers %v", headers)
	}
}

func TestParseCompression(t *testing.T) {
	tests := map[string]kafka.Compression{
		"":       0,
		"none":   0,
		"gzip":   kafka.Gzip,
		"Snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
	}
	for name, want := range tests {
		got, err := parseCompression(name)
		if err != nil || got != want {
			t.Errorf("parseCompression(%q) = (%v, %v), want %v", name, got, err, want)
		}
	}
	if _, err := parseCompression("brotli"); err == nil {
		t.Fatal("expected error for unsupported codec")
	}
}

func TestNewKafkaProducerValidation(t *testing.T) {
	if _, err := NewKafkaProducer(KafkaConfig{}); err == nil {
		t.Fatal("expected error without brokers")
	}
	p, err := NewKafkaProducer(KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	if err := p.Publish(context.Background(), "", NewMessage(nil)); err == nil {
		t.Fatal("expected error for empty topic")
	}
	if err := p.Publish(context.Background(), "t", nil); err == nil {
		t.Fatal("expected error for nil message")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

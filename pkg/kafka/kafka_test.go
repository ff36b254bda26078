package kafka

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/docuflow/ingestion-platform/pkg/config"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		DocumentID string `json:"documentId"`
		UserID     string `json:"userId"`
	}

	got, err := DecodeJSON[payload]([]byte(`{"documentId":"d1","userId":"u1"}`))
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if got.DocumentID != "d1" || got.UserID != "u1" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	type payload struct {
		DocumentID string `json:"documentId"`
	}

	if _, err := DecodeJSON[payload]([]byte("not json")); err == nil {
		t.Fatal("expected decode error for malformed payload")
	}
}

func TestNewConsumerClampsWorkers(t *testing.T) {
	cfg := config.KafkaConfig{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "test-group",
	}
	handler := func(ctx context.Context, key, value []byte) error { return nil }

	c := NewConsumer(cfg, "document-uploaded", handler, 0)
	defer c.Close()

	if c.workers != 1 {
		t.Errorf("expected worker count clamped to 1, got %d", c.workers)
	}
}

func TestPingReachableBroker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Ping(ctx, []string{ln.Addr().String()}); err != nil {
		t.Fatalf("Ping against a listening broker: %v", err)
	}
}

func TestPingUnreachableBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := Ping(ctx, []string{"127.0.0.1:1"}); err == nil {
		t.Fatal("expected a dial error for a closed port")
	}
}

func TestPingNoBrokersConfigured(t *testing.T) {
	if err := Ping(context.Background(), nil); err == nil {
		t.Fatal("expected an error for an empty broker list")
	}
}

//go:build integration

package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func skipWithoutNATS(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set, skipping integration test")
	}
	return url
}

func TestIntegration_PubSub(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	ctx := context.Background()
	logger := slog.Default()

	client, err := NewClient(ctx, natsURL, os.Getenv("NATS_TOKEN"), logger)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	received := make(chan map[string]string, 1)

	err = client.Subscribe("fedtrust.test.>", func(subject string, data []byte) any {
		var msg map[string]string
		json.Unmarshal(data, &msg)
		received <- msg
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Give subscription time to propagate
	time.Sleep(100 * time.Millisecond)

	err = client.Publish("fedtrust.test.ping", map[string]string{
		"message": "hello from integration test",
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg["message"] != "hello from integration test" {
			t.Errorf("expected hello message, got %v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestIntegration_RequestReply(t *testing.T) {
	natsURL := skipWithoutNATS(t)
	ctx := context.Background()

	client, err := NewClient(ctx, natsURL, os.Getenv("NATS_TOKEN"), slog.Default())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	err = client.Subscribe("fedtrust.test.request", func(_ string, _ []byte) any {
		return RunReply{Error: "pong"}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	opts := []nats.Option{}
	if tok := os.Getenv("NATS_TOKEN"); tok != "" {
		opts = append(opts, nats.Token(tok))
	}
	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		t.Fatalf("requester connect failed: %v", err)
	}
	defer nc.Close()

	msg, err := nc.Request("fedtrust.test.request", []byte(`{}`), 5*time.Second)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var reply RunReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		t.Fatalf("failed to parse reply: %v", err)
	}
	if reply.Error != "pong" {
		t.Errorf("expected reply 'pong', got %q", reply.Error)
	}
}

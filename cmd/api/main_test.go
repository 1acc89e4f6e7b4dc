package main

import (
	"context"
	"io"
	"testing"
	"time"

	appconfig "github.com/wolfman30/dental-agenda/internal/config"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

func TestLoadAWSSkippedForMemoryStore(t *testing.T) {
	cfg := &appconfig.Config{UseMemoryStore: true, EmailProvider: "stub", AWSRegion: "eu-west-1"}
	awsCfg, err := loadAWS(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg != nil {
		t.Fatalf("expected nil aws config for memory store")
	}
}

func TestLoadAWSForSES(t *testing.T) {
	cfg := &appconfig.Config{
		UseMemoryStore:     true,
		EmailProvider:      "ses",
		AWSRegion:          "eu-west-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	}
	awsCfg, err := loadAWS(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg == nil || awsCfg.Region != "eu-west-1" {
		t.Fatalf("expected aws config in eu-west-1, got %+v", awsCfg)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := &appconfig.Config{
		Port:                 "0",
		UseMemoryStore:       true,
		EmailProvider:        "stub",
		AWSRegion:            "eu-west-1",
		PublicBaseURL:        "https://citas.example",
		ClinicName:           "Clínica Sonrisa",
		ClinicTimezone:       "Europe/Madrid",
		DefaultPhoneRegion:   "ES",
		ChangeChannel:        "appointments:changes",
		AutoCompleteInterval: time.Hour,
		PublicRateLimit:      5,
		PublicRateBurst:      20,
	}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, logging.NewWithWriter("error", io.Discard)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

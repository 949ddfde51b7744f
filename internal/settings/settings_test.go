package settings

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	if s.Printer.DiscoveryTimeout != 30*time.Second || s.Printer.ConnectTimeout != 30*time.Second {
		t.Fatalf("unexpected timeouts: %v/%v", s.Printer.DiscoveryTimeout, s.Printer.ConnectTimeout)
	}
	if s.Printer.ChunkSize != 10 || s.Printer.ChunkDelay != 10*time.Millisecond {
		t.Fatalf("unexpected chunking: %d/%v", s.Printer.ChunkSize, s.Printer.ChunkDelay)
	}
	if string(s.Printer.Probe) != "Test\n" {
		t.Fatalf("unexpected probe %q", s.Printer.Probe)
	}
	if got := s.Keys.All(); len(got) != 5 || got[0] != "pos_products" {
		t.Fatalf("unexpected keys: %v", got)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		mut  func(s *Settings)
	}{
		{name: "unknown mode", mut: func(s *Settings) { s.Printer.Mode = "greedy" }},
		{name: "zero chunk", mut: func(s *Settings) { s.Printer.ChunkSize = 0 }},
		{name: "zero timeout", mut: func(s *Settings) { s.Printer.ConnectTimeout = 0 }},
		{name: "empty key", mut: func(s *Settings) { s.Keys.Cart = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mut(&s)
			if err := s.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

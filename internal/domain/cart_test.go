package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSubtotal(t *testing.T) {
	lines := []CartLine{
		{Product: Product{ID: "A1", Price: decimal.NewFromInt(500)}, Quantity: 3},
		{Product: Product{ID: "B2", Price: decimal.NewFromInt(120)}, Quantity: 1},
	}
	if got := Subtotal(lines); !got.Equal(decimal.NewFromInt(1620)) {
		t.Fatalf("Subtotal() = %s, want 1620", got)
	}
	if got := Subtotal(nil); !got.IsZero() {
		t.Fatalf("Subtotal(nil) = %s, want 0", got)
	}
}

func TestCloneLinesIsIndependent(t *testing.T) {
	lines := []CartLine{{Product: Product{ID: "A1"}, Quantity: 1}}
	clone := CloneLines(lines)
	clone[0].Quantity = 5
	if lines[0].Quantity != 1 {
		t.Fatalf("original mutated: %d", lines[0].Quantity)
	}
	if CloneLines(nil) == nil {
		t.Fatal("CloneLines(nil) must return an empty slice")
	}
}

func TestCartLineJSONNestsProduct(t *testing.T) {
	line := CartLine{Product: Product{ID: "A1", Name: "Rice"}, Quantity: 2}
	raw, err := json.Marshal(line)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	product, ok := fields["product"].(map[string]any)
	if !ok || product["id"] != "A1" || fields["quantity"] != float64(2) {
		t.Fatalf("unexpected json: %s", raw)
	}
}

func TestIsRemoteFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unreachable", err: fmt.Errorf("add: %w", ErrRemoteUnreachable), want: true},
		{name: "server", err: ErrRemoteServer, want: true},
		{name: "script not found", err: ErrRemoteNotFound, want: true},
		{name: "remote message", err: &RemoteError{Message: "sheet locked"}, want: true},
		{name: "local", err: ErrProductExists, want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRemoteFailure(tt.err); got != tt.want {
				t.Errorf("IsRemoteFailure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(errors.Join(ErrProductNotFound, errors.New("ctx"))) {
		t.Fatal("wrapped product not found must match")
	}
	if IsNotFound(ErrEmptyCart) {
		t.Fatal("empty cart is not a not-found error")
	}
}

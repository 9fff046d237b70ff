package docstore

import (
	"testing"

	"github.com/kbukum/scalestore/errors"
)

type instanceRow struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity" validate:"gte=0"`
	Zone     string `json:"zone,omitempty"`
}

func TestTableValidate(t *testing.T) {
	table := NewTable[instanceRow]("instances", "name")

	tests := []struct {
		name    string
		item    Record
		wantErr bool
	}{
		{"valid", Record{"id": "vm-1", "name": "vm-1", "capacity": 3}, false},
		{"json numbers", Record{"id": "vm-1", "name": "vm-1", "capacity": float64(3)}, false},
		{"metadata ignored", Record{"name": "vm-1", FieldETag: 12, FieldTimestamp: "not a number"}, false},
		{"missing required field", Record{"id": "vm-1", "capacity": 3}, true},
		{"unknown field rejected", Record{"name": "vm-1", "color": "red"}, true},
		{"string for int rejected", Record{"name": "vm-1", "capacity": "3"}, true},
		{"tag constraint", Record{"name": "vm-1", "capacity": -1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := table.Validate(tc.item)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestTableConvert(t *testing.T) {
	table := NewTable[instanceRow]("instances", "name")
	raw := Record{
		"id": "vm-1", "name": "vm-1", "capacity": "7", "legacy": true,
		FieldETag: "e", FieldTimestamp: float64(1),
	}
	got, err := table.Convert(raw)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if got.Name != "vm-1" || got.Capacity != 7 {
		t.Errorf("unexpected conversion %+v", got)
	}
}

func TestTableOptions(t *testing.T) {
	called := false
	table := NewTable[instanceRow]("instances", "name",
		WithValidator[instanceRow](func(Record) error { called = true; return nil }),
		WithConverter[instanceRow](func(r Record) (instanceRow, error) {
			return instanceRow{Name: "custom"}, nil
		}),
	)
	if err := table.Validate(Record{"color": "red"}); err != nil || !called {
		t.Errorf("expected custom validator, called=%v err=%v", called, err)
	}
	if got, _ := table.Convert(Record{}); got.Name != "custom" {
		t.Errorf("expected custom converter, got %+v", got)
	}
}

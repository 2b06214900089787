package entity

import (
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{name: "list_buckets"},
		{name: "ListS3Buckets"},
		{name: "", wantErr: true},
		{name: "  ", wantErr: true},
		{name: "a___b", wantErr: true},
		{name: "_y", wantErr: true},
		{name: "x_", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToolName) {
				t.Errorf("error %v is not ErrInvalidToolName", err)
			}
		})
	}
}

func TestActionIDsOfValidNamesRoundTrip(t *testing.T) {
	ids := []ActionID{
		{Target: "resource-metrics-iam-target", Tool: "list_buckets"},
		{Target: "x", Tool: "y_z"},
		{Target: "x_y", Tool: "z"},
		{Target: LocalTarget, Tool: "get_current_time"},
	}
	seen := map[string]ActionID{}
	for _, id := range ids {
		if err := ValidateName(id.Target); err != nil {
			t.Fatalf("target %q: %v", id.Target, err)
		}
		if err := ValidateName(id.Tool); err != nil {
			t.Fatalf("tool %q: %v", id.Tool, err)
		}
		s := id.String()
		if prev, dup := seen[s]; dup {
			t.Fatalf("%+v and %+v share action id %q", prev, id, s)
		}
		seen[s] = id
		got, ok := ParseActionID(s)
		if !ok || got != id {
			t.Errorf("ParseActionID(%q) = %+v, %v; want %+v", s, got, ok, id)
		}
	}
}

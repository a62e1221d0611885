package core

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "archive/events-000001.jsonl", want: "archive/events-000001.jsonl"},
		{in: " archive//x ", want: "archive/x"},
		{in: "a/./b", want: "a/b"},
		{in: "", wantErr: true},
		{in: "/etc/passwd", wantErr: true},
		{in: "a/../../b", wantErr: true},
	}
	for _, tc := range cases {
		got, err := CleanKey(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q): expected ErrInvalidKey, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestCloneMetadata(t *testing.T) {
	if CloneMetadata(nil) != nil {
		t.Fatalf("nil metadata should stay nil")
	}
	in := map[string]string{"events": "10"}
	out := CloneMetadata(in)
	out["events"] = "11"
	if in["events"] != "10" {
		t.Fatalf("clone aliased the input")
	}
}

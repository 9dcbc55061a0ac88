package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12", 1200, true},
		{"0", 0, true},
		{"0.00", 0, true},
		{".5", 50, true},
		{"12.345", 1234, true}, // rounds down
		{"12.346", 1235, true}, // rounds up
		{"100", 10000, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-3", 0, false},
		{"+3", 0, false},
		{"1.2.3", 0, false},
		{".", 0, false},
		{"12a", 0, false},
		{"99999999999999999999", 0, false}, // overflow
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseDecimalToCents(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseDecimalToCents(%q) expected error, got %d", tc.in, got)
		}
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{6000, "60.00"},
		{10000, "100.00"},
		{-4050, "-40.50"},
		{123456, "1234.56"},
	}
	for _, tc := range cases {
		if got := FormatCents(tc.cents); got != tc.want {
			t.Fatalf("FormatCents(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyJSONRoundtrip(t *testing.T) {
	b, err := json.Marshal(Money{Cents: 6000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"60.00"` {
		t.Fatalf("marshal = %s, want \"60.00\"", b)
	}

	var m Money
	if err := json.Unmarshal([]byte(`"40.50"`), &m); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if m.Cents != 4050 {
		t.Fatalf("unmarshal string = %d cents, want 4050", m.Cents)
	}

	// Bare JSON numbers are accepted too.
	if err := json.Unmarshal([]byte(`100`), &m); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if m.Cents != 10000 {
		t.Fatalf("unmarshal number = %d cents, want 10000", m.Cents)
	}

	if err := json.Unmarshal([]byte(`"abc"`), &m); err == nil {
		t.Fatalf("expected error for non-numeric amount")
	}
	if err := json.Unmarshal([]byte(`"-5"`), &m); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

package models

import (
	"strings"
	"testing"
	"time"
)

func TestCanonicalTimestampRoundTrip(t *testing.T) {
	// Trailing zero nanoseconds are the tricky case: RFC3339Nano drops
	// them, so the canonical string must be stable across parse/format.
	cases := []time.Time{
		time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
		time.Date(2025, 3, 14, 9, 26, 53, 500000000, time.UTC),
		time.Date(2025, 3, 14, 9, 26, 53, 123456789, time.UTC),
		time.Now(),
	}

	for _, tc := range cases {
		canonical := CanonicalTimestamp(tc)

		parsed, err := ParseTimestamp(canonical)
		if err != nil {
			t.Fatalf("Failed to parse canonical timestamp %q: %v", canonical, err)
		}

		if got := CanonicalTimestamp(parsed); got != canonical {
			t.Errorf("Canonical timestamp not stable: %q != %q", got, canonical)
		}
	}
}

func TestCanonicalTimestampIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)

	canonical := CanonicalTimestamp(local)
	if !strings.HasSuffix(canonical, "Z") {
		t.Errorf("Expected UTC timestamp, got %q", canonical)
	}
}

func TestAppendFormValidate(t *testing.T) {
	// Empty fields are explicitly allowed
	form := &AppendForm{ActionType: "", ActionData: ""}
	if errs := form.Validate(); errs.HasErrors() {
		t.Errorf("Expected empty form to be valid, got %v", errs.GetMessages())
	}

	form = &AppendForm{ActionType: strings.Repeat("x", 129), ActionData: "ok"}
	if errs := form.Validate(); !errs.HasErrors() {
		t.Error("Expected oversized action_type to fail validation")
	}

	form = &AppendForm{ActionType: "inference", ActionData: "\xff\xfe"}
	if errs := form.Validate(); !errs.HasErrors() {
		t.Error("Expected invalid UTF-8 action_data to fail validation")
	}
}

func TestAppendFormState(t *testing.T) {
	form := &AppendForm{ActionType: "boot", ActionData: "x"}
	if form.State() != StateUnknown {
		t.Errorf("Expected default state %d, got %d", StateUnknown, form.State())
	}

	two := 2
	form.AuxiliaryState = &two
	if form.State() != 2 {
		t.Errorf("Expected state 2, got %d", form.State())
	}
}

func TestGenesisHashShape(t *testing.T) {
	if len(GenesisHash) != 64 {
		t.Errorf("Expected 64-char genesis sentinel, got %d chars", len(GenesisHash))
	}
	if strings.Trim(GenesisHash, "0") != "" {
		t.Errorf("Expected all-zero genesis sentinel, got %q", GenesisHash)
	}
}

func TestCheckpointCanonicalPayload(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	cp := &Checkpoint{
		ID:         "d2b6f0bb-0f0e-4d38-9f3c-27b0174b5b1a",
		MerkleRoot: strings.Repeat("a", 64),
		EntryCount: 42,
		Timestamp:  ts,
	}

	first := cp.CanonicalPayload()
	second := cp.CanonicalPayload()
	if first != second {
		t.Error("Expected canonical payload to be deterministic")
	}

	// Any covered field change must change the payload
	cp.EntryCount = 43
	if cp.CanonicalPayload() == first {
		t.Error("Expected payload to change with entry count")
	}
}

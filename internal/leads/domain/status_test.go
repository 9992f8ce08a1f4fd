package domain

import "testing"

func TestParseStatusAcceptsFailedAlias(t *testing.T) {
	st, ok := ParseStatus(" FAILED ")
	if !ok || st != StatusError {
		t.Fatalf("expected failed to map to error, got %q ok=%v", st, ok)
	}

	if _, ok := ParseStatus("archived"); ok {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusQueued, true},
		{StatusQueued, StatusProcessing, true},
		{StatusProcessing, StatusSent, true},
		{StatusProcessing, StatusError, true},
		{StatusProcessing, StatusQueued, true},
		{StatusError, StatusQueued, true},
		{StatusSent, StatusConverted, true},
		{StatusSent, StatusSent, true},
		{StatusNew, StatusSent, true},

		{StatusSent, StatusQueued, false},
		{StatusSent, StatusError, false},
		{StatusError, StatusSent, false},
		{StatusError, StatusConverted, false},
		{StatusQueued, StatusConverted, false},
		{StatusConverted, StatusSent, false},
		{StatusQueued, StatusNew, false},
		{Status("bogus"), StatusQueued, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFieldsSkipsEmpty(t *testing.T) {
	l := Lead{ID: 7, FirstName: "A", Email: "a@b.com", Country: "US"}
	f := l.Fields()

	if len(f) != 3 || f["first_name"] != "A" || f["country"] != "US" {
		t.Fatalf("unexpected fields: %v", f)
	}
	if l.Field("lead_id") != "7" {
		t.Fatalf("expected lead_id 7, got %q", l.Field("lead_id"))
	}
}

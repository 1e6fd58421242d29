package inference

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseLabel(t *testing.T) {
	cases := []struct {
		raw     string
		want    Label
		wantErr bool
	}{
		{raw: "real", want: LabelReal},
		{raw: "REAL", want: LabelReal},
		{raw: " Fake ", want: LabelFake},
		{raw: "bonafide", want: LabelReal},
		{raw: "spoof", want: LabelFake},
		{raw: "LABEL_0", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseLabel(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseLabel(%q) expected error, got %q", tc.raw, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseLabel(%q) unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseLabel(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("decode clip.mp4: %w", ErrInvalidMedia)
	if !errors.Is(err, ErrInvalidMedia) {
		t.Fatalf("expected wrapped error to match ErrInvalidMedia")
	}
	if errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("wrapped invalid-media error must not match ErrModelUnavailable")
	}
}

func TestTimingsAdd(t *testing.T) {
	var total Timings
	total.Add(Timings{Decode: time.Millisecond, Classifier: 2 * time.Millisecond})
	total.Add(Timings{Heuristics: 3 * time.Millisecond, Classifier: time.Millisecond})

	if total.Decode != time.Millisecond || total.Heuristics != 3*time.Millisecond || total.Classifier != 3*time.Millisecond {
		t.Fatalf("unexpected totals: %+v", total)
	}

	var nilTimings *Timings
	nilTimings.Add(Timings{Decode: time.Second})
}

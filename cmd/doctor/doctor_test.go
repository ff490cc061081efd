package doctor

import (
	"context"
	"testing"

	"github.com/klytics/docbridge/internal/formats/convert"
)

func TestRunChecksConverters(t *testing.T) {
	checks := RunChecks(context.Background(), false)
	if len(checks) != 3 {
		t.Fatalf("got %d checks, want 3", len(checks))
	}
	for _, c := range checks {
		if c.Status != "ok" {
			t.Errorf("%s: %s (%s)", c.Name, c.Status, c.Message)
		}
	}
}

func TestRoundTripCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if c := roundTrip(ctx, "Native Converter", convert.DefaultOptions()); c.Status != "error" {
		t.Errorf("status = %q, want error", c.Status)
	}
}

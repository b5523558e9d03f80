package puberr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKindThroughWrapping(t *testing.T) {
	base := New(KindValidation, "PUB-VAL-001", "tag name empty")
	wrapped := fmt.Errorf("encode tags: %w", base)

	if !IsKind(wrapped, KindValidation) {
		t.Fatalf("expected Validation kind through fmt.Errorf wrapping")
	}
	if IsKind(wrapped, KindNetwork) {
		t.Fatalf("kind must not match a different category")
	}
	if got := CodeOf(wrapped); got != "PUB-VAL-001" {
		t.Fatalf("unexpected code: %q", got)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", NewTimeout("PUB-NET-001", "deadline expired"), true},
		{"5xx", NewNetwork("PUB-NET-002", 503, "service unavailable"), true},
		{"4xx", NewNetwork("PUB-NET-002", 400, "bad request"), false},
		{"transport", NewNetwork("PUB-NET-003", 0, "connection refused"), true},
		{"protocol", New(KindProtocol, "PUB-PROTO-001", "missing id"), false},
		{"plain", errors.New("nope"), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable=%v want %v", tc.name, got, tc.want)
		}
	}
}

func TestPartialFailureCarriesUploadID(t *testing.T) {
	cause := NewNetwork("PUB-NET-002", 500, "broadcast failed")
	err := &PartialFailure{UploadID: "abc123", Step: "broadcast", Cause: cause}

	var pf *PartialFailure
	if !errors.As(error(err), &pf) {
		t.Fatalf("errors.As failed for PartialFailure")
	}
	if pf.UploadID != "abc123" {
		t.Fatalf("upload id lost: %q", pf.UploadID)
	}
	// The cause must stay reachable for retry classification.
	if !IsRetryable(err) {
		t.Fatalf("expected retryable cause to be visible through PartialFailure")
	}
}

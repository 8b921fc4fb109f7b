package maptile

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesKindRegardlessOfCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := wrap(KindNetwork, "fetch tile", cause)

	if !errors.Is(err, ErrNetworkFailed) {
		t.Error("expected errors.Is to match ErrNetworkFailed by kind")
	}
	if errors.Is(err, ErrDecodeFailed) {
		t.Error("did not expect errors.Is to match a different kind's sentinel")
	}
}

func TestErrorUnwrapReachesCause(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := wrap(KindDecode, "decode tile", cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the wrapped cause via Unwrap")
	}
}

func TestErrorStringIncludesOpKindAndCause(t *testing.T) {
	cause := errors.New("boom")
	err := wrap(KindTessellation, "tessellate layer", cause)

	got := err.Error()
	want := "tessellate layer: tessellation: boom"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestErrorKindString(t *testing.T) {
	cases := map[ErrorKind]string{
		KindNetwork:   "network",
		KindDecode:    "decode",
		KindSchedule:  "schedule",
		KindGPUGraph:  "gpu_graph",
		ErrorKind(99): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want Class
	}{
		{KindMissingField, ClassBadInput},
		{KindMalformedTimestamp, ClassBadInput},
		{KindCapacityExceeded, ClassBadInput},
		{KindEventNotFound, ClassNotFound},
		{KindUnauthorized, ClassForbidden},
		{KindInvalidCode, ClassForbidden},
		{KindRoomConflict, ClassConflict},
		{KindEventFull, ClassConflict},
		{KindDuplicateEmail, ClassConflict},
		{KindTimeout, ClassTimeout},
		{KindStoreFault, ClassServerFault},
		{KindUnknown, ClassServerFault},
	}
	for _, tc := range cases {
		if got := tc.kind.Class(); got != tc.want {
			t.Errorf("%v.Class() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestKindOfUnwrapsThroughWrapping(t *testing.T) {
	inner := New(KindRoomConflict, "start_time", "window taken")
	outer := fmt.Errorf("admission: %w", inner)
	if KindOf(outer) != KindRoomConflict {
		t.Errorf("KindOf(wrapped) = %v, want RoomConflict", KindOf(outer))
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors must map to KindUnknown")
	}
}

func TestPublicHidesStorageDetail(t *testing.T) {
	cause := errors.New("mongo: socket closed by peer at 10.0.0.3")
	err := Wrap(KindStoreFault, cause, "event store failure")
	if got := Public(err); got != "internal server error" {
		t.Errorf("Public(store fault) = %q", got)
	}
	if got := Public(Wrap(KindTimeout, cause, "slow")); got != "request timed out" {
		t.Errorf("Public(timeout) = %q", got)
	}
	if got := Public(New(KindInvalidTag, "tags", `invalid tag "x"`)); got != `invalid tag "x"` {
		t.Errorf("Public(validation) = %q", got)
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(New(KindConflict, "", "clash")) {
		t.Error("Conflict must be retryable")
	}
	if !Retryable(New(KindTimeout, "", "slow")) {
		t.Error("Timeout must be retryable")
	}
	if Retryable(New(KindStoreFault, "", "down")) {
		t.Error("StoreFault must not be retryable")
	}
	if Retryable(New(KindRoomConflict, "", "taken")) {
		t.Error("RoomConflict is a terminal rejection, not a retry signal")
	}
}

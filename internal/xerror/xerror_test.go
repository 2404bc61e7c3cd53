package xerror

import (
	"fmt"
	"testing"
)

func TestSuccessIsTruthy(t *testing.T) {
	if !Success.Success() {
		t.Error("Success.Success() = false, want true")
	}
	if Failed.Success() {
		t.Error("Failed.Success() = true, want false")
	}
}

func TestStringStable(t *testing.T) {
	cases := map[Code]string{
		Success:               "Success",
		UnknownProperty:       "UnknownProperty",
		ImageEncodingFailed:   "ImageEncodingFailed",
		ReadOnlyProperty:      "ReadOnlyProperty",
		UnsupportedPixelFormat: "UnsupportedPixelFormat",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("Code(%d).String() = %q, want %q", code, got, want)
		}
	}
}

func TestAsUnwrapsWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("loading property: %w", UnknownProperty)

	code, ok := As(wrapped)
	if !ok {
		t.Fatal("As() did not find a Code inside the wrapped error")
	}
	if code != UnknownProperty {
		t.Errorf("As() = %v, want UnknownProperty", code)
	}
}

func TestAsRejectsPlainError(t *testing.T) {
	if _, ok := As(fmt.Errorf("boom")); ok {
		t.Error("As() reported ok for an error with no Code")
	}
}

func TestAsNilIsSuccess(t *testing.T) {
	code, ok := As(nil)
	if !ok || code != Success {
		t.Errorf("As(nil) = (%v, %v), want (Success, true)", code, ok)
	}
}

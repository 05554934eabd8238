package nativeshot

import "errors"

// logPrefix starts every warning this package emits
const logPrefix = "[nativeshot]"

var (
	// ErrMissingHandle means the target entity carries no raw window handle
	ErrMissingHandle = errors.New("target entity has no raw window handle")

	// ErrEnumerate wraps failures listing OS windows
	ErrEnumerate = errors.New("failed to enumerate windows")

	// ErrNoMatchingWindow means neither the native id nor the title matched
	ErrNoMatchingWindow = errors.New("no matching OS window found")

	// ErrCaptureFailed wraps failures of the platform pixel read
	ErrCaptureFailed = errors.New("capture failed")
)

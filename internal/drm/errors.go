package drm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks invalid or mixed provider fields, unknown
	// protection schemes, and missing default key map entries. Always
	// detected at job setup, never at per-sample time.
	ErrConfiguration = errors.New("configuration error")

	// ErrKeyProvider marks network, authentication, or malformed-response
	// failures from a key provider. Terminal for the job once the
	// provider's own retry policy is exhausted.
	ErrKeyProvider = errors.New("key provider error")

	// ErrLabeling marks stream attributes insufficient to classify a
	// stream. Surfaced before any encryption begins.
	ErrLabeling = errors.New("labeling error")

	// ErrRotationConsistency marks two fetches for the same crypto period
	// producing different keys. Never silently resolved by picking one.
	ErrRotationConsistency = errors.New("rotation consistency error")

	// ErrUnknownKeyID marks a decryption request for a key ID no provider
	// knows. Fatal for that segment only.
	ErrUnknownKeyID = errors.New("unknown key id")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for classification with errors.Is. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrKeyProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}

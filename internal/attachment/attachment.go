// Package attachment bounds-checks inline file payloads carried as data URIs.
package attachment

import (
	"fmt"
	"math"
	"strings"
)

// MaxBytes is the largest decoded attachment accepted.
const MaxBytes = 5 * 1024 * 1024

// PayloadError reports a malformed or oversized attachment.
// Reason is suitable for showing to the sender as is.
type PayloadError struct {
	Reason string
}

func (e *PayloadError) Error() string {
	return e.Reason
}

// Validate checks a data URI of the form <prefix>,<base64> and returns the
// approximate decoded size. The payload is never decoded.
func Validate(dataURI string) (int64, error) {
	idx := strings.IndexByte(dataURI, ',')
	if idx == -1 {
		return 0, &PayloadError{Reason: "Malformed data URI"}
	}

	size := ApproxDecodedSize(dataURI[idx+1:])
	if size > MaxBytes {
		return size, &PayloadError{
			Reason: fmt.Sprintf("File too large (%d KB). Max allowed %d KB.", roundKB(size), roundKB(MaxBytes)),
		}
	}
	return size, nil
}

// ApproxDecodedSize computes ceil(len*3/4 - padding) where padding counts
// trailing '=' characters (at most two).
func ApproxDecodedSize(b64 string) int64 {
	padding := int64(0)
	switch {
	case strings.HasSuffix(b64, "=="):
		padding = 2
	case strings.HasSuffix(b64, "="):
		padding = 1
	}

	// ceil((3L - 4p) / 4) in integers.
	n := 3*int64(len(b64)) - 4*padding
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

func roundKB(n int64) int64 {
	return int64(math.Floor(float64(n)/1024 + 0.5))
}

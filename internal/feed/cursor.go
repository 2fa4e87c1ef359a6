package feed

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
)

// EncodeSeconds returns the cursor for secs seconds since epoch.
func EncodeSeconds(secs int64) models.Cursor {
	return models.Cursor(base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(secs, 10))))
}

// DecodeSeconds returns the seconds since epoch encoded in c.
//
// Padded and unpadded base64 are accepted. The payload must be a non-negative decimal integer
// written the way [EncodeSeconds] writes it: no sign, no leading zeros, no whitespace.
func DecodeSeconds(c models.Cursor) (int64, error) {
	raw := string(c)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty cursor", shared.ErrMalformedCursor)
	}

	enc := base64.StdEncoding
	if !strings.HasSuffix(raw, "=") && len(raw)%4 != 0 {
		enc = base64.RawStdEncoding
	}

	payload, err := enc.DecodeString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not base64: %v", shared.ErrMalformedCursor, raw, err)
	}

	secs, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q does not encode an integer: %v", shared.ErrMalformedCursor, raw, err)
	}
	if secs < 0 {
		return 0, fmt.Errorf("%w: %q encodes a negative time", shared.ErrMalformedCursor, raw)
	}
	if canonical := EncodeSeconds(secs); strings.TrimRight(string(canonical), "=") != strings.TrimRight(raw, "=") {
		return 0, fmt.Errorf("%w: %q is not in canonical form (want %q)", shared.ErrMalformedCursor, raw, canonical)
	}

	return secs, nil
}

// EncodeCursor returns the cursor for t, truncated to whole seconds.
func EncodeCursor(t time.Time) models.Cursor {
	return EncodeSeconds(t.Unix())
}

// DecodeCursor returns the point in time encoded in c.
func DecodeCursor(c models.Cursor) (time.Time, error) {
	secs, err := DecodeSeconds(c)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0), nil
}

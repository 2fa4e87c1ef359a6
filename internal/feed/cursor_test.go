package feed

import (
	"encoding/base64"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/fiply/internal/models"
	"github.com/desertthunder/fiply/internal/shared"
)

func TestCursor(t *testing.T) {
	t.Run("Encode", func(t *testing.T) {
		tests := []struct {
			name string
			secs int64
			want models.Cursor
		}{
			{name: "Page End", secs: 1574689282, want: "MTU3NDY4OTI4Mg=="},
			{name: "Zero", secs: 0, want: "MA=="},
			{name: "No Padding", secs: 123, want: "MTIz"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := EncodeSeconds(tt.secs); got != tt.want {
					t.Errorf("expected %q, got %q", tt.want, got)
				}
			})
		}
	})

	t.Run("Decode", func(t *testing.T) {
		tests := []struct {
			name   string
			cursor models.Cursor
			want   int64
		}{
			{name: "Padded", cursor: "MTU3NDY4OTI4Mg==", want: 1574689282},
			{name: "Unpadded", cursor: "MTU3NDY4OTI4Mg", want: 1574689282},
			{name: "Max Int64", cursor: EncodeSeconds(math.MaxInt64), want: math.MaxInt64},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := DecodeSeconds(tt.cursor)
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got != tt.want {
					t.Errorf("expected %d, got %d", tt.want, got)
				}
			})
		}
	})

	t.Run("Round Trip", func(t *testing.T) {
		for _, secs := range roundTripSeeds {
			got, err := DecodeSeconds(EncodeSeconds(secs))
			if err != nil {
				t.Fatalf("decode %d: %v", secs, err)
			}
			if got != secs {
				t.Errorf("expected %d, got %d", secs, got)
			}
		}
	})

	t.Run("Time Round Trip Truncates", func(t *testing.T) {
		at := time.Date(2019, 11, 25, 13, 41, 22, 900_000_000, time.UTC)
		got, err := DecodeCursor(EncodeCursor(at))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !got.Equal(at.Truncate(time.Second)) {
			t.Errorf("expected %v, got %v", at.Truncate(time.Second), got)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		tests := []struct {
			name   string
			cursor models.Cursor
		}{
			{name: "Empty", cursor: ""},
			{name: "Not Base64", cursor: "!!!not-base64!!!"},
			{name: "Not An Integer", cursor: models.Cursor("aGVsbG8=")},
			{name: "Negative", cursor: models.Cursor("LTU=")},
			{name: "Fractional", cursor: models.Cursor("MS41")},
			{name: "Surrounding Whitespace", cursor: " MTIz\n"},
			{name: "Embedded Newline", cursor: "MTU3\nNDY4OTI4Mg=="},
			{name: "Plus Sign", cursor: encodeRaw("+5")},
			{name: "Leading Zeros", cursor: encodeRaw("007")},
			{name: "Negative Zero", cursor: encodeRaw("-0")},
			{name: "Padded Whitespace Payload", cursor: encodeRaw(" 5")},
			{name: "Overflow", cursor: encodeRaw("9223372036854775808")},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := DecodeSeconds(tt.cursor)
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, shared.ErrMalformedCursor) {
					t.Errorf("expected ErrMalformedCursor, got %v", err)
				}
			})
		}
	})
}

var roundTripSeeds = []int64{0, 1, 59, 1572251703, 1574689282, 4102444800, math.MaxInt64}

func encodeRaw(payload string) models.Cursor {
	return models.Cursor(base64.StdEncoding.EncodeToString([]byte(payload)))
}

func FuzzCursorRoundTrip(f *testing.F) {
	for _, secs := range roundTripSeeds {
		f.Add(secs)
	}

	f.Fuzz(func(t *testing.T, secs int64) {
		if secs < 0 {
			if _, err := DecodeSeconds(EncodeSeconds(secs)); !errors.Is(err, shared.ErrMalformedCursor) {
				t.Errorf("expected negative %d to be rejected, got %v", secs, err)
			}
			return
		}

		got, err := DecodeSeconds(EncodeSeconds(secs))
		if err != nil {
			t.Fatalf("decode %d: %v", secs, err)
		}
		if got != secs {
			t.Errorf("expected %d, got %d", secs, got)
		}
	})
}

func FuzzDecodeSeconds(f *testing.F) {
	for _, c := range []string{"MTU3NDY4OTI4Mg==", "MTU3NDY4OTI4Mg", "MA==", "KzU=", "MDA3", "!!!!", ""} {
		f.Add(c)
	}

	f.Fuzz(func(t *testing.T, cursor string) {
		secs, err := DecodeSeconds(models.Cursor(cursor))
		if err != nil {
			return
		}
		if secs < 0 {
			t.Fatalf("decoded negative %d from %q", secs, cursor)
		}
		if want := strings.TrimRight(string(EncodeSeconds(secs)), "="); strings.TrimRight(cursor, "=") != want {
			t.Errorf("%q decoded to %d, which encodes as %q", cursor, secs, want)
		}
	})
}

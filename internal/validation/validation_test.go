package validation

import (
	"errors"
	"strings"
	"testing"
)

// TestValidateLocation covers trimming, length bounds, and the allowed
// character set, including non-ASCII city names.
func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{
			name: "plain ascii",
			in:   "beijing",
			want: "beijing",
		},
		{
			name: "trims whitespace",
			in:   "  New York  ",
			want: "New York",
		},
		{
			name: "chinese city name",
			in:   "北京",
			want: "北京",
		},
		{
			name: "comma and hyphen allowed",
			in:   "Winston-Salem, NC",
			want: "Winston-Salem, NC",
		},
		{
			name:    "empty",
			in:      "   ",
			wantErr: ErrLocationEmpty,
		},
		{
			name:    "too long",
			in:      strings.Repeat("a", 101),
			wantErr: ErrLocationTooLong,
		},
		{
			name:    "disallowed characters",
			in:      "beijing; drop table",
			wantErr: ErrLocationInvalidChars,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateLocation(tc.in)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ValidateLocation(%q) error = %v, want %v", tc.in, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateLocation(%q) error = %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ValidateLocation(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestValidateLanguage(t *testing.T) {
	for _, lang := range []string{"en", "ZH", " es "} {
		got, err := ValidateLanguage(lang)
		if err != nil {
			t.Errorf("ValidateLanguage(%q) error = %v", lang, err)
			continue
		}
		if got != strings.ToLower(strings.TrimSpace(lang)) {
			t.Errorf("ValidateLanguage(%q) = %q", lang, got)
		}
	}

	if _, err := ValidateLanguage("fr"); !errors.Is(err, ErrUnknownLanguage) {
		t.Errorf("ValidateLanguage(fr) error = %v, want ErrUnknownLanguage", err)
	}
}

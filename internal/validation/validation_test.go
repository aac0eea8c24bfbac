package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCity_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
		{"newline", "\n "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateCity(tc.input)
			if !errors.Is(err, ErrCityEmpty) {
				t.Errorf("error = %v, want ErrCityEmpty", err)
			}
		})
	}
}

// TestValidateCity_Length verifies the bound counts runes, not bytes.
func TestValidateCity_Length(t *testing.T) {
	if _, err := ValidateCity(strings.Repeat("a", 100)); err != nil {
		t.Errorf("100 runes: error = %v, want nil", err)
	}
	if _, err := ValidateCity(strings.Repeat("ü", 100)); err != nil {
		t.Errorf("100 multi-byte runes: error = %v, want nil", err)
	}
	if _, err := ValidateCity(strings.Repeat("a", 101)); !errors.Is(err, ErrCityTooLong) {
		t.Errorf("101 runes: error = %v, want ErrCityTooLong", err)
	}
}

func TestValidateCity_InvalidChars(t *testing.T) {
	for _, input := range []string{"Lon\x00don", "Lon\x1bdon", "Lon\tdon"} {
		if _, err := ValidateCity(input); !errors.Is(err, ErrCityInvalidChars) {
			t.Errorf("ValidateCity(%q) error = %v, want ErrCityInvalidChars", input, err)
		}
	}
}

func TestValidateCity_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "London", "London"},
		{"with space", "New York", "New York"},
		{"trimmed", "  Boston  ", "Boston"},
		{"apostrophe", "St. John's", "St. John's"},
		{"unicode", "Zürich", "Zürich"},
		{"cjk", "東京", "東京"},
		{"single char", "X", "X"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateCity(tc.input)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tc.want {
				t.Errorf("ValidateCity(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

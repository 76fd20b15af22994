package invitecode

import (
	"strings"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	t.Run("matches canonical format", func(t *testing.T) {
		for i := 0; i < 500; i++ {
			code, err := Generate()
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if !IsValidFormat(code) {
				t.Errorf("Generate() = %q, not a valid format", code)
			}
		}
	})

	t.Run("no collisions across a large sample", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 10000; i++ {
			code, err := Generate()
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if seen[code] {
				t.Fatalf("duplicate code generated: %s", code)
			}
			seen[code] = true
		}
	})
}

func TestIsValidFormat(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"canonical", "ABCD-EFGH-JK23", true},
		{"lower case accepted", "abcd-efgh-jk23", true},
		{"contains zero", "ABCD-EFGH-JK20", false},
		{"contains one", "ABC1-EFGH-JK23", false},
		{"contains I", "ABCI-EFGH-JK23", false},
		{"contains O", "ABCD-EFOH-JK23", false},
		{"lower case i", "abci-efgh-jk23", false},
		{"missing hyphens", "ABCDEFGHJK23", false},
		{"wrong grouping", "ABC-DEFGH-JK23", false},
		{"too short", "ABCD-EFGH-JK2", false},
		{"too long", "ABCD-EFGH-JK234", false},
		{"extra group", "ABCD-EFGH-JK23-ABCD", false},
		{"surrounding whitespace", " ABCD-EFGH-JK23 ", false},
		{"empty", "", false},
		{"symbols", "ABCD-EF#H-JK23", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidFormat(tt.code); got != tt.want {
				t.Errorf("IsValidFormat(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsValidFormatRejectsAmbiguousCharacters(t *testing.T) {
	for _, bad := range "01IOio" {
		code := "ABCD-EFGH-JK2" + string(bad)
		if IsValidFormat(code) {
			t.Errorf("IsValidFormat(%q) = true, want false", code)
		}
	}
}

func TestNormalize(t *testing.T) {
	inputs := []string{"  abcd-efgh-jk23\n", "ABCD-EFGH-JK23", "\tmixed-Case-x\t", ""}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
		if strings.TrimSpace(once) != once {
			t.Errorf("Normalize(%q) = %q still has surrounding whitespace", in, once)
		}
	}

	if got := Normalize("  abcd-efgh-jk23 "); got != "ABCD-EFGH-JK23" {
		t.Errorf("Normalize() = %q, want ABCD-EFGH-JK23", got)
	}
}

func TestCalculateExpiryBoundary(t *testing.T) {
	now := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	expiresAt := CalculateExpiryFrom(now, 7)

	if want := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC); !expiresAt.Equal(want) {
		t.Fatalf("CalculateExpiryFrom() = %v, want %v", expiresAt, want)
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"one millisecond before", expiresAt.Add(-time.Millisecond), false},
		{"exactly at expiry", expiresAt, false},
		{"one millisecond after", expiresAt.Add(time.Millisecond), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpiredAt(expiresAt, tt.now); got != tt.want {
				t.Errorf("IsExpiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateExpiryUsesCalendarDays(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("timezone data not available")
	}
	// DST starts on 2024-03-10 in New York
	from := time.Date(2024, 3, 9, 9, 0, 0, 0, loc)
	got := CalculateExpiryFrom(from, 1)

	if got.Hour() != 9 || got.Day() != 10 {
		t.Errorf("CalculateExpiryFrom() = %v, want 09:00 on March 10", got)
	}
	if got.Sub(from) != 23*time.Hour {
		t.Errorf("expected a 23h gap across DST, got %v", got.Sub(from))
	}
}

func TestCalculateExpiryDefault(t *testing.T) {
	before := time.Now()
	got := CalculateExpiry(DefaultExpiryDays)
	if got.Before(before.AddDate(0, 0, DefaultExpiryDays)) {
		t.Errorf("CalculateExpiry() = %v, earlier than %d days from now", got, DefaultExpiryDays)
	}
	if IsExpired(got) {
		t.Error("a freshly calculated expiry should not be expired")
	}
}

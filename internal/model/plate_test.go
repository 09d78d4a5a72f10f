package model

import "testing"

func TestNormalizePlate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"abc123", "ABC123"},
		{"  x777xx77  ", "X777XX77"},
		{"ab 12 cd", "AB12CD"},
		{"AbC 123", "ABC123"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizePlate(tc.in); got != tc.want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidPlateNumber(t *testing.T) {
	t.Parallel()

	valid := []string{"AB12", "X777XX77", "ABC123"}
	for _, n := range valid {
		if !ValidPlateNumber(n) {
			t.Errorf("ValidPlateNumber(%q) = false, want true", n)
		}
	}

	invalid := []string{"", "A", "AB-12", "AB 12", "ABCDEFGHIJKLMNOPQ"}
	for _, n := range invalid {
		if ValidPlateNumber(n) {
			t.Errorf("ValidPlateNumber(%q) = true, want false", n)
		}
	}
}

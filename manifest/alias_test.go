package manifest

import "testing"

func TestToAlias(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"models", "models"},
		{"MyLib", "my-lib"},
		{"geo_shapes", "geo-shapes"},
		{"geo-shapes", "geo-shapes"},
		{"_leading", "leading"},
		{"trailing_", "trailing"},
		{"two  spaces", "two-spaces"},
		{"Lib2Go", "lib2-go"},
		{"HTTP", "http"},
	}
	for _, tt := range tests {
		if got := ToAlias(tt.in); got != tt.want {
			t.Errorf("ToAlias(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateAlias(t *testing.T) {
	valid := []string{"geo", "my-lib", "v2"}
	for _, a := range valid {
		if err := ValidateAlias(a); err != nil {
			t.Errorf("ValidateAlias(%q) = %v, want nil", a, err)
		}
	}
	invalid := []string{"", ".", "..", "a/b", `a\b`, "c:d"}
	for _, a := range invalid {
		if err := ValidateAlias(a); err == nil {
			t.Errorf("ValidateAlias(%q) = nil, want error", a)
		}
	}
}

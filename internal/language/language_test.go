package language

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "English"},
		{"de", "German"},
		{"en-orig", "English"},
		{"fr", "French"},
		{"", "Unknown"},
		{"??", "??"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.input); got != tt.expected {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBase(t *testing.T) {
	if got := Base("pt-BR"); got != "pt" {
		t.Fatalf("Base(pt-BR) = %q", got)
	}
	if got := Base("en-orig"); got != "en" {
		t.Fatalf("Base(en-orig) = %q", got)
	}
	if got := Base("@@"); got != "" {
		t.Fatalf("expected empty base for garbage, got %q", got)
	}
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{" EN ", "en", "pt-br", "", "de"})
	want := []string{"en", "pt-BR", "de"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeList length = %d (%v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NormalizeList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if NormalizeList(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

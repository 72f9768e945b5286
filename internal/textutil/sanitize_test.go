package textutil

import "testing"

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"Alice.B-2_x", "Alice.B-2_x"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"..", "anonymous"},
		{"   ", "anonymous"},
		{"user@example.com", "user_example.com"},
		{"名前", "anonymous"},
	}
	for _, tc := range tests {
		if got := SanitizeSegment(tc.in, "anonymous"); got != tc.want {
			t.Fatalf("SanitizeSegment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("Job 42!"); got != "job_42" {
		t.Fatalf("unexpected token: %q", got)
	}
	if got := SanitizeToken(""); got != "unknown" {
		t.Fatalf("unexpected empty token: %q", got)
	}
}

func TestTitle(t *testing.T) {
	tests := map[string]string{
		"completed":     "Completed",
		"external_tool": "External Tool",
		"  ":            "",
		"HIGH":          "High",
	}
	for in, want := range tests {
		if got := Title(in); got != want {
			t.Fatalf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}

package anonymizer

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestStringRedactsAllSensitivePatterns(t *testing.T) {
	a := New()

	cases := []struct {
		name  string
		input string
	}{
		{"email", "contact me at jane.doe@example.com please"},
		{"ssn", "ssn on file: 123-45-6789"},
		{"card", "card 4111 1111 1111 1111 charged"},
		{"ipv4", "connected from 10.20.30.40 successfully"},
		{"user_id", "acting as user-48213 in this request"},
		{"uuid", "trace 550e8400-e29b-41d4-a716-446655440000 failed"},
		{"token", "key abcdefghijklmnopqrstuvwxyz0123 leaked"},
	}

	sensitive := []*regexp.Regexp{}
	for _, p := range defaultPatterns() {
		sensitive = append(sensitive, regexp.MustCompile(p.Regex))
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out := a.String(c.input)
			if out == c.input {
				t.Fatalf("expected %q to be redacted, got unchanged output", c.input)
			}
			for _, re := range sensitive {
				if re.MatchString(out) {
					t.Errorf("redacted output %q still matches sensitive pattern %s", out, re.String())
				}
			}
		})
	}
}

func TestUUIDRedactedBeforeTokenRule(t *testing.T) {
	a := New()
	input := "request id 550e8400-e29b-41d4-a716-446655440000"
	out := a.String(input)
	if strings.Contains(out, "REDACTED_TOKEN") {
		t.Errorf("expected UUID mask, got token mask: %s", out)
	}
	if !strings.Contains(out, "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx") {
		t.Errorf("expected UUID mask in output, got: %s", out)
	}
}

func TestMapRedactsValuesOnlyKeepsKeys(t *testing.T) {
	a := New()
	in := map[string]string{
		"user.email": "alice@example.com",
		"host.ip":    "10.0.0.5",
	}
	out := a.Map(in)

	if _, ok := out["user.email"]; !ok {
		t.Fatal("expected key 'user.email' to survive anonymization")
	}
	if _, ok := out["host.ip"]; !ok {
		t.Fatal("expected key 'host.ip' to survive anonymization")
	}
	if out["user.email"] == in["user.email"] {
		t.Error("expected email value to be redacted")
	}
	if out["host.ip"] == in["host.ip"] {
		t.Error("expected ip value to be redacted")
	}
}

func TestMapNilIsNil(t *testing.T) {
	a := New()
	if got := a.Map(nil); got != nil {
		t.Errorf("expected nil map to stay nil, got %v", got)
	}
}

func TestNewWithOverlayAddsPatternsAfterBuiltins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	content := `patterns:
  - name: internal_host
    regex: 'host-\d+\.internal'
    replacement: 'host-XXXX.internal'
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing overlay file: %v", err)
	}

	a, err := NewWithOverlay(path)
	if err != nil {
		t.Fatalf("NewWithOverlay: %v", err)
	}

	out := a.String("connecting to host-42.internal with token abcdefghijklmnopqrstuvwxyz")
	if strings.Contains(out, "host-42.internal") {
		t.Errorf("expected overlay pattern to redact host, got: %s", out)
	}
	if !strings.Contains(out, "REDACTED_TOKEN") {
		t.Errorf("expected built-in token pattern to still apply, got: %s", out)
	}
}

func TestNewWithOverlayMissingFile(t *testing.T) {
	if _, err := NewWithOverlay("/nonexistent/path/overlay.yaml"); err == nil {
		t.Fatal("expected error for missing overlay file")
	}
}

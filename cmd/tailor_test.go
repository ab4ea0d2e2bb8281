package cmd

import (
	"testing"

	"github.com/nikogura/resume-forge/pkg/config"
)

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("Expected 'b', got '%s'", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("Expected empty, got '%s'", got)
	}
}

func TestTailorOptionsFlagsOverrideDefaults(t *testing.T) {
	a := &app{cfg: config.Config{Defaults: config.DefaultConfig{Person: "first", Mode: "ic", Format: "standard"}}}

	tailorMode = "leadership"
	tailorEmphasis = "incident response"
	t.Cleanup(func() {
		tailorMode = ""
		tailorEmphasis = ""
	})

	opts := tailorOptions(a)

	if opts.Mode != "leadership" {
		t.Errorf("Expected mode 'leadership', got '%s'", opts.Mode)
	}
	if opts.Person != "first" {
		t.Errorf("Expected person default 'first', got '%s'", opts.Person)
	}
	if opts.ExperienceFormat != "standard" {
		t.Errorf("Expected format default 'standard', got '%s'", opts.ExperienceFormat)
	}
	if opts.Emphasis != "incident response" {
		t.Errorf("Expected emphasis from flag, got '%s'", opts.Emphasis)
	}
}

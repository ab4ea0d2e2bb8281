package scorer

import (
	"testing"

	"github.com/nikogura/resume-forge/pkg/config"
)

func testRules() config.SectionRules {
	return config.SectionRules{
		MaxPages:          2,
		RequiredSections:  []string{"Summary", "Experience", "Education"},
		ForbiddenSections: []string{"Hobbies", "References"},
	}
}

func TestCheckClean(t *testing.T) {
	text := "JANE DOE\nSummary\nPlatform engineer.\nExperience\nAcme\nEducation\nBSc"

	report := Check(text, 2, testRules())

	if len(report.Findings) != 0 {
		t.Errorf("Expected no findings, got %v", report.Findings)
	}
	if report.Score != 100 {
		t.Errorf("Expected score 100, got %d", report.Score)
	}
}

func TestCheckPageLimit(t *testing.T) {
	text := "Summary\nExperience\nEducation"

	report := Check(text, 3, testRules())

	critical := report.Critical()
	if len(critical) != 1 || critical[0].Rule != RulePageLimit {
		t.Fatalf("Expected one page limit finding, got %v", critical)
	}
	if critical[0].Message != "Resume is 3 pages; the maximum is 2" {
		t.Errorf("Unexpected message: %s", critical[0].Message)
	}
	if report.Score != 60 {
		t.Errorf("Expected score 60, got %d", report.Score)
	}
}

func TestCheckForbiddenSection(t *testing.T) {
	text := "Summary\nExperience\nEducation\n## Hobbies:\nChess"

	report := Check(text, 1, testRules())

	critical := report.Critical()
	if len(critical) != 1 || critical[0].Section != "Hobbies" {
		t.Fatalf("Expected forbidden Hobbies finding, got %v", critical)
	}
}

func TestCheckForbiddenWordInProse(t *testing.T) {
	text := "Summary\nReferences available on request from Acme.\nExperience\nEducation"

	report := Check(text, 1, testRules())

	if len(report.Critical()) != 0 {
		t.Errorf("Expected prose mention not to count as a heading, got %v", report.Critical())
	}
}

func TestCheckRequiredMissingIsAdvisory(t *testing.T) {
	text := "Summary\nExperience"

	report := Check(text, 1, testRules())

	if len(report.Findings) != 1 || report.Findings[0].Rule != RuleRequiredSection {
		t.Fatalf("Expected one missing section finding, got %v", report.Findings)
	}
	if len(report.Critical()) != 0 {
		t.Error("Expected missing section not to be critical")
	}
	if msgs := report.Messages(); len(msgs) != 1 || msgs[0] != `Required section "Education" was not found` {
		t.Errorf("Unexpected messages: %v", msgs)
	}
}

func TestScoreFloor(t *testing.T) {
	findings := []Finding{{Rule: RulePageLimit}, {Rule: RulePageLimit}, {Rule: RulePageLimit}}
	if got := score(findings); got != 0 {
		t.Errorf("Expected score floor 0, got %d", got)
	}
}

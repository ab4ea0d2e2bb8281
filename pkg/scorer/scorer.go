// Package scorer runs deterministic structure checks on rendered résumé text.
package scorer

import (
	"fmt"
	"strings"

	"github.com/nikogura/resume-forge/pkg/config"
)

// Finding is one rule violation.
type Finding struct {
	Rule    string
	Section string
	Message string
}

// Report is the outcome of Check.
type Report struct {
	Score    int
	Findings []Finding
}

// Check scores text and page count against the section rules.
func Check(text string, pageCount int, rules config.SectionRules) (report Report) {
	headings := lineSet(text)
	lower := strings.ToLower(text)

	if rules.MaxPages > 0 && pageCount > rules.MaxPages {
		report.Findings = append(report.Findings, Finding{
			Rule:    RulePageLimit,
			Message: fmt.Sprintf("Resume is %d pages; the maximum is %d", pageCount, rules.MaxPages),
		})
	}

	for _, section := range rules.ForbiddenSections {
		key := normalize(section)
		if key != "" && headings[key] {
			report.Findings = append(report.Findings, Finding{
				Rule:    RuleForbiddenSection,
				Section: section,
				Message: fmt.Sprintf("Forbidden section %q is present", section),
			})
		}
	}

	for _, section := range rules.RequiredSections {
		key := normalize(section)
		if key == "" || headings[key] || strings.Contains(lower, key) {
			continue
		}
		report.Findings = append(report.Findings, Finding{
			Rule:    RuleRequiredSection,
			Section: section,
			Message: fmt.Sprintf("Required section %q was not found", section),
		})
	}

	report.Score = score(report.Findings)
	return report
}

// Critical returns the findings that must fail validation.
func (r Report) Critical() (findings []Finding) {
	for _, f := range r.Findings {
		if StructureRules[f.Rule].Severity == SeverityCritical {
			findings = append(findings, f)
		}
	}
	return findings
}

// Messages returns the findings as plain sentences.
func (r Report) Messages() (messages []string) {
	messages = make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		messages = append(messages, f.Message)
	}
	return messages
}

func score(findings []Finding) (total int) {
	total = 100
	for _, f := range findings {
		total -= StructureRules[f.Rule].Weight
	}
	if total < 0 {
		total = 0
	}
	return total
}

// lineSet collects every line of text, normalized, as a candidate heading.
func lineSet(text string) (set map[string]bool) {
	set = make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		if key := normalize(line); key != "" {
			set[key] = true
		}
	}
	return set
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "# ")
	s = strings.TrimRight(s, ": ")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

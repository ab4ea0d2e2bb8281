package scorer

// Rule is a structural check on a rendered résumé.
type Rule struct {
	Name        string
	Severity    string // critical, major
	Description string
	Weight      int // Points deducted per finding
}

const (
	RulePageLimit        = "PAGE_LIMIT_EXCEEDED"
	RuleForbiddenSection = "FORBIDDEN_SECTION_PRESENT"
	RuleRequiredSection  = "REQUIRED_SECTION_MISSING"

	SeverityCritical = "critical"
	SeverityMajor    = "major"
)

//nolint:gochecknoglobals // Scoring configuration constants
var StructureRules = map[string]Rule{
	RulePageLimit: {
		Name:        RulePageLimit,
		Severity:    SeverityCritical,
		Description: "Rendered page count exceeds the maximum",
		Weight:      40,
	},
	RuleForbiddenSection: {
		Name:        RuleForbiddenSection,
		Severity:    SeverityCritical,
		Description: "A forbidden section heading appears in the rendered text",
		Weight:      25,
	},
	// Text extraction can merge heading lines, so a missing section is only advisory.
	RuleRequiredSection: {
		Name:        RuleRequiredSection,
		Severity:    SeverityMajor,
		Description: "A required section heading was not found in the rendered text",
		Weight:      15,
	},
}

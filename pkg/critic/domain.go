package critic

import (
	"regexp"
	"strings"
)

// MinKeywordHits is the fewest keyword hits an archetype needs to be chosen.
const MinKeywordHits = 2

// DomainGeneral is used when no archetype reaches MinKeywordHits.
const DomainGeneral = "general"

// Archetype is a family of job postings with its own review criteria.
type Archetype struct {
	Name       string
	Keywords   []string
	Vocabulary []string
	Tone       string
}

// Declaration order breaks ties.
//
//nolint:gochecknoglobals // Classification table
var archetypes = []Archetype{
	{
		Name:       "regulated",
		Keywords:   []string{"healthcare", "HIPAA", "compliance", "FDA", "clinical", "patient", "SOC 2", "audit"},
		Vocabulary: []string{"compliance", "audit trail", "HIPAA", "risk", "controls", "validation"},
		Tone:       "Measured and precise. Show rigor and accountability; avoid move-fast language.",
	},
	{
		Name:       "forward_deployed",
		Keywords:   []string{"customer-facing", "forward deployed", "field", "solutions", "implementation", "onsite", "stakeholder"},
		Vocabulary: []string{"customer", "deployment", "stakeholders", "requirements", "integration", "outcomes"},
		Tone:       "Consultative. Show communication with customers and delivery under ambiguity.",
	},
	{
		Name:       "platform",
		Keywords:   []string{"infrastructure", "kubernetes", "platform", "SRE", "reliability", "observability", "terraform"},
		Vocabulary: []string{"Kubernetes", "SLOs", "uptime", "observability", "infrastructure as code", "automation"},
		Tone:       "Technical and quantitative. Lead with scale, reliability numbers and tooling.",
	},
	{
		Name:       "enterprise",
		Keywords:   []string{"enterprise", "Fortune 500", "governance", "SSO", "procurement", "global"},
		Vocabulary: []string{"enterprise", "governance", "cross-functional", "global", "security review", "SSO"},
		Tone:       "Polished and process-aware. Show scale of organization and cross-team alignment.",
	},
	{
		Name:       "startup",
		Keywords:   []string{"startup", "seed", "series A", "series B", "fast-paced", "founding", "scrappy", "early-stage"},
		Vocabulary: []string{"ownership", "zero to one", "shipped", "wore many hats", "velocity"},
		Tone:       "Energetic and ownership-driven. Show breadth and shipping speed.",
	},
}

//nolint:gochecknoglobals // Fallback when no archetype matches
var generalArchetype = Archetype{
	Name:       DomainGeneral,
	Vocabulary: []string{"impact", "ownership", "collaboration"},
	Tone:       "Clear and professional. Lead with measurable outcomes.",
}

//nolint:gochecknoglobals // Compiled once from the classification table
var keywordPatterns = compileKeywords()

func compileKeywords() (patterns map[string]*regexp.Regexp) {
	patterns = make(map[string]*regexp.Regexp)
	for _, a := range archetypes {
		for _, kw := range a.Keywords {
			patterns[kw] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
	return patterns
}

// Classify picks the archetype whose keywords occur most often in the job description.
// Matching is case-insensitive on whole terms.
func Classify(description string) (archetype Archetype, hits int) {
	archetype = generalArchetype

	for _, a := range archetypes {
		count := 0
		for _, kw := range a.Keywords {
			count += len(keywordPatterns[kw].FindAllStringIndex(description, -1))
		}
		if count >= MinKeywordHits && count > hits {
			archetype = a
			hits = count
		}
	}

	return archetype, hits
}

// Archetypes returns the archetype names in declaration order.
func Archetypes() (names []string) {
	for _, a := range archetypes {
		names = append(names, a.Name)
	}
	return names
}

func criteria(a Archetype) (text string) {
	var b strings.Builder
	b.WriteString("DOMAIN: " + a.Name + "\n")
	b.WriteString("EXPECTED VOCABULARY (check each term is used where the candidate's experience supports it): ")
	b.WriteString(strings.Join(a.Vocabulary, ", "))
	b.WriteString("\nTONE: " + a.Tone + "\n")
	text = b.String()
	return text
}

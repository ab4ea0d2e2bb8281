package generator

import (
	"fmt"
	"strings"

	"github.com/nikogura/resume-forge/pkg/config"
)

const (
	// MandatoryHeading introduces judge corrections in the generation prompt.
	MandatoryHeading = "MANDATORY CORRECTIONS (each one MUST be applied):"
	// RecommendationsHeading introduces critic recommendations in the generation prompt.
	RecommendationsHeading = "RECOMMENDATIONS FROM EXPERT REVIEW:"

	cachedProfilePointer = "The candidate's complete profile was provided above as cached context. Use it as the ONLY source of facts."

	icFragment = `MODE - INDIVIDUAL CONTRIBUTOR:
- Lead every role with hands-on technical work: systems built, code shipped, incidents resolved
- Name concrete technologies and the scale they ran at
- Mention people management only where it explains technical scope`

	leadershipFragment = `MODE - LEADERSHIP:
- Lead every role with scope: team size, budget, org reach and business outcomes
- Show hiring, mentoring and cross-team influence with concrete results
- Keep technical detail to what supports strategic decisions`
)

func modeFragment(mode string) (fragment string) {
	if mode == ModeLeadership {
		fragment = leadershipFragment
		return fragment
	}
	fragment = icFragment
	return fragment
}

func personLine(person string) (line string) {
	if person == PersonThird {
		line = "VOICE: Write the summary in third person using the candidate's name. Bullets stay implied-subject."
		return line
	}
	line = "VOICE: Write the summary in first person without pronouns (\"Built...\", not \"I built...\"). Bullets stay implied-subject."
	return line
}

func formatLine(format string) (line string) {
	if format == config.FormatSplit {
		line = `FORMAT: Split experience into "## Relevant Experience" (roles that match this job) and "## Additional Experience" (everything else, condensed to one line per role).`
		return line
	}
	line = `FORMAT: Use a single "## Experience" section in reverse chronological order, one "### " heading per role.`
	return line
}

func bulleted(items []string) (text string) {
	var b strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	text = b.String()
	return text
}

// buildPrompt assembles the generation prompt. When cached is true the profile excerpt is
// sent separately as cached content and the prompt only points at it.
//
//nolint:funlen // Prompt template
func buildPrompt(in Input, rules config.SectionRules, cached bool) (prompt string) {
	opts := in.Options.Normalize()

	profileSection := in.Excerpt
	if cached {
		profileSection = cachedProfilePointer
	}

	jobHeader := fmt.Sprintf("Title: %s\nCompany: %s", in.Job.Title, in.Job.Company)
	if in.Job.Location != "" {
		jobHeader += "\nLocation: " + in.Job.Location
	}
	if in.Job.SalaryRange != "" {
		jobHeader += "\nSalary: " + in.Job.SalaryRange
	}
	if in.Job.ApplicantSignal != "" {
		jobHeader += "\nApplicants: " + in.Job.ApplicantSignal
	}

	emphasis := ""
	if opts.Emphasis != "" {
		emphasis = fmt.Sprintf("EMPHASIS: Give extra weight to %s wherever the profile supports it.\n", opts.Emphasis)
	}

	var addenda strings.Builder

	if recs := bulleted(in.Recommendations); recs != "" {
		fmt.Fprintf(&addenda, "\n%s\n%s", RecommendationsHeading, recs)
	}

	if ctx := strings.TrimSpace(in.CompanyContext); ctx != "" {
		fmt.Fprintf(&addenda, "\nCOMPANY CONTEXT:\n%s\n", ctx)
	}

	if mandatory := bulleted(in.JudgeSuggestions); mandatory != "" {
		fmt.Fprintf(&addenda, "\n%s\nA previous version of this resume failed validation. These fixes are required, not optional:\n%s", MandatoryHeading, mandatory)
	}

	prompt = fmt.Sprintf(`You are an expert resume writer tailoring a candidate's master resume to one job posting.

JOB:
%s

JOB DESCRIPTION:
%s

CANDIDATE PROFILE:
%s

%s

%s
%s%s

STRUCTURE:
- The resume MUST fit on %d page(s) when rendered
- Required sections (as "## " headings): %s
- Forbidden sections: %s
- Start with "# " followed by the candidate's name

RULES:
- Use ONLY facts present in the candidate profile. Never invent employers, titles, dates or metrics
- Reorder and rephrase to match the job description's language
- Drop content that does not help this application before shortening content that does
%s
Return ONLY valid JSON in this exact format (no markdown fences, no commentary):
{
  "resume": "the complete resume in markdown",
  "changes": ["one short line per notable change"]
}`,
		jobHeader,
		strings.TrimSpace(in.Job.Description),
		profileSection,
		modeFragment(opts.Mode),
		personLine(opts.Person),
		emphasis,
		formatLine(opts.ExperienceFormat),
		rules.MaxPages,
		strings.Join(rules.RequiredSections, ", "),
		strings.Join(rules.ForbiddenSections, ", "),
		addenda.String(),
	)

	return prompt
}

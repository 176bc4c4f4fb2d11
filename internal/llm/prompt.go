package llm

import (
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
)

// Input budgets per phase, in runes of CV text.
const (
	basicInfoTextLimit = 6000
	phaseTextLimit     = 12000
)

// BuildPhasePrompt composes the prompt for one extraction phase, carrying
// every fact established by earlier phases.
func BuildPhasePrompt(step, cvText string, facts entity.KnownFacts) Prompt {
	return Prompt{
		Step:   step,
		System: BuildSystemPrompt(step),
		User:   BuildUserPrompt(step, cvText, facts),
	}
}

// BuildSystemPrompt returns the phase instructions plus the reply schema.
func BuildSystemPrompt(step string) string {
	parts := []string{
		"You are a CV/resume parser. Return ONLY a single JSON object that matches the JSON Schema below.",
		"Do not wrap the JSON in markdown. Never output null; use \"\" or [] when a value is absent.",
		"Copy facts from the CV; do not invent employers, dates, degrees or URLs.",
	}
	switch step {
	case constants.StepBasicInfo:
		parts = append(parts,
			"Extract the candidate's personal and contact details.",
			"'name' is the candidate's full name and is required.",
			"'currentTitle' is the most recent job title. 'profession' is the broad field (e.g. Software Engineering, Nursing).",
			"'experienceLevel' is one of junior, mid, senior, lead, executive, judged from titles and years of experience.",
			"'summary' is the CV's own summary or objective; 'aboutMe' is a two-sentence third-person introduction.",
		)
	case constants.StepProfessional:
		parts = append(parts,
			"Extract work experience (most recent first), education and skills.",
			"Keep dates as written in the CV (e.g. 'Jan 2020', '2019'); use 'Present' for ongoing roles.",
			"'achievements' are the bullet points of a role, one string per bullet.",
			"Split skills into 'technical' (tools, languages, frameworks), 'soft' (interpersonal) and 'languages' (spoken languages).",
		)
	case constants.StepAdditional:
		parts = append(parts,
			"Extract projects, certifications, awards, publications and volunteer work.",
			"Only include items that appear in the CV; return empty arrays when a section is missing.",
			"'technologies' lists the tools named for a project.",
		)
	}
	parts = append(parts, "JSON Schema:\n"+mustJSON(PhaseSchema(step)))
	return strings.Join(parts, "\n")
}

// BuildUserPrompt packages the known facts and the (truncated) CV text.
func BuildUserPrompt(step, cvText string, facts entity.KnownFacts) string {
	var b strings.Builder
	if !facts.IsZero() {
		b.WriteString("Facts already established about this candidate (stay consistent with them):\n")
		b.WriteString(mustJSON(facts))
		b.WriteString("\n\n")
	}

	limit := phaseTextLimit
	if step == constants.StepBasicInfo {
		limit = basicInfoTextLimit
	}
	b.WriteString("CV text:\n")
	b.WriteString(truncateRunes(strings.TrimSpace(cvText), limit))
	b.WriteString("\n\nReturn ONLY JSON that matches the provided schema.")
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

package llm

import (
	"github.com/joseph-ayodele/cv-extractor/constants"
)

// PhaseSchema returns the JSON-Schema (draft 2020-12 subset) a phase reply
// should follow. It is sent to the model and checked locally; extra keys
// are tolerated because the decoders understand common synonyms.
func PhaseSchema(step string) map[string]any {
	switch step {
	case constants.StepBasicInfo:
		return basicInfoSchema()
	case constants.StepProfessional:
		return professionalSchema()
	case constants.StepAdditional:
		return additionalSchema()
	}
	return map[string]any{"type": "object"}
}

func basicInfoSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":            map[string]any{"type": "string", "minLength": 1},
			"email":           stringProp(),
			"phone":           stringProp(),
			"location":        stringProp(),
			"currentTitle":    stringProp(),
			"summary":         stringProp(),
			"aboutMe":         stringProp(),
			"profession":      stringProp(),
			"experienceLevel": map[string]any{"type": "string", "enum": []string{"", "junior", "mid", "senior", "lead", "executive"}},
		},
		"required": []string{"name"},
	}
}

func professionalSchema() map[string]any {
	experience := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":        stringProp(),
			"company":      stringProp(),
			"location":     stringProp(),
			"startDate":    stringProp(),
			"endDate":      stringProp(),
			"description":  stringProp(),
			"achievements": stringArray(),
		},
		"required": []string{"title", "company"},
	}
	education := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"degree":         stringProp(),
			"institution":    stringProp(),
			"location":       stringProp(),
			"graduationDate": stringProp(),
			"gpa":            stringProp(),
			"achievements":   stringArray(),
		},
		"required": []string{"degree", "institution"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"experience": map[string]any{"type": "array", "items": experience},
			"education":  map[string]any{"type": "array", "items": education},
			"skills": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"technical": stringArray(),
					"soft":      stringArray(),
					"languages": stringArray(),
				},
			},
		},
		"required": []string{"experience", "education", "skills"},
	}
}

func additionalSchema() map[string]any {
	project := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":         map[string]any{"type": "string", "minLength": 1},
			"description":  stringProp(),
			"technologies": stringArray(),
			"url":          stringProp(),
		},
		"required": []string{"name"},
	}
	certification := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string", "minLength": 1},
			"issuer": stringProp(),
			"date":   stringProp(),
			"url":    stringProp(),
		},
		"required": []string{"name"},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"projects":       map[string]any{"type": "array", "items": project},
			"certifications": map[string]any{"type": "array", "items": certification},
			"awards":         stringArray(),
			"publications":   stringArray(),
			"volunteer":      stringArray(),
		},
	}
}

func stringProp() map[string]any {
	return map[string]any{"type": "string"}
}

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": stringProp()}
}

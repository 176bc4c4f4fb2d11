package entity

import "time"

// ProcessingSession tracks the phases of one extraction run.
type ProcessingSession struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	CreatedAt   time.Time       `json:"created_at"`
	PreviewText string          `json:"preview_text"`
	Metadata    SessionMetadata `json:"metadata"`
	Steps       []StepResult    `json:"steps"`
}

type SessionMetadata struct {
	InputLength      int    `json:"input_length"`
	ProcessorVersion string `json:"processor_version"`
}

// StepResult is one appended phase outcome.
type StepResult struct {
	StepName   string       `json:"step_name"`
	Data       PhaseResult  `json:"data"`
	Confidence float64      `json:"confidence"`
	Metadata   StepMetadata `json:"metadata"`
	Timestamp  time.Time    `json:"timestamp"`
}

type StepMetadata struct {
	Method      string `json:"method"`
	StepIndex   int    `json:"step_index"`
	Strategy    string `json:"strategy,omitempty"`
	SchemaValid *bool  `json:"schema_valid,omitempty"`
	Model       string `json:"model,omitempty"`
	Error       string `json:"error,omitempty"`
}

// KnownFacts is the projection of completed steps fed into later prompts.
type KnownFacts struct {
	Name               string   `json:"name,omitempty"`
	CurrentTitle       string   `json:"currentTitle,omitempty"`
	Profession         string   `json:"profession,omitempty"`
	ExperienceLevel    string   `json:"experienceLevel,omitempty"`
	Location           string   `json:"location,omitempty"`
	RecentCompanies    []string `json:"recentCompanies,omitempty"`
	TopSkills          []string `json:"topSkills,omitempty"`
	HighestDegree      string   `json:"highestDegree,omitempty"`
	ProjectNames       []string `json:"projectNames,omitempty"`
	CertificationNames []string `json:"certificationNames,omitempty"`
}

// IsZero reports whether no fact is known yet.
func (k KnownFacts) IsZero() bool {
	return k.Name == "" && k.CurrentTitle == "" && k.Profession == "" && k.ExperienceLevel == "" &&
		k.Location == "" && len(k.RecentCompanies) == 0 && len(k.TopSkills) == 0 &&
		k.HighestDegree == "" && len(k.ProjectNames) == 0 && len(k.CertificationNames) == 0
}

// SessionContext is what later phases see of earlier ones.
type SessionContext struct {
	KnownFacts    KnownFacts   `json:"known_facts"`
	PreviousSteps []StepResult `json:"previous_steps"`
}

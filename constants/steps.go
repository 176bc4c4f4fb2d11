package constants

import "time"

// Step names recorded in session_steps, in execution order.
const (
	StepBasicInfo    = "basic_info"
	StepProfessional = "professional"
	StepAdditional   = "additional"
)

// Steps is the fixed phase order of an extraction.
var Steps = []string{StepBasicInfo, StepProfessional, StepAdditional}

// Extraction methods recorded in step metadata.
const (
	MethodLLM       = "llm"
	MethodHeuristic = "heuristic"
	MethodDefault   = "default"
)

// ProcessorVersion is stamped into session metadata.
const ProcessorVersion = "cv-extractor/1"

// Placeholders used when the provider is unreachable.
const (
	PlaceholderName        = "Name not detected"
	PlaceholderTitle       = "Work experience (review required)"
	PlaceholderCompany     = "Automatic extraction unavailable"
	PlaceholderDegree      = "Education (review required)"
	PlaceholderInstitution = "Automatic extraction unavailable"
	PlaceholderDescription = "The extraction service was unavailable. Edit this entry by hand."
	PlaceholderSkill       = "Skills pending review"
)

// Queue defaults.
const (
	DefaultMinutesPerJob   = 2
	DefaultPollInterval    = 3 * time.Second
	DefaultJobTimeout      = 10 * time.Minute
	DefaultRetention       = 7 * 24 * time.Hour
	DefaultCleanupInterval = time.Hour
	DefaultStatsWindow     = 24 * time.Hour
	DefaultSessionTTL      = 5 * time.Minute
	DefaultPersistAttempts = 5
	DefaultPersistBackoff  = 500 * time.Millisecond
)

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/cv-extractor/constants"
	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/entity"
	"github.com/joseph-ayodele/cv-extractor/internal/llm"
	"github.com/joseph-ayodele/cv-extractor/internal/session"
)

// SessionMemory is the part of session.Store the extractor uses.
type SessionMemory interface {
	CreateSession(ctx context.Context, userID, previewText string, meta entity.SessionMetadata) (string, error)
	StoreStepResult(ctx context.Context, sessionID string, result entity.PhaseResult, confidence float64, meta entity.StepMetadata) error
	GetSessionContext(ctx context.Context, sessionID string) (*entity.SessionContext, error)
	GetFinalResult(ctx context.Context, sessionID string) (*entity.ExtractedProfile, error)
	ScheduleCleanup(sessionID string, ttl time.Duration)
}

// Extractor runs the three extraction phases in order. Each phase prompt
// carries the facts established by the phases before it.
type Extractor struct {
	caller     llm.Caller
	sessions   SessionMemory
	scorer     Scorer
	sessionTTL time.Duration
	logger     *slog.Logger
}

type Option func(*Extractor)

// WithScorer replaces the confidence scorer.
func WithScorer(s Scorer) Option {
	return func(e *Extractor) { e.scorer = s }
}

// WithSessionTTL sets how long a finished session is kept.
func WithSessionTTL(ttl time.Duration) Option {
	return func(e *Extractor) { e.sessionTTL = ttl }
}

func NewExtractor(caller llm.Caller, sessions SessionMemory, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		caller:     caller,
		sessions:   sessions,
		scorer:     DefaultScorer,
		sessionTTL: constants.DefaultSessionTTL,
		logger:     common.LoggerOrDefault(logger),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract turns CV text into a profile. The result always carries a
// non-empty name; ErrExtractionFatal is returned when none can be produced.
func (e *Extractor) Extract(ctx context.Context, text, userID string) (*entity.ExtractedProfile, error) {
	start := time.Now()
	ctx = common.WithUserID(ctx, userID)
	attrs := common.LogAttrs(ctx)

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty CV text", common.ErrExtractionFatal)
	}

	sessionID, err := e.sessions.CreateSession(ctx, userID, text, entity.SessionMetadata{
		InputLength:      len([]rune(text)),
		ProcessorVersion: constants.ProcessorVersion,
	})
	if err != nil {
		// continue on local state
		e.logger.Warn("pipeline.session.unavailable", append(attrs, "error", err)...)
		sessionID = ""
	} else {
		attrs = append(attrs, "session_id", sessionID)
	}

	var local []entity.PhaseResult
	for i, step := range constants.Steps {
		phaseStart := time.Now()
		facts := e.knownFacts(ctx, sessionID, local)

		result, meta, err := e.runPhase(ctx, step, text, facts)
		if err != nil {
			e.logger.Error("pipeline.phase.failed", append(attrs, "phase", step, "error", err)...)
			return nil, err
		}
		meta.StepIndex = i
		confidence := e.scorer.Score(result)
		local = append(local, result)

		if sessionID != "" {
			if err := e.sessions.StoreStepResult(ctx, sessionID, result, confidence, meta); err != nil {
				e.logger.Warn("pipeline.step.not_stored", append(attrs, "phase", step, "error", err)...)
			}
		}
		e.logger.Info("pipeline.phase.ok", append(attrs,
			"phase", step,
			"method", meta.Method,
			"strategy", meta.Strategy,
			"confidence", confidence,
			"elapsed_ms", time.Since(phaseStart).Milliseconds(),
		)...)
	}

	profile := e.finalResult(ctx, sessionID, local)
	if sessionID != "" {
		e.sessions.ScheduleCleanup(sessionID, e.sessionTTL)
	}
	e.logger.Info("pipeline.extract.ok", append(attrs,
		"name_present", profile.PersonalInfo.Name != "",
		"experience", len(profile.Experience),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)...)
	return profile, nil
}

func (e *Extractor) knownFacts(ctx context.Context, sessionID string, local []entity.PhaseResult) entity.KnownFacts {
	if sessionID != "" {
		sc, err := e.sessions.GetSessionContext(ctx, sessionID)
		if err == nil && len(sc.PreviousSteps) >= len(local) {
			return sc.KnownFacts
		}
	}
	return session.DeriveFacts(local...)
}

func (e *Extractor) finalResult(ctx context.Context, sessionID string, local []entity.PhaseResult) *entity.ExtractedProfile {
	if sessionID != "" {
		p, err := e.sessions.GetFinalResult(ctx, sessionID)
		if err == nil && p.PersonalInfo.Name != "" {
			return p
		}
	}
	return session.AssembleProfile(local...)
}

// runPhase calls the model for one phase and applies that phase's
// degradation policy. Only ErrExtractionFatal and context errors escape.
func (e *Extractor) runPhase(ctx context.Context, step, text string, facts entity.KnownFacts) (entity.PhaseResult, entity.StepMetadata, error) {
	attrs := append(common.LogAttrs(ctx), "phase", step)
	reply, err := e.caller.Call(ctx, llm.BuildPhasePrompt(step, text, facts))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, entity.StepMetadata{}, ctxErr
		}
		e.logger.Warn("pipeline.phase.degraded", append(attrs, "error", err)...)
		result, meta := degrade(step, text, err)
		return result, meta, nil
	}

	obj, strategy, err := llm.Parse(reply.Content)
	if err != nil {
		if step == constants.StepBasicInfo {
			return nil, entity.StepMetadata{}, fmt.Errorf("%w: basic info reply: %w", common.ErrExtractionFatal, err)
		}
		e.logger.Warn("llm.parse.failed", append(attrs, "model", reply.Model, "error", err)...)
		return emptyResult(step), entity.StepMetadata{
			Method: constants.MethodDefault,
			Model:  reply.Model,
			Error:  err.Error(),
		}, nil
	}
	if strategy != llm.StrategyVerbatim {
		e.logger.Info("llm.parse.strategy", append(attrs, "strategy", string(strategy), "model", reply.Model)...)
	}

	schemaErr := llm.ValidatePhase(step, obj)
	valid := schemaErr == nil
	if !valid {
		e.logger.Debug("llm.schema.invalid", append(attrs, "error", schemaErr)...)
	}

	result := decode(step, obj)
	if dropped := llm.SanitizeOptionalFields(result); len(dropped) > 0 {
		e.logger.Debug("llm.fields.dropped", append(attrs, "fields", dropped)...)
	}
	meta := entity.StepMetadata{
		Method:      constants.MethodLLM,
		Strategy:    string(strategy),
		SchemaValid: &valid,
		Model:       reply.Model,
	}

	if basic, ok := result.(*entity.BasicInfo); ok && strings.TrimSpace(basic.Name) == "" {
		guess := GuessName(text)
		if guess == "" {
			return nil, meta, fmt.Errorf("%w: no name in model reply or text", common.ErrExtractionFatal)
		}
		basic.Name = guess
		meta.Method = constants.MethodHeuristic
	}
	return result, meta, nil
}

// degrade is the per-phase fallback when the model call itself failed.
func degrade(step, text string, cause error) (entity.PhaseResult, entity.StepMetadata) {
	meta := entity.StepMetadata{Method: constants.MethodHeuristic, Error: cause.Error()}
	provider := errors.Is(cause, common.ErrProviderUnavailable) || errors.Is(cause, common.ErrCapability)

	switch step {
	case constants.StepBasicInfo:
		basic := HeuristicBasicInfo(text)
		if basic.Name == "" {
			basic.Name = constants.PlaceholderName
		}
		return basic, meta
	case constants.StepProfessional:
		if provider {
			return PlaceholderProfessional(text), meta
		}
	}
	meta.Method = constants.MethodDefault
	return emptyResult(step), meta
}

func decode(step string, obj map[string]any) entity.PhaseResult {
	switch step {
	case constants.StepBasicInfo:
		return llm.DecodeBasicInfo(obj)
	case constants.StepProfessional:
		return llm.DecodeProfessionalInfo(obj)
	default:
		return llm.DecodeAdditionalInfo(obj)
	}
}

func emptyResult(step string) entity.PhaseResult {
	switch step {
	case constants.StepBasicInfo:
		return &entity.BasicInfo{}
	case constants.StepProfessional:
		return (&entity.ProfessionalInfo{}).Normalize()
	default:
		return (&entity.AdditionalInfo{}).Normalize()
	}
}

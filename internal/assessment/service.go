// Package assessment orchestrates one evaluation end to end: input
// validation, correction, behavioral lookup, fusion, guidance, the
// profile commit, and the follow-on alerts and broadcasts. It owns the
// degradation policy: a bad modality is dropped, a failing store marks
// the result unsaved, and only the complete absence of signal rejects
// the request.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mbd888/mindfuse/internal/alerts"
	"github.com/mbd888/mindfuse/internal/correction"
	"github.com/mbd888/mindfuse/internal/emotion"
	"github.com/mbd888/mindfuse/internal/fusion"
	"github.com/mbd888/mindfuse/internal/idgen"
	"github.com/mbd888/mindfuse/internal/metrics"
	"github.com/mbd888/mindfuse/internal/profile"
	"github.com/mbd888/mindfuse/internal/retry"
	"github.com/mbd888/mindfuse/internal/traces"
	"github.com/mbd888/mindfuse/internal/validation"
)

// TextInput is the raw text-classifier result submitted for one event.
type TextInput struct {
	Content     string             `json:"content"`
	Label       string             `json:"label"`
	Confidence  float64            `json:"confidence"`
	StressScore float64            `json:"stressScore"`
	Secondary   []fusion.LabelScore `json:"secondary,omitempty"`
}

// ImageInput is the raw facial-expression result submitted for one event.
type ImageInput struct {
	Label       string             `json:"label"`
	Confidence  float64            `json:"confidence"`
	StressScore float64            `json:"stressScore"`
	Expressions []fusion.LabelScore `json:"expressions,omitempty"`
}

// Assessment is the full product of one evaluation: the fused risk
// view plus guidance, indicators, and the persistence outcome. Saved
// is false when the profile commit failed; the Warning then says so.
type Assessment struct {
	ID string `json:"id"`
	UserID string `json:"userId"`
	fusion.RiskAssessment
	Guidance      emotion.Guidance      `json:"guidance"`
	KeyIndicators emotion.KeyIndicators `json:"keyIndicators"`
	CreatedAt     time.Time             `json:"createdAt"`
	Saved         bool                  `json:"saved"`
	Warning       string                `json:"warning,omitempty"`
}

// AlertRecorder receives high-stress and crisis occurrences. Satisfied
// by *alerts.Service.
type AlertRecorder interface {
	RecordHighStress(ctx context.Context, userID string) (*alerts.Alert, error)
	RecordCrisis(ctx context.Context, userID string) (*alerts.Alert, error)
}

// Broadcaster pushes evaluation events to live subscribers. Satisfied
// by *realtime.Hub.
type Broadcaster interface {
	BroadcastAssessment(userID string, level emotion.RiskLevel, data interface{})
	BroadcastCrisis(userID string, data interface{})
	BroadcastFlagChange(userID string, raised bool, reason string)
}

// Service runs evaluations. One instance serves all requests; every
// field is set at startup and never mutated after.
type Service struct {
	correction *correction.Layer
	engine     *fusion.Engine
	store      profile.Store
	alerts     AlertRecorder
	hub        Broadcaster
	logger     *slog.Logger

	retries    int
	retryDelay time.Duration
}

// NewService creates a service over the given correction layer, fusion
// engine, and profile store.
func NewService(layer *correction.Layer, engine *fusion.Engine, store profile.Store, logger *slog.Logger) *Service {
	return &Service{
		correction: layer,
		engine:     engine,
		store:      store,
		logger:     logger,
		retries:    3,
		retryDelay: 25 * time.Millisecond,
	}
}

// WithAlerts adds an alert recorder. Alert failures are logged, never
// surfaced to the caller.
func (s *Service) WithAlerts(a AlertRecorder) *Service {
	s.alerts = a
	return s
}

// WithBroadcaster adds a realtime broadcaster.
func (s *Service) WithBroadcaster(b Broadcaster) *Service {
	s.hub = b
	return s
}

// WithRetry overrides the commit retry policy.
func (s *Service) WithRetry(attempts int, baseDelay time.Duration) *Service {
	s.retries = attempts
	s.retryDelay = baseDelay
	return s
}

// Evaluate runs one full evaluation for the user.
//
// It returns an *InputError when the user ID is malformed or no usable
// modality survives validation. Everything else degrades: an invalid
// modality is dropped with a note in its explanation, an unreachable
// profile store yields an assessment without behavioral shading, and a
// failed commit returns the assessment marked unsaved. Crisis scanning
// runs on the raw text even when the text scores failed validation.
func (s *Service) Evaluate(ctx context.Context, userID string, text *TextInput, image *ImageInput) (*Assessment, error) {
	start := time.Now()
	ctx, span := traces.StartSpan(ctx, "assessment.evaluate", traces.UserID(userID))
	defer span.End()

	if !validation.IsValidUserID(userID) {
		return nil, &InputError{Reason: "userId must be 1-64 URL-safe characters starting with a letter or digit"}
	}
	if text == nil && image == nil {
		return nil, &InputError{Reason: ErrNoSignal.Error()}
	}

	in := fusion.Input{
		Evidence:    make(map[emotion.Modality][]string),
		Unavailable: make(map[emotion.Modality]string),
	}
	indEv := emotion.IndicatorEvidence{}

	if text != nil {
		s.applyText(&in, &indEv, text)
	}
	if image != nil {
		s.applyImage(&in, &indEv, image)
	}
	s.applyBehavioral(ctx, &in, userID)

	ra, err := s.engine.Fuse(in)
	if err != nil {
		if errors.Is(err, fusion.ErrNoSignal) {
			return nil, &InputError{Reason: ErrNoSignal.Error()}
		}
		return nil, err
	}

	a := &Assessment{
		ID:             idgen.WithPrefix("asm_"),
		UserID:         userID,
		RiskAssessment: *ra,
		KeyIndicators:  emotion.Indicators(ra.Primary.Label, ra.CombinedStress, indEv),
		CreatedAt:      time.Now().UTC(),
		Saved:          true,
	}
	if ra.CrisisFlag {
		a.Guidance = emotion.CrisisGuidance(ra.Primary.Label)
	} else {
		a.Guidance = emotion.GuidanceFor(ra.Primary.Label, ra.StressCategory)
	}

	span.SetAttributes(
		traces.AssessmentID(a.ID),
		traces.RiskLevel(string(ra.RiskLevel)),
		traces.StressCategory(string(ra.StressCategory)),
		traces.CrisisFlag(ra.CrisisFlag),
		traces.Modalities(presentModalities(in)),
	)

	metrics.EvaluationsTotal.WithLabelValues(string(ra.RiskLevel)).Inc()
	metrics.ModalitiesPresent.WithLabelValues(strings.Join(presentModalities(in), "+")).Inc()
	if ra.CrisisFlag {
		metrics.CrisisDetectionsTotal.Inc()
	}
	if ra.Escalated {
		metrics.EscalationsTotal.Inc()
	}

	s.commit(ctx, a)
	s.recordAlerts(ctx, a)
	s.broadcast(a)

	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("evaluation completed",
		"assessmentId", a.ID,
		"userId", userID,
		"riskLevel", ra.RiskLevel,
		"stressCategory", ra.StressCategory,
		"crisis", ra.CrisisFlag,
		"saved", a.Saved,
	)
	return a, nil
}

// applyText validates and corrects the text modality. An invalid text
// signal is dropped, but its raw content is still scanned for crisis
// phrases.
func (s *Service) applyText(in *fusion.Input, indEv *emotion.IndicatorEvidence, text *TextInput) {
	content := validation.SanitizeText(text.Content, validation.MaxTextLength)

	if reason := textUnusable(content, text); reason != "" {
		in.Unavailable[emotion.ModalityText] = reason
		if content != "" {
			in.Crisis = s.correction.Crisis(content)
		}
		return
	}

	res := s.correction.Text(correction.TextSignal{
		Content:     content,
		Label:       text.Label,
		Confidence:  text.Confidence,
		StressScore: text.StressScore,
		Secondary:   text.Secondary,
	})
	in.Text = &res.Result
	in.Crisis = res.Crisis

	indEv.TextPresent = true
	indEv.HasStressKeywords = len(res.StressKeywords) > 0
	indEv.HasPositiveKeywords = len(res.PositiveKeywords) > 0

	var ev []string
	if res.Overridden() {
		metrics.CorrectionsTotal.WithLabelValues("text", "keyword_override").Inc()
		ev = append(ev, fmt.Sprintf("label %s overridden to %s by keyword %q",
			res.ModelLabel, res.Override.Label, res.Override.Keyword))
	}
	if len(res.StressKeywords) > 0 {
		ev = append(ev, "stress keywords: "+strings.Join(res.StressKeywords, ", "))
	}
	if len(res.PositiveKeywords) > 0 {
		ev = append(ev, "positive keywords: "+strings.Join(res.PositiveKeywords, ", "))
	}
	in.Evidence[emotion.ModalityText] = ev
}

// applyImage validates and corrects the image modality.
func (s *Service) applyImage(in *fusion.Input, indEv *emotion.IndicatorEvidence, image *ImageInput) {
	if reason := imageUnusable(image); reason != "" {
		in.Unavailable[emotion.ModalityImage] = reason
		return
	}

	res := s.correction.Image(correction.ImageSignal{
		Label:       image.Label,
		Confidence:  image.Confidence,
		StressScore: image.StressScore,
		Expressions: image.Expressions,
	})
	in.Image = &res.Result

	indEv.ImagePresent = true
	indEv.ImageLabel = res.Result.Label

	if res.Corrected() {
		metrics.CorrectionsTotal.WithLabelValues("image", res.Rule).Inc()
		in.Evidence[emotion.ModalityImage] = []string{fmt.Sprintf(
			"label %s corrected to %s (%s)", res.ModelLabel, res.Result.Label, res.Rule)}
	}
}

// applyBehavioral loads the user's profile and derives the behavioral
// signal. A store failure drops the modality instead of failing the
// evaluation; a missing profile contributes the neutral baseline.
func (s *Service) applyBehavioral(ctx context.Context, in *fusion.Input, userID string) {
	prof, err := s.store.Get(ctx, userID)
	if err != nil && !errors.Is(err, profile.ErrProfileNotFound) {
		s.logger.Warn("behavioral signal unavailable", "userId", userID, "error", err)
		in.Unavailable[emotion.ModalityBehavioral] = "Behavioral history unavailable; evaluated without it."
		return
	}
	sig := prof.Signal()
	in.Behavioral = &sig
}

// commit persists the assessment into the user's history, retrying
// conflicts. On failure the assessment is marked unsaved and returned
// anyway.
func (s *Service) commit(ctx context.Context, a *Assessment) {
	entry := profile.HistoryEntry{
		Timestamp:      a.CreatedAt,
		Label:          a.Primary.Label,
		Confidence:     a.Primary.Confidence,
		StressScore:    a.CombinedStress,
		StressCategory: a.StressCategory,
		RiskScore:      a.RiskScore,
		CrisisFlag:     a.CrisisFlag,
	}

	var res *profile.CommitResult
	err := retry.Do(ctx, s.retries, s.retryDelay, func() error {
		var cerr error
		res, cerr = s.store.Commit(ctx, a.UserID, entry)
		if cerr == nil {
			return nil
		}
		if errors.Is(cerr, profile.ErrConflict) {
			metrics.CommitConflictsTotal.Inc()
			return cerr
		}
		return retry.Permanent(cerr)
	})
	if err != nil {
		metrics.CommitFailuresTotal.Inc()
		s.logger.Error("profile commit failed, returning assessment unsaved",
			"userId", a.UserID, "assessmentId", a.ID, "error", err)
		a.Saved = false
		a.Warning = "The assessment was computed but could not be saved to the profile history."
		return
	}

	if res.FlagRaised {
		metrics.HighRiskFlagsRaised.Inc()
		s.logger.Warn("high-risk flag raised", "userId", a.UserID, "reason", res.Profile.HighRiskReason)
		if s.hub != nil {
			s.hub.BroadcastFlagChange(a.UserID, true, res.Profile.HighRiskReason)
		}
	}
	if res.FlagCleared {
		metrics.HighRiskFlagsCleared.WithLabelValues("auto").Inc()
		s.logger.Info("high-risk flag cleared", "userId", a.UserID)
		if s.hub != nil {
			s.hub.BroadcastFlagChange(a.UserID, false, "recent entries returned to low stress")
		}
	}
}

// recordAlerts feeds the admin alert queue. Crisis detections always
// record, even when the commit failed.
func (s *Service) recordAlerts(ctx context.Context, a *Assessment) {
	if s.alerts == nil {
		return
	}
	var err error
	switch {
	case a.CrisisFlag:
		_, err = s.alerts.RecordCrisis(ctx, a.UserID)
	case a.StressCategory.High():
		_, err = s.alerts.RecordHighStress(ctx, a.UserID)
	default:
		return
	}
	if err != nil {
		s.logger.Error("alert recording failed", "userId", a.UserID, "error", err)
	}
}

func (s *Service) broadcast(a *Assessment) {
	if s.hub == nil {
		return
	}
	summary := map[string]interface{}{
		"assessmentId":   a.ID,
		"riskScore":      a.RiskScore,
		"riskLevel":      a.RiskLevel,
		"stressCategory": a.StressCategory,
		"primaryEmotion": a.Primary.Label,
	}
	if a.CrisisFlag {
		s.hub.BroadcastCrisis(a.UserID, map[string]interface{}{
			"assessmentId": a.ID,
			"reason":       a.CrisisReason,
		})
	}
	s.hub.BroadcastAssessment(a.UserID, a.RiskLevel, summary)
}

// textUnusable reports why a text signal cannot feed fusion, or "".
func textUnusable(content string, t *TextInput) string {
	if content == "" {
		return "Text content was empty; text signal dropped."
	}
	if !unitScore(t.Confidence) || !unitScore(t.StressScore) {
		return "Text classifier scores failed validation; text signal dropped."
	}
	return ""
}

// imageUnusable reports why an image signal cannot feed fusion, or "".
func imageUnusable(i *ImageInput) string {
	if i.Label == "" && len(i.Expressions) == 0 {
		return "Image result carried no expression data; image signal dropped."
	}
	if !unitScore(i.Confidence) || !unitScore(i.StressScore) {
		return "Image classifier scores failed validation; image signal dropped."
	}
	return ""
}

func unitScore(v float64) bool { return v == v && v >= 0 && v <= 1 }

func presentModalities(in fusion.Input) []string {
	var out []string
	if in.Text != nil {
		out = append(out, string(emotion.ModalityText))
	}
	if in.Image != nil {
		out = append(out, string(emotion.ModalityImage))
	}
	if in.Behavioral != nil {
		out = append(out, string(emotion.ModalityBehavioral))
	}
	if len(out) == 0 {
		out = append(out, "none")
	}
	return out
}

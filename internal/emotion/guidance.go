package emotion

// Guidance is the wellness text attached to an assessment: a short
// description of the primary emotion, one tip, and a handful of coping
// suggestions. The wording escalates with the stress category so that
// high-stress users are pointed at real support, not platitudes.
type Guidance struct {
	Description string   `json:"description"`
	WellnessTip string   `json:"wellnessTip"`
	Suggestions []string `json:"suggestions"`
}

// CrisisSupportMessage replaces the wellness tip whenever a crisis
// signal fires. It must always surface, regardless of scores.
const CrisisSupportMessage = "You are not alone. If you are in immediate danger, contact your local emergency services now. You can also call or text 988 (Suicide & Crisis Lifeline) for free, confidential support, 24/7."

// descriptions are the one-line explanations shown next to the primary emotion.
var descriptions = map[Label]string{
	Happy:     "Positive emotional state with indications of contentment and well-being.",
	Sad:       "Low-mood indicators that may reflect sadness or emotional heaviness.",
	Angry:     "Elevated frustration or irritability present in the signal.",
	Anxious:   "Heightened worry or nervous-tension patterns.",
	Fearful:   "Apprehension or fear responses present in the signal.",
	Surprised: "A reaction to something unexpected; usually transient.",
	Disgusted: "An aversion response; often situational rather than persistent.",
	Neutral:   "Balanced emotional state without strong positive or negative indicators.",
}

// Describe returns the display description for a label.
func Describe(l Label) string {
	if d, ok := descriptions[l]; ok {
		return d
	}
	return descriptions[Neutral]
}

// GuidanceFor selects guidance by (emotion, stress category).
func GuidanceFor(l Label, c StressCategory) Guidance {
	return Guidance{
		Description: Describe(l),
		WellnessTip: wellnessTip(l, c),
		Suggestions: copingSuggestions(l, c),
	}
}

// CrisisGuidance is the guidance attached to crisis assessments.
func CrisisGuidance(l Label) Guidance {
	return Guidance{
		Description: Describe(l),
		WellnessTip: CrisisSupportMessage,
		Suggestions: []string{
			"Contact your local emergency services if you are in immediate danger.",
			"Call or text 988 to reach the Suicide & Crisis Lifeline.",
			"Reach out to someone you trust and let them know how you are feeling.",
			"If you can, remove yourself from anything you could use to hurt yourself.",
		},
	}
}

func wellnessTip(l Label, c StressCategory) string {
	anxiousGroup := l == Anxious || l == Fearful
	lowMoodGroup := l == Sad || l == Angry

	switch {
	case c.Low() && (l == Happy || l == Neutral):
		return "You're doing well. Keep nurturing your emotional balance and the connections that support you."
	case c == ModerateStress && anxiousGroup:
		return "Take a mindful two-minute pause to check in with how you're feeling, and ground yourself in the present moment."
	case c == ModerateStress && lowMoodGroup:
		return "Acknowledge your feelings without judgment. Reach out to someone you trust and give yourself space to process."
	case c == ModerateStress:
		return "Take a mindful break and give yourself room to process. Regular self-care keeps stress from accumulating."
	case c.High() && (anxiousGroup || lowMoodGroup):
		return "Your feelings are valid. Consider reaching out to a trusted friend, family member, or mental health professional if they persist or feel overwhelming."
	case c.High():
		return "Take care of yourself right now. Reach out for support, and consider talking with a mental health professional if this continues."
	default:
		return "Take a deep breath and give yourself credit for checking in. Seeking help is a sign of strength."
	}
}

func copingSuggestions(l Label, c StressCategory) []string {
	anxiousGroup := l == Anxious || l == Fearful
	lowMoodGroup := l == Sad || l == Angry

	switch {
	case c.Low() && (l == Happy || l == Neutral):
		return []string{
			"Maintain your current routines and self-care practices.",
			"Keep expressing gratitude and connecting with supportive people.",
			"Engage in light physical activity or hobbies you enjoy.",
			"Track positive moments in a journal to reinforce the pattern.",
		}
	case c == ModerateStress && anxiousGroup:
		return []string{
			"Practice a slow breathing exercise such as 4-7-8 breathing.",
			"Try progressive muscle relaxation or a short meditation.",
			"Write down your worries and separate what you can control.",
			"Take a short walk or do gentle stretching.",
			"Limit caffeine and protect your sleep.",
		}
	case c == ModerateStress && lowMoodGroup:
		return []string{
			"Reach out to a trusted friend or family member.",
			"Spend time on a creative activity or hobby you enjoy.",
			"Practice self-compassion and let the feeling be acknowledged.",
			"Take a break from social media or the news if it feeds the mood.",
			"Journal to process what's underneath the emotion.",
		}
	case c == ModerateStress:
		return []string{
			"Practice mindfulness or a simple breathing exercise.",
			"Take regular breaks and stretch through the day.",
			"Stay connected with supportive people.",
			"Keep regular sleep and meal times.",
		}
	case c.High() && anxiousGroup:
		return []string{
			"Use a grounding technique: name five things you can see, four you can hear, three you can feel.",
			"Practice box breathing: inhale four counts, hold four, exhale four, hold four.",
			"Reduce overwhelming inputs for a while: notifications, news, feeds.",
			"Reach out for support from friends, family, or a professional.",
			"Keep a simple, predictable routine for stability.",
		}
	case c.High() && lowMoodGroup:
		return []string{
			"Reach out for support from someone you trust.",
			"Remind yourself it is okay to feel this way; self-compassion helps.",
			"Choose gentle activities that provide comfort.",
			"Consider talking with a mental health professional.",
			"Focus on small, manageable steps rather than big changes.",
		}
	case c.High():
		return []string{
			"Use grounding techniques to stay present.",
			"Reach out for support from trusted people.",
			"Reduce overwhelming inputs and take real breaks.",
			"Consider professional support if these feelings persist.",
		}
	default:
		return []string{
			"Practice deep breathing or a short mindfulness exercise.",
			"Take a break and do something calming.",
			"Stay connected with supportive people.",
			"Keep regular sleep and meal times.",
		}
	}
}

// KeyIndicators summarizes an assessment in three plain-language axes
// shown on the dashboard. Heuristic, not diagnostic.
type KeyIndicators struct {
	MoodTone       string `json:"moodTone"`
	CognitiveClues string `json:"cognitiveClues"`
	SocialCues     string `json:"socialCues"`
}

// IndicatorEvidence carries the per-modality facts the indicator
// heuristics read. Absent modalities leave their fields zero.
type IndicatorEvidence struct {
	TextPresent         bool
	HasStressKeywords   bool
	HasPositiveKeywords bool
	ImagePresent        bool
	ImageLabel          Label
}

// Indicators derives the three indicator strings from the primary
// emotion, the combined score, and modality evidence.
func Indicators(l Label, combined float64, ev IndicatorEvidence) KeyIndicators {
	return KeyIndicators{
		MoodTone:       moodTone(l, combined),
		CognitiveClues: cognitiveClues(combined, ev),
		SocialCues:     socialCues(l, combined),
	}
}

func moodTone(l Label, combined float64) string {
	switch {
	case l == Happy:
		switch {
		case combined < 0.3:
			return "Positive"
		case combined < 0.5:
			return "Mostly Positive"
		default:
			return "Mixed"
		}
	case l == Sad:
		return "Negative"
	case l == Anxious || l == Fearful:
		return "Anxious"
	case l == Angry:
		return "Irritable"
	case l == Neutral:
		return "Stable"
	case combined < 0.5:
		return "Neutral"
	default:
		return "Negative"
	}
}

func cognitiveClues(combined float64, ev IndicatorEvidence) string {
	if ev.TextPresent {
		switch {
		case ev.HasPositiveKeywords && !ev.HasStressKeywords:
			return "Positive language and optimistic expressions"
		case ev.HasStressKeywords && combined > 0.6:
			return "Stress-related keywords and negative patterns"
		case ev.HasStressKeywords:
			return "Some stress-related keywords detected"
		}
		return "Neutral language patterns"
	}
	if ev.ImagePresent {
		switch ev.ImageLabel {
		case Happy, Surprised:
			return "Positive facial expressions"
		case Sad, Fearful, Angry:
			return "Negative facial expressions detected"
		}
	}
	return "Neutral language patterns"
}

func socialCues(l Label, combined float64) string {
	switch {
	case combined < 0.3:
		return "Connected and actively engaged"
	case combined < 0.5:
		if l == Happy || l == Neutral {
			return "Normal engagement patterns"
		}
		return "Moderate engagement, some withdrawal possible"
	case combined < 0.75:
		return "Possible withdrawal or reduced engagement"
	default:
		return "Avoidant or withdrawn patterns"
	}
}

package remedy

// GapCategory is one of the six remediation categories. Classification
// tie-breaks resolve in declaration order, so the order here is load-bearing.
type GapCategory string

const (
	CategoryKnowledge    GapCategory = "knowledge"
	CategoryConceptual   GapCategory = "conceptual"
	CategoryApplication  GapCategory = "application"
	CategoryFoundational GapCategory = "foundational"
	CategoryRetention    GapCategory = "retention"
	CategoryEngagement   GapCategory = "engagement"
)

// Categories lists every gap category in classification priority order.
var Categories = []GapCategory{
	CategoryKnowledge,
	CategoryConceptual,
	CategoryApplication,
	CategoryFoundational,
	CategoryRetention,
	CategoryEngagement,
}

// Mode names one of the nine learning modes content can be generated for.
type Mode string

const (
	ModeReading    Mode = "learn_by_reading"
	ModeWatching   Mode = "learn_by_watching"
	ModeDoing      Mode = "learn_by_doing"
	ModeDebating   Mode = "learn_by_questioning_debating"
	ModeListening  Mode = "learn_by_listening_speaking"
	ModePlaying    Mode = "learn_by_playing"
	ModeSolving    Mode = "learn_by_solving"
	ModeWriting    Mode = "learn_by_writing"
	ModeAssessment Mode = "learning_by_assessment"
)

// AllModes lists every supported learning mode.
var AllModes = []Mode{
	ModeReading,
	ModeWatching,
	ModeDoing,
	ModeDebating,
	ModeListening,
	ModePlaying,
	ModeSolving,
	ModeWriting,
	ModeAssessment,
}

func ValidMode(m Mode) bool {
	for _, known := range AllModes {
		if m == known {
			return true
		}
	}
	return false
}

// GapEvidence is the raw input describing one detected learning gap.
type GapEvidence struct {
	GapCode    string   `json:"gap_code"`
	GapType    string   `json:"gap_type,omitempty"`
	Evidence   []string `json:"evidence,omitempty"`
	GradeLevel string   `json:"grade_level,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Details    string   `json:"details,omitempty"`
}

// GapAnalysis is the classifier's verdict for one gap.
type GapAnalysis struct {
	GapCode    string      `json:"gap_code"`
	Category   GapCategory `json:"category"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning"`
}

// RemediationPlan is the planner's output for one classified gap: the mode
// sequence with interleaved checkpoints plus the content specifications each
// executor consumes.
type RemediationPlan struct {
	GapCode                  string         `json:"gap_code"`
	Category                 GapCategory    `json:"category"`
	SelectedModes            []Mode         `json:"selected_modes"`
	ContentSpecifications    map[string]any `json:"content_specifications"`
	Priority                 int            `json:"priority"`
	EstimatedDurationMinutes int            `json:"estimated_duration_minutes"`
}

// PrerequisiteTopic is one discovered prerequisite for a foundational gap.
type PrerequisiteTopic struct {
	Topic       string  `json:"topic"`
	GradeLevel  string  `json:"grade_level"`
	Priority    int     `json:"priority"`
	Description string  `json:"description,omitempty"`
	Source      string  `json:"source,omitempty"`
	SuccessRate float64 `json:"success_rate,omitempty"`
}

// LearningPath orders prerequisite topics into a mastery sequence.
type LearningPath struct {
	Topics                 []PrerequisiteTopic `json:"topics"`
	EstimatedDurationHours int                 `json:"estimated_duration_hours"`
	LearningStrategy       string              `json:"learning_strategy"`
	Checkpoints            []MasteryCheckpoint `json:"checkpoints"`
}

// MasteryCheckpoint gates progression past one prerequisite topic.
type MasteryCheckpoint struct {
	Topic            string  `json:"topic"`
	CheckType        string  `json:"check_type"`
	PassingThreshold float64 `json:"passing_threshold"`
}

package content

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Artifact is one mode executor's persisted output. Executors write their row
// before returning so a sibling branch failing later cannot lose it.
type Artifact struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	SessionID *uuid.UUID     `gorm:"type:uuid;index" json:"session_id,omitempty"`
	StudentID *uuid.UUID     `gorm:"type:uuid;index" json:"student_id,omitempty"`
	Mode      string         `gorm:"column:mode;not null;index" json:"mode"`
	Content   datatypes.JSON `gorm:"column:content;type:jsonb" json:"content"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (Artifact) TableName() string { return "artifact" }

// SessionDoc accumulates the per-mode buckets for one after-hours session.
type SessionDoc struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"session_id"`
	Topic               string         `gorm:"column:topic" json:"topic,omitempty"`
	GradeLevel          string         `gorm:"column:grade_level" json:"grade_level,omitempty"`
	Texts               datatypes.JSON `gorm:"column:texts;type:jsonb" json:"texts"`
	Videos              datatypes.JSON `gorm:"column:videos;type:jsonb" json:"videos"`
	Games               datatypes.JSON `gorm:"column:games;type:jsonb" json:"games"`
	PracticeQuestions   datatypes.JSON `gorm:"column:practice_questions;type:jsonb" json:"practice_questions"`
	AssessmentQuestions datatypes.JSON `gorm:"column:assessment_questions;type:jsonb" json:"assessment_questions"`
	Status              string         `gorm:"column:status;index" json:"status"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (SessionDoc) TableName() string { return "session_doc" }

// RemedyReport accumulates dated remediation entries for one student.
type RemedyReport struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"student_id"`
	Entries   datatypes.JSON `gorm:"column:entries;type:jsonb" json:"entries"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (RemedyReport) TableName() string { return "remedy_report" }

// RemediationPlanDoc is the persisted form of a RemediationPlan.
type RemediationPlanDoc struct {
	ID                       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID                    uuid.UUID      `gorm:"type:uuid;not null;index" json:"job_id"`
	StudentID                *uuid.UUID     `gorm:"type:uuid;index" json:"student_id,omitempty"`
	GapCode                  string         `gorm:"column:gap_code;not null;index" json:"gap_code"`
	GapCategory              string         `gorm:"column:gap_category;not null" json:"gap_category"`
	SelectedModes            datatypes.JSON `gorm:"column:selected_modes;type:jsonb" json:"selected_modes"`
	ContentSpecifications    datatypes.JSON `gorm:"column:content_specifications;type:jsonb" json:"content_specifications"`
	Priority                 int            `gorm:"column:priority;not null;default:1" json:"priority"`
	EstimatedDurationMinutes int            `gorm:"column:estimated_duration_minutes;not null;default:0" json:"estimated_duration_minutes"`
	CreatedAt                time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (RemediationPlanDoc) TableName() string { return "remediation_plan" }

// Provenance tags for prerequisite cache rows. Fallback-derived rows keep the
// same lifetime as real retrieval results; the tag exists so an operator can
// purge them selectively.
const (
	PrereqSourceVectorSearch   = "vector_search"
	PrereqSourceLLMFallback    = "llm_fallback"
	PrereqSourceStaticFallback = "static_fallback"
)

// PrerequisiteCacheEntry is the read-through cache for prerequisite
// discovery, keyed by (gap_code, grade_level, subject). Rows are never
// expired automatically.
type PrerequisiteCacheEntry struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GapCode       string         `gorm:"column:gap_code;not null;uniqueIndex:idx_prereq_key" json:"gap_code"`
	GradeLevel    string         `gorm:"column:grade_level;not null;uniqueIndex:idx_prereq_key" json:"grade_level"`
	Subject       string         `gorm:"column:subject;not null;uniqueIndex:idx_prereq_key" json:"subject"`
	Prerequisites datatypes.JSON `gorm:"column:prerequisites;type:jsonb" json:"prerequisites"`
	Source        string         `gorm:"column:source;not null" json:"source"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (PrerequisiteCacheEntry) TableName() string { return "prerequisite_cache" }

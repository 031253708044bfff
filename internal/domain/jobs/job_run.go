package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Job routes accepted by the submission surface.
const (
	RouteAHS           = "AHS"
	RouteRemedy        = "REMEDY"
	RouteRemedyContent = "REMEDY_CONTENT"
	RouteAssessment    = "ASSESSMENT"
)

// Job lifecycle statuses. Degraded completions keep StatusCompleted with a
// non-empty Error and Progress below 100; canceled is an operator action.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// JobRun is the durable job record. Rows are append-only: there is no delete
// API, terminal rows remain as an audit trail.
type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID   *uuid.UUID     `gorm:"type:uuid;index" json:"student_id,omitempty"`
	Route       string         `gorm:"column:route;not null;index" json:"route"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	EntityType  string         `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID    *uuid.UUID     `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage;not null;index" json:"stage"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Message     string         `gorm:"column:message" json:"message,omitempty"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	ResultRef   string         `gorm:"column:result_ref" json:"result_ref,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }

func ValidRoute(route string) bool {
	switch route {
	case RouteAHS, RouteRemedy, RouteRemedyContent, RouteAssessment:
		return true
	default:
		return false
	}
}

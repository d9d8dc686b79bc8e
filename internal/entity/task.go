package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusSuccess    TaskStatus = "SUCCESS"
	StatusFailure    TaskStatus = "FAILURE"
)

// Terminal reports whether no further status transition is allowed.
func (s TaskStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// TaskStage tracks pipeline progress while a task is IN_PROGRESS.
// It only moves forward and is frozen at its last value once the task
// reaches a terminal status (kept for diagnostics).
type TaskStage string

const (
	StageQueued     TaskStage = "QUEUED"
	StageSearching  TaskStage = "SEARCHING"
	StageVerifying  TaskStage = "VERIFYING"
	StageHarvesting TaskStage = "HARVESTING"
	StageExtracting TaskStage = "EXTRACTING"
	StageDone       TaskStage = "DONE"
)

type Task struct {
	ID               uuid.UUID       `json:"id"`
	Query            string          `json:"query"`
	CallbackURL      string          `json:"callback_url"`
	Status           TaskStatus      `json:"status"`
	Stage            TaskStage       `json:"stage"`
	Result           json.RawMessage `json:"result,omitempty"`
	ErrorReason      *string         `json:"error_reason,omitempty"`
	DeliveryAttempts int             `json:"delivery_attempts"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ContactInfo is the structured mapping produced by the extraction step.
type ContactInfo struct {
	Phone        string         `json:"phone"`
	Email        string         `json:"email"`
	Address      string         `json:"address"`
	DeptContacts map[string]any `json:"dept_contacts,omitempty"`
}

// ScrapeResult is the terminal result payload stored on SUCCESS.
type ScrapeResult struct {
	Query        string       `json:"query"`
	OfficialSite string       `json:"official_site"`
	Contacts     *ContactInfo `json:"contacts,omitempty"`
}

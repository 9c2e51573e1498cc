package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JobStatus represents the lifecycle state of a generation job.
// Transitions are monotonic: queued -> processing -> completed | failed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition exists out of the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Request parameter enumerations. These mirror the closed sets accepted by
// the submission surface; the executor passes them through to the backend.
const (
	RegionGluteal = "gluteal"

	ScenarioProjectionLevel1 = "projection-level-1"
	ScenarioProjectionLevel2 = "projection-level-2"
	ScenarioProjectionLevel3 = "projection-level-3"

	ViewRear = "rear"
	ViewSide = "side"
)

// ValidRegion reports whether region is an accepted value.
func ValidRegion(region string) bool {
	return region == RegionGluteal
}

// ValidScenario reports whether scenario is an accepted value.
func ValidScenario(scenario string) bool {
	switch scenario {
	case ScenarioProjectionLevel1, ScenarioProjectionLevel2, ScenarioProjectionLevel3:
		return true
	}
	return false
}

// ValidView reports whether view is an accepted value.
func ValidView(view string) bool {
	return view == ViewRear || view == ViewSide
}

// MaxErrorDetailLen bounds the stored failure description.
const MaxErrorDetailLen = 500

// TruncateError bounds a failure message to MaxErrorDetailLen runes.
func TruncateError(msg string) string {
	r := []rune(msg)
	if len(r) <= MaxErrorDetailLen {
		return msg
	}
	return string(r[:MaxErrorDetailLen])
}

// StringArray is a custom type for storing string slices as JSON in the database.
type StringArray []string

// Value implements driver.Valuer.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// ArtifactMap stores view name -> object storage key as JSON in the database.
type ArtifactMap map[string]string

// Value implements driver.Valuer.
func (m ArtifactMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *ArtifactMap) Scan(value interface{}) error {
	if value == nil {
		*m = ArtifactMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan ArtifactMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// Job represents one user-submitted generation request and its lifecycle record.
type Job struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	UserID       string      `gorm:"type:text;not null;index:idx_jobs_user" json:"user_id"`
	Region       string      `gorm:"type:text;not null" json:"region"`
	Scenario     string      `gorm:"type:text;not null" json:"scenario"`
	Views        StringArray `gorm:"type:text" json:"views"`
	Message      string      `gorm:"type:text" json:"message,omitempty"`
	Status       JobStatus   `gorm:"type:text;index:idx_jobs_status;default:queued" json:"status"`
	SourceKey    string      `gorm:"type:text;not null" json:"source_key"`
	Artifacts    ArtifactMap `gorm:"type:text" json:"artifacts"`
	ErrorMessage string      `gorm:"type:text" json:"error_message,omitempty"`
	Favorite     bool        `gorm:"default:false" json:"favorite"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string {
	return "jobs"
}

// ArtifactKey derives the deterministic storage key for one generated view.
func ArtifactKey(jobID, view string) string {
	return "simulations/" + jobID + "_" + view + ".jpg"
}

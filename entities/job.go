package entities

import (
	"database/sql/driver"
	"time"

	"clip-orchestrator/constant"
)

// Job is one clip-generation task for one source video of an order.
type Job struct {
	JobID       string             `json:"job_id"`
	SourceURL   string             `json:"source_url"`
	Status      constant.JobStatus `json:"status"`
	Clips       []Clip             `json:"clips,omitempty"`
	Error       string             `json:"error,omitempty"`
	LaunchedAt  time.Time          `json:"launched_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

func (j Job) clone() Job {
	c := j
	if j.Clips != nil {
		c.Clips = append([]Clip(nil), j.Clips...)
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

type Clip struct {
	SourceJobID     string  `json:"source_job_id"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	ViralScore      string  `json:"viral_score"`
	StorageLocation string  `json:"storage_location"`
}

type JobList []Job

func (l JobList) Value() (driver.Value, error) {
	return marshalColumn(l)
}

func (l *JobList) Scan(value interface{}) error {
	return unmarshalColumn(value, l)
}

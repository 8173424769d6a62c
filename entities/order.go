package entities

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"clip-orchestrator/constant"
)

type Customer struct {
	Name  string `json:"name" gorm:"type:varchar(255)"`
	Email string `json:"email" gorm:"type:varchar(255);not null"`
}

type SourceVideo struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}

type Settings struct {
	Format       constant.ClipFormat `json:"format" gorm:"type:varchar(20)"`
	QualityTier  string              `json:"quality_tier" gorm:"type:varchar(20)"`
	PreferLength constant.ClipLength `json:"prefer_length" gorm:"type:varchar(20)"`
	Subtitles    bool                `json:"subtitles"`
	Headline     bool                `json:"headline"`
	Language     string              `json:"language" gorm:"type:varchar(10)"`
}

// Order is the unit of durability: jobs and clips live inside the row.
type Order struct {
	PaymentID             string               `json:"payment_id" gorm:"type:varchar(191);primaryKey"`
	Customer              Customer             `json:"customer" gorm:"embedded;embeddedPrefix:customer_"`
	SourceVideos          SourceVideoList      `json:"source_videos" gorm:"type:jsonb;not null"`
	Settings              Settings             `json:"settings" gorm:"embedded;embeddedPrefix:setting_"`
	Amount                float64              `json:"amount" gorm:"type:numeric(12,2)"`
	EstimatedDeliveryDays int                  `json:"estimated_delivery_days"`
	Status                constant.OrderStatus `json:"status" gorm:"type:varchar(20);not null;index:idx_orders_status"`
	Jobs                  JobList              `json:"jobs" gorm:"type:jsonb;not null;default:'[]'"`
	Version               int64                `json:"version" gorm:"not null;default:1"`
	CreatedAt             time.Time            `json:"created_at" gorm:"type:timestamptz;not null"`
	LastUpdatedAt         time.Time            `json:"last_updated_at" gorm:"type:timestamptz;not null"`
}

func (Order) TableName() string {
	return "orders"
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.SourceVideos != nil {
		c.SourceVideos = append(SourceVideoList(nil), o.SourceVideos...)
	}
	if o.Jobs != nil {
		c.Jobs = make(JobList, len(o.Jobs))
		for i, j := range o.Jobs {
			c.Jobs[i] = j.clone()
		}
	}
	return &c
}

// JobIndex returns the position of jobID in Jobs, or -1.
func (o *Order) JobIndex(jobID string) int {
	for i := range o.Jobs {
		if o.Jobs[i].JobID == jobID {
			return i
		}
	}
	return -1
}

// Clips returns every clip of every succeeded job, in job order.
func (o *Order) Clips() []Clip {
	var clips []Clip
	for _, j := range o.Jobs {
		if j.Status == constant.JobStatusSucceeded {
			clips = append(clips, j.Clips...)
		}
	}
	return clips
}

type SourceVideoList []SourceVideo

func (l SourceVideoList) Value() (driver.Value, error) {
	return marshalColumn(l)
}

func (l *SourceVideoList) Scan(value interface{}) error {
	return unmarshalColumn(value, l)
}

func marshalColumn(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func unmarshalColumn(value interface{}, dest interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return errors.New("unsupported column type for json list")
	}
}

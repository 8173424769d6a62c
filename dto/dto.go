package dto

import (
	"bytes"
	"encoding/json"
	"time"
)

// PaymentConfirmedMessage is the verified payment event that opens an order.
type PaymentConfirmedMessage struct {
	PaymentID             string               `json:"paymentId" binding:"required"`
	Customer              CustomerPayload      `json:"customer"`
	SourceVideos          []SourceVideoPayload `json:"sourceVideos" binding:"required,min=1,max=3,dive"`
	Settings              OrderSettingsPayload `json:"settings"`
	Amount                float64              `json:"amount"`
	EstimatedDeliveryDays int                  `json:"estimatedDeliveryDays"`
}

type CustomerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"required,email"`
}

type SourceVideoPayload struct {
	URL             string `json:"url" binding:"required,url"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds"`
}

type OrderSettingsPayload struct {
	Format       string `json:"format"`
	QualityTier  string `json:"qualityTier"`
	PreferLength string `json:"preferLength"`
	Subtitles    bool   `json:"subtitles"`
	Headline     bool   `json:"headline"`
	Language     string `json:"language"`
}

// LaunchRequest is the body sent to the clipping service to start one job.
type LaunchRequest struct {
	VideoURL       string `json:"videoUrl"`
	VideoType      int    `json:"videoType"`
	Lang           string `json:"lang"`
	PreferLength   []int  `json:"preferLength"`
	TemplateID     int64  `json:"templateId,omitempty"`
	SubtitleSwitch int    `json:"subtitleSwitch"`
	HeadlineSwitch int    `json:"headlineSwitch"`
	ProjectName    string `json:"projectName"`
}

type LaunchResponse struct {
	Code      int        `json:"code"`
	ProjectID FlexibleID `json:"projectId"`
	ErrMsg    string     `json:"errMsg,omitempty"`
}

// ClipCallback is the webhook body the clipping service posts once per finished job.
type ClipCallback struct {
	Code      int            `json:"code"`
	ProjectID FlexibleID     `json:"projectId"`
	Videos    []CallbackClip `json:"videos"`
	ErrMsg    string         `json:"errMsg,omitempty"`
}

type CallbackClip struct {
	VideoID         FlexibleID `json:"videoId"`
	VideoURL        string     `json:"videoUrl"`
	VideoMsDuration int64      `json:"videoMsDuration"`
	Title           string     `json:"title"`
	ViralScore      string     `json:"viralScore"`
}

// OrderCompletedMessage is published once per completed order for the mail service.
type OrderCompletedMessage struct {
	PaymentID     string             `json:"paymentId"`
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
	Clips         []NotificationClip `json:"clips"`
	DownloadURL   string             `json:"downloadUrl"`
	CompletedAt   time.Time          `json:"completedAt"`
}

type NotificationClip struct {
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"durationSeconds"`
}

type OrderStatusResponse struct {
	PaymentID     string          `json:"paymentId"`
	Status        string          `json:"status"`
	AllJobsDone   bool            `json:"allJobsDone"`
	Jobs          []JobStatusView `json:"jobs"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

type JobStatusView struct {
	JobID     string `json:"jobId"`
	SourceURL string `json:"sourceUrl"`
	Status    string `json:"status"`
	ClipCount int    `json:"clipCount"`
	Error     string `json:"error,omitempty"`
}

type DispatchResponse struct {
	Skipped    bool `json:"skipped"`
	Scanned    int  `json:"scanned"`
	Dispatched int  `json:"dispatched"`
	Failed     int  `json:"failed"`
	Conflicts  int  `json:"conflicts"`
	Settled    int  `json:"settled"`
}

// FlexibleID accepts an identifier encoded either as a JSON string or a JSON number.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string {
	return string(f)
}

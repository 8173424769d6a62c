package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clip-orchestrator/constant"
)

func TestOrderClone_IsDeep(t *testing.T) {
	done := time.Now().UTC()
	order := &Order{
		PaymentID:    "pay_1",
		SourceVideos: SourceVideoList{{URL: "https://videos.example.com/a.mp4"}},
		Jobs: JobList{{
			JobID:       "job-a",
			Status:      constant.JobStatusSucceeded,
			Clips:       []Clip{{Title: "Hook"}},
			CompletedAt: &done,
		}},
	}

	c := order.Clone()
	c.SourceVideos[0].URL = "changed"
	c.Jobs[0].Clips[0].Title = "changed"
	*c.Jobs[0].CompletedAt = done.Add(time.Hour)
	c.Jobs[0].Status = constant.JobStatusFailed

	assert.Equal(t, "https://videos.example.com/a.mp4", order.SourceVideos[0].URL)
	assert.Equal(t, "Hook", order.Jobs[0].Clips[0].Title)
	assert.Equal(t, done, *order.Jobs[0].CompletedAt)
	assert.Equal(t, constant.JobStatusSucceeded, order.Jobs[0].Status)
}

func TestOrderClips_OnlySucceededJobs(t *testing.T) {
	order := &Order{Jobs: JobList{
		{JobID: "job-a", Status: constant.JobStatusSucceeded, Clips: []Clip{{Title: "a1"}, {Title: "a2"}}},
		{JobID: "job-b", Status: constant.JobStatusFailed},
		{JobID: "job-c", Status: constant.JobStatusSucceeded, Clips: []Clip{{Title: "c1"}}},
	}}

	clips := order.Clips()
	require.Len(t, clips, 3)
	assert.Equal(t, "a1", clips[0].Title)
	assert.Equal(t, "c1", clips[2].Title)
	assert.Equal(t, 2, order.JobIndex("job-c"))
	assert.Equal(t, -1, order.JobIndex("job-x"))
}

func TestJobList_ColumnRoundTrip(t *testing.T) {
	jobs := JobList{{JobID: "job-a", SourceURL: "https://videos.example.com/a.mp4", Status: constant.JobStatusLaunched}}

	value, err := jobs.Value()
	require.NoError(t, err)
	assert.Contains(t, value, `"job_id":"job-a"`)

	var scanned JobList
	require.NoError(t, scanned.Scan([]byte(value.(string))))
	require.Len(t, scanned, 1)
	assert.Equal(t, "job-a", scanned[0].JobID)

	var empty JobList
	value, err = empty.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", value)

	assert.Error(t, scanned.Scan(42))
}

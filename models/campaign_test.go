package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    CampaignStatus
		to      CampaignStatus
		allowed bool
	}{
		{"draft to running", CampaignStatusDraft, CampaignStatusRunning, true},
		{"draft to scheduled", CampaignStatusDraft, CampaignStatusScheduled, true},
		{"draft to paused", CampaignStatusDraft, CampaignStatusPaused, false},
		{"draft to completed", CampaignStatusDraft, CampaignStatusCompleted, false},
		{"scheduled to running", CampaignStatusScheduled, CampaignStatusRunning, true},
		{"scheduled back to draft", CampaignStatusScheduled, CampaignStatusDraft, true},
		{"scheduled to paused", CampaignStatusScheduled, CampaignStatusPaused, false},
		{"running to paused", CampaignStatusRunning, CampaignStatusPaused, true},
		{"running to completed", CampaignStatusRunning, CampaignStatusCompleted, true},
		{"running to draft", CampaignStatusRunning, CampaignStatusDraft, false},
		{"paused to running", CampaignStatusPaused, CampaignStatusRunning, true},
		{"paused to completed", CampaignStatusPaused, CampaignStatusCompleted, false},
		{"completed is terminal", CampaignStatusCompleted, CampaignStatusRunning, false},
		{"completed to draft", CampaignStatusCompleted, CampaignStatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCampaignIsDeletable(t *testing.T) {
	for _, status := range []CampaignStatus{
		CampaignStatusDraft, CampaignStatusScheduled,
		CampaignStatusPaused, CampaignStatusCompleted,
	} {
		campaign := &Campaign{Status: status}
		assert.True(t, campaign.IsDeletable(), "status %s should be deletable", status)
	}

	running := &Campaign{Status: CampaignStatusRunning}
	assert.False(t, running.IsDeletable())
}

func TestCampaignStatsConsistent(t *testing.T) {
	assert.True(t, CampaignStats{}.Consistent())
	assert.True(t, CampaignStats{Total: 10, Pending: 3, Sent: 4, Delivered: 2, Failed: 1}.Consistent())
	assert.False(t, CampaignStats{Total: 10, Pending: 3, Sent: 4}.Consistent())
}

func TestMediaTypeValid(t *testing.T) {
	assert.True(t, MediaTypeImage.Valid())
	assert.True(t, MediaTypeVideo.Valid())
	assert.True(t, MediaTypeAudio.Valid())
	assert.False(t, MediaType("gif").Valid())
	assert.False(t, MediaType("").Valid())
}

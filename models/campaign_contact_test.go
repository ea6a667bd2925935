package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignContactStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    CampaignContactStatus
		to      CampaignContactStatus
		allowed bool
	}{
		{"pending to sending", CampaignContactStatusPending, CampaignContactStatusSending, true},
		{"pending to sent", CampaignContactStatusPending, CampaignContactStatusSent, false},
		{"pending to failed", CampaignContactStatusPending, CampaignContactStatusFailed, false},
		{"sending to sent", CampaignContactStatusSending, CampaignContactStatusSent, true},
		{"sending to failed", CampaignContactStatusSending, CampaignContactStatusFailed, true},
		{"sending back to pending after interrupted run", CampaignContactStatusSending, CampaignContactStatusPending, true},
		{"sending to delivered", CampaignContactStatusSending, CampaignContactStatusDelivered, false},
		{"sent to delivered", CampaignContactStatusSent, CampaignContactStatusDelivered, true},
		{"sent back to pending", CampaignContactStatusSent, CampaignContactStatusPending, false},
		{"failed requeued as pending", CampaignContactStatusFailed, CampaignContactStatusPending, true},
		{"failed to sending", CampaignContactStatusFailed, CampaignContactStatusSending, false},
		{"delivered is terminal", CampaignContactStatusDelivered, CampaignContactStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCampaignContactStatusIsTerminal(t *testing.T) {
	assert.False(t, CampaignContactStatusPending.IsTerminal())
	assert.False(t, CampaignContactStatusSending.IsTerminal())
	assert.True(t, CampaignContactStatusSent.IsTerminal())
	assert.True(t, CampaignContactStatusDelivered.IsTerminal())
	assert.True(t, CampaignContactStatusFailed.IsTerminal())
}

// Package testing provides test utilities and database setup for testing the campaign engine
package testing

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCustomer creates an active test customer
func (tf *TestFixtures) CreateTestCustomer() (*models.Customer, error) {
	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	customer := &models.Customer{
		UUID:     uuid.New(),
		Email:    fmt.Sprintf("cliente.%s@example.com", randomDigits),
		Name:     "Cliente de Teste",
		IsActive: utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}

	return customer, nil
}

// CreateTestContacts creates count contacts owned by the customer
func (tf *TestFixtures) CreateTestContacts(customerID uint, count int) ([]*models.Contact, error) {
	contacts := make([]*models.Contact, 0, count)
	for i := 0; i < count; i++ {
		contact := &models.Contact{
			CustomerID:  customerID,
			PhoneNumber: fmt.Sprintf("+5511%09d", rand.Intn(900000000)+100000000),
			DisplayName: fmt.Sprintf("Contato %d", i+1),
		}
		if err := tf.DB.DB.Create(contact).Error; err != nil {
			return nil, fmt.Errorf("failed to create test contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// CreateTestCampaign creates a draft campaign with one recipient row per
// contact, mirroring what campaign creation persists
func (tf *TestFixtures) CreateTestCampaign(customerID uint, contacts []*models.Contact) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UUID:       uuid.New(),
		CustomerID: customerID,
		Name:       "Campanha de Teste",
		Message:    "Olá {nome}, esta é uma mensagem de teste",
		Status:     models.CampaignStatusDraft,
		AntiBan:    models.AntiBanPreset(models.ProtectionLevelModerate),
		Stats: models.CampaignStats{
			Total:   len(contacts),
			Pending: len(contacts),
		},
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}

	for _, contact := range contacts {
		row := &models.CampaignContact{
			CampaignID: campaign.ID,
			ContactID:  contact.ID,
			TrackingID: uuid.New(),
			Status:     models.CampaignContactStatusPending,
		}
		if err := tf.DB.DB.Create(row).Error; err != nil {
			return nil, fmt.Errorf("failed to create test campaign contact: %w", err)
		}
	}

	return campaign, nil
}

// SetContactStatus moves one recipient row to the given status, bypassing
// the state machine so tests can stage arbitrary histories
func (tf *TestFixtures) SetContactStatus(campaignID uint, contactID uint, status models.CampaignContactStatus) error {
	updates := map[string]any{"status": status, "updated_at": utils.UTCNow()}
	switch status {
	case models.CampaignContactStatusSent:
		updates["sent_at"] = utils.UTCNow()
	case models.CampaignContactStatusDelivered:
		updates["sent_at"] = utils.UTCNow()
		updates["delivered_at"] = utils.UTCNow()
	}
	return tf.DB.DB.Model(&models.CampaignContact{}).
		Where("campaign_id = ? AND contact_id = ?", campaignID, contactID).
		Updates(updates).Error
}

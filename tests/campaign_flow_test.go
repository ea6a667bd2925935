package tests

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velozap/disparador/app/dto"
	businessflow "github.com/velozap/disparador/business_flow"
	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/repository"
	testingutil "github.com/velozap/disparador/testing"
	"github.com/velozap/disparador/utils"
)

// stubRunner records orchestrator calls without running a send loop
type stubRunner struct {
	started []uint
	paused  []uint
}

func (r *stubRunner) StartCampaign(ctx context.Context, campaignID uint) error {
	r.started = append(r.started, campaignID)
	return nil
}

func (r *stubRunner) PauseCampaign(ctx context.Context, campaignID uint) error {
	r.paused = append(r.paused, campaignID)
	return nil
}

func newCampaignFlow(testDB *testingutil.TestDB, runner businessflow.CampaignRunner) businessflow.CampaignFlow {
	return businessflow.NewCampaignFlow(
		repository.NewCampaignRepository(testDB.DB),
		repository.NewCampaignContactRepository(testDB.DB),
		repository.NewContactRepository(testDB.DB),
		repository.NewCustomerRepository(testDB.DB),
		runner,
		testDB.DB,
	)
}

func testMetadata() *businessflow.ClientMetadata {
	return &businessflow.ClientMetadata{
		IPAddress: "127.0.0.1",
		UserAgent: "tests",
		RequestID: uuid.New().String(),
	}
}

func TestCreateCampaignFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB, &stubRunner{})

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 3)
		require.NoError(t, err)
		contactIDs := []uint{contacts[0].ID, contacts[1].ID, contacts[2].ID}

		t.Run("CreateDraftCampaign", func(t *testing.T) {
			resp, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				CustomerID: customer.ID,
				Name:       "Lançamento",
				Message:    "Olá {nome}, chegou novidade",
				ContactIDs: contactIDs,
			}, testMetadata())
			require.NoError(t, err)

			assert.Equal(t, string(models.CampaignStatusDraft), resp.Status)
			assert.Equal(t, 3, resp.Recipients)
			require.NotNil(t, resp.AntiBan.ProtectionLevel)
			assert.Equal(t, "moderate", *resp.AntiBan.ProtectionLevel)

			// Recipient rows exist and are pending
			campaignRepo := repository.NewCampaignRepository(testDB.DB)
			campaign, err := campaignRepo.ByUUID(ctx, uuid.MustParse(resp.UUID))
			require.NoError(t, err)
			require.NotNil(t, campaign)
			assert.Equal(t, models.CampaignStats{Total: 3, Pending: 3}, campaign.Stats)

			contactRepo := repository.NewCampaignContactRepository(testDB.DB)
			rows, err := contactRepo.ListPending(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Len(t, rows, 3)
			for _, row := range rows {
				assert.NotEqual(t, uuid.Nil, row.TrackingID)
			}
		})

		t.Run("DuplicateContactIDsCollapse", func(t *testing.T) {
			resp, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				CustomerID: customer.ID,
				Name:       "Duplicados",
				Message:    "Mensagem",
				ContactIDs: []uint{contacts[0].ID, contacts[0].ID, contacts[1].ID},
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, 2, resp.Recipients)
		})

		t.Run("ScheduledCampaign", func(t *testing.T) {
			scheduledAt := utils.UTCNow().Add(time.Hour)
			resp, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				CustomerID:  customer.ID,
				Name:        "Agendada",
				Message:     "Mensagem",
				ContactIDs:  contactIDs,
				ScheduledAt: &scheduledAt,
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, string(models.CampaignStatusScheduled), resp.Status)
		})

		t.Run("ScheduleTimeInPastRejected", func(t *testing.T) {
			scheduledAt := utils.UTCNow().Add(-time.Hour)
			_, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				CustomerID:  customer.ID,
				Name:        "Atrasada",
				Message:     "Mensagem",
				ContactIDs:  contactIDs,
				ScheduledAt: &scheduledAt,
			}, testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrScheduleTimeInPast)
		})

		t.Run("ForeignContactsRejected", func(t *testing.T) {
			other, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)
			foreign, err := fixtures.CreateTestContacts(other.ID, 1)
			require.NoError(t, err)

			_, err = flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				CustomerID: customer.ID,
				Name:       "Alheia",
				Message:    "Mensagem",
				ContactIDs: []uint{foreign[0].ID},
			}, testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrContactsNotFound)
		})

		t.Run("InactiveCustomerRejected", func(t *testing.T) {
			inactive, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)
			inactive.IsActive = utils.ToPtr(false)
			require.NoError(t, testDB.DB.Save(inactive).Error)

			_, err = flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				CustomerID: inactive.ID,
				Name:       "Inativa",
				Message:    "Mensagem",
				ContactIDs: contactIDs,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsAccountInactive(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestStartPauseCampaignFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		runner := &stubRunner{}
		flow := newCampaignFlow(testDB, runner)
		campaignRepo := repository.NewCampaignRepository(testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 2)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
		require.NoError(t, err)

		t.Run("StartHandsOffToRunner", func(t *testing.T) {
			resp, err := flow.StartCampaign(ctx, &dto.StartCampaignRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, string(models.CampaignStatusRunning), resp.Status)
			assert.Equal(t, []uint{campaign.ID}, runner.started)
		})

		t.Run("StartCompletedCampaignRejected", func(t *testing.T) {
			require.NoError(t, campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusCompleted, utils.UTCNowPtr()))

			_, err := flow.StartCampaign(ctx, &dto.StartCampaignRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusTransition(err))
		})

		t.Run("PauseRunningCampaign", func(t *testing.T) {
			require.NoError(t, campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusRunning, nil))

			resp, err := flow.PauseCampaign(ctx, &dto.PauseCampaignRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, string(models.CampaignStatusPaused), resp.Status)
			assert.Equal(t, []uint{campaign.ID}, runner.paused)
		})

		t.Run("PauseDraftRejected", func(t *testing.T) {
			draft, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)

			_, err = flow.PauseCampaign(ctx, &dto.PauseCampaignRequest{
				UUID:       draft.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStatusTransition(err))
		})

		t.Run("AccessDeniedForOtherCustomer", func(t *testing.T) {
			other, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			_, err = flow.StartCampaign(ctx, &dto.StartCampaignRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: other.ID,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignAccessDenied(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeleteAndRetryCampaignFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB, &stubRunner{})
		campaignRepo := repository.NewCampaignRepository(testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 3)
		require.NoError(t, err)

		t.Run("DeleteRunningCampaignRejected", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)
			require.NoError(t, campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusRunning, nil))

			_, err = flow.DeleteCampaign(ctx, &dto.DeleteCampaignRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotDeletable(err))
		})

		t.Run("DeleteDraftCampaign", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)

			_, err = flow.DeleteCampaign(ctx, &dto.DeleteCampaignRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.NoError(t, err)

			loaded, err := campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})

		t.Run("RetryFailedRequeuesAndPauses", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)
			require.NoError(t, fixtures.SetContactStatus(campaign.ID, contacts[0].ID, models.CampaignContactStatusSent))
			require.NoError(t, fixtures.SetContactStatus(campaign.ID, contacts[1].ID, models.CampaignContactStatusFailed))
			require.NoError(t, fixtures.SetContactStatus(campaign.ID, contacts[2].ID, models.CampaignContactStatusFailed))
			require.NoError(t, campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusCompleted, utils.UTCNowPtr()))

			resp, err := flow.RetryFailed(ctx, &dto.RetryFailedRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, 2, resp.Requeued)
			assert.Equal(t, string(models.CampaignStatusPaused), resp.Status)

			loaded, err := campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusPaused, loaded.Status)
			assert.Nil(t, loaded.CompletedAt)
			assert.Equal(t, models.CampaignStats{Total: 3, Pending: 2, Sent: 1}, loaded.Stats)
		})

		t.Run("RetryWithNothingFailedKeepsStatus", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)

			resp, err := flow.RetryFailed(ctx, &dto.RetryFailedRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.NoError(t, err)
			assert.Zero(t, resp.Requeued)
			assert.Equal(t, string(models.CampaignStatusDraft), resp.Status)
		})

		t.Run("RetryRunningCampaignRejected", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)
			require.NoError(t, campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusRunning, nil))

			_, err = flow.RetryFailed(ctx, &dto.RetryFailedRequest{
				UUID:       campaign.UUID.String(),
				CustomerID: customer.ID,
			}, testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrCampaignNotRetryable)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeliveryFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		campaignRepo := repository.NewCampaignRepository(testDB.DB)
		contactRepo := repository.NewCampaignContactRepository(testDB.DB)
		flow := businessflow.NewDeliveryFlow(campaignRepo, contactRepo, testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 2)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
		require.NoError(t, err)
		require.NoError(t, fixtures.SetContactStatus(campaign.ID, contacts[0].ID, models.CampaignContactStatusSent))

		rows, err := contactRepo.ByFilter(ctx, models.CampaignContactFilter{CampaignID: &campaign.ID}, "id ASC", 0, 0)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		sentRow := rows[0]

		t.Run("ConfirmDelivery", func(t *testing.T) {
			resp, err := flow.HandleDeliveryReceipt(ctx, &dto.DeliveryReceiptRequest{
				TrackingID: sentRow.TrackingID.String(),
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, string(models.CampaignContactStatusDelivered), resp.Status)

			loaded, err := contactRepo.ByTrackingID(ctx, sentRow.TrackingID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignContactStatusDelivered, loaded.Status)
			assert.NotNil(t, loaded.DeliveredAt)

			// Campaign counters are reconciled in the same transaction
			reloaded, err := campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStats{Total: 2, Pending: 1, Delivered: 1}, reloaded.Stats)
		})

		t.Run("DuplicateReceiptIsIdempotent", func(t *testing.T) {
			resp, err := flow.HandleDeliveryReceipt(ctx, &dto.DeliveryReceiptRequest{
				TrackingID: sentRow.TrackingID.String(),
			}, testMetadata())
			require.NoError(t, err)
			assert.Equal(t, string(models.CampaignContactStatusDelivered), resp.Status)
		})

		t.Run("PendingRecipientNotDeliverable", func(t *testing.T) {
			_, err := flow.HandleDeliveryReceipt(ctx, &dto.DeliveryReceiptRequest{
				TrackingID: rows[1].TrackingID.String(),
			}, testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrRecipientNotDeliverable)
		})

		t.Run("UnknownTrackingID", func(t *testing.T) {
			_, err := flow.HandleDeliveryReceipt(ctx, &dto.DeliveryReceiptRequest{
				TrackingID: uuid.New().String(),
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsRecipientNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/repository"
	testingutil "github.com/velozap/disparador/testing"
	"github.com/velozap/disparador/utils"
)

func TestCampaignRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		campaignRepo := repository.NewCampaignRepository(testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 3)
		require.NoError(t, err)

		t.Run("SaveAndLoadByUUID", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)
			require.NotZero(t, campaign.ID)

			loaded, err := campaignRepo.ByUUID(ctx, campaign.UUID)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, campaign.ID, loaded.ID)
			assert.Equal(t, models.CampaignStatusDraft, loaded.Status)
			assert.Equal(t, models.ProtectionLevelModerate, loaded.AntiBan.ProtectionLevel)
			assert.Equal(t, 3, loaded.Stats.Total)
			assert.Equal(t, 3, loaded.Stats.Pending)
		})

		t.Run("ByUUIDMissing", func(t *testing.T) {
			loaded, err := campaignRepo.ByUUID(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})

		t.Run("UpdateStatus", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)

			err = campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusRunning, nil)
			require.NoError(t, err)

			loaded, err := campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusRunning, loaded.Status)
			assert.Nil(t, loaded.CompletedAt)

			completedAt := utils.UTCNowPtr()
			err = campaignRepo.UpdateStatus(ctx, campaign.ID, models.CampaignStatusCompleted, completedAt)
			require.NoError(t, err)

			loaded, err = campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusCompleted, loaded.Status)
			assert.NotNil(t, loaded.CompletedAt)
		})

		t.Run("ListDueScheduled", func(t *testing.T) {
			due, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)
			due.Status = models.CampaignStatusScheduled
			due.ScheduledAt = utils.ToPtr(utils.UTCNow().Add(-time.Minute))
			require.NoError(t, campaignRepo.Update(ctx, due))

			future, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)
			future.Status = models.CampaignStatusScheduled
			future.ScheduledAt = utils.ToPtr(utils.UTCNow().Add(time.Hour))
			require.NoError(t, campaignRepo.Update(ctx, future))

			listed, err := campaignRepo.ListDueScheduled(ctx, utils.UTCNow(), 10)
			require.NoError(t, err)

			ids := make([]uint, 0, len(listed))
			for _, c := range listed {
				ids = append(ids, c.ID)
			}
			assert.Contains(t, ids, due.ID)
			assert.NotContains(t, ids, future.ID)
		})

		t.Run("DeleteRemovesRecipientRows", func(t *testing.T) {
			campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)

			require.NoError(t, campaignRepo.Delete(ctx, campaign.ID))

			loaded, err := campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Nil(t, loaded)

			contactRepo := repository.NewCampaignContactRepository(testDB.DB)
			rows, err := contactRepo.ListPending(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignContactRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		contactRepo := repository.NewCampaignContactRepository(testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 4)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
		require.NoError(t, err)

		t.Run("ListPendingOrdersById", func(t *testing.T) {
			rows, err := contactRepo.ListPending(ctx, campaign.ID)
			require.NoError(t, err)
			require.Len(t, rows, 4)
			for i := 1; i < len(rows); i++ {
				assert.Greater(t, rows[i].ID, rows[i-1].ID)
			}
		})

		t.Run("ByTrackingID", func(t *testing.T) {
			rows, err := contactRepo.ListPending(ctx, campaign.ID)
			require.NoError(t, err)
			require.NotEmpty(t, rows)

			found, err := contactRepo.ByTrackingID(ctx, rows[0].TrackingID)
			require.NoError(t, err)
			require.NotNil(t, found)
			assert.Equal(t, rows[0].ID, found.ID)

			missing, err := contactRepo.ByTrackingID(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, missing)
		})

		t.Run("CountByStatusAndResetFailed", func(t *testing.T) {
			require.NoError(t, fixtures.SetContactStatus(campaign.ID, contacts[0].ID, models.CampaignContactStatusSent))
			require.NoError(t, fixtures.SetContactStatus(campaign.ID, contacts[1].ID, models.CampaignContactStatusFailed))
			require.NoError(t, fixtures.SetContactStatus(campaign.ID, contacts[2].ID, models.CampaignContactStatusFailed))

			counts, err := contactRepo.CountByStatus(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, counts[models.CampaignContactStatusSent])
			assert.Equal(t, 2, counts[models.CampaignContactStatusFailed])
			assert.Equal(t, 1, counts[models.CampaignContactStatusPending])

			requeued, err := contactRepo.ResetFailed(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), requeued)

			counts, err = contactRepo.CountByStatus(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, counts[models.CampaignContactStatusFailed])
			assert.Equal(t, 3, counts[models.CampaignContactStatusPending])

			// Re-queued rows carry no stale error text
			rows, err := contactRepo.ListPending(ctx, campaign.ID)
			require.NoError(t, err)
			for _, row := range rows {
				assert.Nil(t, row.Error)
			}

			// A second pass finds nothing to reset
			requeued, err = contactRepo.ResetFailed(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Zero(t, requeued)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGormCampaignStore(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		campaignRepo := repository.NewCampaignRepository(testDB.DB)
		contactRepo := repository.NewCampaignContactRepository(testDB.DB)
		store := repository.NewGormCampaignStore(campaignRepo, contactRepo, testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 3)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
		require.NoError(t, err)

		t.Run("LoadPendingContactsIncludesContact", func(t *testing.T) {
			rows, err := store.LoadPendingContacts(ctx, campaign.ID)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			for _, row := range rows {
				require.NotNil(t, row.Contact)
				assert.NotEmpty(t, row.Contact.PhoneNumber)
			}
		})

		t.Run("ClaimAndFinish", func(t *testing.T) {
			rows, err := store.LoadPendingContacts(ctx, campaign.ID)
			require.NoError(t, err)
			require.NotEmpty(t, rows)

			row := rows[0]
			require.NoError(t, store.ClaimContact(ctx, row))
			assert.Equal(t, models.CampaignContactStatusSending, row.Status)

			// Claiming the same row twice violates the state machine
			assert.Error(t, store.ClaimContact(ctx, row))

			require.NoError(t, store.FinishContact(ctx, row, models.CampaignContactStatusSent, ""))
			loaded, err := contactRepo.ByTrackingID(ctx, row.TrackingID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignContactStatusSent, loaded.Status)
			assert.NotNil(t, loaded.SentAt)
			assert.Nil(t, loaded.Error)
		})

		t.Run("FinishWithFailureTruncatesError", func(t *testing.T) {
			rows, err := store.LoadPendingContacts(ctx, campaign.ID)
			require.NoError(t, err)
			require.NotEmpty(t, rows)

			row := rows[0]
			require.NoError(t, store.ClaimContact(ctx, row))

			long := make([]byte, 800)
			for i := range long {
				long[i] = 'x'
			}
			require.NoError(t, store.FinishContact(ctx, row, models.CampaignContactStatusFailed, string(long)))

			loaded, err := contactRepo.ByTrackingID(ctx, row.TrackingID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignContactStatusFailed, loaded.Status)
			require.NotNil(t, loaded.Error)
			assert.Len(t, *loaded.Error, utils.MaxContactErrorLength)
		})

		t.Run("ReconcileStats", func(t *testing.T) {
			stats, err := store.ReconcileStats(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, stats.Total)
			assert.Equal(t, 1, stats.Sent)
			assert.Equal(t, 1, stats.Failed)
			assert.Equal(t, 1, stats.Pending)
			assert.True(t, stats.Consistent())

			loaded, err := campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, stats, loaded.Stats)
		})

		t.Run("RequeueInterruptedResetsSendingRows", func(t *testing.T) {
			rows, err := store.LoadPendingContacts(ctx, campaign.ID)
			require.NoError(t, err)
			require.NotEmpty(t, rows)

			// Simulate a crash between the claim and the outcome
			row := rows[0]
			require.NoError(t, store.ClaimContact(ctx, row))

			requeued, err := store.RequeueInterrupted(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), requeued)

			loaded, err := contactRepo.ByTrackingID(ctx, row.TrackingID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignContactStatusPending, loaded.Status)

			// The re-offered row shows up for the next run again
			pending, err := store.LoadPendingContacts(ctx, campaign.ID)
			require.NoError(t, err)
			require.Len(t, pending, 1)
			assert.Equal(t, row.TrackingID, pending[0].TrackingID)

			requeued, err = store.RequeueInterrupted(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Zero(t, requeued)
		})

		return nil
	})
	require.NoError(t, err)
}

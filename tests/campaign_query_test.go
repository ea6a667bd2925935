package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velozap/disparador/app/dto"
	businessflow "github.com/velozap/disparador/business_flow"
	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/repository"
	testingutil "github.com/velozap/disparador/testing"
	"github.com/velozap/disparador/utils"
)

func TestListCampaignsFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB, &stubRunner{})
		campaignRepo := repository.NewCampaignRepository(testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 2)
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err := fixtures.CreateTestCampaign(customer.ID, contacts)
			require.NoError(t, err)
		}
		paused, err := fixtures.CreateTestCampaign(customer.ID, contacts)
		require.NoError(t, err)
		require.NoError(t, campaignRepo.UpdateStatus(ctx, paused.ID, models.CampaignStatusPaused, nil))

		t.Run("DefaultPagination", func(t *testing.T) {
			resp, err := flow.ListCampaigns(ctx, &dto.ListCampaignsRequest{
				CustomerID: customer.ID,
			}, testMetadata())
			require.NoError(t, err)
			assert.Len(t, resp.Items, 6)
			assert.Equal(t, int64(6), resp.Pagination.Total)
			assert.Equal(t, 1, resp.Pagination.Page)
			assert.Equal(t, 20, resp.Pagination.PageSize)
			assert.Equal(t, 1, resp.Pagination.TotalPages)
		})

		t.Run("PageWindow", func(t *testing.T) {
			resp, err := flow.ListCampaigns(ctx, &dto.ListCampaignsRequest{
				CustomerID: customer.ID,
				Page:       2,
				PageSize:   4,
			}, testMetadata())
			require.NoError(t, err)
			assert.Len(t, resp.Items, 2)
			assert.Equal(t, 2, resp.Pagination.TotalPages)
		})

		t.Run("StatusFilter", func(t *testing.T) {
			resp, err := flow.ListCampaigns(ctx, &dto.ListCampaignsRequest{
				CustomerID: customer.ID,
				Status:     utils.ToPtr("paused"),
			}, testMetadata())
			require.NoError(t, err)
			require.Len(t, resp.Items, 1)
			assert.Equal(t, paused.UUID.String(), resp.Items[0].UUID)
			assert.Equal(t, "Paused", resp.Items[0].StatusDisplay)
		})

		t.Run("OversizedPageRejected", func(t *testing.T) {
			_, err := flow.ListCampaigns(ctx, &dto.ListCampaignsRequest{
				CustomerID: customer.ID,
				PageSize:   500,
			}, testMetadata())
			require.Error(t, err)
			assert.ErrorIs(t, err, businessflow.ErrInvalidPageSize)
		})

		t.Run("OtherCustomerSeesNothing", func(t *testing.T) {
			other, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			resp, err := flow.ListCampaigns(ctx, &dto.ListCampaignsRequest{
				CustomerID: other.ID,
			}, testMetadata())
			require.NoError(t, err)
			assert.Empty(t, resp.Items)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetCampaignFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB, &stubRunner{})

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 3)
		require.NoError(t, err)
		campaign, err := fixtures.CreateTestCampaign(customer.ID, contacts)
		require.NoError(t, err)
		require.NoError(t, fixtures.SetContactStatus(campaign.ID, contacts[0].ID, models.CampaignContactStatusSent))

		resp, err := flow.GetCampaign(ctx, &dto.GetCampaignRequest{
			UUID:       campaign.UUID.String(),
			CustomerID: customer.ID,
		}, testMetadata())
		require.NoError(t, err)

		assert.Equal(t, campaign.UUID.String(), resp.UUID)
		assert.Equal(t, "Campanha de Teste", resp.Name)
		require.Len(t, resp.Recipients, 3)
		for _, recipient := range resp.Recipients {
			assert.NotEmpty(t, recipient.TrackingID)
			assert.NotEmpty(t, recipient.PhoneNumber)
		}

		// Two recipients are still pending under the moderate preset:
		// 2 * 16.5s average delay, no batch pause before 50 sends
		assert.Equal(t, int64(33), resp.EstimatedSecondsRemaining)

		t.Run("UnknownUUID", func(t *testing.T) {
			_, err := flow.GetCampaign(ctx, &dto.GetCampaignRequest{
				UUID:       "not-a-uuid",
				CustomerID: customer.ID,
			}, testMetadata())
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

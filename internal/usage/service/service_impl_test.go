package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/config"
	"github.com/smallbiznis/proppass/internal/testutil"
	"github.com/smallbiznis/proppass/internal/usage/domain"
	"github.com/smallbiznis/proppass/internal/usage/repository"
	"github.com/smallbiznis/proppass/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupUsageService(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db := testutil.OpenDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:      db,
		Log:     zaptest.NewLogger(t),
		GenID:   testutil.Node(t),
		Clock:   fake,
		Pricing: config.NewStaticPricingHolder(config.PricingConfig{
			Models: map[string]config.ModelRate{
				"fast": {PromptRate: 0.001, CompletionRate: 0.002},
			},
			StoragePerMB: 1,
			EmailRate:    0.25,
		}),
		Repo: repository.Provide(),
	})
	return svc, db, fake
}

func logCost(t *testing.T, svc domain.Service, req domain.LogRequest) domain.Event {
	t.Helper()
	event, err := svc.Log(context.Background(), req)
	require.NoError(t, err)
	return event
}

func TestMonthlySpendAndBudget(t *testing.T) {
	ctx := context.Background()
	svc, db, fake := setupUsageService(t)
	accountID := testutil.SeedAccount(t, db, testutil.Node(t), "acme")

	fake.Set(time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC))
	logCost(t, svc, domain.LogRequest{AccountID: accountID, Category: "ai_tokens", Quantity: 1, Unit: "call", UnitCost: 5})

	fake.Set(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	for _, cost := range []float64{0.10, 0.25, 1.65} {
		event := logCost(t, svc, domain.LogRequest{
			AccountID: accountID,
			Category:  "ai_tokens",
			Resource:  "chat",
			Quantity:  1,
			Unit:      "call",
			UnitCost:  cost,
		})
		assert.InDelta(t, cost, event.TotalCost, 1e-9)
		fake.Advance(time.Minute)
	}

	spend, err := svc.GetMonthlySpend(ctx, accountID)
	require.NoError(t, err)
	assert.InDelta(t, 2.00, spend, 1e-6)

	budget, err := svc.CheckBudget(ctx, accountID, "ai_tokens", 2.00)
	require.NoError(t, err)
	assert.False(t, budget.WithinBudget)
	assert.InDelta(t, 0, budget.Remaining, 1e-6)

	budget, err = svc.CheckBudget(ctx, accountID, "ai_tokens", 2.50)
	require.NoError(t, err)
	assert.True(t, budget.WithinBudget)
	assert.InDelta(t, 0.50, budget.Remaining, 1e-6)

	_, err = svc.CheckBudget(ctx, accountID, "", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidCap)
}

func TestSpendByCategory(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupUsageService(t)
	accountID := testutil.SeedAccount(t, db, testutil.Node(t), "acme")

	logCost(t, svc, domain.LogRequest{AccountID: accountID, Category: "email", Quantity: 2, Unit: "emails", UnitCost: 0.05})
	logCost(t, svc, domain.LogRequest{AccountID: accountID, Category: "Storage", Quantity: 1, Unit: "bytes", UnitCost: 0.25})
	logCost(t, svc, domain.LogRequest{AccountID: accountID, Category: "ai_tokens", Quantity: 3, Unit: "tokens", UnitCost: 0.55})

	rows, err := svc.GetMonthlySpendByCategory(ctx, accountID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ai_tokens", rows[0].Category)
	assert.InDelta(t, 1.65, rows[0].Spend, 1e-6)
	assert.Equal(t, "storage", rows[1].Category)
	assert.InDelta(t, 0.25, rows[1].Spend, 1e-6)
	assert.Equal(t, "email", rows[2].Category)
	assert.InDelta(t, 0.10, rows[2].Spend, 1e-6)
}

func TestTotalCostInvariant(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupUsageService(t)
	accountID := testutil.SeedAccount(t, db, testutil.Node(t), "acme")

	logCost(t, svc, domain.LogRequest{AccountID: accountID, Category: "storage", Quantity: 1536, Unit: "bytes", UnitCost: 0.0000125})
	logCost(t, svc, domain.LogRequest{AccountID: accountID, Category: "ai_tokens", Quantity: 0.5, Unit: "tokens", UnitCost: 3})

	history, err := svc.GetHistory(ctx, domain.HistoryRequest{AccountID: accountID})
	require.NoError(t, err)
	require.Len(t, history.Events, 2)
	for _, event := range history.Events {
		assert.InDelta(t, event.Quantity*event.UnitCost, event.TotalCost, 1e-6)
	}
}

func TestLogRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupUsageService(t)
	accountID := testutil.SeedAccount(t, db, testutil.Node(t), "acme")

	_, err := svc.Log(ctx, domain.LogRequest{Category: "email", Quantity: 1, Unit: "emails"})
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
	_, err = svc.Log(ctx, domain.LogRequest{AccountID: accountID, Quantity: 1, Unit: "emails"})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	_, err = svc.Log(ctx, domain.LogRequest{AccountID: accountID, Category: "email", Quantity: -1, Unit: "emails"})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = svc.Log(ctx, domain.LogRequest{AccountID: accountID, Category: "email", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidUnit)
	_, err = svc.Log(ctx, domain.LogRequest{AccountID: accountID, Category: "email", Quantity: 1, Unit: "emails", UnitCost: -0.1})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitCost)
}

func TestMeterPricesFromRateTable(t *testing.T) {
	ctx := context.Background()
	svc, db, _ := setupUsageService(t)
	accountID := testutil.SeedAccount(t, db, testutil.Node(t), "acme")

	event, err := svc.Meter(ctx, domain.MeterRequest{
		AccountID:        accountID,
		Category:         "ai_tokens",
		Model:            "unknown-model",
		PromptTokens:     1000,
		CompletionTokens: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", event.Resource)
	assert.Equal(t, 2000.0, event.Quantity)
	assert.InDelta(t, 3.0, event.TotalCost, 1e-6)
	assert.Equal(t, "fast", event.Metadata["priced_as"])

	event, err = svc.Meter(ctx, domain.MeterRequest{AccountID: accountID, Category: "storage", Bytes: 2 * 1024 * 1024})
	require.NoError(t, err)
	assert.Equal(t, "bytes", event.Unit)
	assert.InDelta(t, 2.0, event.TotalCost, 1e-6)

	event, err = svc.Meter(ctx, domain.MeterRequest{AccountID: accountID, Category: "email"})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, event.TotalCost, 1e-6)

	_, err = svc.Meter(ctx, domain.MeterRequest{AccountID: accountID, Category: "fax"})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestHistoryPaging(t *testing.T) {
	ctx := context.Background()
	svc, db, fake := setupUsageService(t)
	accountID := testutil.SeedAccount(t, db, testutil.Node(t), "acme")

	var ids []string
	for i := 0; i < 5; i++ {
		category := "email"
		if i%2 == 1 {
			category = "storage"
		}
		event := logCost(t, svc, domain.LogRequest{AccountID: accountID, Category: category, Quantity: 1, Unit: "u", UnitCost: 0.01})
		ids = append(ids, event.ID.String())
		fake.Advance(time.Second)
	}

	page, err := svc.GetHistory(ctx, domain.HistoryRequest{AccountID: accountID, Page: pagination.Page{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[4], page.Events[0].ID.String())
	assert.Equal(t, ids[3], page.Events[1].ID.String())

	page, err = svc.GetHistory(ctx, domain.HistoryRequest{AccountID: accountID, Page: pagination.Page{Limit: 2, Offset: 4}})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids[0], page.Events[0].ID.String())

	page, err = svc.GetHistory(ctx, domain.HistoryRequest{AccountID: accountID, Category: "storage"})
	require.NoError(t, err)
	require.Len(t, page.Events, 2)
	assert.Equal(t, 50, page.Limit)
}

package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/clock"
	"github.com/smallbiznis/proppass/internal/config"
	"github.com/smallbiznis/proppass/internal/observability/metrics"
	"github.com/smallbiznis/proppass/internal/usage/domain"
	"github.com/smallbiznis/proppass/internal/usage/liveevents"
	"github.com/smallbiznis/proppass/internal/usage/pricing"
	"github.com/smallbiznis/proppass/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Costs are stored with six fractional digits.
const costScale = 1e6

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Pricing *config.PricingHolder
	Repo    domain.Repository
	Live    *liveevents.Hub `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	pricing *config.PricingHolder
	repo    domain.Repository
	live    *liveevents.Hub
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("usage.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		pricing: p.Pricing,
		repo:    p.Repo,
		live:    p.Live,
	}
}

func (s *Service) Log(ctx context.Context, req domain.LogRequest) (domain.Event, error) {
	if req.AccountID == 0 {
		return domain.Event{}, domain.ErrInvalidAccount
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		return domain.Event{}, domain.ErrInvalidCategory
	}
	if req.Quantity < 0 || math.IsNaN(req.Quantity) || math.IsInf(req.Quantity, 0) {
		return domain.Event{}, domain.ErrInvalidQuantity
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		return domain.Event{}, domain.ErrInvalidUnit
	}
	if req.UnitCost < 0 || math.IsNaN(req.UnitCost) || math.IsInf(req.UnitCost, 0) {
		return domain.Event{}, domain.ErrInvalidUnitCost
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	quantity := roundCost(req.Quantity)
	event := domain.Event{
		ID:        s.genID.Generate(),
		AccountID: req.AccountID,
		UserID:    req.UserID,
		Category:  category,
		Resource:  strings.TrimSpace(req.Resource),
		Quantity:  quantity,
		Unit:      unit,
		UnitCost:  req.UnitCost,
		TotalCost: roundCost(quantity * req.UnitCost),
		Metadata:  metadata,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &event); err != nil {
		return domain.Event{}, err
	}

	metrics.RecordUsageCost(event.Category, event.TotalCost)
	s.live.Publish(event)
	s.log.Debug("usage logged",
		zap.String("account_id", event.AccountID.String()),
		zap.String("category", event.Category),
		zap.Float64("total_cost", event.TotalCost),
	)
	return event, nil
}

// Meter prices raw consumption with the current rate table and logs it.
func (s *Service) Meter(ctx context.Context, req domain.MeterRequest) (domain.Event, error) {
	rates := s.pricing.Get()
	category := strings.ToLower(strings.TrimSpace(req.Category))

	var quote pricing.Quote
	metadata := map[string]any{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	switch category {
	case domain.CategoryAITokens:
		if req.PromptTokens < 0 || req.CompletionTokens < 0 {
			return domain.Event{}, domain.ErrInvalidQuantity
		}
		if strings.TrimSpace(req.Model) == "" {
			return domain.Event{}, domain.ErrInvalidModel
		}
		quote = pricing.AITokens(rates, req.Model, req.PromptTokens, req.CompletionTokens)
		metadata["model"] = strings.TrimSpace(req.Model)
		metadata["priced_as"] = quote.Model
		metadata["prompt_tokens"] = req.PromptTokens
		metadata["completion_tokens"] = req.CompletionTokens
	case domain.CategoryStorage:
		if req.Bytes < 0 {
			return domain.Event{}, domain.ErrInvalidQuantity
		}
		quote = pricing.Storage(rates, req.Bytes)
	case domain.CategoryEmail:
		quote = pricing.Email(rates)
	default:
		return domain.Event{}, domain.ErrInvalidCategory
	}

	resource := req.Resource
	if strings.TrimSpace(resource) == "" && category == domain.CategoryAITokens {
		resource = quote.Model
	}

	return s.Log(ctx, domain.LogRequest{
		AccountID: req.AccountID,
		UserID:    req.UserID,
		Category:  category,
		Resource:  resource,
		Quantity:  quote.Quantity,
		Unit:      quote.Unit,
		UnitCost:  quote.UnitCost,
		Metadata:  metadata,
	})
}

func (s *Service) GetMonthlySpend(ctx context.Context, accountID snowflake.ID) (float64, error) {
	return s.monthlySpend(ctx, accountID, "")
}

func (s *Service) GetMonthlySpendByCategory(ctx context.Context, accountID snowflake.ID) ([]domain.CategorySpend, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	rows, err := s.repo.SumByCategorySince(ctx, s.db, accountID, clock.StartOfMonth(s.clock.Now()))
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Spend = roundCost(rows[i].Spend)
	}
	return rows, nil
}

// CheckBudget compares this month's spend against cap. A non-empty category
// restricts the spend to that category.
func (s *Service) CheckBudget(ctx context.Context, accountID snowflake.ID, category string, cap float64) (domain.Budget, error) {
	if cap < 0 || math.IsNaN(cap) || math.IsInf(cap, 0) {
		return domain.Budget{}, domain.ErrInvalidCap
	}
	category = strings.ToLower(strings.TrimSpace(category))

	spend, err := s.monthlySpend(ctx, accountID, category)
	if err != nil {
		return domain.Budget{}, err
	}
	return domain.Budget{
		Category:     category,
		Spend:        spend,
		Cap:          cap,
		Remaining:    roundCost(cap - spend),
		WithinBudget: spend < cap,
	}, nil
}

func (s *Service) GetHistory(ctx context.Context, req domain.HistoryRequest) (domain.HistoryResponse, error) {
	if req.AccountID == 0 {
		return domain.HistoryResponse{}, domain.ErrInvalidAccount
	}
	page := req.Page.Normalize()

	rows, err := s.repo.List(ctx, s.db, req.AccountID, strings.ToLower(strings.TrimSpace(req.Category)), page)
	if err != nil {
		return domain.HistoryResponse{}, err
	}
	events, info := pagination.Trim(rows, page)
	if events == nil {
		events = []domain.Event{}
	}
	return domain.HistoryResponse{PageInfo: info, Events: events}, nil
}

func (s *Service) monthlySpend(ctx context.Context, accountID snowflake.ID, category string) (float64, error) {
	if accountID == 0 {
		return 0, domain.ErrInvalidAccount
	}
	total, err := s.repo.SumSince(ctx, s.db, accountID, category, clock.StartOfMonth(s.clock.Now()))
	if err != nil {
		return 0, err
	}
	return roundCost(total), nil
}

func roundCost(v float64) float64 {
	return math.Round(v*costScale) / costScale
}

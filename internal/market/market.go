// Package market binds the feed adapters to the reconciliation
// engine and owns the per-market fetch lifecycle: metadata, quotes,
// trade legs, and bucketed history, each replaced wholesale on fetch.
package market

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/polyrecon/internal/logger"
	"github.com/rewired-gh/polyrecon/internal/models"
	"github.com/rewired-gh/polyrecon/internal/recon"
)

// Feed is the upstream surface the service depends on. The Polymarket
// client satisfies it; tests supply a fake.
type Feed interface {
	FetchMarket(ctx context.Context, marketID string) (*models.MarketState, error)
	FetchTrades(ctx context.Context, marketID string) ([]models.RawTrade, int, error)
	FetchHistory(ctx context.Context, tokenID string, window recon.Window) ([]models.HistoryPoint, error)
}

// Market is one market's reconciled view. Instances are not meant to
// be shared across concurrent mutators; when they are anyway,
// last-writer-wins on refresh is the accepted semantics.
type Market struct {
	feed  Feed
	state models.MarketState

	tradesYes []models.TradePoint
	tradesNo  []models.TradePoint

	historyYes *recon.LegSeries
	historyNo  *recon.LegSeries
}

// Load fetches a market's metadata and builds its reconciled view.
// The NO-side quotes are derived immediately from the YES side.
func Load(ctx context.Context, feed Feed, marketID string) (*Market, error) {
	state, err := feed.FetchMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load market %s: %w", marketID, err)
	}
	state.BidNo, state.AskNo = recon.DeriveComplement(state.BidYes, state.AskYes)
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("market %s failed validation: %w", marketID, err)
	}
	return &Market{feed: feed, state: *state}, nil
}

// State returns a copy of the current market state.
func (m *Market) State() models.MarketState {
	return m.state
}

// RefreshQuotes re-fetches metadata and overwrites status, end date,
// and the YES-side quotes, then re-derives the NO side. Token
// identifiers are immutable for a market's lifetime and are never
// touched, nor is any previously loaded trade or history data.
func (m *Market) RefreshQuotes(ctx context.Context) error {
	fresh, err := m.feed.FetchMarket(ctx, m.state.MarketID)
	if err != nil {
		return fmt.Errorf("failed to refresh quotes for %s: %w", m.state.MarketID, err)
	}

	m.state.Active = fresh.Active
	m.state.Closed = fresh.Closed
	if fresh.EndDate != nil {
		m.state.EndDate = fresh.EndDate
	}
	m.state.BidYes = fresh.BidYes
	m.state.AskYes = fresh.AskYes
	m.state.BidNo, m.state.AskNo = recon.DeriveComplement(m.state.BidYes, m.state.AskYes)
	m.state.LastUpdated = fresh.LastUpdated
	return nil
}

// LoadTrades fetches the market's trades and splits them into outcome
// legs, replacing any previously loaded set. It fails fast with
// ErrTokensUnavailable before any network call when the outcome
// tokens are unknown. The count of dropped malformed records is
// returned alongside.
func (m *Market) LoadTrades(ctx context.Context) (int, error) {
	if !m.state.HasTokens() {
		return 0, fmt.Errorf("market %s: %w", m.state.MarketID, models.ErrTokensUnavailable)
	}

	raw, droppedDecode, err := m.feed.FetchTrades(ctx, m.state.MarketID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch trades for %s: %w", m.state.MarketID, err)
	}

	yes, no, droppedPrice, err := recon.SplitTrades(raw, m.state.TokenYes, m.state.TokenNo)
	if err != nil {
		return 0, err
	}

	dropped := droppedDecode + droppedPrice
	if dropped > 0 {
		logger.Warn("Dropped %d malformed trade record(s) for market %s", dropped, m.state.MarketID)
	}

	m.tradesYes = yes
	m.tradesNo = no
	return dropped, nil
}

// LoadHistory fetches bucketed history for both outcome tokens in the
// given window and replaces any previously loaded series. The two leg
// fetches run concurrently; the result is insensitive to their order.
func (m *Market) LoadHistory(ctx context.Context, window recon.Window) error {
	if !m.state.HasTokens() {
		return fmt.Errorf("market %s: %w", m.state.MarketID, models.ErrTokensUnavailable)
	}

	var yesPoints, noPoints []models.HistoryPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		yesPoints, err = m.feed.FetchHistory(gctx, m.state.TokenYes, window)
		return err
	})
	g.Go(func() error {
		var err error
		noPoints, err = m.feed.FetchHistory(gctx, m.state.TokenNo, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to fetch history for %s: %w", m.state.MarketID, err)
	}

	m.historyYes = recon.NewLegSeries(yesPoints)
	m.historyNo = recon.NewLegSeries(noPoints)
	return nil
}

// TradeLegs returns copies of the YES and NO trade legs.
func (m *Market) TradeLegs() (yes, no []models.TradePoint) {
	yes = make([]models.TradePoint, len(m.tradesYes))
	copy(yes, m.tradesYes)
	no = make([]models.TradePoint, len(m.tradesNo))
	copy(no, m.tradesNo)
	return yes, no
}

// YesPriceSeries merges both trade legs into a single
// YES-denominated timeline. LoadTrades must have run first.
func (m *Market) YesPriceSeries() []models.SeriesPoint {
	return recon.MergeTrades(m.tradesYes, m.tradesNo)
}

// HistoryYes returns the YES token's bucketed series, or nil before
// LoadHistory has run.
func (m *Market) HistoryYes() *recon.LegSeries {
	return m.historyYes
}

// HistoryNo returns the NO token's bucketed series, or nil before
// LoadHistory has run. The series tracks the NO token's own price;
// use Invert for a YES-denominated view.
func (m *Market) HistoryNo() *recon.LegSeries {
	return m.historyNo
}

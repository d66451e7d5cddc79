// Package polymarket adapts the three upstream feeds (Gamma metadata,
// Data-API trades, CLOB price history) into typed domain records.
// Nothing loosely typed leaves this package.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/polyrecon/internal/models"
	"github.com/rewired-gh/polyrecon/internal/recon"
)

const defaultTradeLimit = 10_000

// Client provides access to the Polymarket APIs.
type Client struct {
	gammaAPIURL string
	dataAPIURL  string
	clobAPIURL  string
	httpClient  *http.Client

	maxRetries     int
	retryDelayBase time.Duration
	tradeLimit     int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client, letting tests inject a
// fake transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetries sets the retry count and linear-backoff base delay.
func WithRetries(max int, delayBase time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryDelayBase = delayBase
	}
}

// WithTradeLimit caps the number of trades requested per fetch.
func WithTradeLimit(limit int) Option {
	return func(c *Client) {
		c.tradeLimit = limit
	}
}

// NewClient creates a new Polymarket client.
func NewClient(gammaAPIURL, dataAPIURL, clobAPIURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		gammaAPIURL: gammaAPIURL,
		dataAPIURL:  dataAPIURL,
		clobAPIURL:  clobAPIURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     3,
		retryDelayBase: time.Second,
		tradeLimit:     defaultTradeLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMarket retrieves a market's metadata from the Gamma API and
// assembles a MarketState. Construction is tolerant: a bad end date
// becomes unknown and a malformed token list leaves both tokens empty
// with TokensMalformed set, so later token-dependent operations can
// refuse to run. Only the YES-side quotes are populated; deriving the
// NO side is the reconciliation engine's job.
func (c *Client) FetchMarket(ctx context.Context, marketID string) (*models.MarketState, error) {
	w, err := c.fetchGammaMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	question := w.Question
	if question == "" {
		question = w.Title
	}

	state := &models.MarketState{
		MarketID:    marketID,
		Question:    question,
		Active:      w.Active,
		Closed:      w.Closed,
		EndDate:     parseEndDate(w.EndDate),
		BidYes:      w.BestBid,
		AskYes:      w.BestAsk,
		LastUpdated: time.Now(),
	}

	if len(w.Events) > 0 {
		state.EventID = w.Events[0].ID
		state.EventTitle = w.Events[0].Title
	}

	tokenYes, tokenNo, err := parseTokenList(w.ClobTokenIDs)
	if err != nil {
		state.TokensMalformed = true
	} else {
		state.TokenYes = tokenYes
		state.TokenNo = tokenNo
	}

	return state, nil
}

// fetchGammaMarket gets the raw market record. The endpoint returns
// either a list or a single object depending on the query; both are
// tolerated.
func (c *Client) fetchGammaMarket(ctx context.Context, marketID string) (*gammaMarket, error) {
	q := url.Values{}
	q.Set("id", marketID)

	var raw json.RawMessage
	if err := c.getJSON(ctx, c.gammaAPIURL, "/markets", q, &raw); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []gammaMarket
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("failed to decode market list: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("market %s not found", marketID)
		}
		return &list[0], nil
	}

	var m gammaMarket
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode market: %w", err)
	}
	return &m, nil
}

// FetchTrades retrieves the market's raw trade list from the
// Data-API. Records that fail structural decoding are dropped
// individually and counted; price coercion is left to the splitter so
// its per-record tolerance stays in one place.
func (c *Client) FetchTrades(ctx context.Context, marketID string) ([]models.RawTrade, int, error) {
	q := url.Values{}
	q.Set("market", marketID)
	q.Set("limit", strconv.Itoa(c.tradeLimit))
	q.Set("offset", "0")

	var raw []json.RawMessage
	if err := c.getJSON(ctx, c.dataAPIURL, "/trades", q, &raw); err != nil {
		return nil, 0, err
	}

	trades := make([]models.RawTrade, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		var t dataTrade
		if err := json.Unmarshal(r, &t); err != nil || t.Asset == "" || t.Timestamp == 0 {
			dropped++
			continue
		}
		trades = append(trades, models.RawTrade{
			Asset:     t.Asset,
			Price:     rawPriceString(t.Price),
			Timestamp: time.Unix(t.Timestamp, 0).UTC(),
		})
	}
	return trades, dropped, nil
}

// FetchHistory retrieves one token's bucketed price history in the
// query shape selected by the window. An empty upstream series is an
// empty result; a bucket missing its timestamp or price fails the
// whole fetch, since a partial bucket series cannot be trusted.
func (c *Client) FetchHistory(ctx context.Context, tokenID string, window recon.Window) ([]models.HistoryPoint, error) {
	q := url.Values{}
	q.Set("market", tokenID)

	switch w := window.(type) {
	case recon.AbsoluteWindow:
		q.Set("startTs", strconv.FormatInt(w.Start.Unix(), 10))
		q.Set("endTs", strconv.FormatInt(w.End.Unix(), 10))
		q.Set("fidelity", strconv.Itoa(recon.SnapBucket(w.BucketMinutes)))
	case recon.RelativeWindow:
		q.Set("interval", recon.IntervalFor(w.Lookback))
		q.Set("fidelity", strconv.Itoa(w.BucketMinutes))
	default:
		return nil, fmt.Errorf("unsupported history window %T", window)
	}

	var resp historyResponse
	if err := c.getJSON(ctx, c.clobAPIURL, "/prices-history", q, &resp); err != nil {
		return nil, err
	}

	points := make([]models.HistoryPoint, 0, len(resp.History))
	for i, hp := range resp.History {
		if hp.T == nil || hp.P == nil {
			return nil, fmt.Errorf("history point %d for token %s: %w", i, tokenID, models.ErrMalformedHistoryPayload)
		}
		points = append(points, models.HistoryPoint{
			Timestamp: time.Unix(*hp.T, 0).UTC(),
			Price:     *hp.P,
		})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points, nil
}

// SearchMarkets runs a Gamma public-search and flattens the returned
// events into per-market hits with event context attached.
func (c *Client) SearchMarkets(ctx context.Context, query string, limitPerType int) ([]SearchHit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit_per_type", strconv.Itoa(limitPerType))
	q.Set("search_tags", "false")
	q.Set("search_profiles", "false")
	q.Set("optimized", "true")

	var resp searchResponse
	if err := c.getJSON(ctx, c.gammaAPIURL, "/public-search", q, &resp); err != nil {
		return nil, err
	}

	var hits []SearchHit
	for _, ev := range resp.Events {
		for _, m := range ev.Markets {
			question := m.Question
			if question == "" {
				question = m.Title
			}
			hits = append(hits, SearchHit{
				MarketID:   m.ID,
				Question:   question,
				EventID:    ev.ID,
				EventTitle: ev.Title,
				Active:     m.Active,
				Closed:     m.Closed,
				EndDate:    m.EndDate,
			})
		}
	}
	return hits, nil
}

// getJSON performs a GET with linear-backoff retry on transport
// errors and 5xx responses, then decodes the body into v.
func (c *Client) getJSON(ctx context.Context, baseURL, path string, query url.Values, v any) error {
	u, err := url.Parse(baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	u.RawQuery = query.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("request failed with status %d: %w", resp.StatusCode, models.ErrUpstreamUnavailable)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %v: %w", lastErr, models.ErrUpstreamUnavailable)
}

// parseTokenList decodes the clobTokenIds field, a JSON array encoded
// as a string: index 0 is the YES token, index 1 the NO token.
func parseTokenList(raw string) (tokenYes, tokenNo string, err error) {
	if raw == "" {
		return "", "", models.ErrMalformedTokenList
	}
	var tokens []string
	if jsonErr := json.Unmarshal([]byte(raw), &tokens); jsonErr != nil {
		return "", "", fmt.Errorf("%w: %v", models.ErrMalformedTokenList, jsonErr)
	}
	if len(tokens) < 2 || tokens[0] == "" || tokens[1] == "" {
		return "", "", fmt.Errorf("%w: need two token ids, got %d", models.ErrMalformedTokenList, len(tokens))
	}
	return tokens[0], tokens[1], nil
}

// parseEndDate accepts an ISO-8601 timestamp with a Z suffix; any
// parse failure yields unknown rather than an error, so metadata
// assembly never fails on a bad date alone.
func parseEndDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// rawPriceString strips JSON quoting from a raw price value; the
// feed emits both bare numbers and quoted decimal strings.
func rawPriceString(raw json.RawMessage) string {
	s := string(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

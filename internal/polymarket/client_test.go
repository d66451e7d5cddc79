package polymarket

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rewired-gh/polyrecon/internal/models"
	"github.com/rewired-gh/polyrecon/internal/recon"
)

// newTestClient points every feed at the same fake server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.URL, srv.URL, 5*time.Second,
		WithRetries(2, time.Millisecond))
}

const marketListBody = `[{
	"id": "668032",
	"question": "Will X happen?",
	"active": true,
	"closed": false,
	"endDate": "2026-12-31T12:00:00Z",
	"clobTokenIds": "[\"tok-yes\", \"tok-no\"]",
	"bestBid": 0.62,
	"bestAsk": 0.65,
	"events": [{"id": "ev-1", "title": "Some event"}]
}]`

func TestFetchMarket(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" || r.URL.Query().Get("id") != "668032" {
			t.Errorf("unexpected request: %s %s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(marketListBody))
	})

	state, err := c.FetchMarket(t.Context(), "668032")
	if err != nil {
		t.Fatalf("FetchMarket: %v", err)
	}
	if state.Question != "Will X happen?" {
		t.Errorf("question = %q", state.Question)
	}
	if state.TokenYes != "tok-yes" || state.TokenNo != "tok-no" {
		t.Errorf("tokens = %q, %q", state.TokenYes, state.TokenNo)
	}
	if state.TokensMalformed {
		t.Error("tokens unexpectedly flagged malformed")
	}
	if state.EventID != "ev-1" || state.EventTitle != "Some event" {
		t.Errorf("event = %q, %q", state.EventID, state.EventTitle)
	}
	if state.EndDate == nil || state.EndDate.Year() != 2026 {
		t.Errorf("end date = %v", state.EndDate)
	}
	if state.BidYes == nil || state.BidYes.String() != "0.62" {
		t.Errorf("bidYes = %v", state.BidYes)
	}
	if state.AskYes == nil || state.AskYes.String() != "0.65" {
		t.Errorf("askYes = %v", state.AskYes)
	}
	// The adapter never fills the derived side.
	if state.BidNo != nil || state.AskNo != nil {
		t.Error("NO-side quotes should not be set by the adapter")
	}
}

func TestFetchMarket_SingleObjectResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "1", "question": "Q?", "clobTokenIds": "[\"a\",\"b\"]"}`))
	})

	state, err := c.FetchMarket(t.Context(), "1")
	if err != nil {
		t.Fatalf("FetchMarket: %v", err)
	}
	if state.TokenYes != "a" || state.TokenNo != "b" {
		t.Errorf("tokens = %q, %q", state.TokenYes, state.TokenNo)
	}
}

func TestFetchMarket_MalformedTokenList(t *testing.T) {
	bodies := []string{
		`[{"id": "1", "question": "Q?", "clobTokenIds": "not json"}]`,
		`[{"id": "1", "question": "Q?", "clobTokenIds": "[\"only-one\"]"}]`,
		`[{"id": "1", "question": "Q?"}]`,
	}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		// Construction still succeeds; the state just carries no tokens.
		state, err := c.FetchMarket(t.Context(), "1")
		if err != nil {
			t.Fatalf("FetchMarket: %v", err)
		}
		if !state.TokensMalformed {
			t.Errorf("body %q: expected TokensMalformed", body)
		}
		if state.HasTokens() {
			t.Errorf("body %q: tokens should be absent", body)
		}
	}
}

func TestFetchMarket_BadEndDate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "1", "question": "Q?", "endDate": "soon", "clobTokenIds": "[\"a\",\"b\"]"}]`))
	})

	state, err := c.FetchMarket(t.Context(), "1")
	if err != nil {
		t.Fatalf("FetchMarket should tolerate a bad date: %v", err)
	}
	if state.EndDate != nil {
		t.Errorf("end date = %v, want unknown", state.EndDate)
	}
}

func TestFetchMarket_EmptyList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	if _, err := c.FetchMarket(t.Context(), "missing"); err == nil {
		t.Error("expected error for unknown market")
	}
}

func TestFetchTrades(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trades" || r.URL.Query().Get("market") != "668032" {
			t.Errorf("unexpected request: %s %s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`[
			{"asset": "tok-yes", "price": 0.4, "timestamp": 100},
			{"asset": "tok-no", "price": "0.55", "timestamp": 200},
			{"asset": "", "price": 0.5, "timestamp": 300},
			{"price": 0.5}
		]`))
	})

	trades, dropped, err := c.FetchTrades(t.Context(), "668032")
	if err != nil {
		t.Fatalf("FetchTrades: %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if len(trades) != 2 {
		t.Fatalf("len = %d, want 2", len(trades))
	}
	if trades[0].Price != "0.4" || trades[1].Price != "0.55" {
		t.Errorf("prices = %q, %q", trades[0].Price, trades[1].Price)
	}
	if !trades[0].Timestamp.Equal(time.Unix(100, 0)) {
		t.Errorf("timestamp = %v", trades[0].Timestamp)
	}
}

func TestFetchHistory_AbsoluteWindow(t *testing.T) {
	var gotQuery url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"history": [{"t": 200, "p": 0.61}, {"t": 100, "p": 0.6}]}`))
	})

	window := recon.AbsoluteWindow{
		Start:         time.Unix(1000, 0),
		End:           time.Unix(2000, 0),
		BucketMinutes: 7, // unsupported, snaps to 5
	}
	points, err := c.FetchHistory(t.Context(), "tok-yes", window)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}

	if gotQuery.Get("market") != "tok-yes" {
		t.Errorf("market = %q", gotQuery.Get("market"))
	}
	if gotQuery.Get("startTs") != "1000" || gotQuery.Get("endTs") != "2000" {
		t.Errorf("range = %q..%q", gotQuery.Get("startTs"), gotQuery.Get("endTs"))
	}
	if gotQuery.Get("fidelity") != "5" {
		t.Errorf("fidelity = %q, want snapped 5", gotQuery.Get("fidelity"))
	}

	if len(points) != 2 {
		t.Fatalf("len = %d, want 2", len(points))
	}
	if !points[0].Timestamp.Before(points[1].Timestamp) {
		t.Error("points not sorted ascending")
	}
}

func TestFetchHistory_RelativeWindow(t *testing.T) {
	var gotQuery url.Values
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"history": []}`))
	})

	window := recon.RelativeWindow{Lookback: 2 * time.Hour, BucketMinutes: 5}
	points, err := c.FetchHistory(t.Context(), "tok-no", window)
	if err != nil {
		t.Fatalf("FetchHistory: %v", err)
	}
	if gotQuery.Get("interval") != "6h" {
		t.Errorf("interval = %q, want 6h (smallest covering 2h)", gotQuery.Get("interval"))
	}
	if gotQuery.Get("fidelity") != "5" {
		t.Errorf("fidelity = %q", gotQuery.Get("fidelity"))
	}
	if len(points) != 0 {
		t.Errorf("empty upstream history should be an empty series, got %d", len(points))
	}
}

func TestFetchHistory_MalformedPayload(t *testing.T) {
	bodies := []string{
		`{"history": [{"t": 100}]}`,
		`{"history": [{"p": 0.5}]}`,
		`{"history": [{"t": 100, "p": 0.5}, {}]}`,
	}
	for _, body := range bodies {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})
		_, err := c.FetchHistory(t.Context(), "tok", recon.RelativeWindow{Lookback: time.Hour, BucketMinutes: 5})
		if !errors.Is(err, models.ErrMalformedHistoryPayload) {
			t.Errorf("body %q: err = %v, want ErrMalformedHistoryPayload", body, err)
		}
	}
}

func TestSearchMarkets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public-search" || r.URL.Query().Get("q") != "bitcoin" {
			t.Errorf("unexpected request: %s %s", r.URL.Path, r.URL.RawQuery)
		}
		w.Write([]byte(`{"events": [
			{"id": "ev-1", "title": "BTC above 100k", "markets": [
				{"id": "m-1", "question": "Above 100k by June?", "active": true},
				{"id": "m-2", "question": "Above 100k by July?", "active": true}
			]},
			{"id": "ev-2", "title": "BTC ETF", "markets": [
				{"id": "m-3", "question": "ETF approved?", "closed": true}
			]}
		]}`))
	})

	hits, err := c.SearchMarkets(t.Context(), "bitcoin", 25)
	if err != nil {
		t.Fatalf("SearchMarkets: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("len = %d, want 3", len(hits))
	}
	if hits[0].EventID != "ev-1" || hits[0].EventTitle != "BTC above 100k" {
		t.Errorf("event context missing: %+v", hits[0])
	}
	if hits[2].MarketID != "m-3" || !hits[2].Closed {
		t.Errorf("hit = %+v", hits[2])
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	})

	if _, _, err := c.FetchTrades(t.Context(), "1"); err != nil {
		t.Fatalf("expected retry to recover: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestDoRequest_UpstreamUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, _, err := c.FetchTrades(t.Context(), "1")
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
	}

	c404 := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err = c404.FetchMarket(t.Context(), "1")
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Errorf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

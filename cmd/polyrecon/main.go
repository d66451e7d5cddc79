package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rewired-gh/polyrecon/internal/config"
	"github.com/rewired-gh/polyrecon/internal/logger"
	"github.com/rewired-gh/polyrecon/internal/market"
	"github.com/rewired-gh/polyrecon/internal/models"
	"github.com/rewired-gh/polyrecon/internal/polymarket"
	"github.com/rewired-gh/polyrecon/internal/price"
	"github.com/rewired-gh/polyrecon/internal/recon"
	"github.com/rewired-gh/polyrecon/internal/storage"
	"github.com/rewired-gh/polyrecon/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
	marketIDs  = flag.String("market", "", "Comma-separated market ids to reconcile")
	searchTerm = flag.String("search", "", "Search markets by text instead of reconciling")
	mode       = flag.String("mode", "trades", "Series source: trades or history")
	windowKind = flag.String("window", "rel", "History window shape: rel or abs")
	hours      = flag.Int("hours", 0, "Lookback hours (overrides config)")
	fidelity   = flag.Int("fidelity", 0, "Bucket size in minutes (overrides config)")
	startStr   = flag.String("start", "", "Absolute window start (RFC3339)")
	endStr     = flag.String("end", "", "Absolute window end (RFC3339)")
	tailN      = flag.Int("tail", 10, "Series points to print")
	save       = flag.Bool("save", false, "Persist a snapshot of each reconciled market")
	notify     = flag.Bool("notify", false, "Send a Telegram summary per market")
	limit      = flag.Int("limit", 25, "Search results per type")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	client := polymarket.NewClient(
		cfg.Polymarket.GammaAPIURL,
		cfg.Polymarket.DataAPIURL,
		cfg.Polymarket.CLOBAPIURL,
		cfg.Polymarket.Timeout,
		polymarket.WithRetries(cfg.Polymarket.MaxRetries, cfg.Polymarket.RetryDelayBase),
		polymarket.WithTradeLimit(cfg.Polymarket.TradeLimit),
	)

	ctx := context.Background()

	if *searchTerm != "" {
		if err := runSearch(ctx, client, *searchTerm, *limit); err != nil {
			logger.Fatal("Search failed: %v", err)
		}
		return
	}

	ids := splitIDs(*marketIDs)
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "usage: polyrecon -market <id>[,<id>...] | -search <text>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	var store *storage.Storage
	if *save {
		store, err = storage.New(cfg.Storage.MaxSnapshots, cfg.Storage.DBPath)
		if err != nil {
			logger.Fatal("Failed to initialize storage: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close storage: %v", err)
			}
		}()
	}

	var notifier *telegram.Client
	if *notify {
		if !cfg.Telegram.Enabled {
			logger.Fatal("Telegram notifications requested but disabled in config")
		}
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
	}

	window, err := buildWindow(cfg)
	if err != nil {
		logger.Fatal("Invalid window: %v", err)
	}

	// Each market is reconciled on its own; one failing market never
	// aborts the rest of the batch.
	failures := 0
	for _, id := range ids {
		if err := runMarket(ctx, client, store, notifier, id, window); err != nil {
			failures++
			logger.Error("Market %s failed: %v", id, err)
		}
	}
	if failures == len(ids) {
		os.Exit(1)
	}
}

func runMarket(
	ctx context.Context,
	client *polymarket.Client,
	store *storage.Storage,
	notifier *telegram.Client,
	marketID string,
	window recon.Window,
) error {
	start := time.Now()
	logger.Info("Reconciling market %s", marketID)

	m, err := market.Load(ctx, client, marketID)
	if err != nil {
		return err
	}

	var series []models.SeriesPoint
	switch *mode {
	case "trades":
		dropped, err := m.LoadTrades(ctx)
		if err != nil {
			return err
		}
		series = m.YesPriceSeries()
		logger.Info("Merged %d trade points (%d dropped) for %s", len(series), dropped, marketID)
	case "history":
		if err := m.LoadHistory(ctx, window); err != nil {
			return err
		}
		logger.Info("Loaded %d YES / %d NO history points for %s",
			m.HistoryYes().Len(), m.HistoryNo().Len(), marketID)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}

	printMarket(m, series)

	state := m.State()
	if store != nil {
		id, err := store.SaveSnapshot(&state, series)
		if err != nil {
			return fmt.Errorf("failed to save snapshot: %w", err)
		}
		logger.Info("Saved snapshot %s for market %s", id, marketID)
	}
	if notifier != nil {
		if err := notifier.SendSummary(&state, series); err != nil {
			logger.Warn("Failed to send Telegram summary for %s: %v", marketID, err)
		}
	}

	logger.Debug("Market %s reconciled in %v", marketID, time.Since(start))
	return nil
}

func runSearch(ctx context.Context, client *polymarket.Client, query string, limit int) error {
	hits, err := client.SearchMarkets(ctx, query, limit)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Printf("No markets found for %q.\n", query)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARKET\tQUESTION\tEVENT\tSTATUS\tEND")
	for _, h := range hits {
		status := "active"
		if h.Closed {
			status = "closed"
		} else if !h.Active {
			status = "inactive"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.MarketID, h.Question, h.EventTitle, status, h.EndDate)
	}
	return w.Flush()
}

func printMarket(m *market.Market, series []models.SeriesPoint) {
	state := m.State()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Market\t%s\n", state.MarketID)
	fmt.Fprintf(w, "Question\t%s\n", state.Question)
	if state.EventTitle != "" {
		fmt.Fprintf(w, "Event\t%s (id=%s)\n", state.EventTitle, state.EventID)
	}
	fmt.Fprintf(w, "Active\t%v\tClosed\t%v\n", state.Active, state.Closed)
	if state.EndDate != nil {
		fmt.Fprintf(w, "Ends\t%s\n", state.EndDate.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "Ends\tunknown\n")
	}
	fmt.Fprintf(w, "YES bid/ask\t%s / %s\n", quoteOrDash(state.BidYes), quoteOrDash(state.AskYes))
	fmt.Fprintf(w, "NO bid/ask\t%s / %s\n", quoteOrDash(state.BidNo), quoteOrDash(state.AskNo))
	w.Flush()

	if len(series) > 0 {
		fmt.Printf("\nYES price series (%d points, last %d):\n", len(series), min(*tailN, len(series)))
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tYES PRICE\tSOURCE")
		for _, p := range tail(series, *tailN) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Timestamp.UTC().Format(time.RFC3339), p.YesPrice, p.Source)
		}
		tw.Flush()
	}

	if hy := m.HistoryYes(); hy != nil {
		fmt.Printf("\nBucketed history: %d YES points, %d NO points\n", hy.Len(), m.HistoryNo().Len())
	}
	fmt.Println()
}

func quoteOrDash(p *price.Price) string {
	if p == nil {
		return "-"
	}
	return p.String()
}

func tail(series []models.SeriesPoint, n int) []models.SeriesPoint {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// buildWindow translates CLI flags and config defaults into the
// history request shape. Trades mode ignores it.
func buildWindow(cfg *config.Config) (recon.Window, error) {
	bucket := cfg.History.FidelityMinutes
	if *fidelity > 0 {
		bucket = *fidelity
	}
	lookbackHours := cfg.History.LookbackHours
	if *hours > 0 {
		lookbackHours = *hours
	}

	switch *windowKind {
	case "rel":
		return recon.RelativeWindow{
			Lookback:      time.Duration(lookbackHours) * time.Hour,
			BucketMinutes: bucket,
		}, nil
	case "abs":
		end := time.Now()
		if *endStr != "" {
			t, err := time.Parse(time.RFC3339, *endStr)
			if err != nil {
				return nil, fmt.Errorf("invalid -end: %w", err)
			}
			end = t
		}
		start := end.Add(-time.Duration(lookbackHours) * time.Hour)
		if *startStr != "" {
			t, err := time.Parse(time.RFC3339, *startStr)
			if err != nil {
				return nil, fmt.Errorf("invalid -start: %w", err)
			}
			start = t
		}
		return recon.AbsoluteWindow{Start: start, End: end, BucketMinutes: bucket}, nil
	default:
		return nil, fmt.Errorf("unknown window shape %q", *windowKind)
	}
}

package recon

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/polyrecon/internal/models"
	"github.com/rewired-gh/polyrecon/internal/price"
)

// SplitTrades partitions a market's raw trade list into YES and NO
// legs by matching each trade's asset id against the outcome tokens.
//
// Trades whose asset matches neither token are excluded silently;
// upstream groups unrelated instruments under a shared market id.
// A trade whose price fails to parse is dropped on its own and
// counted, so one bad record never blocks the batch. Both legs are
// returned sorted ascending by timestamp.
func SplitTrades(raw []models.RawTrade, tokenYes, tokenNo string) (yes, no []models.TradePoint, dropped int, err error) {
	if tokenYes == "" || tokenNo == "" {
		return nil, nil, 0, fmt.Errorf("cannot split trades: %w", models.ErrTokensUnavailable)
	}

	for _, t := range raw {
		var leg models.Leg
		switch t.Asset {
		case tokenYes:
			leg = models.LegYes
		case tokenNo:
			leg = models.LegNo
		default:
			continue
		}

		p, perr := price.Parse(t.Price)
		if perr != nil {
			dropped++
			continue
		}

		point := models.TradePoint{Timestamp: t.Timestamp, Price: p, Leg: leg}
		if leg == models.LegYes {
			yes = append(yes, point)
		} else {
			no = append(no, point)
		}
	}

	sortByTimestamp(yes)
	sortByTimestamp(no)
	return yes, no, dropped, nil
}

func sortByTimestamp(points []models.TradePoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
}

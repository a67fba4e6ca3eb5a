package executors

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"stockbot/src/model"
)

var (
	// Tickers are alphanumeric; "." and "-" only as share-class separators (BRK.B, BF-B).
	symbolPattern = regexp.MustCompile(`^[A-Z0-9]+([.-][A-Z0-9]+)*$`)
	// Sector names are words such as "Consumer Cyclical" or "Oil & Gas".
	sectorPattern = regexp.MustCompile(`^[A-Za-z0-9]+([ &-]+[A-Za-z0-9]+)*$`)
)

// sanitizeFilters drops filter entries that are not plain tickers or sector
// names. Dropped entries are logged and never fail the run.
func sanitizeFilters(log *logrus.Entry, cfg model.TradingConfig) model.TradingConfig {
	cfg.Symbols = keepValid(log, "symbol", cfg.Symbols, symbolPattern, true)
	cfg.Sectors = keepValid(log, "sector", cfg.Sectors, sectorPattern, false)
	return cfg
}

func keepValid(log *logrus.Entry, kind string, items []string, pattern *regexp.Regexp, upper bool) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, raw := range items {
		v := strings.TrimSpace(raw)
		if upper {
			v = strings.ToUpper(v)
		}
		if v == "" || !pattern.MatchString(v) {
			log.WithFields(logrus.Fields{
				"kind":  kind,
				"value": raw,
			}).Warn("dropping invalid filter entry")
			continue
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Package recommend ranks menu items from static reference tables. The
// engine is a pure function of its tables: no model calls, no state.
package recommend

import (
	"sort"
	"strings"
)

// DefaultTopK bounds a recommendation list unless the caller says
// otherwise.
const DefaultTopK = 5

// maxPerCategory caps how many accepted recommendations one product
// category may contribute in apriori mode.
const maxPerCategory = 2

type Engine struct {
	apriori    CoOccurrenceTable
	aprioriKey map[string]string // lower-cased item name -> table key
	popularity []PopularityRow
	products   []string
	categories []string
}

func NewEngine(table CoOccurrenceTable, popularity []PopularityRow) *Engine {
	aprioriKey := make(map[string]string, len(table))
	for key := range table {
		aprioriKey[strings.ToLower(key)] = key
	}

	products := make([]string, 0, len(popularity))
	seenCategory := map[string]struct{}{}
	var categories []string
	for _, row := range popularity {
		products = append(products, row.Product)
		if _, ok := seenCategory[row.Category]; !ok {
			seenCategory[row.Category] = struct{}{}
			categories = append(categories, row.Category)
		}
	}

	return &Engine{
		apriori:    table,
		aprioriKey: aprioriKey,
		popularity: popularity,
		products:   products,
		categories: categories,
	}
}

// DefaultEngine builds an engine over the embedded reference tables.
func DefaultEngine() (*Engine, error) {
	table, rows, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	return NewEngine(table, rows), nil
}

// Apriori recommends companions for the given ordered item names.
// Candidate lists of every known item are concatenated, sorted by
// confidence descending (stable, concatenation order breaks ties),
// deduplicated by product name in sorted order, capped at two accepted
// recommendations per category and cut off at topK; the cap and the
// cutoff are evaluated in the same pass.
//
// Items already in the caller's order are NOT excluded here; that
// boundary belongs to the caller.
func (e *Engine) Apriori(orderedItems []string, topK int) []string {
	if topK <= 0 {
		topK = DefaultTopK
	}

	var candidates []CoOccurrence
	for _, item := range orderedItems {
		key, ok := e.aprioriKey[strings.ToLower(strings.TrimSpace(item))]
		if !ok {
			continue
		}
		candidates = append(candidates, e.apriori[key]...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	accepted := make([]string, 0, topK)
	seen := map[string]struct{}{}
	perCategory := map[string]int{}
	for _, candidate := range candidates {
		key := strings.ToLower(candidate.Product)
		if _, dup := seen[key]; dup {
			continue
		}
		if perCategory[candidate.Category] >= maxPerCategory {
			continue
		}
		seen[key] = struct{}{}
		perCategory[candidate.Category]++
		accepted = append(accepted, candidate.Product)
		if len(accepted) >= topK {
			break
		}
	}
	return accepted
}

// Popular recommends by transaction frequency, optionally filtered to
// the given categories. An empty filtered set yields an empty slice.
func (e *Engine) Popular(categories []string, topK int) []string {
	if topK <= 0 {
		topK = DefaultTopK
	}

	filter := map[string]struct{}{}
	for _, category := range categories {
		category = strings.ToLower(strings.TrimSpace(category))
		if category != "" {
			filter[category] = struct{}{}
		}
	}

	rows := make([]PopularityRow, 0, len(e.popularity))
	for _, row := range e.popularity {
		if len(filter) > 0 {
			if _, ok := filter[strings.ToLower(row.Category)]; !ok {
				continue
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Transactions > rows[j].Transactions
	})

	if len(rows) > topK {
		rows = rows[:topK]
	}
	names := make([]string, len(rows))
	for i, row := range rows {
		names[i] = row.Product
	}
	return names
}

// Products lists every product in the popularity table, in table order.
func (e *Engine) Products() []string {
	return append([]string(nil), e.products...)
}

// Categories lists the distinct product categories, in first-seen order.
func (e *Engine) Categories() []string {
	return append([]string(nil), e.categories...)
}

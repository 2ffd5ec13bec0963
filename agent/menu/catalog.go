// Package menu holds the static product catalog. Lookups are
// case-insensitive everywhere; prices come from this table, not from
// the model.
package menu

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed data/menu.json
var menuRaw []byte

type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Catalog struct {
	items  []Item
	byName map[string]Item
}

func New(items []Item) *Catalog {
	byName := make(map[string]Item, len(items))
	kept := make([]Item, 0, len(items))
	for _, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" || item.Price < 0 {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := byName[key]; dup {
			continue
		}
		item.Name = name
		byName[key] = item
		kept = append(kept, item)
	}
	return &Catalog{items: kept, byName: byName}
}

// Default returns the catalog embedded at build time.
func Default() (*Catalog, error) {
	var items []Item
	if err := json.Unmarshal(menuRaw, &items); err != nil {
		return nil, fmt.Errorf("decode embedded menu: %w", err)
	}
	return New(items), nil
}

// Lookup finds an item by case-insensitive name.
func (c *Catalog) Lookup(name string) (Item, bool) {
	item, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return item, ok
}

func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c *Catalog) Len() int {
	return len(c.items)
}

// PromptLines renders the catalog the way order prompts expect it,
// one "Name - $price" line per item.
func (c *Catalog) PromptLines() string {
	var b strings.Builder
	for _, item := range c.items {
		fmt.Fprintf(&b, "%s - $%.2f\n", item.Name, item.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}

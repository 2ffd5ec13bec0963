package menu

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	recommendx "github.com/merryway/baristabot/agent/recommend"
)

// PostgresConfig points at the reference-data database. The tables are
// read once at startup; conversation state never touches this store.
type PostgresConfig struct {
	DSN     string        `envconfig:"DSN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// StoreOption customizes PostgresStore.
type StoreOption func(*PostgresStore)

func WithDB(db *bun.DB) StoreOption {
	return func(s *PostgresStore) {
		if db != nil {
			s.db = db
		}
	}
}

// PostgresStore loads the catalog, co-occurrence, and popularity
// tables from Postgres via bun.
type PostgresStore struct {
	db      *bun.DB
	timeout time.Duration
}

type menuItemRow struct {
	bun.BaseModel `bun:"table:menu_items"`

	Name  string  `bun:"name"`
	Price float64 `bun:"price"`
}

type aprioriRuleRow struct {
	bun.BaseModel `bun:"table:apriori_rules"`

	Item       string  `bun:"item"`
	Product    string  `bun:"product"`
	Category   string  `bun:"product_category"`
	Confidence float64 `bun:"confidence"`
	Rank       int     `bun:"rank"`
}

type popularityTableRow struct {
	bun.BaseModel `bun:"table:popularity_recommendations"`

	Product      string `bun:"product"`
	Category     string `bun:"product_category"`
	Transactions int    `bun:"number_of_transactions"`
}

func NewPostgresStore(cfg PostgresConfig, opts ...StoreOption) (*PostgresStore, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	store := &PostgresStore{timeout: timeout}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}

	if store.db == nil {
		dsn := strings.TrimSpace(cfg.DSN)
		if dsn == "" {
			return nil, errors.New("postgres dsn is required")
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(dsn),
			pgdriver.WithTimeout(timeout),
		))
		store.db = bun.NewDB(sqldb, pgdialect.New())
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// LoadCatalog reads every menu item.
func (s *PostgresStore) LoadCatalog(ctx context.Context) (*Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []menuItemRow
	if err := s.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load menu items: %w", err)
	}

	items := make([]Item, len(rows))
	for i, row := range rows {
		items[i] = Item{Name: row.Name, Price: row.Price}
	}
	return New(items), nil
}

// LoadCoOccurrence reads the apriori rules grouped per ordered item,
// mined order preserved via the rank column.
func (s *PostgresStore) LoadCoOccurrence(ctx context.Context) (recommendx.CoOccurrenceTable, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []aprioriRuleRow
	if err := s.db.NewSelect().Model(&rows).Order("item ASC", "rank ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load apriori rules: %w", err)
	}

	table := recommendx.CoOccurrenceTable{}
	for _, row := range rows {
		table[row.Item] = append(table[row.Item], recommendx.CoOccurrence{
			Product:    row.Product,
			Category:   row.Category,
			Confidence: row.Confidence,
		})
	}
	return table, nil
}

// LoadPopularity reads the transaction-frequency rows.
func (s *PostgresStore) LoadPopularity(ctx context.Context) ([]recommendx.PopularityRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []popularityTableRow
	if err := s.db.NewSelect().Model(&rows).Order("number_of_transactions DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("load popularity rows: %w", err)
	}

	out := make([]recommendx.PopularityRow, len(rows))
	for i, row := range rows {
		out[i] = recommendx.PopularityRow{
			Product:      row.Product,
			Category:     row.Category,
			Transactions: row.Transactions,
		}
	}
	return out, nil
}

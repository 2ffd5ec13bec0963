package recommend

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	//go:embed data/apriori_recommendations.json
	aprioriRaw []byte

	//go:embed data/popularity_recommendation.csv
	popularityRaw []byte
)

// CoOccurrence is one apriori candidate mined from transaction data.
type CoOccurrence struct {
	Product    string  `json:"product"`
	Category   string  `json:"product_category"`
	Confidence float64 `json:"confidence"`
}

// CoOccurrenceTable maps an ordered item to its candidate list, kept
// in mined order.
type CoOccurrenceTable map[string][]CoOccurrence

// PopularityRow is one transaction-frequency row.
type PopularityRow struct {
	Product      string `json:"product"`
	Category     string `json:"product_category"`
	Transactions int    `json:"number_of_transactions"`
}

// DefaultTables decodes the reference data embedded at build time.
func DefaultTables() (CoOccurrenceTable, []PopularityRow, error) {
	var table CoOccurrenceTable
	if err := json.Unmarshal(aprioriRaw, &table); err != nil {
		return nil, nil, fmt.Errorf("decode embedded apriori table: %w", err)
	}

	rows, err := ParsePopularityCSV(bytes.NewReader(popularityRaw))
	if err != nil {
		return nil, nil, err
	}
	return table, rows, nil
}

// ParsePopularityCSV reads product,product_category,number_of_transactions
// rows, header included.
func ParsePopularityCSV(r io.Reader) ([]PopularityRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var rows []PopularityRow
	header := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read popularity csv: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("popularity csv row has %d columns, want 3", len(record))
		}
		transactions, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("popularity csv transactions %q: %w", record[2], err)
		}
		rows = append(rows, PopularityRow{
			Product:      strings.TrimSpace(record[0]),
			Category:     strings.TrimSpace(record[1]),
			Transactions: transactions,
		})
	}
	return rows, nil
}

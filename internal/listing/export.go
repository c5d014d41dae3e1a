package listing

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ExportCSV renders every listing as CSV, ordered alphabetically by title so
// the sheet matches how pharmacy staff scan printed inventories.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, error) {
	listings, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	coll := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(listings, func(i, j int) bool {
		return coll.CompareString(listings[i].Title, listings[j].Title) < 0
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"item_code", "title", "category", "abc_category",
		"min_stock_level", "max_stock_level", "current_stock",
		"stock_level_status", "stock_level_percentage", "status",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, l := range listings {
		record := []string{
			l.ItemCode,
			l.Title,
			l.Category,
			string(l.ABCCategory),
			strconv.Itoa(l.MinStockLevel),
			strconv.Itoa(l.MaxStockLevel),
			strconv.Itoa(l.CurrentStock),
			string(l.StockLevelStatus),
			fmt.Sprintf("%.1f", l.StockLevelPercentage),
			string(l.Status),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

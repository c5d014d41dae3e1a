package listing

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExportCSVSortsByTitleCaseInsensitive(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeStocks{quantities: map[int64]int{}}, nil)

	titles := []string{"zinc oxide", "Bandages", "alcohol swabs", "Catheters"}
	for i, title := range titles {
		_, err := repo.Create(context.Background(), Listing{
			ItemCode: "MED-" + string(rune('A'+i)),
			Title:    title,
			Category: "Consumables",
			Status:   StatusActive,
		})
		require.NoError(t, err)
	}

	data, err := svc.ExportCSV(context.Background())
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	require.Equal(t, "item_code", records[0][0])

	var got []string
	for _, rec := range records[1:] {
		got = append(got, rec[1])
	}
	require.Equal(t, []string{"alcohol swabs", "Bandages", "Catheters", "zinc oxide"}, got)
}

package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khmelevskiy/daily-dish-hub/internal/menu"
)

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("table")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	format, err = ParseFormat("JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatTable, format)

	_, err = ParseFormat("csv")
	require.Error(t, err)
}

func TestRenderMenuTableGroupsAndSorts(t *testing.T) {
	soups := "Soups"
	mains := "Mains"
	portion := "portion"

	snap := &menu.Snapshot{
		ID: 3,
		Items: []menu.Item{
			{ID: 1, Name: "Khinkali", Price: 12.5, CategoryTitle: &mains, UnitName: &portion},
			{ID: 2, Name: "Kharcho", Price: 9, CategoryTitle: &soups},
			{ID: 3, Name: "Bread", Price: 1.5},
			{ID: 4, Name: "Ajapsandali", Price: 8, CategoryTitle: &mains},
		},
	}

	rendered := RenderMenuTable(snap, "₾")
	require.Contains(t, rendered, "Khinkali")
	require.Contains(t, rendered, "12.50 ₾")
	require.Contains(t, rendered, "4 item(s)")

	// Uncategorized items land in "Other" and sort last.
	require.Contains(t, rendered, "Other")
	otherIdx := strings.Index(rendered, "Other")
	mainsIdx := strings.Index(rendered, "Mains")
	soupsIdx := strings.Index(rendered, "Soups")
	require.Greater(t, otherIdx, mainsIdx)
	require.Greater(t, otherIdx, soupsIdx)

	// Within a category, items sort by name.
	require.Less(t, strings.Index(rendered, "Ajapsandali"), strings.Index(rendered, "Khinkali"))
}

func TestRenderMenuTableNil(t *testing.T) {
	require.Equal(t, "", RenderMenuTable(nil, "₾"))
}

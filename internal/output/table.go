package output

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/khmelevskiy/daily-dish-hub/internal/menu"
)

// RenderMenuTable renders a menu snapshot as an ASCII table, grouped the way
// the public API groups it: by category title, "Other" for uncategorized
// items, items sorted by name within a category.
func RenderMenuTable(snap *menu.Snapshot, currencySymbol string) string {
	if snap == nil {
		return ""
	}

	items := make([]menu.Item, len(snap.Items))
	copy(items, snap.Items)
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := categoryTitle(items[i]), categoryTitle(items[j])
		if ci != cj {
			if ci == "Other" {
				return false
			}
			if cj == "Other" {
				return true
			}
			return ci < cj
		}
		return items[i].Name < items[j].Name
	})

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Category", "Dish", "Price", "Unit"})

	for _, item := range items {
		unit := ""
		if item.UnitName != nil {
			unit = *item.UnitName
		}
		t.AppendRow(table.Row{
			categoryTitle(item),
			item.Name,
			fmt.Sprintf("%.2f %s", item.Price, currencySymbol),
			unit,
		})
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("%d item(s)", len(items)),
		"",
		"",
	})

	return t.Render()
}

func categoryTitle(item menu.Item) string {
	if item.CategoryTitle != nil && *item.CategoryTitle != "" {
		return *item.CategoryTitle
	}
	return "Other"
}

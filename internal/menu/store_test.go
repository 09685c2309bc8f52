package menu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMenu = `
id: 1
created_at: 2026-01-05T08:00:00Z
start_date: "2026-01-05 00:00"
end_date: "2026-01-05 23:59"
items:
  - id: 1
    name: Khinkali
    price: 12.5
    category_title: Main dishes
    image_id: 1
  - id: 2
    name: Lemonade
    price: 3
    category_title: Drinks
images:
  - id: 1
    file: khinkali.jpg
    filename: khinkali-original.jpg
`

func writeMenu(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStoreReload(t *testing.T) {
	store := NewStore(writeMenu(t, sampleMenu))

	_, ok := store.Snapshot()
	assert.False(t, ok, "snapshot must be absent before the first reload")

	require.NoError(t, store.Reload())

	snap, ok := store.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 1, snap.ID)
	assert.Len(t, snap.Items, 2)
	assert.Equal(t, "2026-01-05 00:00", snap.StartDate)

	image, found := snap.ImageByID(1)
	require.True(t, found)
	assert.Equal(t, "khinkali.jpg", image.File)
}

func TestStoreReloadKeepsPreviousSnapshotOnFailure(t *testing.T) {
	path := writeMenu(t, sampleMenu)
	store := NewStore(path)
	require.NoError(t, store.Reload())

	require.NoError(t, os.WriteFile(path, []byte("items: [not a map"), 0o644))
	require.Error(t, store.Reload())

	snap, ok := store.Snapshot()
	require.True(t, ok, "failed reload must not drop the served snapshot")
	assert.Equal(t, 1, snap.ID)
}

func TestStoreReloadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, store.Reload())

	store = NewStore("")
	require.Error(t, store.Reload())
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"duplicate item id", `
items:
  - {id: 1, name: A, price: 1}
  - {id: 1, name: B, price: 2}
`},
		{"negative price", `
items:
  - {id: 1, name: A, price: -1}
`},
		{"unknown image reference", `
items:
  - {id: 1, name: A, price: 1, image_id: 9}
`},
		{"traversing image file", `
images:
  - {id: 1, file: ../../etc/passwd}
`},
		{"bad start date", `
start_date: "05.01.2026"
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

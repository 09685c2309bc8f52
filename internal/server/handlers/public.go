package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/khmelevskiy/daily-dish-hub/internal/errors"
	"github.com/khmelevskiy/daily-dish-hub/internal/menu"
)

// SiteSettings is the static metadata served by GET /public/settings.
type SiteSettings struct {
	SiteName        string `json:"site_name"`
	SiteDescription string `json:"site_description"`
	CurrencyCode    string `json:"currency_code"`
	CurrencySymbol  string `json:"currency_symbol"`
	CurrencyLocale  string `json:"currency_locale"`
}

// Public serves the read-only public surface: the daily menu, its validity
// dates, site settings, and stored image files.
type Public struct {
	Menu      *menu.Store
	Site      SiteSettings
	ImagesDir string

	// Clock is the time source for menu-date payloads; nil means time.Now.
	Clock func() time.Time
}

// MenuDateInfo mirrors the admin backend's menu-date payload.
type MenuDateInfo struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	CurrentDate string `json:"current_date"`
}

// MenuCategory groups the menu items sharing one category title.
type MenuCategory struct {
	Title string      `json:"title"`
	Items []menu.Item `json:"items"`
}

// DailyMenuResponse is the GET /public/daily-menu payload.
type DailyMenuResponse struct {
	ID         int            `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	MenuDate   MenuDateInfo   `json:"menu_date"`
	Categories []MenuCategory `json:"categories"`
}

// MenuDateResponse is the GET /public/menu-date payload.
type MenuDateResponse struct {
	MenuDate MenuDateInfo `json:"menu_date"`
}

// DailyMenuHandler serves the current menu snapshot grouped by category.
func (p *Public) DailyMenuHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := p.Menu.Snapshot()
	if !ok {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Menu is not published yet"))
		return
	}

	response := DailyMenuResponse{
		ID:         snap.ID,
		CreatedAt:  snap.CreatedAt,
		MenuDate:   p.menuDate(snap),
		Categories: groupByCategory(snap.Items),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// MenuDateHandler serves only the validity dates of the current menu.
func (p *Public) MenuDateHandler(w http.ResponseWriter, r *http.Request) {
	snap, ok := p.Menu.Snapshot()
	if !ok {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Menu is not published yet"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(MenuDateResponse{MenuDate: p.menuDate(snap)})
}

// SettingsHandler serves the public site settings.
func (p *Public) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(p.Site)
}

// ImageHandler serves a stored image file by snapshot image ID with cache
// headers. Conditional requests are handled by http.ServeContent off the
// file's modification time.
func (p *Public) ImageHandler(w http.ResponseWriter, r *http.Request) {
	imageID, err := strconv.Atoi(chi.URLParam(r, "imageID"))
	if err != nil || imageID <= 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("Image ID must be a positive integer"))
		return
	}

	snap, ok := p.Menu.Snapshot()
	if !ok {
		respondWithError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Menu is not published yet"))
		return
	}

	image, found := snap.ImageByID(imageID)
	if !found {
		respondWithError(w, r, apperrors.NewNotFoundError("Image not found"))
		return
	}

	path := filepath.Join(p.ImagesDir, filepath.Clean("/"+image.File))
	file, err := os.Open(path)
	if err != nil {
		respondWithError(w, r, apperrors.NewNotFoundError("Image not found"))
		return
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		respondWithError(w, r, apperrors.NewNotFoundError("Image not found"))
		return
	}

	name := image.Filename
	if name == "" {
		name = image.File
	}
	w.Header().Set("Content-Disposition", "inline; filename="+sanitizeFilename(name))
	w.Header().Set("Cache-Control", "public, max-age=604800")

	http.ServeContent(w, r, image.File, info.ModTime(), file)
}

func (p *Public) menuDate(snap *menu.Snapshot) MenuDateInfo {
	now := time.Now
	if p.Clock != nil {
		now = p.Clock
	}
	return MenuDateInfo{
		StartDate:   snap.StartDate,
		EndDate:     snap.EndDate,
		CurrentDate: now().UTC().Format(menu.DateLayout),
	}
}

// groupByCategory buckets items by category title, sorted by title with
// uncategorized items last; items within a category sort by name.
func groupByCategory(items []menu.Item) []MenuCategory {
	const uncategorized = "Other"

	buckets := make(map[string][]menu.Item)
	for _, item := range items {
		title := uncategorized
		if item.CategoryTitle != nil && strings.TrimSpace(*item.CategoryTitle) != "" {
			title = *item.CategoryTitle
		}
		buckets[title] = append(buckets[title], item)
	}

	categories := make([]MenuCategory, 0, len(buckets))
	for title, bucket := range buckets {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].Name < bucket[j].Name })
		categories = append(categories, MenuCategory{Title: title, Items: bucket})
	}
	sort.Slice(categories, func(i, j int) bool {
		if categories[i].Title == uncategorized {
			return false
		}
		if categories[j].Title == uncategorized {
			return true
		}
		return categories[i].Title < categories[j].Title
	})
	return categories
}

var unsafeHeaderChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFilename strips anything that could break out of a
// Content-Disposition header value.
func sanitizeFilename(name string) string {
	name = unsafeHeaderChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	if len(name) > 70 {
		name = name[:70]
	}
	return name
}

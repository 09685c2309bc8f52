package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/khmelevskiy/daily-dish-hub/internal/menu"
)

func loadedMenuStore(t *testing.T) *menu.Store {
	t.Helper()

	snapshot := `
id: 7
created_at: 2026-01-05T08:00:00Z
start_date: "2026-01-05 00:00"
end_date: "2026-01-05 23:59"
items:
  - {id: 2, name: Lobio, price: 9, category_title: Main dishes}
  - {id: 1, name: Khinkali, price: 12.5, category_title: Main dishes, image_id: 1}
  - {id: 3, name: Tarragon soda, price: 3}
images:
  - {id: 1, file: khinkali.jpg, filename: khinkali-original.jpg}
`
	path := filepath.Join(t.TempDir(), "menu.yaml")
	if err := os.WriteFile(path, []byte(snapshot), 0o644); err != nil {
		t.Fatal(err)
	}
	store := menu.NewStore(path)
	if err := store.Reload(); err != nil {
		t.Fatalf("failed to load menu fixture: %v", err)
	}
	return store
}

func testClock() time.Time {
	return time.Date(2026, 1, 5, 12, 30, 0, 0, time.UTC)
}

func TestDailyMenuHandler(t *testing.T) {
	p := &Public{Menu: loadedMenuStore(t), Clock: testClock}

	req := httptest.NewRequest(http.MethodGet, "/public/daily-menu", nil)
	rec := httptest.NewRecorder()
	p.DailyMenuHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp DailyMenuResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.ID != 7 {
		t.Fatalf("expected menu id 7, got %d", resp.ID)
	}
	if resp.MenuDate.CurrentDate != "2026-01-05 12:30" {
		t.Fatalf("unexpected current_date %q", resp.MenuDate.CurrentDate)
	}
	if len(resp.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(resp.Categories))
	}
	// Named categories sort first; items within a category sort by name.
	if resp.Categories[0].Title != "Main dishes" || resp.Categories[1].Title != "Other" {
		t.Fatalf("unexpected category order: %q, %q", resp.Categories[0].Title, resp.Categories[1].Title)
	}
	if resp.Categories[0].Items[0].Name != "Khinkali" {
		t.Fatalf("expected Khinkali first, got %q", resp.Categories[0].Items[0].Name)
	}
}

func TestDailyMenuHandlerWithoutSnapshot(t *testing.T) {
	p := &Public{Menu: menu.NewStore(filepath.Join(t.TempDir(), "absent.yaml"))}

	req := httptest.NewRequest(http.MethodGet, "/public/daily-menu", nil)
	rec := httptest.NewRecorder()
	p.DailyMenuHandler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}

func TestMenuDateHandler(t *testing.T) {
	p := &Public{Menu: loadedMenuStore(t), Clock: testClock}

	req := httptest.NewRequest(http.MethodGet, "/public/menu-date", nil)
	rec := httptest.NewRecorder()
	p.MenuDateHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp MenuDateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MenuDate.StartDate != "2026-01-05 00:00" {
		t.Fatalf("unexpected start_date %q", resp.MenuDate.StartDate)
	}
	if resp.MenuDate.EndDate != "2026-01-05 23:59" {
		t.Fatalf("unexpected end_date %q", resp.MenuDate.EndDate)
	}
}

func TestSettingsHandler(t *testing.T) {
	p := &Public{
		Menu: loadedMenuStore(t),
		Site: SiteSettings{
			SiteName:        "Canteen Menu",
			SiteDescription: "Fresh and tasty dishes every day",
			CurrencyCode:    "GEL",
			CurrencySymbol:  "₾",
			CurrencyLocale:  "en-GE",
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/public/settings", nil)
	rec := httptest.NewRecorder()
	p.SettingsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["site_name"] != "Canteen Menu" {
		t.Fatalf("unexpected site_name %q", resp["site_name"])
	}
	if resp["currency_symbol"] != "₾" {
		t.Fatalf("unexpected currency_symbol %q", resp["currency_symbol"])
	}
}

func imageRequest(t *testing.T, p *Public, id string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/images/{imageID}", p.ImageHandler)

	req := httptest.NewRequest(http.MethodGet, "/images/"+id, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestImageHandler(t *testing.T) {
	imagesDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(imagesDir, "khinkali.jpg"), []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := &Public{Menu: loadedMenuStore(t), ImagesDir: imagesDir}

	rec := imageRequest(t, p, "1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "jpeg-bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=604800" {
		t.Fatalf("unexpected Cache-Control %q", cc)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "inline; filename=khinkali-original.jpg" {
		t.Fatalf("unexpected Content-Disposition %q", cd)
	}
}

func TestImageHandlerUnknownID(t *testing.T) {
	p := &Public{Menu: loadedMenuStore(t), ImagesDir: t.TempDir()}

	if rec := imageRequest(t, p, "99"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
	if rec := imageRequest(t, p, "abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

package menu

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the format used for menu validity bounds.
const DateLayout = "2006-01-02 15:04"

// Snapshot is one published daily menu: the items on offer, the date range
// the menu is valid for, and the image files referenced by the items.
type Snapshot struct {
	ID        int       `yaml:"id" json:"id"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	StartDate string    `yaml:"start_date" json:"start_date"`
	EndDate   string    `yaml:"end_date" json:"end_date"`
	Items     []Item    `yaml:"items" json:"items"`
	Images    []Image   `yaml:"images" json:"-"`
}

// Item is a dish on the menu. Optional fields stay nil so public payloads
// carry explicit nulls, matching the admin backend's serialization.
type Item struct {
	ID            int     `yaml:"id" json:"id"`
	Name          string  `yaml:"name" json:"name"`
	Price         float64 `yaml:"price" json:"price"`
	Description   *string `yaml:"description" json:"description"`
	CategoryID    *int    `yaml:"category_id" json:"category_id"`
	CategoryTitle *string `yaml:"category_title" json:"category_title"`
	UnitID        *int    `yaml:"unit_id" json:"unit_id"`
	UnitName      *string `yaml:"unit_name" json:"unit_name"`
	ImageID       *int    `yaml:"image_id" json:"image_id"`
}

// Image maps an image ID to a file under the configured images directory.
type Image struct {
	ID       int    `yaml:"id" json:"id"`
	File     string `yaml:"file" json:"file"`
	Filename string `yaml:"filename" json:"filename"`
}

// Validate checks the snapshot before it is served to clients.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("menu snapshot is empty")
	}

	if s.StartDate != "" {
		if _, err := time.Parse(DateLayout, s.StartDate); err != nil {
			return fmt.Errorf("invalid start_date %q: expected %q", s.StartDate, DateLayout)
		}
	}
	if s.EndDate != "" {
		if _, err := time.Parse(DateLayout, s.EndDate); err != nil {
			return fmt.Errorf("invalid end_date %q: expected %q", s.EndDate, DateLayout)
		}
	}

	imageIDs := make(map[int]struct{}, len(s.Images))
	for _, image := range s.Images {
		if image.ID <= 0 {
			return fmt.Errorf("image %q: id must be positive", image.File)
		}
		if strings.TrimSpace(image.File) == "" {
			return fmt.Errorf("image %d: file is required", image.ID)
		}
		if strings.Contains(image.File, "..") {
			return fmt.Errorf("image %d: file must not traverse directories", image.ID)
		}
		if _, dup := imageIDs[image.ID]; dup {
			return fmt.Errorf("image %d: duplicate id", image.ID)
		}
		imageIDs[image.ID] = struct{}{}
	}

	itemIDs := make(map[int]struct{}, len(s.Items))
	for _, item := range s.Items {
		if item.ID <= 0 {
			return fmt.Errorf("item %q: id must be positive", item.Name)
		}
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("item %d: name is required", item.ID)
		}
		if item.Price < 0 {
			return fmt.Errorf("item %d: price must not be negative", item.ID)
		}
		if _, dup := itemIDs[item.ID]; dup {
			return fmt.Errorf("item %d: duplicate id", item.ID)
		}
		itemIDs[item.ID] = struct{}{}

		if item.ImageID != nil {
			if _, ok := imageIDs[*item.ImageID]; !ok {
				return fmt.Errorf("item %d: references unknown image %d", item.ID, *item.ImageID)
			}
		}
	}

	return nil
}

// ImageByID returns the image entry for an ID.
func (s *Snapshot) ImageByID(id int) (Image, bool) {
	for _, image := range s.Images {
		if image.ID == id {
			return image, true
		}
	}
	return Image{}, false
}

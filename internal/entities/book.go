package entities

import (
	"fmt"
	"time"
)

type Shelf string

const (
	ShelfNone             Shelf = ""
	ShelfCurrentlyReading Shelf = "currently_reading"
	ShelfWantToRead       Shelf = "want_to_read"
	ShelfFinished         Shelf = "finished"
)

// Shelves lists every assignable shelf in display order.
var Shelves = []Shelf{ShelfCurrentlyReading, ShelfWantToRead, ShelfFinished}

// ValidateShelf reports whether s is one of the known shelf tags.
func ValidateShelf(s Shelf) error {
	switch s {
	case ShelfCurrentlyReading, ShelfWantToRead, ShelfFinished:
		return nil
	default:
		return fmt.Errorf("invalid shelf: %q", s)
	}
}

// Book is a catalog work saved locally by the user. ID is the catalog work
// key ("/works/OL123W").
type Book struct {
	ID          string  `gorm:"primaryKey;size:64" json:"id"`
	Title       string  `gorm:"size:512" json:"title"`
	CoverURL    *string `gorm:"size:2048" json:"cover_url,omitempty"`
	Shelf       Shelf   `gorm:"index;size:32" json:"shelf"`
	CurrentPage int     `gorm:"not null" json:"current_page"`
	TotalPages  *int    `json:"total_pages,omitempty"`
	// LastUpdated is epoch milliseconds; month-windowed statistics key off it.
	LastUpdated int64   `gorm:"column:updated_at;index" json:"updated_at"`
	IsFavorite  bool    `gorm:"not null" json:"is_favorite"`
}

func (Book) TableName() string {
	return "books"
}

// UpdatedTime returns LastUpdated as a time.Time.
func (b Book) UpdatedTime() time.Time {
	return time.UnixMilli(b.LastUpdated)
}

// Touch stamps the book as updated at now.
func (b *Book) Touch(now time.Time) {
	b.LastUpdated = now.UnixMilli()
}

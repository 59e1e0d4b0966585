package entities

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// TagList is persisted as a comma-delimited string.
type TagList []string

// Value implements driver.Valuer.
func (t TagList) Value() (driver.Value, error) {
	return strings.Join(t.clean(), ","), nil
}

// Scan implements sql.Scanner.
func (t *TagList) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*t = TagList{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan tags: unsupported type %T", src)
	}

	tags := TagList{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	*t = tags
	return nil
}

func (t TagList) clean() []string {
	out := make([]string, 0, len(t))
	for _, tag := range t {
		// Commas would split the tag on the way back out.
		tag = strings.TrimSpace(strings.ReplaceAll(tag, ",", " "))
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Quote is a passage the user saved from a book, optionally with a note.
type Quote struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	BookID    string  `gorm:"index;size:64" json:"book_id"`
	Text      string  `gorm:"type:text" json:"text"`
	Note      *string `gorm:"type:text" json:"note,omitempty"`
	Tags      TagList `gorm:"type:text" json:"tags"`
	Timestamp int64   `gorm:"index" json:"timestamp"` // epoch milliseconds
}

func (Quote) TableName() string {
	return "quotes"
}

// CreatedTime returns Timestamp as a time.Time.
func (q Quote) CreatedTime() time.Time {
	return time.UnixMilli(q.Timestamp)
}

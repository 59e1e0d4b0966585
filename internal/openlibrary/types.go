package openlibrary

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type CoverSize string

const (
	CoverSmall  CoverSize = "S"
	CoverMedium CoverSize = "M"
	CoverLarge  CoverSize = "L"
)

// CoverURL derives the image URL for a cover id. Non-positive ids have no
// cover.
func CoverURL(id int, size CoverSize) string {
	if id <= 0 {
		return ""
	}
	if size == "" {
		size = CoverMedium
	}
	return fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-%s.jpg", id, size)
}

type SearchResponse struct {
	NumFound int         `json:"numFound"`
	Start    int         `json:"start"`
	Query    string      `json:"q"`
	Docs     []SearchDoc `json:"docs"`
}

type SearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	Subtitle         string   `json:"subtitle,omitempty"`
	AuthorName       []string `json:"author_name,omitempty"`
	AuthorKey        []string `json:"author_key,omitempty"`
	CoverI           *int     `json:"cover_i,omitempty"`
	CoverEditionKey  string   `json:"cover_edition_key,omitempty"`
	EditionCount     int      `json:"edition_count"`
	FirstPublishYear int      `json:"first_publish_year,omitempty"`
	Language         []string `json:"language,omitempty"`
	HasFulltext      bool     `json:"has_fulltext"`
	PublicScan       bool     `json:"public_scan_b"`
	EbookAccess      string   `json:"ebook_access,omitempty"`
}

func (d SearchDoc) CoverURL(size CoverSize) string {
	if d.CoverI == nil {
		return ""
	}
	return CoverURL(*d.CoverI, size)
}

type WorkDetail struct {
	Key              string       `json:"key"`
	Title            string       `json:"title"`
	Description      Description  `json:"description"`
	Covers           []int        `json:"covers,omitempty"`
	Subjects         []string     `json:"subjects,omitempty"`
	SubjectPlaces    []string     `json:"subject_places,omitempty"`
	SubjectPeople    []string     `json:"subject_people,omitempty"`
	SubjectTimes     []string     `json:"subject_times,omitempty"`
	FirstPublishDate string       `json:"first_publish_date,omitempty"`
	Excerpts         []Excerpt    `json:"excerpts,omitempty"`
	Authors          []WorkAuthor `json:"authors,omitempty"`
}

// CoverID returns the first usable cover id, or 0.
func (w WorkDetail) CoverID() int {
	for _, id := range w.Covers {
		if id > 0 {
			return id
		}
	}
	return 0
}

// AuthorKeys returns the author references of the work.
func (w WorkDetail) AuthorKeys() []string {
	keys := make([]string, 0, len(w.Authors))
	for _, a := range w.Authors {
		if a.Author.Key != "" {
			keys = append(keys, a.Author.Key)
		}
	}
	return keys
}

type Excerpt struct {
	Excerpt string `json:"excerpt"`
	Comment string `json:"comment,omitempty"`
}

type WorkAuthor struct {
	Author struct {
		Key string `json:"key"`
	} `json:"author"`
}

type SubjectResponse struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	SubjectType string `json:"subject_type"`
	WorkCount   int    `json:"work_count"`
	Works       []Work `json:"works"`
}

type Work struct {
	Key     string   `json:"key"`
	Title   string   `json:"title"`
	CoverID *int     `json:"cover_id,omitempty"`
	Authors []Author `json:"authors,omitempty"`
}

func (w Work) AuthorNames() []string {
	names := make([]string, 0, len(w.Authors))
	for _, a := range w.Authors {
		names = append(names, a.Name)
	}
	return names
}

type Author struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

type DescriptionKind int

const (
	DescriptionAbsent DescriptionKind = iota
	DescriptionPlain
	DescriptionTyped
)

// Description is either absent, a plain string, or a typed text object
// ({"type": "/type/text", "value": "..."}).
type Description struct {
	Kind  DescriptionKind
	Type  string
	Value string
}

func (d *Description) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = Description{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = Description{Kind: DescriptionPlain, Value: s}
	case '{':
		var obj struct {
			Type  string `json:"type"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*d = Description{Kind: DescriptionTyped, Type: obj.Type, Value: obj.Value}
	default:
		return fmt.Errorf("description: unexpected JSON %s", data)
	}
	return nil
}

// MarshalJSON emits the normalized text, or null when absent.
func (d Description) MarshalJSON() ([]byte, error) {
	if d.Kind == DescriptionAbsent {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value)
}

// Text returns the description text; empty when absent.
func (d Description) Text() string {
	return d.Value
}

func (d Description) IsAbsent() bool {
	return d.Kind == DescriptionAbsent
}

package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/title-reviews/internal/apperr"
)

// CinematographyYear is the earliest accepted release year.
const CinematographyYear = 1895

const (
	MaxCatalogNameLen = 256
	MaxSlugLen        = 50
)

// SlugPattern is the character set allowed in category and genre slugs.
var SlugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// Category represents a row in the `categories` table.  Titles reference
// at most one category; deleting a category nulls that reference.
//
// Fields:
//  ID   – primary key identifier.
//  Name – display name.
//  Slug – unique external identifier.
type Category struct {
	ID   uint64 // categories.id
	Name string // categories.name
	Slug string // categories.slug
}

// Genre represents a row in the `genres` table.  Titles link to genres
// through `genre_title`; deleting a genre removes only the join rows.
type Genre struct {
	ID   uint64 // genres.id
	Name string // genres.name
	Slug string // genres.slug
}

// Title represents a catalogued work.  Rating is derived on every read
// from the title's reviews and is nil when there are none.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – display name.
//  Year        – release year, CinematographyYear..current year.
//  Description – optional free text.
//  Category    – optional category (nil when unset or deleted).
//  Genres      – zero or more genres.
//  Rating      – derived average score, never stored.
type Title struct {
	ID          uint64    // titles.id
	Name        string    // titles.name
	Year        int       // titles.year
	Description string    // titles.description
	Category    *Category // titles.category_id -> categories
	Genres      []Genre   // genre_title -> genres
	Rating      *int
}

// ValidateCatalogEntry checks the name and slug shared by categories and genres.
func ValidateCatalogEntry(name, slug string) error {
	fields := map[string]string{}
	if strings.TrimSpace(name) == "" {
		fields["name"] = "name is required"
	} else if len(name) > MaxCatalogNameLen {
		fields["name"] = "name is too long"
	}
	if slug == "" {
		fields["slug"] = "slug is required"
	} else if len(slug) > MaxSlugLen {
		fields["slug"] = "slug is too long"
	} else if !SlugPattern.MatchString(slug) {
		fields["slug"] = "slug may contain only latin letters, digits, hyphens and underscores"
	}
	if len(fields) > 0 {
		return apperr.ValidationFields(fields)
	}
	return nil
}

// ValidateYear rejects release years outside CinematographyYear..now.Year().
// Both bounds are inclusive.
func ValidateYear(year int, now time.Time) error {
	current := now.Year()
	if year < CinematographyYear || year > current {
		return apperr.Validation("year", fmt.Sprintf(
			"release year %d must be between %d and %d", year, CinematographyYear, current))
	}
	return nil
}

// ValidateTitleName checks a title name.
func ValidateTitleName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name", "name is required")
	}
	if len(name) > MaxCatalogNameLen {
		return apperr.Validation("name", "name is too long")
	}
	return nil
}

// TitleFilter narrows title listings.  Empty fields do not filter.
type TitleFilter struct {
	GenreSlug    string
	CategorySlug string
	Name         string // case-insensitive substring
	Year         int
}

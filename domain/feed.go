// Package domain contains core domain types for feed-hub.
package domain

import "time"

// FeedCategory classifies a feed or a user's subscription to it.
type FeedCategory string

const (
	CategoryNews          FeedCategory = "news"
	CategoryTech          FeedCategory = "tech"
	CategoryDesign        FeedCategory = "design"
	CategoryBusiness      FeedCategory = "business"
	CategoryEntertainment FeedCategory = "entertainment"
	CategorySports        FeedCategory = "sports"
	CategoryScience       FeedCategory = "science"
	CategoryHealth        FeedCategory = "health"
	CategoryBlog          FeedCategory = "blog"
	CategoryOther         FeedCategory = "other"
)

var validCategories = map[FeedCategory]bool{
	CategoryNews:          true,
	CategoryTech:          true,
	CategoryDesign:        true,
	CategoryBusiness:      true,
	CategoryEntertainment: true,
	CategorySports:        true,
	CategoryScience:       true,
	CategoryHealth:        true,
	CategoryBlog:          true,
	CategoryOther:         true,
}

// IsValid returns true if the category is a known valid category.
func (c FeedCategory) IsValid() bool {
	return validCategories[c]
}

// ParseCategory maps a raw string onto a known category, falling back to
// CategoryOther for anything unrecognized.
func ParseCategory(s string) FeedCategory {
	c := FeedCategory(s)
	if c.IsValid() {
		return c
	}
	return CategoryOther
}

// PlaceholderTitle is assigned to a feed created before its first parse.
const PlaceholderTitle = "Processing..."

// Feed is a remote RSS/Atom source identified by its normalized URL.
type Feed struct {
	ID            int64
	URL           string
	Title         string
	Description   string
	SiteURL       string
	ImageURL      string
	Category      FeedCategory
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DisplayTitle returns the feed title, or its URL while the title is still
// the creation placeholder or empty.
func (f *Feed) DisplayTitle() string {
	if f.Title == "" || f.Title == PlaceholderTitle {
		return f.URL
	}
	return f.Title
}

// FeedMetadata is the feed-level half of a parsed document. Metadata refresh
// and article ingestion are independent concerns, so the parser returns it
// separately from the entry list.
type FeedMetadata struct {
	Title       string
	Description string
	SiteURL     string
	ImageURL    string
}

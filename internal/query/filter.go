package query

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel values accepted by the streamer, tag and category filters.
const (
	All             = "all"
	AllStreamers    = "all-streamers"
	TagSlugStreamer = "streamer"
)

const (
	DefaultPageSize = 9
	MaxPageSize     = 60
)

// sentinelID is an id no row can have.
const sentinelID int64 = -1

// Sort is a listing sort key.
type Sort string

// Supported sort keys. SortDefault orders by creation time, newest first.
const (
	SortDefault   Sort = ""
	SortMostVoted Sort = "most-voted"
	SortRecent    Sort = "recent"
	SortPriceLow  Sort = "price-low"
	SortPriceHigh Sort = "price-high"
)

// ParseSort maps a raw sort key to a Sort, falling back to SortDefault.
func ParseSort(raw string) Sort {
	switch s := Sort(strings.ToLower(strings.TrimSpace(raw))); s {
	case SortMostVoted, SortRecent, SortPriceLow, SortPriceHigh:
		return s
	default:
		return SortDefault
	}
}

// Field is a sortable build column.
type Field string

const (
	FieldUpvotes   Field = "upvotes"
	FieldCreatedAt Field = "created_at"
	FieldPrice     Field = "price"
	FieldID        Field = "id"
)

// Order is a single ORDER BY term.
type Order struct {
	Field Field
	Desc  bool
}

// Terms returns the ordering of the sort key. Every ordering ends with
// id desc so pages are stable.
func (s Sort) Terms() []Order {
	var terms []Order
	switch s {
	case SortMostVoted:
		terms = []Order{{FieldUpvotes, true}, {FieldCreatedAt, true}}
	case SortPriceLow:
		terms = []Order{{FieldPrice, false}, {FieldUpvotes, true}}
	case SortPriceHigh:
		terms = []Order{{FieldPrice, true}, {FieldUpvotes, true}}
	default:
		terms = []Order{{FieldCreatedAt, true}}
	}
	return append(terms, Order{FieldID, true})
}

// FilterSet is the request-scoped set of listing filters.
type FilterSet struct {
	Query    string
	Category string
	Weapons  []string
	Streamer string
	Tag      string
	Sort     Sort
	Page     int
}

// ParseFilterSet reads a FilterSet from listing query parameters.
func ParseFilterSet(values url.Values) FilterSet {
	f := FilterSet{
		Query:    strings.TrimSpace(values.Get("q")),
		Category: strings.ToLower(strings.TrimSpace(values.Get("category"))),
		Streamer: strings.TrimSpace(values.Get("streamer")),
		Tag:      strings.ToLower(strings.TrimSpace(values.Get("tag"))),
		Sort:     ParseSort(values.Get("sort")),
		Page:     1,
	}

	for _, raw := range values["weapons"] {
		for _, part := range strings.Split(raw, ",") {
			if slug := strings.ToLower(strings.TrimSpace(part)); slug != "" {
				f.Weapons = append(f.Weapons, slug)
			}
		}
	}

	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			f.Page = page
		}
	}
	return f
}

// Window returns the offset and limit of the filter's page.
func (f FilterSet) Window(pageSize int) (offset, limit int) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize, pageSize
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// WeaponSlug derives the URL slug of a weapon name.
func WeaponSlug(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// LikePattern builds a case-insensitive substring pattern with LIKE
// metacharacters in term escaped.
func LikePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

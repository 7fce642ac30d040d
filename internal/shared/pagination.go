package shared

import "math"

const (
	// DefaultPerPage is used when neither a stored preference nor a backend default exists.
	DefaultPerPage = 10
	// windowThreshold is the largest page count rendered without ellipsis.
	windowThreshold = 10
	// windowRadius is the number of pages shown on each side of the current page.
	windowRadius = 2
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata with the page clamped into range.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if total < 0 {
		total = 0
	}
	totalPages := TotalPages(total, perPage)
	return Pagination{
		Page:       ClampPage(page, totalPages),
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// TotalPages returns max(1, ceil(total/perPage)).
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	pages := int(math.Ceil(float64(total) / float64(perPage)))
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampPage returns max(1, min(page, totalPages)).
func ClampPage(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// PageSlice returns items[(page-1)*perPage : page*perPage].
//
// Callers clamp page with ClampPage first. The slice is not corrected: a page
// past the end yields an empty result and page or perPage below 1 yield nil.
func PageSlice[T any](items []T, page, perPage int) []T {
	if page < 1 || perPage < 1 {
		return nil
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return items[len(items):]
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Offset returns the zero-based index of the first item on the page.
func (p Pagination) Offset() int {
	if p.Page < 1 || p.PerPage < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Empty reports whether there is no data to paginate.
func (p Pagination) Empty() bool {
	return p.Total <= 0
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool {
	return p.Page > 1
}

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool {
	return p.Page < p.TotalPages
}

// FirstItem returns the 1-based position of the first visible item, 0 when empty.
func (p Pagination) FirstItem() int {
	if p.Empty() {
		return 0
	}
	return p.Offset() + 1
}

// LastItem returns the 1-based position of the last visible item, 0 when empty.
func (p Pagination) LastItem() int {
	if p.Empty() {
		return 0
	}
	last := p.Offset() + p.PerPage
	if last > p.Total {
		last = p.Total
	}
	return last
}

// PageMarker is a single entry of the page-index control.
type PageMarker struct {
	Number   int  `json:"number,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Current  bool `json:"current,omitempty"`
}

// Window returns the page-index markers for the footer control.
//
// Up to ten pages are listed in full. Above that the first and last page are
// pinned, the current page is shown with two neighbours on each side and every
// collapsed gap becomes a single ellipsis. An empty listing has no markers.
func (p Pagination) Window() []PageMarker {
	if p.Empty() {
		return nil
	}
	total := p.TotalPages
	current := ClampPage(p.Page, total)
	if total <= windowThreshold {
		markers := make([]PageMarker, 0, total)
		for n := 1; n <= total; n++ {
			markers = append(markers, PageMarker{Number: n, Current: n == current})
		}
		return markers
	}

	start := current - windowRadius
	if start < 2 {
		start = 2
	}
	end := current + windowRadius
	if end > total-1 {
		end = total - 1
	}

	markers := []PageMarker{{Number: 1, Current: current == 1}}
	if start > 2 {
		markers = append(markers, PageMarker{Ellipsis: true})
	}
	for n := start; n <= end; n++ {
		markers = append(markers, PageMarker{Number: n, Current: n == current})
	}
	if end < total-1 {
		markers = append(markers, PageMarker{Ellipsis: true})
	}
	markers = append(markers, PageMarker{Number: total, Current: current == total})
	return markers
}

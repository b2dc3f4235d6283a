package analytics

import "github.com/bikeshare-dashboard/pkg/networks/models"

const (
	DefaultPageSize = 25
	MaxDisplayPages = 5
)

// Page is one slice of the enriched table.
type Page struct {
	Items      []models.EnrichedNetworkRow `json:"items"`
	Page       int                         `json:"page"`
	PageSize   int                         `json:"page_size"`
	TotalPages int                         `json:"total_pages"`
	TotalItems int                         `json:"total_items"`
	Window     []int                       `json:"window"`
}

// Paginate returns the 1-based page of rows, clamping page into range.
func Paginate(rows []models.EnrichedNetworkRow, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}

	total := (len(rows) + size - 1) / size
	if total == 0 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * size
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}

	items := make([]models.EnrichedNetworkRow, end-start)
	copy(items, rows[start:end])

	first, last := PageWindow(page, total, MaxDisplayPages)
	window := make([]int, 0, last-first+1)
	for p := first; p <= last; p++ {
		window = append(window, p)
	}

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalPages: total,
		TotalItems: len(rows),
		Window:     window,
	}
}

// PageWindow returns the first and last page numbers to show around current,
// at most maxDisplay wide and kept inside [1, total].
func PageWindow(current, total, maxDisplay int) (int, int) {
	if total < 1 {
		return 1, 1
	}
	if maxDisplay < 1 {
		maxDisplay = 1
	}

	start := current - maxDisplay/2
	if start < 1 {
		start = 1
	}
	end := start + maxDisplay - 1
	if end > total {
		end = total
	}
	if end-start < maxDisplay-1 {
		start = end - maxDisplay + 1
		if start < 1 {
			start = 1
		}
	}
	return start, end
}

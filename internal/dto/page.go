package dto

const (
	defaultPageSize = 5
	maxPageSize     = 100
)

// Page identifies a 1-based page of a listing.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page into valid bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Limit returns the row limit for the page.
func (p Page) Limit() int {
	return p.Normalize().Size
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

// Pages returns how many pages total rows span.
func (p Page) Pages(total int) int {
	size := p.Limit()
	if total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

package pagination

const (
	DefaultLimit = 50
	MaxLimit     = 250
)

// Page is an offset window over a result set ordered most recent first.
type Page struct {
	Limit  int `form:"limit" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type PageInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Trim drops the look-ahead row fetched to detect another page.
func Trim[T any](rows []T, page Page) ([]T, PageInfo) {
	info := PageInfo{Limit: page.Limit, Offset: page.Offset}
	if len(rows) > page.Limit {
		info.HasMore = true
		rows = rows[:page.Limit]
	}
	return rows, info
}

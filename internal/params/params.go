package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Pagination holds the requested page and, after ComputeMeta, the totals.
//
//	/products?page=2&perPage=30 → Pagination{Limit:30, Page:2, Offset:30}
type Pagination struct {
	Limit      int  `json:"per_page"`
	Offset     int  `json:"-"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination reads ?page= and ?perPage= (or ?limit=). Bad values fall
// back to the defaults.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{
		Limit: DefaultPerPage,
		Page:  1,
	}

	limitStr := strings.TrimSpace(q.Get("perPage"))
	if limitStr == "" {
		limitStr = strings.TrimSpace(q.Get("limit"))
	}
	if limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			switch {
			case limit <= 0:
				p.Limit = DefaultPerPage
			case limit > MaxPerPage:
				p.Limit = MaxPerPage
			default:
				p.Limit = limit
			}
		}
	}

	if pageStr := strings.TrimSpace(q.Get("page")); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			p.Page = page
		}
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta updates pagination after fetching total count.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = (p.Page * p.Limit) < total
}

// OutOfRange reports a page past the last one. An empty result set is never
// out of range, so page 1 of nothing is still a valid (empty) answer.
func (p *Pagination) OutOfRange() bool {
	return p.Total > 0 && p.Page > p.TotalPages
}

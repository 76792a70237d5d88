package params

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query  string
		page   int
		limit  int
		offset int
	}{
		{"", 1, DefaultPerPage, 0},
		{"page=3&perPage=10", 3, 10, 20},
		{"page=2&limit=5", 2, 5, 5},
		{"perPage=7&limit=50", 1, 7, 0},
		{"page=-1&perPage=0", 1, DefaultPerPage, 0},
		{"page=abc&perPage=xyz", 1, DefaultPerPage, 0},
		{"perPage=1000", 1, MaxPerPage, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)

			p := ParsePagination(q)
			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.limit, p.Limit)
			assert.Equal(t, tt.offset, p.Offset)
		})
	}
}

func TestComputeMeta(t *testing.T) {
	p := Pagination{Page: 2, Limit: 10}
	p.ComputeMeta(25)

	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasPrev)
	assert.True(t, p.HasNext)
	assert.False(t, p.OutOfRange())

	p = Pagination{Page: 4, Limit: 10}
	p.ComputeMeta(25)
	assert.True(t, p.OutOfRange())
	assert.False(t, p.HasNext)

	p = Pagination{Page: 1, Limit: 10}
	p.ComputeMeta(0)
	assert.False(t, p.OutOfRange())
	assert.Equal(t, 0, p.TotalPages)
}

// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows shown in paged lists.
const PageSize = 50

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	s := query.Get(r, "start")
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start     int // 1-based start index (0 if no results)
	End       int // 1-based end index (0 if no results)
	PrevStart int // start value for previous page link
	NextStart int // start value for next page link
	HasPrev   bool
	HasNext   bool
}

// ComputeRange calculates display range values given the current start index
// and number of items shown.
func ComputeRange(start, shown int) Range {
	return computeRangeWithSize(start, shown, PageSize)
}

func computeRangeWithSize(start, shown, pageSize int) Range {
	if shown == 0 {
		return Range{Start: 0, End: 0, PrevStart: 1, NextStart: 1}
	}

	prevStart := start - pageSize
	if prevStart < 1 {
		prevStart = 1
	}

	return Range{
		Start:     start,
		End:       start + shown - 1,
		PrevStart: prevStart,
		NextStart: start + shown,
		HasPrev:   start > 1,
	}
}

// Window returns the page of rows beginning at the 1-based start, and the
// range describing it. A start past the end snaps back to the last page.
func Window[T any](rows []T, start int) ([]T, Range) {
	return windowWithSize(rows, start, PageSize)
}

func windowWithSize[T any](rows []T, start, pageSize int) ([]T, Range) {
	total := len(rows)
	if total == 0 {
		return rows, computeRangeWithSize(1, 0, pageSize)
	}
	if start < 1 {
		start = 1
	}
	if start > total {
		start = ((total-1)/pageSize)*pageSize + 1
	}
	end := start - 1 + pageSize
	if end > total {
		end = total
	}
	page := rows[start-1 : end]
	rng := computeRangeWithSize(start, len(page), pageSize)
	rng.HasNext = end < total
	return page, rng
}

// Package pagination slices in-memory list results for the HTTP API.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is the window requested with ?limit= and ?offset=.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads the window from the query string. Missing or invalid
// values fall back to the defaults and limit is capped at MaxLimit.
func FromContext(c echo.Context) Params {
	return Params{
		Limit:  min(queryInt(c, "limit", DefaultLimit, 1), MaxLimit),
		Offset: queryInt(c, "offset", 0, 0),
	}
}

func queryInt(c echo.Context, name string, def, floor int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n < floor {
		return def
	}
	return n
}

// Response is one page of a list. NextOffset is nil on the last page.
type Response[T any] struct {
	Data       []T  `json:"data"`
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	NextOffset *int `json:"next_offset"`
}

// Page cuts the requested window out of items. Data is never nil so an
// empty page encodes as [].
func Page[T any](p Params, items []T) *Response[T] {
	total := len(items)
	start := min(max(p.Offset, 0), total)
	end := min(start+max(p.Limit, 0), total)

	resp := &Response[T]{
		Data:   append(make([]T, 0, end-start), items[start:end]...),
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
	}
	if end < total {
		next := end
		resp.NextOffset = &next
	}
	return resp
}

package helpers

import (
	"net/http"
	"strconv"

	"eventsettlement/internal/domain"
)

// Pagination query parameter defaults and limits.
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParsePagination reads page and page_size from the request query string and
// clamps them to valid ranges. It returns nil when neither parameter is present,
// which asks for every registration in one page. Invalid values fall back to defaults.
func ParsePagination(r *http.Request) *domain.PaginationParams {
	q := r.URL.Query()
	if !q.Has("page") && !q.Has("page_size") {
		return nil
	}
	page := DefaultPage
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v >= 1 {
		page = v
	}
	pageSize := DefaultPageSize
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil && v >= 1 {
		pageSize = min(v, MaxPageSize)
	}
	return &domain.PaginationParams{Page: page, PageSize: pageSize}
}

// PaginationMeta is the pagination metadata included in paginated list responses.
// swagger:model PaginationMeta
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPaginationMeta describes the page of a list of total rows. A nil page is the
// unpaged listing: one page holding all rows.
func NewPaginationMeta(page *domain.PaginationParams, total int) PaginationMeta {
	if page == nil {
		page = &domain.PaginationParams{Page: DefaultPage, PageSize: total}
	}
	totalPages := 0
	if page.PageSize > 0 {
		totalPages = (total + page.PageSize - 1) / page.PageSize
	}
	return PaginationMeta{
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

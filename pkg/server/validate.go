package server

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

var allowedOrders = map[string]bool{
	"-created_at": true,
	"title":       true,
	"rating":      true,
	"-rating":     true,
}

// validateTitle requires a non-empty title of at most 255 characters.
func validateTitle(v any) (string, error) {
	title, _ := v.(string)
	title = strings.TrimSpace(title)
	if title == "" {
		return "", badRequest("title is required")
	}
	if len(title) > 255 {
		return "", badRequest("title must be <= 255 chars")
	}
	return title, nil
}

// validateYear accepts a 4-digit year string or nothing.
func validateYear(v any) (*string, error) {
	year, _ := v.(string)
	year = strings.TrimSpace(year)
	if year == "" {
		return nil, nil
	}
	if len(year) != 4 {
		return nil, badRequest("year must be a 4-digit string, e.g. '1999'")
	}
	if _, err := strconv.Atoi(year); err != nil {
		return nil, badRequest("year must be a 4-digit string, e.g. '1999'")
	}
	return &year, nil
}

// parseRating accepts an integer 0-10, an empty value, or null.
func parseRating(v any) (*int, error) {
	if v == nil || v == "" {
		return nil, nil
	}

	var r int
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return nil, badRequest("personal_rating must be an integer 0-10")
		}
		r = int(n)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return nil, badRequest("personal_rating must be an integer 0-10")
		}
		r = parsed
	default:
		return nil, badRequest("personal_rating must be an integer 0-10")
	}

	if r < 0 || r > 10 {
		return nil, badRequest("personal_rating must be between 0 and 10")
	}
	return &r, nil
}

// parseBool accepts a JSON boolean or the usual string spellings.
func parseBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
	}
	return false, badRequest("watched must be boolean")
}

// parseOrder whitelists the list ordering.
func parseOrder(r *http.Request) (string, error) {
	order := r.URL.Query().Get("order")
	if order == "" {
		return "-created_at", nil
	}
	if !allowedOrders[order] {
		keys := make([]string, 0, len(allowedOrders))
		for k := range allowedOrders {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", badRequest("order must be one of %v", keys)
	}
	return order, nil
}

// parsePagination returns (page, page_size) with page >= 1 and page_size
// clamped to [1, 100].
func parsePagination(r *http.Request) (int, int, error) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, badRequest("page and page_size must be integers")
		}
		page = max(n, 1)
	}

	size := 10
	if v := r.URL.Query().Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, badRequest("page and page_size must be integers")
		}
		size = n
	}
	size = max(min(size, 100), 1)
	return page, size, nil
}

// optionalString maps empty strings to nil for nullable columns.
func optionalString(v any) *string {
	s, _ := v.(string)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

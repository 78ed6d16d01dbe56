package server

import "strconv"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parsePageSize(raw string) int32 {
	if raw == "" {
		return defaultPageSize
	}
	parsed, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || parsed <= 0 {
		return defaultPageSize
	}
	if parsed > maxPageSize {
		return maxPageSize
	}
	return int32(parsed)
}

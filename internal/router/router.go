// Package router parses request paths into typed department ids.
package router

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotAnInteger means the first path segment is not a base-10 integer.
	ErrNotAnInteger = errors.New("department id is not an integer")
	// ErrIgnored marks known non-semantic paths (favicon and friends); the
	// caller should answer with an empty success response.
	ErrIgnored = errors.New("ignored path")
)

// ignoredPaths are requested by browsers regardless of the application.
var ignoredPaths = map[string]bool{
	"":            true,
	"favicon.ico": true,
	"robots.txt":  true,
}

// Route extracts the department id from a request path like "/90".
// Only syntactic validation happens here; whether the department exists is
// decided by the query returning zero rows.
func Route(path string) (int64, error) {
	segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")

	if ignoredPaths[segment] {
		return 0, ErrIgnored
	}

	id, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return 0, ErrNotAnInteger
	}
	return id, nil
}

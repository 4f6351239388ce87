package search

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrBadRequest = errors.New("bad request")

// Shape selects how result rows are rendered.
type Shape string

const (
	// ShapeTyped renders rows as {pk, message} records with nulls left out.
	ShapeTyped Shape = "typed"
	// ShapeGeneric renders every returned column.
	ShapeGeneric Shape = "generic"
)

func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case "", ShapeTyped:
		return ShapeTyped, nil
	case ShapeGeneric:
		return ShapeGeneric, nil
	default:
		return "", fmt.Errorf("%w: shape must be %q or %q", ErrBadRequest, ShapeTyped, ShapeGeneric)
	}
}

type SearchRequest struct {
	Query string
	Shape Shape
}

// ParseSearchRequest reads the query string of GET /search. An empty query
// is accepted and sent to the backend as-is; a missing one is not.
func ParseSearchRequest(values url.Values) (*SearchRequest, error) {
	query, ok := values["query"]
	if !ok || len(query) == 0 {
		return nil, fmt.Errorf("%w: query parameter is required", ErrBadRequest)
	}
	shape, err := ParseShape(values.Get("shape"))
	if err != nil {
		return nil, err
	}
	return &SearchRequest{Query: query[0], Shape: shape}, nil
}

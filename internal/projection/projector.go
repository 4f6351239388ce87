// Package projection turns result sets whose shape is only known after
// execution into JSON-ready records.
//
// Every column is decoded according to the type name the backend reported
// at runtime: integer-like cells become JSON integers, float-like cells JSON
// numbers, text-like cells strings. Columns of any other type are a
// documented lossy fallback: Policy decides the generic shape's value, the
// typed shape always uses null. NULL cells are left out of the generic shape
// and become omitted nulls in the typed shape.
package projection

import (
	"errors"
	"fmt"
	"strings"

	"sql-search/pkg/db"
	"sql-search/pkg/metrics"

	"go.uber.org/zap"
)

// Policy decides what an unknown-type cell becomes.
type Policy int

const (
	UnknownAsEmptyString Policy = iota
	UnknownAsNull
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "empty_string":
		return UnknownAsEmptyString, nil
	case "null":
		return UnknownAsNull, nil
	default:
		return 0, fmt.Errorf("unknown type policy %q", s)
	}
}

type Projector struct {
	unknown Policy
	logger  *zap.Logger
}

type Option func(*Projector)

func WithUnknownPolicy(p Policy) Option {
	return func(pr *Projector) { pr.unknown = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(pr *Projector) { pr.logger = l }
}

func New(opts ...Option) *Projector {
	p := &Projector{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generic emits one Record per row with every non-NULL column, in backend
// row order. An integer-like cell that fails to parse fails the projection.
func (p *Projector) Generic(rs *db.ResultSet) ([]Record, error) {
	out := make([]Record, 0, len(rs.Rows))
	cats := categorize(rs.Columns)

	for i, row := range rs.Rows {
		rec := make(Record, 0, len(rs.Columns))
		for j, col := range rs.Columns {
			if j >= len(row) || !row[j].Valid {
				p.logger.Debug("cell absent", zap.Int("row", i), zap.String("column", col.Name))
				continue
			}
			v, err := p.decode(col, cats[j], row[j].Value, p.unknown)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", i, col.Name, err)
			}
			rec = rec.set(col.Name, v)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Typed emits one TypedRecord per row from the "pk" and "message" columns.
// Missing, NULL, unparsable and unknown-type values become null whatever
// the unknown-type policy says.
func (p *Projector) Typed(rs *db.ResultSet) []TypedRecord {
	out := make([]TypedRecord, 0, len(rs.Rows))
	cats := categorize(rs.Columns)

	for _, row := range rs.Rows {
		var rec TypedRecord
		for j, col := range rs.Columns {
			if col.Name != "pk" && col.Name != "message" {
				continue
			}
			var v any
			if j < len(row) && row[j].Valid {
				decoded, err := p.decode(col, cats[j], row[j].Value, UnknownAsNull)
				if err != nil {
					p.logger.Debug("typed field unparsable", zap.String("column", col.Name), zap.Error(err))
				} else {
					v = decoded
				}
			}
			switch col.Name {
			case "pk":
				rec.PK = typedPK(v)
			case "message":
				rec.Message = typedMessage(v)
			}
		}
		out = append(out, rec)
	}
	return out
}

func categorize(cols []db.Column) []Category {
	cats := make([]Category, len(cols))
	for i, c := range cols {
		cats[i] = Categorize(c.TypeName)
	}
	return cats
}

func (p *Projector) decode(col db.Column, cat Category, raw any, policy Policy) (any, error) {
	dec, ok := decoders[cat]
	if !ok {
		return p.degrade(col, "unrecognised type", policy), nil
	}
	v, err := dec(raw)
	if errors.Is(err, errDegraded) {
		return p.degrade(col, "unrepresentable value", policy), nil
	}
	return v, err
}

func (p *Projector) degrade(col db.Column, reason string, policy Policy) any {
	metrics.ProjectionDegraded.WithLabelValues(reason).Inc()
	p.logger.Debug("projection degraded",
		zap.String("column", col.Name),
		zap.String("type", col.TypeName),
		zap.String("reason", reason))
	if policy == UnknownAsNull {
		return nil
	}
	return ""
}

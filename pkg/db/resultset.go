package db

// Column describes one result column as the backend reported it after
// execution.
type Column struct {
	Name     string
	TypeName string
}

// Cell is one raw value. Valid is false for NULL.
type Cell struct {
	Value any
	Valid bool
}

// Row is aligned positionally with ResultSet.Columns.
type Row []Cell

// ResultSet is the output of one query execution.
type ResultSet struct {
	Columns []Column
	Rows    []Row
	// Extra counts result sets the statement produced after the first one;
	// they are drained but not kept.
	Extra int
}

func newCell(v any) Cell {
	if v == nil {
		return Cell{}
	}
	return Cell{Value: v, Valid: true}
}

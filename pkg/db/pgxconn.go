package db

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// pgxQuerier is the part of *pgx.Conn the adapter uses; pgxmock satisfies it.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// pgxConn adapts a native pgx session (postgres).
type pgxConn struct {
	conn    pgxQuerier
	typeMap *pgtype.Map
}

func newPgxConn(conn pgxQuerier) *pgxConn {
	return &pgxConn{conn: conn, typeMap: pgtype.NewMap()}
}

func (c *pgxConn) Query(ctx context.Context, text string) (*ResultSet, error) {
	rows, err := c.conn.Query(ctx, text)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	rs := &ResultSet{
		Columns: make([]Column, len(fields)),
		Rows:    make([]Row, 0, 64),
	}
	for i, fd := range fields {
		rs.Columns[i] = Column{Name: fd.Name, TypeName: c.typeName(fd.DataTypeOID)}
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, classify(err)
		}
		row := make(Row, len(values))
		for i, v := range values {
			row[i] = newCell(v)
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return rs, nil
}

// typeName reports the registered name for oid in upper case, or
// "OID<n>" for types the map does not know (extensions, domains).
func (c *pgxConn) typeName(oid uint32) string {
	if t, ok := c.typeMap.TypeForOID(oid); ok {
		return strings.ToUpper(t.Name)
	}
	return "OID" + strconv.FormatUint(uint64(oid), 10)
}

func (c *pgxConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *pgxConn) Close() error {
	return c.conn.Close(context.Background())
}

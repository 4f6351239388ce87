package db

import (
	"context"
	"database/sql"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"
)

// sqlConn adapts a database/sql session (mysql, sqlserver, hdb).
type sqlConn struct {
	conn *sql.Conn
}

func newSQLConn(conn *sql.Conn) *sqlConn {
	return &sqlConn{conn: conn}
}

func (c *sqlConn) Query(ctx context.Context, text string) (*ResultSet, error) {
	rows, err := c.conn.QueryContext(ctx, text)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	rs, err := scanResultSet(rows)
	if err != nil {
		return nil, classify(err)
	}
	return rs, nil
}

func (c *sqlConn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *sqlConn) Close() error {
	return c.conn.Close()
}

// scanResultSet keeps the first result set and drains the rest.
func scanResultSet(rows *sql.Rows) (*ResultSet, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{
		Columns: make([]Column, len(types)),
		Rows:    make([]Row, 0, 64),
	}
	for i, t := range types {
		rs.Columns[i] = Column{Name: t.Name(), TypeName: t.DatabaseTypeName()}
	}

	for rows.Next() {
		raw := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(raw))
		for i, v := range raw {
			row[i] = newCell(convert(rs.Columns[i], v))
		}
		rs.Rows = append(rs.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for rows.NextResultSet() {
		rs.Extra++
		for rows.Next() {
			// discarded
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rs, nil
}

// convert turns driver-specific raw encodings into their text form.
func convert(col Column, v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	// sqlserver sends guids as 16 mixed-endian bytes
	if len(b) == 16 && strings.EqualFold(col.TypeName, "UNIQUEIDENTIFIER") {
		var u mssql.UniqueIdentifier
		if err := u.Scan(b); err == nil {
			return u.String()
		}
	}
	return v
}

package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPgxConn(t *testing.T) (*pgxConn, pgxmock.PgxConnIface) {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return newPgxConn(mock), mock
}

func TestPgxConnQuery(t *testing.T) {
	c, mock := newMockPgxConn(t)

	rows := pgxmock.NewRowsWithColumnDefinition(
		pgconn.FieldDescription{Name: "pk", DataTypeOID: pgtype.Int4OID},
		pgconn.FieldDescription{Name: "message", DataTypeOID: pgtype.TextOID},
		pgconn.FieldDescription{Name: "geom", DataTypeOID: 99999},
	).
		AddRow(int32(1), "hi", "blob").
		AddRow(nil, "x", nil)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT pk, message, geom FROM t")).WillReturnRows(rows)

	rs, err := c.Query(context.Background(), "SELECT pk, message, geom FROM t")
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Name: "pk", TypeName: "INT4"},
		{Name: "message", TypeName: "TEXT"},
		{Name: "geom", TypeName: "OID99999"},
	}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, Cell{Value: int32(1), Valid: true}, rs.Rows[0][0])
	assert.Equal(t, Cell{Value: "hi", Valid: true}, rs.Rows[0][1])
	assert.False(t, rs.Rows[1][0].Valid)
	assert.False(t, rs.Rows[1][2].Valid)
}

func TestPgxConnQueryFailed(t *testing.T) {
	c, mock := newMockPgxConn(t)

	mock.ExpectQuery("SELEC").WillReturnError(&pgconn.PgError{Code: "42601", Message: "syntax error"})

	_, err := c.Query(context.Background(), "SELEC 1")
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestPgxConnTransient(t *testing.T) {
	c, mock := newMockPgxConn(t)

	mock.ExpectQuery("SELECT").WillReturnError(&pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"})

	_, err := c.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrTransientConnection)
}

func TestPgxConnPingClose(t *testing.T) {
	c, mock := newMockPgxConn(t)

	mock.ExpectPing()
	mock.ExpectClose()

	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.Close())
}

package sql

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/sqlstack"
	"github.com/syssam/sqlstack/dialect"
)

func newMock(t *testing.T, name string) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(name, db), mock
}

func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
		want    string
	}{
		{"Postgres", dialect.Postgres, dialect.Postgres},
		{"MySQL", dialect.MySQL, dialect.MySQL},
		{"SQLite", dialect.SQLite, dialect.SQLite},
		{"wrapped", "sqlite-traced", dialect.SQLite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, _ := newMock(t, tt.dialect)
			assert.Equal(t, tt.want, drv.Dialect())
			assert.NotNil(t, drv.DB())
			assert.Equal(t, 1, drv.DB().Stats().MaxOpenConnections)
		})
	}
}

func TestDriverExec(t *testing.T) {
	ctx := context.Background()

	t.Run("write", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectExec("INSERT INTO Tag (name) VALUES (?)").
			WithArgs("go").
			WillReturnResult(sqlmock.NewResult(7, 1))

		res, err := drv.Exec(ctx, "INSERT INTO Tag (name) VALUES (?)", []any{"go"})
		require.NoError(t, err)
		assert.Equal(t, dialect.Result{RowsAffected: 1, LastInsertID: 7}, res)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil args", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectExec("DELETE FROM Tag").WillReturnResult(sqlmock.NewResult(0, 3))

		res, err := drv.Exec(ctx, "DELETE FROM Tag", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.RowsAffected)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query collects rows", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectQuery("SELECT id, name FROM Tag WHERE id > ?").
			WithArgs(int64(0)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(int64(1), "go").
				AddRow(int64(2), nil))

		res, err := drv.Exec(ctx, "SELECT id, name FROM Tag WHERE id > ?", []any{int64(0)})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.RowsAffected)
		assert.Equal(t, []map[string]any{
			{"id": int64(1), "name": "go"},
			{"id": int64(2), "name": nil},
		}, res.Rows)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("postgres placeholders", func(t *testing.T) {
		drv, mock := newMock(t, dialect.Postgres)
		mock.ExpectExec("UPDATE users SET name = $1 WHERE id = $2").
			WithArgs("Alice", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := drv.Exec(ctx, "UPDATE users SET name = ? WHERE id = ?", []any{"Alice", int64(1)})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sqlite multi-statement placeholders", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectExec("INSERT INTO Tag (name) VALUES (?1); INSERT INTO Tag (name) VALUES (?2); COMMIT;").
			WithArgs("y", "z").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := drv.Exec(ctx, "INSERT INTO Tag (name) VALUES (?); INSERT INTO Tag (name) VALUES (?); COMMIT;", []any{"y", "z"})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		boom := errors.New("constraint violation")
		mock.ExpectExec("DELETE FROM users").WillReturnError(boom)

		_, err := drv.Exec(ctx, "DELETE FROM users", nil)
		require.Error(t, err)
		assert.True(t, sqlstack.IsDriverError(err))
		assert.ErrorIs(t, err, boom)
		var de *sqlstack.DriverError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "exec", de.Op)
		assert.Equal(t, "DELETE FROM users", de.Query)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDriverRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users DEFAULT VALUES").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := drv.RunInTx(ctx, func(ctx context.Context, ex dialect.Execer) error {
			res, err := ex.Exec(ctx, "INSERT INTO users DEFAULT VALUES", nil)
			if err != nil {
				return err
			}
			assert.Equal(t, int64(1), res.LastInsertID)
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := drv.RunInTx(ctx, func(context.Context, dialect.Execer) error { return boom })
		require.ErrorIs(t, err, boom)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback failure is joined", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		boom, rb := errors.New("boom"), errors.New("rb")
		mock.ExpectBegin()
		mock.ExpectRollback().WillReturnError(rb)

		err := drv.RunInTx(ctx, func(context.Context, dialect.Execer) error { return boom })
		require.ErrorIs(t, err, boom)
		require.ErrorIs(t, err, rb)
	})

	t.Run("begin failure", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectBegin().WillReturnError(errors.New("busy"))

		err := drv.RunInTx(ctx, func(context.Context, dialect.Execer) error {
			t.Fatal("fn must not run")
			return nil
		})
		require.Error(t, err)
		assert.True(t, sqlstack.IsDriverError(err))
	})

	t.Run("rollback on panic", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = drv.RunInTx(ctx, func(context.Context, dialect.Execer) error { panic("oops") })
		})
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDriverExecBatch(t *testing.T) {
	ctx := context.Background()
	entries := []dialect.BatchEntry{
		{Query: "INSERT INTO a (x) VALUES (?)", Args: []any{int64(1)}},
		{Query: "UPDATE b SET y = ?", Args: []any{"z"}},
	}

	t.Run("all applied", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		mock.ExpectBegin()
		mock.ExpectExec(entries[0].Query).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(5, 1))
		mock.ExpectExec(entries[1].Query).WithArgs("z").WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectCommit()

		res, err := drv.ExecBatch(ctx, entries)
		require.NoError(t, err)
		assert.Equal(t, []dialect.Result{
			{RowsAffected: 1, LastInsertID: 5},
			{RowsAffected: 4},
		}, res)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("none applied", func(t *testing.T) {
		drv, mock := newMock(t, dialect.SQLite)
		boom := errors.New("no such table: b")
		mock.ExpectBegin()
		mock.ExpectExec(entries[0].Query).WillReturnResult(sqlmock.NewResult(5, 1))
		mock.ExpectExec(entries[1].Query).WillReturnError(boom)
		mock.ExpectRollback()

		res, err := drv.ExecBatch(ctx, entries)
		require.ErrorIs(t, err, boom)
		assert.Nil(t, res)
		var de *sqlstack.DriverError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, entries[1].Query, de.Query)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReturnsRows(t *testing.T) {
	tests := map[string]bool{
		"SELECT 1":                                  true,
		"  select * from t":                         true,
		"PRAGMA table_info(t)":                      true,
		"WITH x AS (SELECT 1) SELECT * FROM x":      true,
		"INSERT INTO t (a) VALUES (?) RETURNING id": true,
		"INSERT INTO t DEFAULT VALUES":              false,
		"DELETE FROM t":                             false,
		"BEGIN; DELETE FROM t; COMMIT;":             false,
		"":                                          false,
	}
	for q, want := range tests {
		assert.Equal(t, want, returnsRows(q), q)
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		in     string
		prefix byte
		want   string
	}{
		{"SELECT 1", '$', "SELECT 1"},
		{"a = ? AND b = ?", '$', "a = $1 AND b = $2"},
		{"a = '?' AND b = ?", '$', "a = '?' AND b = $1"},
		{`"we?rd" = ?`, '$', `"we?rd" = $1`},
		{"INSERT INTO a VALUES (?); INSERT INTO a VALUES (?, ?);", '?', "INSERT INTO a VALUES (?1); INSERT INTO a VALUES (?2, ?3);"},
		{"a = ?2 AND b = ?", '?', "a = ?2 AND b = ?1"},
		{"a = 'é?' AND b = ?", '?', "a = 'é?' AND b = ?1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rebind(tt.in, tt.prefix), tt.in)
	}
}

func TestMultiStatement(t *testing.T) {
	tests := map[string]bool{
		"SELECT 1":                        false,
		"DROP TABLE IF EXISTS a;":         false,
		"DROP TABLE IF EXISTS a;  \n":     false,
		"SELECT ';' FROM a":               false,
		"INSERT INTO a VALUES (?); COMMIT": true,
		"BEGIN; DELETE FROM a;":           true,
	}
	for q, want := range tests {
		assert.Equal(t, want, multiStatement(q), q)
	}
}

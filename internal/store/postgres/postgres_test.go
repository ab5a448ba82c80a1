package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/store"
)

func newMockDriver(t *testing.T) (*Driver, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return New(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestDriverGet(t *testing.T) {
	d, mock, cleanup := newMockDriver(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT body FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("courses", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"title":"Go"}`)))
	mock.ExpectQuery(`SELECT body FROM documents`).
		WithArgs("courses", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))

	doc, err := d.Get(context.Background(), "courses", "c1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Go"}`, string(doc))

	_, err = d.Get(context.Background(), "courses", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverInsertConflict(t *testing.T) {
	d, mock, cleanup := newMockDriver(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO documents .* ON CONFLICT \(collection, id\) DO NOTHING`).
		WithArgs("enrollments", "e1", `{"id":"e1"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("enrollments", "e1", `{"id":"e1"}`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, d.Insert(context.Background(), "enrollments", "e1", []byte(`{"id":"e1"}`)))
	err := d.Insert(context.Background(), "enrollments", "e1", []byte(`{"id":"e1"}`))
	assert.ErrorIs(t, err, store.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverModifyUpdatesLockedRow(t *testing.T) {
	d, mock, cleanup := newMockDriver(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT body FROM documents WHERE collection = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("submissions", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"v":1}`)))
	mock.ExpectExec(`UPDATE documents SET body = \$3`).
		WithArgs("submissions", "s1", `{"v":2}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc, err := d.Modify(context.Background(), "submissions", "s1", func(current []byte) ([]byte, error) {
		assert.JSONEq(t, `{"v":1}`, string(current))
		return []byte(`{"v":2}`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(doc))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverModifyRetriesLostInsertRace(t *testing.T) {
	d, mock, cleanup := newMockDriver(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("submissions", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}))
	mock.ExpectExec(`INSERT INTO documents`).WithArgs("submissions", "s1", `{"v":1}`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("submissions", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"v":1}`)))
	mock.ExpectExec(`UPDATE documents`).WithArgs("submissions", "s1", `{"v":2}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calls := 0
	doc, err := d.Modify(context.Background(), "submissions", "s1", func(current []byte) ([]byte, error) {
		calls++
		if current == nil {
			return []byte(`{"v":1}`), nil
		}
		return []byte(`{"v":2}`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, `{"v":2}`, string(doc))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverModifyAllSkipsUnchangedRows(t *testing.T) {
	d, mock, cleanup := newMockDriver(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, body FROM documents WHERE collection = \$1 ORDER BY id FOR UPDATE`).
		WithArgs("notifications").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).
			AddRow("n1", []byte(`{"read":false}`)).
			AddRow("n2", []byte(`{"read":true}`)))
	mock.ExpectExec(`UPDATE documents`).WithArgs("notifications", "n1", `{"read":true}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := d.ModifyAll(context.Background(), "notifications", func(current []byte) ([]byte, error) {
		if string(current) == `{"read":true}` {
			return nil, nil
		}
		return []byte(`{"read":true}`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverScan(t *testing.T) {
	d, mock, cleanup := newMockDriver(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT id, body FROM documents WHERE collection = \$1 ORDER BY id$`).
		WithArgs("courses").
		WillReturnRows(sqlmock.NewRows([]string{"id", "body"}).
			AddRow("a", []byte(`{}`)).
			AddRow("b", []byte(`{}`)))

	var ids []string
	require.NoError(t, d.Scan(context.Background(), "courses", func(id string, _ []byte) error {
		ids = append(ids, id)
		return nil
	}))
	assert.Equal(t, []string{"a", "b"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

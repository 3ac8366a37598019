package state

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cruiseqc/internal/dataset"
)

func newMockStore(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStoreWithDB(db), mock
}

func TestSQLiteStore_FailurePaths(t *testing.T) {
	errBoom := errors.New("disk I/O error")

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		run       func(s *SQLiteStore) error
		errMsg    string
	}{
		{
			name: "write document",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO documents").WillReturnError(errBoom)
			},
			run:    func(s *SQLiteStore) error { return s.WriteJSON(KeyColumns, map[string]int{"a": 1}) },
			errMsg: "failed to write document columns",
		},
		{
			name: "read document",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT value FROM documents").WithArgs(KeyColumns).WillReturnError(errBoom)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.ReadJSON(KeyColumns, &map[string]int{})
				return err
			},
			errMsg: "failed to read document columns",
		},
		{
			name: "insert move rolls back",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				prep := mock.ExpectPrepare("INSERT OR IGNORE INTO moves")
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
				prep.ExpectExec().WillReturnError(errBoom)
				mock.ExpectRollback()
			},
			run: func(s *SQLiteStore) error {
				now := time.Now()
				return s.AppendMoves([]dataset.Move{
					{ID: "a", Date: now, Action: dataset.ActionQCUpdate},
					{ID: "b", Date: now, Action: dataset.ActionQCUpdate},
				})
			},
			errMsg: "insert move b",
		},
		{
			name: "commit moves",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				prep := mock.ExpectPrepare("INSERT OR IGNORE INTO moves")
				prep.ExpectExec().WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit().WillReturnError(errBoom)
			},
			run: func(s *SQLiteStore) error {
				return s.AppendMoves([]dataset.Move{{ID: "a", Date: time.Now(), Action: dataset.ActionQCUpdate}})
			},
			errMsg: "commit transaction",
		},
		{
			name: "list moves bad date",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{
					"id", "date", "action", "stnnbr", "castno", "btlnbr",
					"latitude", "longitude", "param", "value", "description",
				}).AddRow("m1", "yesterday", dataset.ActionQCUpdate, "", "", "", "", "", "", "", "")
				mock.ExpectQuery("FROM moves ORDER BY seq").WillReturnRows(rows)
			},
			run: func(s *SQLiteStore) error {
				_, err := s.ListMoves()
				return err
			},
			errMsg: "invalid date on move m1",
		},
		{
			name: "source hash",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO source_hashes").WillReturnError(errBoom)
			},
			run:    func(s *SQLiteStore) error { return s.SetSourceHash("original.csv", "abc") },
			errMsg: "failed to set source hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setupMock(mock)

			err := tt.run(store)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLiteStore_EmptyMovesSkipsDatabase(t *testing.T) {
	store, mock := newMockStore(t)
	require.NoError(t, store.AppendMoves(nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

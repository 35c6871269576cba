package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	"github.com/aevon-lab/trackpipe/internal/codec"
	"github.com/aevon-lab/trackpipe/internal/core/storage"
)

var fixedNow = time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

func sampleRecord(trackID string) *v1.EventRecord {
	props := v1.NewProperties()
	props.Set("amount", v1.Int(10))
	return &v1.EventRecord{
		TrackID:    trackID,
		Kind:       v1.KindTrack,
		Event:      "Purchase",
		Time:       fixedNow.UnixMilli(),
		DistinctID: "anon-1",
		Lib:        v1.LibInfo{Lib: "Go", Version: "1.0.0", Method: v1.LibMethodCode},
		Properties: props,
	}
}

func TestAdapter_Enqueue(t *testing.T) {
	tests := []struct {
		name       string
		rec        *v1.EventRecord
		mockResult func(mock sqlmock.Sqlmock, rec *v1.EventRecord)
		assertions func(t *testing.T, err error)
	}{
		{
			name: "success",
			rec:  sampleRecord("t-1"),
			mockResult: func(mock sqlmock.Sqlmock, rec *v1.EventRecord) {
				mock.ExpectQuery(regexp.QuoteMeta(queryEnqueue)).
					WithArgs(rec.TrackID, "track", "Purchase", "cbor+zstd", sqlmock.AnyArg(), fixedNow).
					WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(7)))
			},
			assertions: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "duplicate maps to ErrDuplicate",
			rec:  sampleRecord("t-dup"),
			mockResult: func(mock sqlmock.Sqlmock, rec *v1.EventRecord) {
				mock.ExpectQuery(regexp.QuoteMeta(queryEnqueue)).
					WithArgs(rec.TrackID, "track", "Purchase", "cbor+zstd", sqlmock.AnyArg(), fixedNow).
					WillReturnRows(sqlmock.NewRows([]string{"seq"}))
			},
			assertions: func(t *testing.T, err error) {
				require.ErrorIs(t, err, storage.ErrDuplicate)
			},
		},
		{
			name: "driver error is wrapped",
			rec:  sampleRecord("t-err"),
			mockResult: func(mock sqlmock.Sqlmock, rec *v1.EventRecord) {
				mock.ExpectQuery(regexp.QuoteMeta(queryEnqueue)).
					WillReturnError(errors.New("connection reset"))
			},
			assertions: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "failed to enqueue record")
				require.NotErrorIs(t, err, storage.ErrDuplicate)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t, codec.Codec{Encoding: codec.EncodingCBOR, Compression: codec.CompressionZstd})
			defer db.Close()

			tc.mockResult(mock, tc.rec)
			err := adapter.Enqueue(context.Background(), tc.rec.Kind, tc.rec)
			tc.assertions(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_PendingAfterDecodesEachFormat(t *testing.T) {
	adapter, mock, db := newMockAdapter(t, codec.Codec{})
	defer db.Close()

	jsonRec := sampleRecord("t-json")
	jsonPayload, err := codec.Codec{}.Encode(jsonRec)
	require.NoError(t, err)

	cborCodec := codec.Codec{Encoding: codec.EncodingCBOR, Compression: codec.CompressionZstd}
	cborRec := sampleRecord("t-cbor")
	cborPayload, err := cborCodec.Encode(cborRec)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(queryPendingAfter)).
		WithArgs(int64(10), 2).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "track_id", "kind", "payload_format", "payload", "enqueued_at"}).
			AddRow(int64(11), "t-json", "track", "json", jsonPayload, fixedNow).
			AddRow(int64(12), "t-cbor", "track", "cbor+zstd", cborPayload, fixedNow.Add(time.Second)),
		).RowsWillBeClosed()

	items, err := adapter.PendingAfter(context.Background(), 10, 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(11), items[0].Seq)
	require.Equal(t, "t-json", items[0].Record.TrackID)
	require.Equal(t, v1.KindTrack, items[0].Kind)
	require.Equal(t, "t-cbor", items[1].Record.TrackID)
	require.Equal(t, "Purchase", items[1].Record.Event)
	require.Equal(t, fixedNow.Add(time.Second), items[1].EnqueuedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_PendingAfterRejectsUnknownFormat(t *testing.T) {
	adapter, mock, db := newMockAdapter(t, codec.Codec{})
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryPendingAfter)).
		WithArgs(int64(0), 10).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "track_id", "kind", "payload_format", "payload", "enqueued_at"}).
			AddRow(int64(1), "t-1", "track", "protobuf", []byte{0x01}, fixedNow))

	_, err := adapter.PendingAfter(context.Background(), 0, 10)
	require.ErrorContains(t, err, "unknown payload format")
}

func TestAdapter_AckThrough(t *testing.T) {
	adapter, mock, db := newMockAdapter(t, codec.Codec{})
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryAckThrough)).
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := adapter.AckThrough(context.Background(), 12)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_KV(t *testing.T) {
	adapter, mock, db := newMockAdapter(t, codec.Codec{})
	defer db.Close()
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(queryKVGet)).
		WithArgs(storage.KeyLoginID).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	_, ok, err := adapter.Get(ctx, storage.KeyLoginID)
	require.NoError(t, err)
	require.False(t, ok)

	mock.ExpectExec(regexp.QuoteMeta(queryKVSet)).
		WithArgs(storage.KeyLoginID, "user-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, adapter.Set(ctx, storage.KeyLoginID, "user-1"))

	mock.ExpectQuery(regexp.QuoteMeta(queryKVGet)).
		WithArgs(storage.KeyLoginID).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("user-1"))
	value, ok, err := adapter.Get(ctx, storage.KeyLoginID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "user-1", value)

	mock.ExpectExec(regexp.QuoteMeta(queryKVDelete)).
		WithArgs(storage.KeyLoginID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, adapter.Delete(ctx, storage.KeyLoginID))

	mock.ExpectQuery(regexp.QuoteMeta(queryKVGet)).
		WithArgs(storage.KeyFirstDay).
		WillReturnError(errors.New("timeout"))
	_, _, err = adapter.Get(ctx, storage.KeyFirstDay)
	require.ErrorContains(t, err, "failed to read first_day")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("outbound_events").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("sdk_kv").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err = validateSchema(db)
	require.ErrorContains(t, err, "sdk_kv table does not exist")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CloseReturnsDBCloseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	for _, q := range allQueries() {
		mock.ExpectPrepare(regexp.QuoteMeta(q)).WillBeClosed()
	}
	adapter, err := newAdapter(db, codec.Codec{})
	require.NoError(t, err)

	dbCloseErr := errors.New("db close failed")
	mock.ExpectClose().WillReturnError(dbCloseErr)

	err = adapter.Close()
	require.ErrorContains(t, err, "failed to close database")
	require.ErrorIs(t, err, dbCloseErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewAdapter_PrepareFailureClosesPrepared(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPrepare(regexp.QuoteMeta(queryEnqueue)).WillBeClosed()
	mock.ExpectPrepare(regexp.QuoteMeta(queryPendingAfter)).WillReturnError(errors.New("syntax error"))

	_, err = newAdapter(db, codec.Codec{})
	require.ErrorContains(t, err, "failed to prepare pendingAfter statement")
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T, c codec.Codec) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	for _, q := range allQueries() {
		mock.ExpectPrepare(regexp.QuoteMeta(q))
	}
	adapter, err := newAdapter(db, c)
	require.NoError(t, err)
	adapter.now = func() time.Time { return fixedNow }

	return adapter, mock, db
}

func allQueries() []string {
	return []string{queryEnqueue, queryPendingAfter, queryAckThrough, queryKVGet, queryKVSet, queryKVDelete}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/disbursement/internal/domain/entity"
	domainwf "github.com/garyjia/disbursement/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// csvWriter is a LedgerWriter that writes one id per line
type csvWriter struct {
	err error
}

func (w *csvWriter) Write(out io.Writer, requests []*entity.Request) error {
	if w.err != nil {
		return w.err
	}
	ids := make([]string, len(requests))
	for i, r := range requests {
		ids[i] = r.ID
	}
	_, err := io.WriteString(out, strings.Join(ids, "\n"))
	return err
}

func (w *csvWriter) Extension() string { return ".csv" }

type mockStorage struct {
	files map[string][]byte
}

func (m *mockStorage) Save(ctx context.Context, relativePath string, content []byte) (string, error) {
	m.files[relativePath] = content
	return "/archive/" + relativePath, nil
}

func (m *mockStorage) Read(ctx context.Context, relativePath string) ([]byte, error) {
	content, ok := m.files[relativePath]
	if !ok {
		return nil, fmt.Errorf("no such file %s", relativePath)
	}
	return content, nil
}

func (m *mockStorage) Exists(ctx context.Context, relativePath string) bool {
	_, ok := m.files[relativePath]
	return ok
}

func TestExportService_ExportLedger(t *testing.T) {
	f := newFixture(t)
	storage := &mockStorage{files: make(map[string][]byte)}
	svc := NewExportService(f.store, f.store.Users(), &csvWriter{}, storage, f.logger).(*exportServiceImpl)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 15, 4, 5, 0, time.UTC) }

	own := f.submit(t, ellaID, entity.RequestTypeReimbursement, "10")
	f.submit(t, ninaID, entity.RequestTypeReimbursement, "20")

	export, err := svc.ExportLedger(context.Background(), ellaID, entity.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, "disbursements-20260302-150405.csv", export.FileName)
	assert.Equal(t, 1, export.RowCount)
	assert.Equal(t, own.ID, string(export.Content))
	assert.Equal(t, "/archive/user-1/disbursements-20260302-150405.csv", export.ArchivePath)
	assert.True(t, storage.Exists(context.Background(), "user-1/"+export.FileName))

	export, err = svc.ExportLedger(context.Background(), fionaID, entity.RequestFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, export.RowCount)
}

func TestExportService_Errors(t *testing.T) {
	f := newFixture(t)

	svc := NewExportService(f.store, f.store.Users(), &csvWriter{err: errors.New("disk full")}, nil, f.logger)
	_, err := svc.ExportLedger(context.Background(), ellaID, entity.RequestFilter{})
	assert.ErrorContains(t, err, "disk full")

	_, err = svc.ExportLedger(context.Background(), 404, entity.RequestFilter{})
	assert.ErrorIs(t, err, domainwf.ErrNotFound)

	_, err = svc.ExportLedger(context.Background(), ellaID, entity.RequestFilter{RequestType: "LOAN"})
	assert.ErrorIs(t, err, domainwf.ErrValidation)
}

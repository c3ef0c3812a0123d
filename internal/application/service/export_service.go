package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/garyjia/disbursement/internal/application/port"
	"github.com/garyjia/disbursement/internal/domain/entity"
)

// Export is a rendered ledger ready for download
type Export struct {
	FileName    string
	Content     []byte
	RowCount    int
	ArchivePath string
}

// ExportService renders request listings as ledger spreadsheets
type ExportService interface {
	ExportLedger(ctx context.Context, userID int64, filter entity.RequestFilter) (*Export, error)
}

type exportServiceImpl struct {
	requestRepo port.RequestRepository
	userRepo    port.UserRepository
	writer      port.LedgerWriter
	storage     port.FileStorage
	logger      Logger
	now         func() time.Time
}

// NewExportService creates a new ExportService. storage may be nil, in which case exports are not archived.
func NewExportService(
	requestRepo port.RequestRepository,
	userRepo port.UserRepository,
	writer port.LedgerWriter,
	storage port.FileStorage,
	logger Logger,
) ExportService {
	return &exportServiceImpl{
		requestRepo: requestRepo,
		userRepo:    userRepo,
		writer:      writer,
		storage:     storage,
		logger:      logger,
		now:         time.Now,
	}
}

// ExportLedger renders every request the user may see that matches filter
func (s *exportServiceImpl) ExportLedger(ctx context.Context, userID int64, filter entity.RequestFilter) (*Export, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if !user.Role.IsPrivileged() {
		filter.EmployeeID = user.ID
	}

	requests, _, err := s.requestRepo.List(ctx, filter, port.Page{})
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	var buf bytes.Buffer
	if err := s.writer.Write(&buf, requests); err != nil {
		s.logger.Error("Failed to render ledger", "error", err, "user_id", userID)
		return nil, fmt.Errorf("render ledger: %w", err)
	}

	export := &Export{
		FileName: fmt.Sprintf("disbursements-%s%s", s.now().Format("20060102-150405"), s.writer.Extension()),
		Content:  buf.Bytes(),
		RowCount: len(requests),
	}

	if s.storage != nil {
		path, err := s.storage.Save(ctx, fmt.Sprintf("user-%d/%s", user.ID, export.FileName), export.Content)
		if err != nil {
			s.logger.Error("Failed to archive ledger", "error", err, "file_name", export.FileName)
			return nil, fmt.Errorf("archive ledger: %w", err)
		}
		export.ArchivePath = path
	}

	s.logger.Info("Ledger exported", "user_id", userID, "rows", export.RowCount, "file_name", export.FileName)
	return export, nil
}

package port

import (
	"io"

	"github.com/garyjia/disbursement/internal/domain/entity"
)

// LedgerWriter renders a request listing as a spreadsheet
type LedgerWriter interface {
	Write(w io.Writer, requests []*entity.Request) error

	// Extension is the file extension of the rendered document, e.g. ".xlsx"
	Extension() string
}

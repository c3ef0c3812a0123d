package port

import "context"

// FileStorage keeps generated documents such as ledger exports
type FileStorage interface {
	Save(ctx context.Context, relativePath string, content []byte) (string, error)
	Read(ctx context.Context, relativePath string) ([]byte, error)
	Exists(ctx context.Context, relativePath string) bool
}

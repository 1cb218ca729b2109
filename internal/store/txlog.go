package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BTreeMap/FarmFinBot/internal/models"
)

// TransactionLog records applied transfers. Entries are append-only.
type TransactionLog interface {
	Append(ctx context.Context, rec models.TransferRecord) error
	Close() error
}

// Constants for file-backed storage
const (
	// DefaultDirPermissions defines the default permissions for state directories
	DefaultDirPermissions = 0755
	// DefaultFilePermissions defines the permissions of the transaction log file
	DefaultFilePermissions = 0644
	// DefaultLogFileName is the log file created inside the state directory
	DefaultLogFileName = "transactions.log"
)

// FormatLogLine renders one transaction log line.
func FormatLogLine(rec models.TransferRecord) string {
	return fmt.Sprintf("[%s] User: %s, Destino: %s, Monto: %s\n",
		rec.Timestamp.Format(time.RFC3339), rec.UserID, rec.ToAccount, rec.Amount.StringFixed(2))
}

// FileLog appends one line per transfer to a plain text file. The file is
// opened, written and closed for every entry.
type FileLog struct {
	mu   sync.Mutex
	path string
}

// NewFileLog creates a file log at path, creating parent directories.
func NewFileLog(path string) (*FileLog, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	slog.Debug("FileLog.NewFileLog: transaction log ready", "path", path)
	return &FileLog{path: path}, nil
}

// Path returns the log file location.
func (l *FileLog) Path() string {
	return l.path
}

func (l *FileLog) Append(_ context.Context, rec models.TransferRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open transaction log: %w", err)
	}
	if _, err := f.WriteString(FormatLogLine(rec)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write transaction log: %w", err)
	}
	return f.Close()
}

func (l *FileLog) Close() error {
	return nil
}

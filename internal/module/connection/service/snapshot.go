package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"fincoach/internal/module/connection/domain"
	"fincoach/internal/shared"
)

// snapshotFiles maps a connection display name to its snapshot file. Names
// not listed fall back to lowercase-with-underscores.
var snapshotFiles = map[string]string{
	"PhonePe":     "phonepe.json",
	"Google Pay":  "gpay.json",
	"GPay":        "gpay.json",
	"Paytm":       "paytm.json",
	"HDFC Bank":   "hdfc.json",
	"ICICI Bank":  "icici.json",
	"SBI Bank":    "sbi.json",
	"Cash Income": "cash_income.json",
	"testincome":  "testincome.json",
	"testspend":   "testspend.json",
}

// SnapshotStore reads provider snapshots off disk. It is the stand-in for a
// real aggregator API: the file is the provider's current truth.
type SnapshotStore interface {
	// Load returns the snapshot payload for a source name plus the file's
	// modification time, which dates any undated transactions.
	Load(name string) (*domain.Payload, time.Time, error)
	// Available lists the source names with a snapshot on disk.
	Available() []string
}

type fileSnapshotStore struct {
	dir    string
	logger *zap.Logger
}

func NewSnapshotStore(dir string, logger *zap.Logger) SnapshotStore {
	return &fileSnapshotStore{dir: dir, logger: logger}
}

// SnapshotFileName resolves the file a source name reads from.
func SnapshotFileName(name string) string {
	if f, ok := snapshotFiles[name]; ok {
		return f
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", "_") + ".json"
}

func (s *fileSnapshotStore) Load(name string) (*domain.Payload, time.Time, error) {
	path := filepath.Join(s.dir, SnapshotFileName(name))

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, time.Time{}, shared.ErrSnapshotMissing.WithDetails("%s", path)
		}
		return nil, time.Time{}, fmt.Errorf("stat snapshot %s: %w", path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var payload domain.Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warn("snapshot unreadable",
			zap.String("source", name),
			zap.String("path", path),
			zap.Error(err))
		return nil, time.Time{}, shared.ErrSnapshotInvalid.WithDetails("%s", path)
	}

	mtime := info.ModTime()
	s.dateUndated(&payload, mtime)

	if payload.AllocatedTransactionIDs == nil {
		payload.AllocatedTransactionIDs = domain.NewStringSet()
	}
	return &payload, mtime, nil
}

// dateUndated stamps transactions that carry no usable timestamp with the
// snapshot file's mtime, so they stay comparable in the sync diff.
func (s *fileSnapshotStore) dateUndated(p *domain.Payload, mtime time.Time) {
	for i := range p.Transactions {
		if p.Transactions[i].Timestamp.IsZero() {
			p.Transactions[i].Timestamp = domain.FlexTime{Time: mtime}
			s.logger.Debug("undated transaction stamped with snapshot mtime",
				zap.String("transaction_id", p.Transactions[i].ID))
		}
	}
}

func (s *fileSnapshotStore) Available() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("snapshot dir unreadable", zap.String("dir", s.dir), zap.Error(err))
		return nil
	}
	seen := map[string]bool{}
	var names []string
	for name, file := range snapshotFiles {
		if name == "GPay" {
			// alias of Google Pay
			continue
		}
		for _, e := range entries {
			if e.Name() == file && !seen[file] {
				names = append(names, name)
				seen[file] = true
			}
		}
	}
	return names
}

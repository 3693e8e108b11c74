// Package census enumerates running processes and ranks them by CPU usage.
package census

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/srodi/loadreaper/pkg/session"
	"github.com/srodi/loadreaper/pkg/types"
)

// Census ranks the output of a ProcessLister for one cycle.
type Census struct {
	lister ProcessLister
	logger *zap.Logger
}

// New builds a census over lister.
func New(lister ProcessLister, logger *zap.Logger) *Census {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Census{lister: lister, logger: logger}
}

// Rank returns every process except the daemon itself, highest CPU first.
// Ties keep listing order. If the lister cannot be invoked the session is
// failed and an empty slice is returned.
func (c *Census) Rank(ctx context.Context, sess *session.Session) []types.ProcessInfo {
	if sess.Failed() {
		return nil
	}
	rows, err := c.lister.List(ctx)
	if err != nil {
		c.logger.Error("process census failed", zap.Error(err))
		sess.Fail(err)
		return nil
	}

	ranked := Filter(rows, sess.PID)
	SortByCPU(ranked)
	c.logger.Debug("process census complete",
		zap.Int("listed", len(rows)),
		zap.Int("ranked", len(ranked)))
	return ranked
}

// Filter drops the daemon's own pid and any repeated pid, keeping the first row seen.
func Filter(rows []types.ProcessInfo, self int) []types.ProcessInfo {
	seen := make(map[int]struct{}, len(rows))
	out := make([]types.ProcessInfo, 0, len(rows))
	for _, row := range rows {
		if row.PID == self {
			continue
		}
		if _, dup := seen[row.PID]; dup {
			continue
		}
		seen[row.PID] = struct{}{}
		out = append(out, row)
	}
	return out
}

// SortByCPU orders rows by CPU percentage descending, stable on ties.
func SortByCPU(rows []types.ProcessInfo) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CPUPercent > rows[j].CPUPercent })
}

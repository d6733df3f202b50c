package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a logger at debug level. Failed runs and
// server errors are logged as warnings.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks that log through l, prefixed with "events".
func NewLogHooks(l *log.Logger) *LogHooks {
	return &LogHooks{logger: l.WithPrefix("events")}
}

func (h *LogHooks) OnRunStart(_ context.Context, composition string, particles int) {
	h.logger.Debug("run started", "composition", composition, "particles", particles)
}

func (h *LogHooks) OnRowComplete(_ context.Context, molecule string, placed, corrections int, d time.Duration) {
	h.logger.Debug("row placed", "molecule", molecule, "placed", placed, "corrections", corrections, "took", d)
}

func (h *LogHooks) OnRunComplete(_ context.Context, composition string, placed int, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("run ended", "composition", composition, "placed", placed, "took", d, "err", err)
		return
	}
	h.logger.Debug("run finished", "composition", composition, "placed", placed, "took", d)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(context.Context, string, string) {}

func (h *LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	if status >= 500 {
		h.logger.Warn("request", "method", method, "path", path, "status", status, "took", d)
		return
	}
	h.logger.Debug("request", "method", method, "path", path, "status", status, "took", d)
}

var (
	_ PlacementHooks = (*LogHooks)(nil)
	_ CacheHooks     = (*LogHooks)(nil)
	_ HTTPHooks      = (*LogHooks)(nil)
)

package audit

import (
	"encoding/json"
	"log/slog"

	"github.com/puzpuzpuz/xsync/v4"
	"gorm.io/gorm"

	"github.com/abyssnet/flochub/internal/floc"
	"github.com/abyssnet/flochub/internal/metrics"
	"github.com/abyssnet/flochub/internal/queue"
)

const entryBufferKey = "audit_entries"

// Writer persists device actions to the audit database on a best-effort
// basis: a failed write is buffered in an in-memory queue and retried on the
// next call rather than blocking or dropping the core's tick.
type Writer struct {
	db      *gorm.DB
	buffer  *queue.Queue
	cache   *xsync.Map[uint8, bool]
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWriter builds a Writer backed by db, with its recognized-command cache
// primed from the current command_types table.
func NewWriter(db *gorm.DB, m *metrics.Metrics, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		db:      db,
		buffer:  queue.NewQueue(),
		cache:   xsync.NewMap[uint8, bool](),
		metrics: m,
		logger:  logger,
	}
	var types []CommandType
	if err := db.Find(&types).Error; err != nil {
		return nil, err
	}
	for _, ct := range types {
		w.cache.Store(ct.ID, true)
	}
	return w, nil
}

// Recognized reports whether commandType is in the seeded registry. It is
// passed to floc.NewCore as the recognizedCommands callback.
func (w *Writer) Recognized(commandType uint8) bool {
	_, ok := w.cache.Load(commandType)
	return ok
}

// RecordDeviceAction persists a accepted device action, retrying any
// previously buffered failures first. Errors are logged and counted, never
// returned: an audit write failure must never affect the tick loop.
func (w *Writer) RecordDeviceAction(action floc.DeviceAction) {
	w.retryBuffered()

	entry := Entry{
		SrcAddr:     action.SrcAddr,
		LastHop:     action.LastHop,
		FlocType:    uint8(action.FlocType),
		CommandType: action.CommandType,
		DataSize:    action.DataSize,
		IsError:     action.Error,
	}
	if err := w.db.Create(&entry).Error; err != nil {
		w.logger.Warn("audit: write failed, buffering for retry", "error", err)
		if w.metrics != nil {
			w.metrics.RecordAuditWriteFailure()
		}
		if raw, marshalErr := json.Marshal(entry); marshalErr == nil {
			if _, pushErr := w.buffer.Push(entryBufferKey, raw); pushErr != nil {
				w.logger.Warn("audit: buffering failed entry dropped it", "error", pushErr)
			}
		}
	}
}

func (w *Writer) retryBuffered() {
	pending := w.buffer.Drain(entryBufferKey)
	if len(pending) == 0 {
		return
	}
	for _, raw := range pending {
		var entry Entry
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		entry.ID = 0
		if err := w.db.Create(&entry).Error; err != nil {
			if _, pushErr := w.buffer.Push(entryBufferKey, raw); pushErr != nil {
				w.logger.Warn("audit: re-buffering failed entry dropped it", "error", pushErr)
			}
		}
	}
}

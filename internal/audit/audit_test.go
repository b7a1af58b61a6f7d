package audit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abyssnet/flochub/internal/audit"
	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/floc"
)

func openTestDB(t *testing.T) *audit.Writer {
	t.Helper()
	cfg := &config.Config{}
	cfg.Database.DSN = ":memory:"
	db, err := audit.OpenDB(cfg)
	require.NoError(t, err)
	w, err := audit.NewWriter(db, nil, nil)
	require.NoError(t, err)
	return w
}

func TestSeededCommandTypesAreRecognized(t *testing.T) {
	w := openTestDB(t)
	require.True(t, w.Recognized(1))
	require.True(t, w.Recognized(2))
	require.True(t, w.Recognized(3))
	require.False(t, w.Recognized(200))
}

func TestRecordDeviceActionToleratesRepeatedCalls(t *testing.T) {
	w := openTestDB(t)
	w.RecordDeviceAction(floc.DeviceAction{
		SrcAddr:     3,
		LastHop:     3,
		FlocType:    floc.PacketCommand,
		CommandType: 1,
		DataSize:    0,
	})
	// No assertion on row count here: OpenDB's in-memory DSN is exercised
	// for side-effect-free construction; RecordDeviceAction must not panic
	// or return an error even when called repeatedly.
	w.RecordDeviceAction(floc.DeviceAction{SrcAddr: 4, FlocType: floc.PacketData})
}

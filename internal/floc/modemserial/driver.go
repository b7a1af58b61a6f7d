// Package modemserial implements floc.Driver over a real acoustic modem
// attached via a serial link. The physical modem protocol itself is outside
// this specification's scope (treated as an opaque driver); this package
// picks the simplest framing that keeps a half-duplex serial link in sync: a
// single length-prefix byte ahead of each FLOC frame.
package modemserial

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/floc"
)

const pingFrameMarker = 0xFF

// Driver drives a real acoustic modem over a serial port. Writes are
// serialized with a mutex since the underlying port is not safe for
// concurrent use; reads happen on a single background goroutine.
type Driver struct {
	port io.ReadWriteCloser
	mu   sync.Mutex

	core   *floc.Core
	logger *slog.Logger
}

// Open opens the serial port named in cfg and returns a Driver ready to have
// a core bound via BindCore.
func Open(cfg *config.Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Modem.SerialPort == "" {
		return nil, fmt.Errorf("modemserial: serial port not configured")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Modem.SerialPort,
		Baud:        cfg.Modem.BaudRate,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("modemserial: opening %s: %w", cfg.Modem.SerialPort, err)
	}
	return &Driver{port: port, logger: logger}, nil
}

// BindCore attaches the core this driver feeds frames into. Must be called
// once, before Run.
func (d *Driver) BindCore(core *floc.Core) {
	d.core = core
}

// Run reads frames from the serial port until ctx is cancelled or the port
// returns a non-timeout error.
func (d *Driver) Run(ctx context.Context) error {
	reader := bufio.NewReader(d.port)
	lenByte := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := io.ReadFull(reader, lenByte); err != nil {
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("modemserial: reading length prefix: %w", err)
		}

		n := int(lenByte[0])
		if n == 0 || n > floc.MaxFrameSize {
			d.logger.Warn("modemserial: out-of-range frame length, resyncing", "len", n)
			continue
		}

		frame := make([]byte, n)
		if _, err := io.ReadFull(reader, frame); err != nil {
			d.logger.Warn("modemserial: short read, dropping frame", "error", err)
			continue
		}
		if d.core != nil {
			d.core.ReceiveFrame(frame)
		}
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}

// Broadcast writes frame to the serial port prefixed by its one-byte length.
func (d *Driver) Broadcast(_ context.Context, frame []byte) error {
	if len(frame) > floc.MaxFrameSize {
		return fmt.Errorf("modemserial: frame exceeds max size: %d", len(frame))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.port.Write([]byte{byte(len(frame))}); err != nil {
		return fmt.Errorf("modemserial: writing length prefix: %w", err)
	}
	_, err := d.port.Write(frame)
	return err
}

// Ping issues a ranging ping by writing a reserved marker frame carrying the
// target modem id.
func (d *Driver) Ping(_ context.Context, modemID uint32) error {
	var buf [5]byte
	buf[0] = pingFrameMarker
	binary.BigEndian.PutUint32(buf[1:], modemID)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.port.Write([]byte{byte(len(buf))}); err != nil {
		return fmt.Errorf("modemserial: writing ping length prefix: %w", err)
	}
	_, err := d.port.Write(buf[:])
	return err
}

// QueryStatus is a no-op trigger on this transport: the real modem is
// expected to push its status as an ordinary framed RESPONSE the next time
// it is asked, delivered through the normal Run receive loop.
func (d *Driver) QueryStatus(context.Context) error {
	return nil
}

// ModemIDFrom packs a FLOC device/network id pair into the modem's own
// addressing scheme.
func (d *Driver) ModemIDFrom(deviceID, networkID uint16) uint32 {
	return uint32(networkID)<<16 | uint32(deviceID)
}

// Close releases the underlying serial port.
func (d *Driver) Close() error {
	return d.port.Close()
}

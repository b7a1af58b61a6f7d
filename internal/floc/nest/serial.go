package nest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tarm/serial"

	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/floc"
)

// SerialDriver reads NeST envelopes from a real serial port. Framing has no
// escape sequences, so a frame is recovered by scanning byte-by-byte for a
// direction prefix rather than the FEND-delimited approach a KISS-style link
// would need.
type SerialDriver struct {
	port   io.ReadWriteCloser
	reader *bufio.Reader
	core   *floc.Core
	logger *slog.Logger
}

// OpenSerial opens the NeST serial port named in cfg.
func OpenSerial(cfg *config.Config, logger *slog.Logger) (*SerialDriver, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.NeST.SerialPort == "" {
		return nil, fmt.Errorf("nest: serial port not configured")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.NeST.SerialPort,
		Baud:        cfg.NeST.BaudRate,
		ReadTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("nest: opening %s: %w", cfg.NeST.SerialPort, err)
	}
	return &SerialDriver{port: port, reader: bufio.NewReader(port), logger: logger}, nil
}

// BindCore attaches the core that TypeBroadcast envelopes are injected into.
// Must be called once, before Run.
func (d *SerialDriver) BindCore(core *floc.Core) {
	d.core = core
}

// Run reads frames until ctx is cancelled or the port returns a
// non-timeout error. One frame is read per read-until-prefix loop: a single
// byte is read at a time until a direction prefix is seen, then the fixed
// type+size header and the declared-length body follow immediately.
func (d *SerialDriver) Run(ctx context.Context) error {
	var b [1]byte
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := io.ReadFull(d.reader, b[:]); err != nil {
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("nest: reading prefix: %w", err)
		}
		if b[0] != PrefixHostToDevice {
			continue
		}

		header := make([]byte, 2)
		if _, err := io.ReadFull(d.reader, header); err != nil {
			if isTimeout(err) {
				continue
			}
			d.logger.Warn("nest: short read on header, resyncing", "error", err)
			continue
		}
		size := header[1]
		body := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(d.reader, body); err != nil {
				d.logger.Warn("nest: short read on body, resyncing", "error", err)
				continue
			}
		}

		frame := Encode(PrefixHostToDevice, header[0], body)
		d.handle(frame)
	}
}

func (d *SerialDriver) handle(frame []byte) {
	env, err := Parse(frame)
	switch {
	case errors.Is(err, ErrUnicastReserved):
		d.logger.Warn("nest: unicast frame dropped (reserved)", "dest", env.Dest)
		return
	case err != nil:
		d.logger.Warn("nest: malformed envelope", "error", err)
		return
	}
	if env.Type != TypeBroadcast || d.core == nil {
		return
	}
	if err := d.core.Inject(env.Body); err != nil {
		d.logger.Warn("nest: injection failed", "error", err)
	}
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	te, ok := err.(timeout)
	return ok && te.Timeout()
}

// Close releases the underlying serial port.
func (d *SerialDriver) Close() error {
	return d.port.Close()
}

package nest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/abyssnet/flochub/internal/floc"
	"github.com/abyssnet/flochub/internal/pubsub"
)

// SimDriver reads NeST envelopes published onto a pubsub topic (configured
// as NeST.SimTopic), for integration tests and the monitor console's
// injection endpoint, neither of which has a real serial host to talk to.
type SimDriver struct {
	ps     pubsub.PubSub
	topic  string
	core   *floc.Core
	logger *slog.Logger
}

// NewSim builds a SimDriver subscribed to topic on ps.
func NewSim(ps pubsub.PubSub, topic string, logger *slog.Logger) *SimDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimDriver{ps: ps, topic: topic, logger: logger}
}

// BindCore attaches the core that TypeBroadcast envelopes are injected into.
// Must be called once, before Run.
func (d *SimDriver) BindCore(core *floc.Core) {
	d.core = core
}

// Run delivers every envelope published to the bound topic until ctx is cancelled.
func (d *SimDriver) Run(ctx context.Context) error {
	sub := d.ps.Subscribe(d.topic)
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-sub.Channel():
			if !ok {
				return nil
			}
			d.handle(frame)
		}
	}
}

func (d *SimDriver) handle(frame []byte) {
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

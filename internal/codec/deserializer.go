package codec

import (
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
)

// Deserializer decodes versioned messages. It is safe for concurrent use.
type Deserializer struct {
	logger       *slog.Logger
	onNewerMinor func(protocol.Version)
	warned       sync.Map
}

// Option configures a Deserializer.
type Option func(*Deserializer)

// WithNewerMinorHook registers fn to be called every time a message from a
// newer minor protocol version is decoded.
func WithNewerMinorHook(fn func(protocol.Version)) Option {
	return func(d *Deserializer) {
		d.onNewerMinor = fn
	}
}

// WithLogger overrides the logger used for the newer-minor advisory.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Deserializer) {
		d.logger = logger
	}
}

func NewDeserializer(opts ...Option) *Deserializer {
	d := &Deserializer{
		logger: slog.Default().With("component", "deserializer"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode parses a complete message. The major version is checked before any
// operation is interpreted.
func (d *Deserializer) Decode(data []byte) (*protocol.Message, error) {
	version, payload, err := readEnvelope(data)
	if err != nil {
		return nil, err
	}
	if err := checkMajor(version); err != nil {
		return nil, err
	}
	if version.Minor > MinorVersion {
		d.newerMinor(version)
	}
	ops, err := decodeBody(payload)
	if err != nil {
		return nil, err
	}
	return &protocol.Message{Version: version, Operations: ops}, nil
}

// Deserialize decodes data and replays it into h. The hydrator only sees
// messages that decoded completely.
func (d *Deserializer) Deserialize(data []byte, h Hydrator) error {
	msg, err := d.Decode(data)
	if err != nil {
		return err
	}
	return Replay(msg, h)
}

// newerMinor logs once per distinct version; the hook fires every time.
func (d *Deserializer) newerMinor(v protocol.Version) {
	if _, seen := d.warned.LoadOrStore(v, struct{}{}); !seen {
		d.logger.Warn("parsing message from a future protocol version, some features might not be propagated",
			"message_version", v.String(),
			"current_version", OwnVersion.String(),
		)
	}
	if d.onNewerMinor != nil {
		d.onNewerMinor(v)
	}
}

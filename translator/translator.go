// Package translator runs the per-connection translation between a legacy
// peer and the current protocol representation.
package translator

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/Mmx233/ProtoBridge/datafix"
	"github.com/Mmx233/ProtoBridge/handler"
	"github.com/Mmx233/ProtoBridge/protocol"
	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
	"github.com/rs/zerolog"
)

// DefaultPassthroughChannel is the custom payload channel relayed verbatim.
const DefaultPassthroughChannel = "minecraft:brand"

type State int32

const (
	StateInactive State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// PacketIDs maps packet ids of one version and direction to kinds and back.
type PacketIDs interface {
	Kind(dir schema.Direction, version, id int32) (schema.Kind, bool)
	ID(dir schema.Direction, version int32, kind schema.Kind) (int32, bool)
}

// Protocol bundles the immutable definitions shared by every connection.
type Protocol struct {
	Current     int32
	Table       *schema.Table
	Dispatcher  *handler.Dispatcher
	IDs         PacketIDs
	Bridge      datafix.Bridge
	DataVersion func(protocol int32) (int32, bool)
	// PayloadKind is the kind of custom payload frames, whose first field is the channel.
	PayloadKind schema.Kind
}

// Supports reports whether version has a data version, which every
// translatable version declares.
func (p *Protocol) Supports(version int32) bool {
	_, ok := p.DataVersion(version)
	return ok
}

type Config struct {
	PassthroughChannel string
	// FatalOnDrop turns every dropped message into a connection-fatal error.
	FatalOnDrop bool
	CacheSize   int
	Metrics     *Metrics
	// OnDrop observes dropped messages.
	OnDrop func(dir schema.Direction, kind schema.Kind, err error)
}

// Translator is owned by one connection. Inbound and outbound calls may
// run concurrently with each other.
type Translator struct {
	proto    *Protocol
	cfg      Config
	ctx      *session.Context
	resolver *schema.Resolver
	native   *schema.Codec
	// legacy is published before state turns active and never replaced.
	legacy   atomic.Pointer[schema.Codec]
	logger   zerolog.Logger

	state  atomic.Int32
	failed atomic.Pointer[FatalError]
}

func New(proto *Protocol, cfg Config, logger zerolog.Logger) (*Translator, error) {
	if cfg.PassthroughChannel == "" {
		cfg.PassthroughChannel = DefaultPassthroughChannel
	}
	resolver, err := schema.NewResolver(proto.Table, cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	ctx := session.New()
	t := &Translator{
		proto:    proto,
		cfg:      cfg,
		ctx:      ctx,
		resolver: resolver,
		logger:   logger,
	}
	t.native = &schema.Codec{Resolver: resolver, Env: &schema.Env{
		Session:     ctx,
		Bridge:      proto.Bridge,
		Version:     proto.Current,
		Target:      proto.Current,
		DataVersion: proto.DataVersion,
		Logger:      logger,
	}}
	return t, nil
}

// Context returns the connection context handlers read and write.
func (t *Translator) Context() *session.Context {
	return t.ctx
}

func (t *Translator) State() State {
	return State(t.state.Load())
}

// Err returns the latched fatal error, if any.
func (t *Translator) Err() error {
	if fe := t.failed.Load(); fe != nil {
		return fe
	}
	return nil
}

// OnVersionNegotiated records the legacy peer's protocol version.
func (t *Translator) OnVersionNegotiated(version int32) error {
	if !t.proto.Supports(version) {
		return ErrUnknownProtocol
	}
	return t.ctx.SetVersion(version)
}

// OnRegistriesResolved installs the id mapping table of namespace.
func (t *Translator) OnRegistriesResolved(namespace string, table *session.Registry) error {
	return t.ctx.SetRegistry(namespace, table)
}

// EnterPlay activates translation when the negotiated version differs from
// the current one. It reports whether the translator is active.
func (t *Translator) EnterPlay() (bool, error) {
	version, ok := t.ctx.Version()
	if !ok {
		return false, ErrNotNegotiated
	}
	switch t.State() {
	case StateActive:
		return true, nil
	case StateClosed:
		return false, ErrClosed
	}
	if version == t.proto.Current {
		return false, nil
	}
	t.legacy.CompareAndSwap(nil, &schema.Codec{Resolver: t.resolver, Env: &schema.Env{
		Session:     t.ctx,
		Bridge:      t.proto.Bridge,
		Version:     version,
		Target:      t.proto.Current,
		DataVersion: t.proto.DataVersion,
		Logger:      t.logger,
		Origins:     schema.NewOrigins(0),
	}})
	if !t.state.CompareAndSwap(int32(StateInactive), int32(StateActive)) {
		return t.State() == StateActive, nil
	}
	t.cfg.Metrics.active(1)
	t.logger.Debug().Int32("version", version).Int32("current", t.proto.Current).Msg("translation active")
	return true, nil
}

// Close stops translation. Later calls fail with ErrClosed.
func (t *Translator) Close() {
	prev := State(t.state.Swap(int32(StateClosed)))
	if prev == StateActive {
		t.cfg.Metrics.active(-1)
	}
}

// ready returns whether frames must be translated, or an error when the
// translator can no longer be used.
func (t *Translator) ready() (bool, error) {
	switch t.State() {
	case StateClosed:
		return false, ErrClosed
	case StateInactive:
		return false, nil
	}
	if fe := t.failed.Load(); fe != nil {
		return false, fe
	}
	return true, nil
}

// Decode turns one legacy clientbound frame into current messages. Frames
// with unmapped packet ids yield no messages. A nil result with a nil error
// means the message was dropped.
func (t *Translator) Decode(frame []byte) ([]*schema.Message, error) {
	active, err := t.ready()
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNotNegotiated
	}
	id, body, err := protocol.SplitPacketID(frame)
	if err != nil {
		return nil, t.outcome(schema.Clientbound, "", stageDecode, &schema.Error{Class: schema.ErrMalformedFrame, Cause: err})
	}
	kind, ok := t.proto.IDs.Kind(schema.Clientbound, t.legacy.Load().Env.Version, id)
	if !ok {
		return nil, nil
	}
	if channel, data, ok := t.passthrough(kind, body); ok {
		msg := schema.NewMessage(kind)
		msg.Set("channel", channel).Set("data", data)
		return []*schema.Message{msg}, nil
	}
	return t.decodeInbound(kind, body)
}

func (t *Translator) decodeInbound(kind schema.Kind, body []byte) ([]*schema.Message, error) {
	msg, err := t.legacy.Load().Decode(kind, body)
	if err != nil {
		return nil, t.outcome(schema.Clientbound, kind, stageDecode, err)
	}
	out, err := t.proto.Dispatcher.Dispatch(schema.Clientbound, msg, t.ctx)
	if err != nil {
		return nil, t.outcome(schema.Clientbound, kind, stageHandle, err)
	}
	return out, nil
}

// TranslateInbound rewrites one clientbound frame from the legacy server
// into zero or more current frames. Before activation frames pass unchanged.
func (t *Translator) TranslateInbound(frame []byte) ([][]byte, error) {
	active, err := t.ready()
	if err != nil {
		return nil, err
	}
	if !active {
		return [][]byte{frame}, nil
	}
	start := time.Now()
	defer t.cfg.Metrics.observe(schema.Clientbound, start)

	id, body, err := protocol.SplitPacketID(frame)
	if err != nil {
		return nil, t.outcome(schema.Clientbound, "", stageDecode, &schema.Error{Class: schema.ErrMalformedFrame, Cause: err})
	}
	kind, ok := t.proto.IDs.Kind(schema.Clientbound, t.legacy.Load().Env.Version, id)
	if !ok {
		t.cfg.Metrics.frame(schema.Clientbound, OutcomePassthrough)
		return [][]byte{frame}, nil
	}
	if _, _, ok := t.passthrough(kind, body); ok {
		return t.relayPayload(schema.Clientbound, t.proto.Current, kind, body)
	}
	msgs, err := t.decodeInbound(kind, body)
	if err != nil || msgs == nil {
		return nil, err
	}
	return t.encodeAll(schema.Clientbound, t.native, msgs)
}

// Encode turns one current serverbound message into legacy frames. A nil
// result with a nil error means the message was dropped.
func (t *Translator) Encode(msg *schema.Message) ([][]byte, error) {
	active, err := t.ready()
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNotNegotiated
	}
	if channel, ok := msg.Get("channel"); ok && msg.Kind == t.proto.PayloadKind && channel == t.cfg.PassthroughChannel {
		w := protocol.GetBuffer()
		defer protocol.PutBuffer(w)
		pw := protocol.NewWriter(w)
		pw.WriteString(msg.String("channel"))
		pw.WriteRaw(msg.Bytes("data"))
		return t.relayPayload(schema.Serverbound, t.legacy.Load().Env.Version, msg.Kind, append([]byte(nil), w.Bytes()...))
	}
	out, err := t.proto.Dispatcher.Dispatch(schema.Serverbound, msg, t.ctx)
	if err != nil {
		return nil, t.outcome(schema.Serverbound, msg.Kind, stageHandle, err)
	}
	return t.encodeAll(schema.Serverbound, t.legacy.Load(), out)
}

// TranslateOutbound rewrites one serverbound frame from the current client
// into zero or more legacy frames. Before activation frames pass unchanged.
func (t *Translator) TranslateOutbound(frame []byte) ([][]byte, error) {
	active, err := t.ready()
	if err != nil {
		return nil, err
	}
	if !active {
		return [][]byte{frame}, nil
	}
	start := time.Now()
	defer t.cfg.Metrics.observe(schema.Serverbound, start)

	id, body, err := protocol.SplitPacketID(frame)
	if err != nil {
		return nil, t.outcome(schema.Serverbound, "", stageDecode, &schema.Error{Class: schema.ErrMalformedFrame, Cause: err})
	}
	kind, ok := t.proto.IDs.Kind(schema.Serverbound, t.proto.Current, id)
	if !ok {
		t.cfg.Metrics.frame(schema.Serverbound, OutcomePassthrough)
		return [][]byte{frame}, nil
	}
	if _, _, ok := t.passthrough(kind, body); ok {
		return t.relayPayload(schema.Serverbound, t.legacy.Load().Env.Version, kind, body)
	}
	msg, err := t.native.Decode(kind, body)
	if err != nil {
		return nil, t.outcome(schema.Serverbound, kind, stageDecode, err)
	}
	return t.Encode(msg)
}

// passthrough reports whether body is a custom payload on the passthrough channel.
func (t *Translator) passthrough(kind schema.Kind, body []byte) (string, []byte, bool) {
	if kind != t.proto.PayloadKind {
		return "", nil, false
	}
	r := protocol.NewReader(body)
	channel, err := r.ReadString()
	if err != nil || channel != t.cfg.PassthroughChannel {
		return "", nil, false
	}
	return channel, append([]byte(nil), r.ReadRest()...), true
}

// relayPayload re-frames a verbatim payload body under the packet id of the target version.
func (t *Translator) relayPayload(dir schema.Direction, version int32, kind schema.Kind, body []byte) ([][]byte, error) {
	id, ok := t.proto.IDs.ID(dir, version, kind)
	if !ok {
		return nil, t.outcome(dir, kind, stageEncode, &schema.Error{Class: schema.ErrUnsupportedVersion, Kind: kind, Version: version})
	}
	t.cfg.Metrics.frame(dir, OutcomePassthrough)
	return [][]byte{protocol.WithPacketID(id, body)}, nil
}

func (t *Translator) encodeAll(dir schema.Direction, codec *schema.Codec, msgs []*schema.Message) ([][]byte, error) {
	frames := make([][]byte, 0, len(msgs))
	version := codec.Env.Version
	for _, msg := range msgs {
		id, ok := t.proto.IDs.ID(dir, version, msg.Kind)
		if !ok {
			err := &schema.Error{Class: schema.ErrUnsupportedVersion, Kind: msg.Kind, Version: version, Reason: "no packet id"}
			if ferr := t.outcome(dir, msg.Kind, stageEncode, err); ferr != nil {
				return nil, ferr
			}
			continue
		}
		buf := protocol.GetBuffer()
		w := protocol.NewWriter(buf)
		w.WriteVarInt(id)
		if err := codec.Encode(msg, w); err != nil {
			protocol.PutBuffer(buf)
			if ferr := t.outcome(dir, msg.Kind, stageEncode, err); ferr != nil {
				return nil, ferr
			}
			continue
		}
		frames = append(frames, append([]byte(nil), buf.Bytes()...))
		protocol.PutBuffer(buf)
		t.cfg.Metrics.emit(dir, msg.Kind)
	}
	if len(frames) > 0 {
		t.cfg.Metrics.frame(dir, OutcomeTranslated)
	}
	return frames, nil
}

type stage string

const (
	stageDecode stage = "decode"
	stageHandle stage = "handle"
	stageEncode stage = "encode"
)

// outcome applies the failure policy to err. It returns nil when the
// message is dropped and a *FatalError when the connection must end.
func (t *Translator) outcome(dir schema.Direction, kind schema.Kind, st stage, err error) error {
	why := reason(err)
	if !t.fatal(st, err) {
		t.cfg.Metrics.drop(dir, why)
		t.logger.Debug().Err(err).Str("direction", dir.String()).Str("kind", string(kind)).
			Str("stage", string(st)).Msg("message dropped")
		if t.cfg.OnDrop != nil {
			t.cfg.OnDrop(dir, kind, err)
		}
		return nil
	}
	fe := &FatalError{Direction: dir, Kind: kind, Err: err}
	if !t.failed.CompareAndSwap(nil, fe) {
		return t.failed.Load()
	}
	t.cfg.Metrics.fail(dir, why)
	t.logger.Warn().Err(err).Str("direction", dir.String()).Str("kind", string(kind)).
		Str("stage", string(st)).Msg("translation failed")
	return fe
}

func (t *Translator) fatal(st stage, err error) bool {
	if errors.Is(err, schema.ErrMalformedFrame) || t.cfg.FatalOnDrop {
		return true
	}
	if st == stageHandle {
		return false
	}
	var se *schema.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Class {
	case schema.ErrUnsupportedVersion:
		switch t.proto.Table.Policy(se.Kind) {
		case schema.PolicyFatal:
			return true
		case schema.PolicyDrop:
			return false
		}
		// Every kind the current version knows must resolve there.
		return se.Version == t.proto.Current
	case schema.ErrUnsupportedVariant:
		variant, lerr := t.proto.Table.Lookup(se.Kind, se.Version)
		return lerr == nil && variant.OnUnsupported == schema.PolicyFatal
	}
	return false
}

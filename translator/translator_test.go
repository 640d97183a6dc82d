package translator

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Mmx233/ProtoBridge/datafix"
	"github.com/Mmx233/ProtoBridge/handler"
	"github.com/Mmx233/ProtoBridge/protocol"
	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	legacy  int32 = 10
	current int32 = 20
)

type idKey struct {
	dir     schema.Direction
	version int32
	id      int32
}

type testIDs map[idKey]schema.Kind

func (m testIDs) Kind(dir schema.Direction, version, id int32) (schema.Kind, bool) {
	k, ok := m[idKey{dir, version, id}]
	return k, ok
}

func (m testIDs) ID(dir schema.Direction, version int32, kind schema.Kind) (int32, bool) {
	for k, v := range m {
		if k.dir == dir && k.version == version && v == kind {
			return k.id, true
		}
	}
	return 0, false
}

func testProtocol(t *testing.T) *Protocol {
	t.Helper()
	table := schema.NewTable()
	payload := schema.NewSchema("payload", schema.String("channel"), schema.Bytes("data").Remaining())
	table.MustRegister(
		&schema.Variant{Kind: "ping", MinVersion: 1, MaxVersion: 19, Schema: schema.NewSchema("ping.old", schema.VarInt("id"))},
		&schema.Variant{Kind: "ping", MinVersion: 20, Schema: schema.NewSchema("ping", schema.Int64("id"))},
		&schema.Variant{Kind: "payload", MinVersion: 1, Schema: payload},
		&schema.Variant{Kind: "palette", MinVersion: 1, Schema: schema.NewSchema("palette",
			schema.List("states", schema.VarInt("").RegistryRef("minecraft:block_state")))},
		&schema.Variant{Kind: "legacy_only", MinVersion: 1, MaxVersion: 19, Schema: schema.NewSchema("legacy_only", schema.Bool("b"))},
		&schema.Variant{Kind: "chat", MinVersion: 1, Schema: schema.NewSchema("chat", schema.String("text"))},
	)
	table.Freeze()

	d := handler.New(table, current)
	d.Handle(schema.Clientbound, "legacy_only", func(*schema.Message, *session.Context) ([]*schema.Message, error) {
		return nil, nil
	})

	ids := testIDs{
		{schema.Clientbound, legacy, 0x01}:  "ping",
		{schema.Clientbound, current, 0x21}: "ping",
		{schema.Clientbound, legacy, 0x02}:  "payload",
		{schema.Clientbound, current, 0x22}: "payload",
		{schema.Clientbound, legacy, 0x03}:  "palette",
		{schema.Clientbound, current, 0x23}: "palette",
		{schema.Clientbound, legacy, 0x04}:  "legacy_only",
		{schema.Serverbound, current, 0x05}: "chat",
		{schema.Serverbound, legacy, 0x15}:  "chat",
		{schema.Serverbound, current, 0x06}: "payload",
		{schema.Serverbound, legacy, 0x16}:  "payload",
	}
	return &Protocol{
		Current:    current,
		Table:      table,
		Dispatcher: d,
		IDs:        ids,
		Bridge:     datafix.NewFixer(),
		DataVersion: func(p int32) (int32, bool) {
			return p, p == legacy || p == current
		},
		PayloadKind: "payload",
	}
}

func frame(id int32, build func(w *protocol.Writer)) []byte {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)
	w.WriteVarInt(id)
	if build != nil {
		build(w)
	}
	return buf.Bytes()
}

// metricValue sums every series of a gathered counter or gauge family.
func metricValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return total
}

func activeTranslator(t *testing.T, cfg Config) *Translator {
	t.Helper()
	tr, err := New(testProtocol(t), cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, tr.OnVersionNegotiated(legacy))
	active, err := tr.EnterPlay()
	require.NoError(t, err)
	require.True(t, active)
	return tr
}

func TestTranslator_InactiveForCurrentVersion(t *testing.T) {
	tr, err := New(testProtocol(t), Config{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = tr.EnterPlay()
	assert.True(t, errors.Is(err, ErrNotNegotiated))

	require.NoError(t, tr.OnVersionNegotiated(current))
	active, err := tr.EnterPlay()
	require.NoError(t, err)
	assert.False(t, active)
	assert.Equal(t, StateInactive, tr.State())

	in := frame(0x01, func(w *protocol.Writer) { w.WriteVarInt(5) })
	out, err := tr.TranslateInbound(in)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{in}, out)
	out, err = tr.TranslateOutbound(in)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{in}, out)
}

func TestTranslator_Lifecycle(t *testing.T) {
	tr, err := New(testProtocol(t), Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.True(t, errors.Is(tr.OnVersionNegotiated(999), ErrUnknownProtocol))
	require.NoError(t, tr.OnVersionNegotiated(legacy))
	assert.Error(t, tr.OnVersionNegotiated(legacy), "version is set once")

	for i := 0; i < 3; i++ {
		active, err := tr.EnterPlay()
		require.NoError(t, err)
		assert.True(t, active)
	}
	assert.Equal(t, StateActive, tr.State())

	tr.Close()
	assert.Equal(t, StateClosed, tr.State())
	_, err = tr.TranslateInbound(frame(0x01, nil))
	assert.True(t, errors.Is(err, ErrClosed))
	_, err = tr.EnterPlay()
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestTranslator_InboundTranslation(t *testing.T) {
	tr := activeTranslator(t, Config{})

	out, err := tr.TranslateInbound(frame(0x01, func(w *protocol.Writer) { w.WriteVarInt(300) }))
	require.NoError(t, err)
	want := frame(0x21, func(w *protocol.Writer) { w.WriteInt64(300) })
	assert.Equal(t, [][]byte{want}, out)

	msgs, err := tr.Decode(frame(0x01, func(w *protocol.Writer) { w.WriteVarInt(7) }))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, schema.Kind("ping"), msgs[0].Kind)
	assert.Equal(t, int64(7), msgs[0].Int("id"))

	// Deprecated kinds with an empty handler vanish.
	out, err = tr.TranslateInbound(frame(0x04, func(w *protocol.Writer) { w.WriteBool(true) }))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTranslator_UnmappedIDsPassVerbatim(t *testing.T) {
	tr := activeTranslator(t, Config{})
	in := frame(0x7f, func(w *protocol.Writer) { w.WriteRaw([]byte{1, 2, 3}) })
	out, err := tr.TranslateInbound(in)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{in}, out)

	msgs, err := tr.Decode(in)
	require.NoError(t, err)
	assert.Nil(t, msgs)
}

func TestTranslator_PassthroughChannel(t *testing.T) {
	tr := activeTranslator(t, Config{})

	// Not a valid anything: only the channel is inspected.
	brand := frame(0x02, func(w *protocol.Writer) {
		w.WriteString("minecraft:brand")
		w.WriteRaw([]byte{0xff, 0xfe})
	})
	out, err := tr.TranslateInbound(brand)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, append([]byte{0x22}, brand[1:]...), out[0])

	msgs, err := tr.Decode(brand)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0xff, 0xfe}, msgs[0].Bytes("data"))

	frames, err := tr.Encode(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, [][]byte{append([]byte{0x16}, brand[1:]...)}, frames)

	outbound := frame(0x06, func(w *protocol.Writer) {
		w.WriteString("minecraft:brand")
		w.WriteString("vanilla")
	})
	out, err = tr.TranslateOutbound(outbound)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{append([]byte{0x16}, outbound[1:]...)}, out)
}

func TestTranslator_RegistryBeforeResolutionDrops(t *testing.T) {
	var dropped []error
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tr := activeTranslator(t, Config{Metrics: metrics, OnDrop: func(_ schema.Direction, _ schema.Kind, err error) {
		dropped = append(dropped, err)
	}})

	palette := frame(0x03, func(w *protocol.Writer) {
		w.WriteVarInt(1)
		w.WriteVarInt(9)
	})
	out, err := tr.TranslateInbound(palette)
	require.NoError(t, err)
	assert.Empty(t, out)
	require.Len(t, dropped, 1)
	assert.True(t, errors.Is(dropped[0], schema.ErrSchemaViolation))
	var se *schema.Error
	require.True(t, errors.As(dropped[0], &se))
	assert.Equal(t, "minecraft:block_state", se.Namespace)
	assert.Equal(t, int32(9), se.ID)
	assert.Equal(t, float64(1), metricValue(t, reg, "protobridge_translator_dropped_total"))

	// The connection survives and the same frame translates once resolved.
	r, err := session.NewRegistry(map[int32]int32{9: 90})
	require.NoError(t, err)
	require.NoError(t, tr.OnRegistriesResolved("minecraft:block_state", r))
	out, err = tr.TranslateInbound(palette)
	require.NoError(t, err)
	want := frame(0x23, func(w *protocol.Writer) {
		w.WriteVarInt(1)
		w.WriteVarInt(90)
	})
	assert.Equal(t, [][]byte{want}, out)
	assert.Equal(t, float64(1), metricValue(t, reg, "protobridge_translator_active"))
	assert.Equal(t, float64(1), metricValue(t, reg, "protobridge_translator_messages_emitted_total"))
}

func TestTranslator_MalformedIsFatalAndLatched(t *testing.T) {
	tr := activeTranslator(t, Config{})

	_, err := tr.TranslateInbound(frame(0x01, func(w *protocol.Writer) { w.WriteRaw([]byte{0x80}) }))
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.True(t, errors.Is(err, schema.ErrMalformedFrame))
	assert.Equal(t, schema.Kind("ping"), fe.Kind)

	// Every later call returns the same error, even for valid frames.
	_, err = tr.TranslateOutbound(frame(0x05, func(w *protocol.Writer) { w.WriteString("hi") }))
	assert.Same(t, fe, err)
	assert.Same(t, fe, tr.Err())
}

func TestTranslator_FatalOnDrop(t *testing.T) {
	tr := activeTranslator(t, Config{FatalOnDrop: true})
	_, err := tr.TranslateInbound(frame(0x03, func(w *protocol.Writer) {
		w.WriteVarInt(1)
		w.WriteVarInt(9)
	}))
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.True(t, errors.Is(err, schema.ErrSchemaViolation))
}

func TestTranslator_Outbound(t *testing.T) {
	tr := activeTranslator(t, Config{})
	in := frame(0x05, func(w *protocol.Writer) { w.WriteString("hello") })
	out, err := tr.TranslateOutbound(in)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{append([]byte{0x15}, in[1:]...)}, out)

	msg := schema.NewMessage("chat")
	msg.Set("text", "direct")
	frames, err := tr.Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{frame(0x15, func(w *protocol.Writer) { w.WriteString("direct") })}, frames)
}

package protocols

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"
	"testing"

	"github.com/Mmx233/ProtoBridge/protocol"
	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
	"github.com/Mmx233/ProtoBridge/translator"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func translatorFor(t *testing.T, version int32, cfg translator.Config) (*Set, *translator.Translator) {
	t.Helper()
	set, err := Default()
	require.NoError(t, err)
	tr, err := translator.New(set.Protocol, cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, tr.OnVersionNegotiated(version))
	active, err := tr.EnterPlay()
	require.NoError(t, err)
	require.True(t, active)
	return set, tr
}

func frame(id int32, build func(w *protocol.Writer)) []byte {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)
	w.WriteVarInt(id)
	build(w)
	return buf.Bytes()
}

func codecAt(t *testing.T, set *Set, ctx *session.Context, version int32) *schema.Codec {
	t.Helper()
	resolver, err := schema.NewResolver(set.Protocol.Table, 0)
	require.NoError(t, err)
	return &schema.Codec{Resolver: resolver, Env: &schema.Env{
		Session:     ctx,
		Bridge:      set.Fixer,
		Version:     version,
		Target:      Current,
		DataVersion: DataVersion,
		Origins:     schema.NewOrigins(0),
		Logger:      zerolog.Nop(),
	}}
}

// decodeAt decodes a frame of version and direction.
func decodeAt(t *testing.T, set *Set, ctx *session.Context, dir schema.Direction, version int32, f []byte) *schema.Message {
	t.Helper()
	id, body, err := protocol.SplitPacketID(f)
	require.NoError(t, err)
	kind, ok := set.IDs.Kind(dir, version, id)
	require.True(t, ok, "packet id 0x%02x", id)
	msg, err := codecAt(t, set, ctx, version).Decode(kind, body)
	require.NoError(t, err)
	return msg
}

// assertFixedPoint decodes a current clientbound frame and checks that
// encoding the result reproduces it byte for byte.
func assertFixedPoint(t *testing.T, set *Set, ctx *session.Context, f []byte) *schema.Message {
	t.Helper()
	msg := decodeAt(t, set, ctx, schema.Clientbound, Current, f)
	id, _, err := protocol.SplitPacketID(f)
	require.NoError(t, err)
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)
	w.WriteVarInt(id)
	require.NoError(t, codecAt(t, set, ctx, Current).Encode(msg, w))
	assert.Equal(t, f, buf.Bytes())
	return msg
}

func packetID(t *testing.T, f []byte) int32 {
	t.Helper()
	id, _, err := protocol.SplitPacketID(f)
	require.NoError(t, err)
	return id
}

func TestCombatEvent_EntityDied(t *testing.T) {
	set, tr := translatorFor(t, V1_16_5, translator.Config{})
	text := `{"translate":"death.attack.fall","with":["Steve"]}`
	in := frame(0x31, func(w *protocol.Writer) {
		w.WriteVarInt(2)
		w.WriteVarInt(42)
		w.WriteInt32(7)
		w.WriteString(text)
	})

	msgs, err := tr.Decode(in)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindDeathMessage, msgs[0].Kind)
	assert.EqualValues(t, 42, msgs[0].Int("playerId"))
	assert.EqualValues(t, 7, msgs[0].Int("entityId"))
	assert.Equal(t, text, msgs[0].String("message"))

	frames, err := tr.TranslateInbound(in)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 0x35, packetID(t, frames[0]))
	out := assertFixedPoint(t, set, tr.Context(), frames[0])
	assert.EqualValues(t, 42, out.Int("playerId"))
}

func TestCombatEvent_EnterAndEnd(t *testing.T) {
	_, tr := translatorFor(t, V1_15_2, translator.Config{})

	msgs, err := tr.Decode(frame(0x33, func(w *protocol.Writer) { w.WriteVarInt(0) }))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindEnterCombat, msgs[0].Kind)

	msgs, err = tr.Decode(frame(0x33, func(w *protocol.Writer) {
		w.WriteVarInt(1)
		w.WriteVarInt(120)
		w.WriteInt32(9)
	}))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, KindEndCombat, msgs[0].Kind)
	assert.EqualValues(t, 120, msgs[0].Int("duration"))
}

// writeSection writes one section with a two entry palette of 1 and 9.
func writeSection(w *protocol.Writer) {
	w.WriteInt16(100)
	w.WriteUint8(4)
	w.WriteVarInt(2)
	w.WriteVarInt(1)
	w.WriteVarInt(9)
	w.WriteVarInt(1)
	w.WriteInt64(0x21)
}

// chunkFrame114 is a 1.14.4 chunk whose column biomes trail the sections.
func chunkFrame114(full bool) []byte {
	return frame(0x21, func(w *protocol.Writer) {
		w.WriteInt32(3)
		w.WriteInt32(-2)
		w.WriteBool(full)
		w.WriteVarInt(1)
		w.WriteBytes([]byte(`{}`))

		var data bytes.Buffer
		dw := protocol.NewWriter(&data)
		writeSection(dw)
		if full {
			for i := 0; i < columnBiomes; i++ {
				dw.WriteInt32(int32(i))
			}
		}
		w.WriteVarInt(int32(data.Len()))
		w.WriteRaw(data.Bytes())
		w.WriteVarInt(0)
	})
}

// chunkFrame is a 1.15 chunk carrying biome cells ahead of the sections.
func chunkFrame(full bool, stripMask int32) []byte {
	return frame(0x22, func(w *protocol.Writer) {
		w.WriteInt32(3)
		w.WriteInt32(-2)
		w.WriteBool(full)
		w.WriteVarInt(stripMask)
		w.WriteBytes([]byte(`{"MOTION_BLOCKING":[]}`))
		if full {
			for i := 0; i < BiomeCells; i++ {
				w.WriteInt32(int32(i % 79))
			}
		}

		var data bytes.Buffer
		dw := protocol.NewWriter(&data)
		for i := 0; i < bits.OnesCount32(uint32(stripMask)); i++ {
			writeSection(dw)
		}
		w.WriteVarInt(int32(data.Len()))
		w.WriteRaw(data.Bytes())
		w.WriteVarInt(0)
	})
}

func resolveBlockStates(t *testing.T, tr *translator.Translator) {
	t.Helper()
	reg, err := session.NewRegistry(map[int32]int32{1: 11, 9: 19})
	require.NoError(t, err)
	require.NoError(t, tr.OnRegistriesResolved(RegistryBlockState, reg))
}

func TestChunkData_BiomeUpsampling(t *testing.T) {
	set, tr := translatorFor(t, V1_14_4, translator.Config{})
	resolveBlockStates(t, tr)

	msgs, err := tr.Decode(chunkFrame114(true))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	msg := msgs[0]

	biomes := msg.List("biomes")
	require.Len(t, biomes, BiomeCells)
	for y := 0; y < 64; y++ {
		for z := 0; z < 4; z++ {
			for x := 0; x < 4; x++ {
				want := int32((4*z+2)*16 + 4*x + 2)
				if got := biomes[y*16+z*4+x]; got != want {
					t.Fatalf("biome at layer %d cell (%d,%d) = %v, want %d", y, x, z, got, want)
				}
			}
		}
	}
	assert.Equal(t, []any{int64(1)}, msg.List("primaryBitMask"))

	sections := msg.Child("data").List("sections")
	require.Len(t, sections, 1)
	section := sections[0].(*schema.Record)
	assert.Equal(t, []any{int32(11), int32(19)}, section.List("palette"))

	frames, err := tr.TranslateInbound(chunkFrame114(true))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 0x1F, packetID(t, frames[0]))
	out := assertFixedPoint(t, set, tr.Context(), frames[0])
	assert.Len(t, out.List("biomes"), BiomeCells)
}

func TestChunkData_WireBiomes(t *testing.T) {
	for _, version := range []int32{V1_15, V1_15_2} {
		t.Run(Name(version), func(t *testing.T) {
			set, tr := translatorFor(t, version, translator.Config{})
			resolveBlockStates(t, tr)

			// heightmaps, biome cells, an empty data array and no block entities
			msgs, err := tr.Decode(chunkFrame(true, 0))
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			biomes := msgs[0].List("biomes")
			require.Len(t, biomes, BiomeCells)
			assert.Equal(t, int32(78), biomes[78])
			assert.Equal(t, int32(0), biomes[79])
			assert.Empty(t, msgs[0].Child("data").List("sections"))
			assert.Equal(t, []any{int64(0)}, msgs[0].List("primaryBitMask"))

			frames, err := tr.TranslateInbound(chunkFrame(true, 0b101))
			require.NoError(t, err)
			require.Len(t, frames, 1)
			out := assertFixedPoint(t, set, tr.Context(), frames[0])
			assert.Len(t, out.List("biomes"), BiomeCells)
			assert.Len(t, out.Child("data").List("sections"), 2)
			assert.JSONEq(t, `{"MOTION_BLOCKING":[]}`, string(out.Bytes("heightmaps")))
		})
	}
}

func TestChunkData_PartialChunkDropped(t *testing.T) {
	_, tr := translatorFor(t, V1_15, translator.Config{})
	resolveBlockStates(t, tr)

	msgs, err := tr.Decode(chunkFrame(false, 1))
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NoError(t, tr.Err())
}

func TestChunkData_RegistryBeforeResolution(t *testing.T) {
	var dropped error
	_, tr := translatorFor(t, V1_15, translator.Config{
		OnDrop: func(_ schema.Direction, _ schema.Kind, err error) { dropped = err },
	})

	msgs, err := tr.Decode(chunkFrame(true, 1))
	require.NoError(t, err)
	assert.Nil(t, msgs)
	require.Error(t, dropped)
	assert.True(t, errors.Is(dropped, schema.ErrSchemaViolation))
	var se *schema.Error
	require.True(t, errors.As(dropped, &se))
	assert.Equal(t, RegistryBlockState, se.Namespace)
	assert.NoError(t, tr.Err())
}

func respawn115(dimension int32, gamemode uint8, genType string) []byte {
	return frame(0x3B, func(w *protocol.Writer) {
		w.WriteInt32(dimension)
		w.WriteInt64(99)
		w.WriteUint8(gamemode)
		w.WriteString(genType)
	})
}

func TestRespawn_SynthesizedFromLegacyFields(t *testing.T) {
	set, tr := translatorFor(t, V1_15_2, translator.Config{})

	msgs, err := tr.Decode(respawn115(-1, 1, "flat"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, DimensionNether, msg.String("dimension"))
	assert.Equal(t, DimensionNether, msg.String("dimensionId"))
	assert.EqualValues(t, GameModeUnknown, msg.Int("previousGamemode"))
	assert.True(t, msg.Bool("isFlat"))
	assert.False(t, msg.Bool("isDebug"))
	assert.True(t, msg.Bool("copyMetadata"))
	pos, ok := msg.Get("lastDeathPos")
	assert.True(t, ok)
	assert.Nil(t, pos)
	assert.Equal(t, DimensionNether, session.Load(tr.Context(), SlotDimension))

	frames, err := tr.TranslateInbound(respawn115(0, 0, "default"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	out := assertFixedPoint(t, set, tr.Context(), frames[0])
	assert.Equal(t, DimensionOverworld, out.String("dimension"))
	assert.EqualValues(t, 1, out.Int("previousGamemode"))
}

func TestRespawn_WithoutHashedSeed(t *testing.T) {
	set, tr := translatorFor(t, V1_14_4, translator.Config{})
	in := frame(0x3A, func(w *protocol.Writer) {
		w.WriteInt32(1)
		w.WriteUint8(2)
		w.WriteString("default")
	})

	msgs, err := tr.Decode(in)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, DimensionEnd, msgs[0].String("dimension"))
	assert.EqualValues(t, 0, msgs[0].Int("hashedSeed"))

	frames, err := tr.TranslateInbound(in)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 0x3B, packetID(t, frames[0]))
	out := assertFixedPoint(t, set, tr.Context(), frames[0])
	assert.EqualValues(t, 2, out.Int("gamemode"))
}

func TestRespawn_UnknownDimensionUsesSentinel(t *testing.T) {
	_, tr := translatorFor(t, V1_15, translator.Config{})
	msgs, err := tr.Decode(respawn115(7, 0, "default"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, DimensionOverworld, msgs[0].String("dimension"))
}

func respawn1162(dimensionType string) []byte {
	return frame(0x39, func(w *protocol.Writer) {
		w.WriteBytes([]byte(dimensionType))
		w.WriteString("minecraft:my_world")
		w.WriteInt64(1)
		w.WriteUint8(0)
		w.WriteUint8(255)
		w.WriteBool(false)
		w.WriteBool(false)
		w.WriteBool(true)
	})
}

func TestRespawn_DimensionTypeMigrated(t *testing.T) {
	var dropped error
	_, tr := translatorFor(t, V1_16_5, translator.Config{
		OnDrop: func(_ schema.Direction, _ schema.Kind, err error) { dropped = err },
	})

	msgs, err := tr.Decode(respawn1162(`{"effects":"minecraft:the_end","ultrawarm":false}`))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, DimensionEnd, msgs[0].String("dimension"))
	assert.Equal(t, "minecraft:my_world", msgs[0].String("dimensionId"))

	msgs, err = tr.Decode(respawn1162(`{"effects":"mymod:sky"}`))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, DimensionOverworld, msgs[0].String("dimension"))

	msgs, err = tr.Decode(respawn1162(`not a document`))
	require.NoError(t, err)
	assert.Nil(t, msgs)
	assert.True(t, errors.Is(dropped, schema.ErrMigrationFailure))
}

func gameMessage(id int32, text string, position int8, sender *uuid.UUID) []byte {
	return frame(id, func(w *protocol.Writer) {
		w.WriteString(text)
		w.WriteInt8(position)
		if sender != nil {
			w.WriteRaw(sender[:])
		}
	})
}

func TestGameMessage_FansOutPlayerChat(t *testing.T) {
	set, tr := translatorFor(t, V1_16, translator.Config{})
	sender := uuid.New()
	text := `{"translate":"chat.type.text","with":[{"text":"Steve"},{"text":"hello"}]}`

	msgs, err := tr.Decode(gameMessage(0x0E, text, PositionChat, &sender))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, KindGameMessage, msgs[0].Kind)
	assert.Equal(t, text, msgs[0].String("message"))
	assert.EqualValues(t, ChatTypeChat, msgs[0].Int("typeId"))
	assert.Equal(t, KindPlayerChat, msgs[1].Kind)
	assert.Equal(t, sender, msgs[1].UUID("sender"))
	assert.JSONEq(t, `{"text":"hello"}`, msgs[1].String("content"))
	assert.JSONEq(t, `{"text":"Steve"}`, msgs[1].String("displayName"))

	frames, err := tr.TranslateInbound(gameMessage(0x0E, text, PositionChat, &sender))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.EqualValues(t, 0x5F, packetID(t, frames[0]))
	assert.EqualValues(t, 0x30, packetID(t, frames[1]))
	assertFixedPoint(t, set, tr.Context(), frames[1])

	msgs, err = tr.Decode(gameMessage(0x0E, `{"text":"Saved the game"}`, PositionSystem, &uuid.Nil))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.EqualValues(t, ChatTypeSystem, msgs[0].Int("typeId"))
}

func TestGameMessage_SenderFromHoverEvent(t *testing.T) {
	_, tr := translatorFor(t, V1_15, translator.Config{})
	sender := uuid.New()
	text, err := json.MarshalToString(map[string]any{
		"translate": "chat.type.text",
		"with": []any{
			map[string]any{
				"text": "Steve",
				"hoverEvent": map[string]any{
					"action": "show_entity",
					"value":  map[string]any{"text": fmt.Sprintf(`{id:"%s",type:"minecraft:player",name:"Steve"}`, sender)},
				},
			},
			"hello",
		},
	})
	require.NoError(t, err)

	msgs, err := tr.Decode(gameMessage(0x0F, text, PositionChat, nil))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, sender, msgs[1].UUID("sender"))

	msgs, err = tr.Decode(gameMessage(0x0F, `{"text":"Welcome"}`, PositionSystem, nil))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestGameMessage_TeamChat(t *testing.T) {
	set, tr := translatorFor(t, V1_15_2, translator.Config{})
	sender := uuid.New()
	text, err := json.MarshalToString(map[string]any{
		"translate": "chat.type.team.text",
		"with": []any{
			map[string]any{"text": "Red"},
			map[string]any{
				"text": "Steve",
				"hoverEvent": map[string]any{
					"action": "show_entity",
					"value":  map[string]any{"text": fmt.Sprintf(`{id:"%s",type:"minecraft:player",name:"Steve"}`, sender)},
				},
			},
			"gg",
		},
	})
	require.NoError(t, err)

	msgs, err := tr.Decode(gameMessage(0x0F, text, PositionChat, nil))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	chat := msgs[1]
	assert.Equal(t, KindPlayerChat, chat.Kind)
	assert.Equal(t, sender, chat.UUID("sender"))
	assert.EqualValues(t, ChatTypeTeam, chat.Int("typeId"))
	assert.Equal(t, `"gg"`, chat.String("content"))
	assert.JSONEq(t, `{"text":"Red"}`, chat.String("teamName"))
	assert.Contains(t, chat.String("displayName"), `"Steve"`)

	frames, err := tr.TranslateInbound(gameMessage(0x0F, text, PositionChat, nil))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	out := assertFixedPoint(t, set, tr.Context(), frames[1])
	assert.JSONEq(t, `{"text":"Red"}`, out.String("teamName"))

	// a team message missing its content argument carries no sender
	short := `{"translate":"chat.type.team.text","with":[{"text":"Red"},{"text":"Steve"}]}`
	msgs, err = tr.Decode(gameMessage(0x0F, short, PositionChat, nil))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestHoverEvent_Contents(t *testing.T) {
	id := uuid.New()
	h := &hoverEvent{Action: "show_entity", Contents: []byte(fmt.Sprintf(`{"type":"minecraft:player","id":"%s"}`, id))}
	got, err := h.entityID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = (&hoverEvent{Action: "show_text"}).entityID()
	assert.Error(t, err)
}

func TestSynchronizeTags_Groups(t *testing.T) {
	set, tr := translatorFor(t, V1_16_1, translator.Config{})
	reg, err := session.NewRegistry(map[int32]int32{3: 30})
	require.NoError(t, err)
	require.NoError(t, tr.OnRegistriesResolved(RegistryBlock, reg))

	in := frame(0x5B, func(w *protocol.Writer) {
		w.WriteVarInt(1)
		w.WriteString("minecraft:logs")
		w.WriteVarInt(1)
		w.WriteVarInt(3)
		for range 3 {
			w.WriteVarInt(0)
		}
	})
	msgs, err := tr.Decode(in)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	groups := msgs[0].List("groups")
	require.Len(t, groups, len(legacyTagLists))
	block := groups[0].(*schema.Record)
	assert.Equal(t, RegistryBlock, block.String("id"))
	tags := block.List("tags")
	require.Len(t, tags, 1)
	assert.Equal(t, []any{int32(30)}, tags[0].(*schema.Record).List("entries"))

	frames, err := tr.TranslateInbound(in)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 0x68, packetID(t, frames[0]))
	assertFixedPoint(t, set, tr.Context(), frames[0])
}

func TestEntityEquipment_SingleSlotToChain(t *testing.T) {
	set, tr := translatorFor(t, V1_15, translator.Config{})
	in := frame(0x47, func(w *protocol.Writer) {
		w.WriteVarInt(5)
		w.WriteVarInt(5)
		w.WriteBool(false)
	})

	msgs, err := tr.Decode(in)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	entries := EquipmentEntries(msgs[0].Child("equipment"))
	require.Len(t, entries, 1)
	assert.EqualValues(t, 5, entries[0].Int("slot"))

	frames, err := tr.TranslateInbound(in)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assertFixedPoint(t, set, tr.Context(), frames[0])
}

func TestEntityEquipment_Chain(t *testing.T) {
	set, err := Default()
	require.NoError(t, err)
	chain := frame(0x50, func(w *protocol.Writer) {
		w.WriteVarInt(5)
		w.WriteUint8(hasNextEntry | 0)
		w.WriteBool(false)
		w.WriteUint8(hasNextEntry | 2)
		w.WriteBool(false)
		w.WriteUint8(4)
		w.WriteBool(false)
	})
	msg := assertFixedPoint(t, set, session.New(), chain)
	entries := EquipmentEntries(msg.Child("equipment"))
	require.Len(t, entries, 3)
	assert.EqualValues(t, 4, entries[2].Int("slot"))
}

func TestLookAt_DefaultProjection(t *testing.T) {
	_, tr := translatorFor(t, V1_16_5, translator.Config{})
	body := func(w *protocol.Writer) {
		w.WriteVarInt(1)
		w.WriteFloat64(1)
		w.WriteFloat64(64)
		w.WriteFloat64(-3)
		w.WriteBool(true)
		w.WriteVarInt(12)
		w.WriteVarInt(0)
	}
	frames, err := tr.TranslateInbound(frame(0x33, body))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, frame(0x37, body), frames[0])
}

func TestCustomPayload_Reframed(t *testing.T) {
	_, tr := translatorFor(t, V1_15, translator.Config{})
	body := func(w *protocol.Writer) {
		w.WriteString("mymod:sync")
		w.WriteRaw([]byte{1, 2, 3})
	}
	frames, err := tr.TranslateInbound(frame(0x19, body))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, frame(0x15, body), frames[0])
}

func TestRecipeBook_StatesRemembered(t *testing.T) {
	set, tr := translatorFor(t, V1_16, translator.Config{})

	options := func(book string, open, filter bool) *schema.Message {
		msg := schema.NewMessage(KindRecipeCategoryOptions)
		msg.Set("bookId", book).Set("bookOpen", open).Set("filterActive", filter)
		return msg
	}

	frames, err := tr.Encode(options("FURNACE", true, false))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.EqualValues(t, 0x1E, packetID(t, frames[0]))
	out := decodeAt(t, set, tr.Context(), schema.Serverbound, V1_16, frames[0])
	assert.Equal(t, RecipeBookStates, out.Case())
	assert.True(t, out.Bool("smeltingOpen"))
	assert.False(t, out.Bool("craftingOpen"))

	frames, err = tr.Encode(options("CRAFTING", true, true))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	out = decodeAt(t, set, tr.Context(), schema.Serverbound, V1_16, frames[0])
	assert.True(t, out.Bool("craftingOpen"))
	assert.True(t, out.Bool("craftingFilter"))
	assert.True(t, out.Bool("smeltingOpen"))

	displayed := frame(0x20, func(w *protocol.Writer) { w.WriteString("minecraft:bread") })
	frames, err = tr.TranslateOutbound(displayed)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	out = decodeAt(t, set, tr.Context(), schema.Serverbound, V1_16, frames[0])
	assert.Equal(t, RecipeDisplayed, out.Case())
	assert.Equal(t, "minecraft:bread", out.String("recipeId"))
}

func TestRecipeBook_ProjectedForSplitBooks(t *testing.T) {
	_, tr := translatorFor(t, V1_16_2, translator.Config{})
	body := func(w *protocol.Writer) {
		w.WriteVarInt(2)
		w.WriteBool(true)
		w.WriteBool(false)
	}
	frames, err := tr.TranslateOutbound(frame(0x1F, body))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, frame(0x1E, body), frames[0])
}

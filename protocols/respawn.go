package protocols

import (
	"errors"
	"fmt"

	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DimensionOverworld = "minecraft:overworld"
	DimensionNether    = "minecraft:the_nether"
	DimensionEnd       = "minecraft:the_end"
)

// GameModeUnknown is the previous game mode of a player that had none.
const GameModeUnknown uint8 = 255

var (
	// SlotGameMode is the game mode of the last respawn, read as the next
	// respawn's previous game mode.
	SlotGameMode = session.NewKey("gamemode", GameModeUnknown)
	// SlotDimension is the dimension identifier of the last respawn.
	SlotDimension = session.NewKey("dimension", "")
)

var errNoSession = errors.New("no session context")

func dimensionByNumber(in schema.SynthInput) (any, error) {
	switch n := in.Int("dimensionNum"); n {
	case -1:
		return DimensionNether, nil
	case 0:
		return DimensionOverworld, nil
	case 1:
		return DimensionEnd, nil
	default:
		return nil, fmt.Errorf("unknown dimension %d", n)
	}
}

// dimensionByType migrates a dimension type document to the current data
// version and names it by its effects, which identify the vanilla types.
func dimensionByType(in schema.SynthInput) (any, error) {
	blob, err := in.Migrate(in.Bytes("dimensionType"), FixDimension)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Effects string `json:"effects"`
	}
	if err = json.Unmarshal(blob, &doc); err != nil {
		return nil, err
	}
	switch doc.Effects {
	case DimensionOverworld, DimensionNether, DimensionEnd:
		return doc.Effects, nil
	}
	return nil, fmt.Errorf("unknown dimension effects %q", doc.Effects)
}

func previousGameMode(in schema.SynthInput) (any, error) {
	if in.Env == nil || in.Env.Session == nil {
		return nil, errNoSession
	}
	return session.Load(in.Env.Session, SlotGameMode), nil
}

func isDebugWorld(in schema.SynthInput) (any, error) {
	return in.String("genType") == "debug_all_block_states", nil
}

func isFlatWorld(in schema.SynthInput) (any, error) {
	return in.String("genType") == "flat", nil
}

func globalPos() *schema.RecordSchema {
	return schema.NewSchema("GlobalPos", schema.String("dimension"), schema.Int64("location"))
}

func registerRespawn(b *builder) {
	b.variant(KindRespawn, V1_14_4, V1_14_4, schema.NewSchema("Respawn_1_14",
		schema.Int32("dimensionNum"),
		schema.UInt8("gamemode"),
		schema.String("genType"),
		schema.Int64("hashedSeed").Default(int64(0)),
		schema.String("dimension").Compute(dimensionByNumber, "dimensionNum").OrSentinel(DimensionOverworld),
		schema.String("dimensionId").Compute(dimensionByNumber, "dimensionNum").OrSentinel(DimensionOverworld),
		schema.UInt8("previousGamemode").Compute(previousGameMode).OrSentinel(GameModeUnknown),
		schema.Bool("isDebug").Compute(isDebugWorld, "genType").OrAbort(),
		schema.Bool("isFlat").Compute(isFlatWorld, "genType").OrAbort(),
		schema.Bool("copyMetadata").Default(true),
		schema.Optional("lastDeathPos", schema.Nested("", globalPos())).Default(nil),
	))

	b.variant(KindRespawn, V1_15, V1_15_2, schema.NewSchema("Respawn_1_15",
		schema.Int32("dimensionNum"),
		schema.Int64("hashedSeed"),
		schema.UInt8("gamemode"),
		schema.String("genType"),
		schema.String("dimension").Compute(dimensionByNumber, "dimensionNum").OrSentinel(DimensionOverworld),
		schema.String("dimensionId").Compute(dimensionByNumber, "dimensionNum").OrSentinel(DimensionOverworld),
		schema.UInt8("previousGamemode").Compute(previousGameMode).OrSentinel(GameModeUnknown),
		schema.Bool("isDebug").Compute(isDebugWorld, "genType").OrAbort(),
		schema.Bool("isFlat").Compute(isFlatWorld, "genType").OrAbort(),
		schema.Bool("copyMetadata").Default(true),
		schema.Optional("lastDeathPos", schema.Nested("", globalPos())).Default(nil),
	))

	b.variant(KindRespawn, V1_16, V1_16_1, schema.NewSchema("Respawn_1_16",
		schema.String("dimension"),
		schema.String("dimensionId"),
		schema.Int64("hashedSeed"),
		schema.UInt8("gamemode"),
		schema.UInt8("previousGamemode"),
		schema.Bool("isDebug"),
		schema.Bool("isFlat"),
		schema.Bool("copyMetadata"),
		schema.Optional("lastDeathPos", schema.Nested("", globalPos())).Default(nil),
	))

	b.variant(KindRespawn, V1_16_2, V1_18_2, schema.NewSchema("Respawn_1_16_2",
		schema.Bytes("dimensionType"),
		schema.String("dimensionId"),
		schema.Int64("hashedSeed"),
		schema.UInt8("gamemode"),
		schema.UInt8("previousGamemode"),
		schema.Bool("isDebug"),
		schema.Bool("isFlat"),
		schema.Bool("copyMetadata"),
		schema.String("dimension").Compute(dimensionByType, "dimensionType").OrSentinel(DimensionOverworld),
		schema.Optional("lastDeathPos", schema.Nested("", globalPos())).Default(nil),
	))

	b.variant(KindRespawn, V1_19, 0, schema.NewSchema("Respawn",
		schema.String("dimension"),
		schema.String("dimensionId"),
		schema.Int64("hashedSeed"),
		schema.UInt8("gamemode"),
		schema.UInt8("previousGamemode"),
		schema.Bool("isDebug"),
		schema.Bool("isFlat"),
		schema.Bool("copyMetadata"),
		schema.Optional("lastDeathPos", schema.Nested("", globalPos())),
	))

	b.packet(schema.Clientbound, KindRespawn, 0x3A, V1_14_4, V1_14_4)
	b.packet(schema.Clientbound, KindRespawn, 0x3B, V1_15, V1_15_2)
	b.packet(schema.Clientbound, KindRespawn, 0x3A, V1_16, V1_16_1)
	b.packet(schema.Clientbound, KindRespawn, 0x39, V1_16_2, V1_16_5)
	b.packet(schema.Clientbound, KindRespawn, 0x3D, V1_17, V1_18_2)
	b.packet(schema.Clientbound, KindRespawn, 0x3B, V1_19, 0)

	b.dispatcher.HandlePartial(schema.Clientbound, KindRespawn, func(msg *schema.Message, ctx *session.Context) {
		session.Store(ctx, SlotGameMode, uint8(msg.Int("gamemode")))
		session.Store(ctx, SlotDimension, msg.String("dimension"))
	})
}

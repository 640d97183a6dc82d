package protocols

import (
	"fmt"
	"math/bits"

	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
)

const (
	columnBiomes = 16 * 16
	// BiomeCells is the number of 4×4×4 biome cells of a 256 block tall chunk.
	BiomeCells = 4 * 4 * 64
)

// maxPaletteBits is the largest bits per block that still uses a palette.
const maxPaletteBits = 8

func chunkSection() *schema.RecordSchema {
	return schema.NewSchema("ChunkSection",
		schema.Int16("blockCount"),
		schema.UInt8("bitsPerBlock"),
		schema.List("palette", schema.VarInt("").RegistryRef(RegistryBlockState)).
			OnlyIf(func(a schema.Args) bool { return a.Int("bitsPerBlock") <= maxPaletteBits }, "bitsPerBlock"),
		schema.List("dataArray", schema.Int64("")),
	)
}

func stripSections(a schema.Args) (int, error) {
	return bits.OnesCount32(uint32(a.Int("outer.verticalStripBitmask"))), nil
}

func bitSetSections(a schema.Args) (int, error) {
	n := 0
	for _, w := range a.List("outer.primaryBitMask") {
		word, ok := w.(int64)
		if !ok {
			return 0, fmt.Errorf("bit set word %T", w)
		}
		n += bits.OnesCount64(uint64(word))
	}
	return n, nil
}

func fullChunk(a schema.Args) bool {
	return a.Bool("fullChunk")
}

func outerFullChunk(a schema.Args) bool {
	return a.Bool("outer.fullChunk")
}

// upsampleBiomes expands the 16×16 column biome grid to 64 layers of 4×4
// cells, taking each cell from the column at its center (4x+2, 4z+2).
func upsampleBiomes(in schema.SynthInput) (any, error) {
	data := in.Child("data")
	if data == nil {
		return nil, fmt.Errorf("no chunk data")
	}
	cols := data.List("columnBiomes")
	if len(cols) != columnBiomes {
		return nil, fmt.Errorf("%d column biomes", len(cols))
	}
	out := make([]any, 0, BiomeCells)
	for y := 0; y < 64; y++ {
		for z := 0; z < 4; z++ {
			for x := 0; x < 4; x++ {
				out = append(out, cols[(4*z+2)*16+4*x+2])
			}
		}
	}
	return out, nil
}

func stripToBitSet(in schema.SynthInput) (any, error) {
	return []any{int64(uint32(in.Int("verticalStripBitmask")))}, nil
}

func blockEntities() *schema.Field {
	return schema.List("blockEntities", schema.Bytes("").Migrated(FixBlockEntity))
}

func registerChunkData(b *builder) {
	// Before 1.15 biomes are one per column and trail the sections.
	b.variant(KindChunkData, V1_14_4, V1_14_4, schema.NewSchema("ChunkData_1_14",
		schema.Int32("x"),
		schema.Int32("z"),
		schema.Bool("fullChunk"),
		schema.VarInt("verticalStripBitmask"),
		schema.Bytes("heightmaps").Migrated(FixHeightmaps),
		schema.Nested("data", schema.NewSchema("ChunkSections_1_14",
			schema.List("sections", schema.Nested("", chunkSection())).LengthFrom(stripSections, "outer.verticalStripBitmask"),
			schema.List("columnBiomes", schema.Int32("")).Constant(columnBiomes).OnlyIf(outerFullChunk, "outer.fullChunk"),
		)).Raw(),
		blockEntities(),
		schema.List("biomes", schema.VarInt("")).OnlyIf(fullChunk, "fullChunk").Compute(upsampleBiomes, "data").OrAbort(),
		schema.List("primaryBitMask", schema.Int64("")).Compute(stripToBitSet, "verticalStripBitmask").OrAbort(),
	))

	b.variant(KindChunkData, V1_15, V1_15_2, schema.NewSchema("ChunkData_1_15",
		schema.Int32("x"),
		schema.Int32("z"),
		schema.Bool("fullChunk"),
		schema.VarInt("verticalStripBitmask"),
		schema.Bytes("heightmaps").Migrated(FixHeightmaps),
		schema.List("biomes", schema.Int32("")).Constant(BiomeCells).OnlyIf(fullChunk, "fullChunk"),
		schema.Nested("data", legacySections()).Raw(),
		blockEntities(),
		schema.List("primaryBitMask", schema.Int64("")).Compute(stripToBitSet, "verticalStripBitmask").OrAbort(),
	))

	b.variant(KindChunkData, V1_16, V1_16_1, schema.NewSchema("ChunkData_1_16",
		schema.Int32("x"),
		schema.Int32("z"),
		schema.Bool("fullChunk"),
		schema.Bool("forgetOldData"),
		schema.VarInt("verticalStripBitmask"),
		schema.Bytes("heightmaps").Migrated(FixHeightmaps),
		schema.List("biomes", schema.Int32("")).Constant(BiomeCells).OnlyIf(fullChunk, "fullChunk"),
		schema.Nested("data", legacySections()).Raw(),
		blockEntities(),
		schema.List("primaryBitMask", schema.Int64("")).Compute(stripToBitSet, "verticalStripBitmask").OrAbort(),
	))

	b.variant(KindChunkData, V1_16_2, V1_16_5, schema.NewSchema("ChunkData_1_16_2",
		schema.Int32("x"),
		schema.Int32("z"),
		schema.Bool("fullChunk"),
		schema.VarInt("verticalStripBitmask"),
		schema.Bytes("heightmaps").Migrated(FixHeightmaps),
		schema.List("biomes", schema.VarInt("")).OnlyIf(fullChunk, "fullChunk"),
		schema.Nested("data", legacySections()).Raw(),
		blockEntities(),
		schema.Bool("forgetOldData").Default(true),
		schema.List("primaryBitMask", schema.Int64("")).Compute(stripToBitSet, "verticalStripBitmask").OrAbort(),
	))

	b.variant(KindChunkData, V1_17, 0, schema.NewSchema("ChunkData",
		schema.Int32("x"),
		schema.Int32("z"),
		schema.List("primaryBitMask", schema.Int64("")),
		schema.Bytes("heightmaps").Migrated(FixHeightmaps),
		schema.List("biomes", schema.VarInt("")),
		schema.Nested("data", schema.NewSchema("ChunkSections",
			schema.List("sections", schema.Nested("", chunkSection())).LengthFrom(bitSetSections, "outer.primaryBitMask"),
		)).Raw(),
		blockEntities(),
	))

	b.packet(schema.Clientbound, KindChunkData, 0x21, V1_14_4, V1_14_4)
	b.packet(schema.Clientbound, KindChunkData, 0x22, V1_15, V1_15_2)
	b.packet(schema.Clientbound, KindChunkData, 0x21, V1_16, V1_16_1)
	b.packet(schema.Clientbound, KindChunkData, 0x20, V1_16_2, V1_16_5)
	b.packet(schema.Clientbound, KindChunkData, 0x22, V1_17, V1_18_2)
	b.packet(schema.Clientbound, KindChunkData, 0x1F, V1_19, 0)

	// Chunks are always sent whole since 1.17; partial updates have no
	// equivalent and are dropped.
	b.dispatcher.HandleVersions(schema.Clientbound, KindChunkData, V1_14_4, V1_16_5, func(msg *schema.Message, _ *session.Context) ([]*schema.Message, error) {
		if !msg.Bool("fullChunk") {
			return nil, nil
		}
		out, err := b.dispatcher.Project(msg, Current)
		if err != nil {
			return nil, err
		}
		return []*schema.Message{out}, nil
	})
}

func legacySections() *schema.RecordSchema {
	return schema.NewSchema("ChunkSections_1_15",
		schema.List("sections", schema.Nested("", chunkSection())).LengthFrom(stripSections, "outer.verticalStripBitmask"),
	)
}

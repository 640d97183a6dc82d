package protocols

import "github.com/Mmx233/ProtoBridge/schema"

var lookAnchor = schema.NewEnum("LookAnchor", "FEET", "EYES")

func registerLookAt(b *builder) {
	b.variant(KindLookAt, V1_14_4, 0, schema.NewSchema("LookAt",
		schema.EnumOf("anchor", lookAnchor),
		schema.Float64("x"),
		schema.Float64("y"),
		schema.Float64("z"),
		schema.Optional("target", schema.Nested("", schema.NewSchema("LookTarget",
			schema.VarInt("entityId"),
			schema.EnumOf("anchor", lookAnchor),
		))),
	))

	b.packet(schema.Clientbound, KindLookAt, 0x34, V1_14_4, V1_14_4)
	b.packet(schema.Clientbound, KindLookAt, 0x35, V1_15, V1_15_2)
	b.packet(schema.Clientbound, KindLookAt, 0x34, V1_16, V1_16_1)
	b.packet(schema.Clientbound, KindLookAt, 0x33, V1_16_2, V1_16_5)
	b.packet(schema.Clientbound, KindLookAt, 0x37, V1_17, 0)
}

package protocols

import "github.com/Mmx233/ProtoBridge/schema"

func registerCustomPayload(b *builder) {
	b.variant(KindCustomPayload, V1_14_4, 0, schema.NewSchema("CustomPayload",
		schema.String("channel"),
		schema.Bytes("data").Remaining(),
	))

	b.packet(schema.Clientbound, KindCustomPayload, 0x18, V1_14_4, V1_14_4)
	b.packet(schema.Clientbound, KindCustomPayload, 0x19, V1_15, V1_15_2)
	b.packet(schema.Clientbound, KindCustomPayload, 0x18, V1_16, V1_16_1)
	b.packet(schema.Clientbound, KindCustomPayload, 0x17, V1_16_2, V1_16_5)
	b.packet(schema.Clientbound, KindCustomPayload, 0x18, V1_17, V1_18_2)
	b.packet(schema.Clientbound, KindCustomPayload, 0x15, V1_19, 0)

	b.packet(schema.Serverbound, KindCustomPayload, 0x0B, V1_14_4, V1_16_5)
	b.packet(schema.Serverbound, KindCustomPayload, 0x0A, V1_17, V1_18_2)
	b.packet(schema.Serverbound, KindCustomPayload, 0x0C, V1_19, 0)
}

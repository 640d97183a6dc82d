package protocols

import (
	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
)

// Combat event cases.
const (
	CombatEnter = "ENTER_COMBAT"
	CombatEnd   = "END_COMBAT"
	CombatDied  = "ENTITY_DIED"
)

var combatMode = schema.NewEnum("CombatEventMode", CombatEnter, CombatEnd, CombatDied)

func registerCombat(b *builder) {
	b.variant(KindCombatEvent, V1_14_4, V1_16_5, schema.NewSchema("CombatEvent").
		Switch(schema.EnumOf("event", combatMode)).
		Case(CombatEnter).
		Case(CombatEnd, schema.VarInt("duration"), schema.Int32("entityId")).
		Case(CombatDied, schema.VarInt("playerId"), schema.Int32("entityId"), schema.String("message")),
	)

	b.variant(KindEnterCombat, V1_17, 0, schema.NewSchema("EnterCombat"))
	b.variant(KindEndCombat, V1_17, 0, schema.NewSchema("EndCombat",
		schema.VarInt("duration"),
		schema.Int32("entityId"),
	))
	b.variant(KindDeathMessage, V1_17, 0, schema.NewSchema("DeathMessage",
		schema.VarInt("playerId"),
		schema.Int32("entityId"),
		schema.String("message"),
	))

	b.packet(schema.Clientbound, KindCombatEvent, 0x32, V1_14_4, V1_14_4)
	b.packet(schema.Clientbound, KindCombatEvent, 0x33, V1_15, V1_15_2)
	b.packet(schema.Clientbound, KindCombatEvent, 0x32, V1_16, V1_16_1)
	b.packet(schema.Clientbound, KindCombatEvent, 0x31, V1_16_2, V1_16_5)
	b.packet(schema.Clientbound, KindEndCombat, 0x33, V1_17, 0)
	b.packet(schema.Clientbound, KindEnterCombat, 0x34, V1_17, 0)
	b.packet(schema.Clientbound, KindDeathMessage, 0x35, V1_17, 0)

	b.dispatcher.HandleCase(schema.Clientbound, KindCombatEvent, CombatEnter, func(*schema.Message, *session.Context) ([]*schema.Message, error) {
		return []*schema.Message{schema.NewMessage(KindEnterCombat)}, nil
	})
	b.dispatcher.HandleCase(schema.Clientbound, KindCombatEvent, CombatEnd, func(msg *schema.Message, _ *session.Context) ([]*schema.Message, error) {
		out := schema.NewMessage(KindEndCombat)
		out.Set("duration", int32(msg.Int("duration"))).Set("entityId", int32(msg.Int("entityId")))
		return []*schema.Message{out}, nil
	})
	b.dispatcher.HandleCase(schema.Clientbound, KindCombatEvent, CombatDied, func(msg *schema.Message, _ *session.Context) ([]*schema.Message, error) {
		out := schema.NewMessage(KindDeathMessage)
		out.Set("playerId", int32(msg.Int("playerId"))).
			Set("entityId", int32(msg.Int("entityId"))).
			Set("message", msg.String("message"))
		return []*schema.Message{out}, nil
	})
}

package protocols

import (
	"fmt"
	"slices"

	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
)

var equipmentSlots = []string{"MAINHAND", "OFFHAND", "FEET", "LEGS", "CHEST", "HEAD"}

var equipmentSlot = schema.NewEnum("EquipmentSlot", equipmentSlots...)

// hasNextEntry is the slot bit marking another entry after this one.
const hasNextEntry = 0x80

func itemStack() *schema.RecordSchema {
	return schema.NewSchema("ItemStack",
		schema.VarInt("itemId").RegistryRef(RegistryItem),
		schema.Int8("count"),
		schema.Bytes("tag").Migrated(FixItemStack),
	)
}

func equipmentEntry() *schema.RecordSchema {
	entry := schema.NewSchema("EquipmentEntry",
		schema.UInt8("slot"),
		schema.Optional("item", schema.Nested("", itemStack())),
	)
	return entry.Add(schema.Nested("nextEntry", entry).
		OnlyIf(func(a schema.Args) bool { return a.Int("slot")&hasNextEntry != 0 }, "slot"))
}

// EquipmentEntries flattens an entry chain into slot index and item pairs.
func EquipmentEntries(first *schema.Record) []*schema.Record {
	var out []*schema.Record
	for e := first; e != nil; e = e.Child("nextEntry") {
		out = append(out, e)
		if e.Int("slot")&hasNextEntry == 0 {
			break
		}
	}
	return out
}

func registerEquipment(b *builder) {
	b.variant(KindEntityEquipment, V1_14_4, V1_15_2, schema.NewSchema("EntityEquipment_1_15",
		schema.VarInt("entityId"),
		schema.EnumOf("slot", equipmentSlot),
		schema.Optional("item", schema.Nested("", itemStack())),
	))
	b.variant(KindEntityEquipment, V1_16, 0, schema.NewSchema("EntityEquipment",
		schema.VarInt("entityId"),
		schema.Nested("equipment", equipmentEntry()),
	))

	b.packet(schema.Clientbound, KindEntityEquipment, 0x46, V1_14_4, V1_14_4)
	b.packet(schema.Clientbound, KindEntityEquipment, 0x47, V1_15, V1_16_5)
	b.packet(schema.Clientbound, KindEntityEquipment, 0x50, V1_17, 0)

	b.dispatcher.HandleVersions(schema.Clientbound, KindEntityEquipment, V1_14_4, V1_15_2, func(msg *schema.Message, _ *session.Context) ([]*schema.Message, error) {
		slot := slices.Index(equipmentSlots, msg.String("slot"))
		if slot < 0 {
			return nil, fmt.Errorf("unknown equipment slot %q", msg.String("slot"))
		}
		item, _ := msg.Get("item")
		entry := schema.NewRecord().Set("slot", uint8(slot)).Set("item", item)
		out := schema.NewMessage(KindEntityEquipment)
		out.Set("entityId", int32(msg.Int("entityId"))).Set("equipment", entry)
		return []*schema.Message{out}, nil
	})
}

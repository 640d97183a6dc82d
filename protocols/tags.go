package protocols

import (
	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
)

func tag(namespace string) *schema.Field {
	entry := schema.VarInt("")
	if namespace != "" {
		entry.RegistryRef(namespace)
	}
	return schema.Nested("", schema.NewSchema("Tag",
		schema.String("name"),
		schema.List("entries", entry),
	))
}

func tagGroups() *schema.RecordSchema {
	s := schema.NewSchema("TagGroup").Switch(schema.String("id"))
	for _, ns := range []string{RegistryBlock, RegistryItem, RegistryFluid, RegistryEntityType, RegistryGameEvent} {
		s.Case(ns, schema.List("tags", tag(ns)))
	}
	// Tags of registries this proxy does not remap keep their raw ids.
	return s.Otherwise(schema.List("tags", tag("")))
}

var legacyTagLists = []struct {
	field     string
	namespace string
}{
	{"blockTags", RegistryBlock},
	{"itemTags", RegistryItem},
	{"fluidTags", RegistryFluid},
	{"entityTags", RegistryEntityType},
}

func registerTags(b *builder) {
	legacy := schema.NewSchema("SynchronizeTags_1_15")
	for _, l := range legacyTagLists {
		legacy.Add(schema.List(l.field, tag(l.namespace)))
	}
	b.variant(KindSynchronizeTags, V1_14_4, V1_16_5, legacy)
	b.variant(KindSynchronizeTags, V1_17, 0, schema.NewSchema("SynchronizeTags",
		schema.List("groups", schema.Nested("", tagGroups())),
	))

	b.packet(schema.Clientbound, KindSynchronizeTags, 0x5B, V1_14_4, V1_14_4)
	b.packet(schema.Clientbound, KindSynchronizeTags, 0x5C, V1_15, V1_15_2)
	b.packet(schema.Clientbound, KindSynchronizeTags, 0x5B, V1_16, V1_16_5)
	b.packet(schema.Clientbound, KindSynchronizeTags, 0x66, V1_17, V1_17_1)
	b.packet(schema.Clientbound, KindSynchronizeTags, 0x67, V1_18, V1_18_2)
	b.packet(schema.Clientbound, KindSynchronizeTags, 0x68, V1_19, 0)

	b.dispatcher.HandleVersions(schema.Clientbound, KindSynchronizeTags, V1_14_4, V1_16_5, func(msg *schema.Message, _ *session.Context) ([]*schema.Message, error) {
		groups := make([]any, 0, len(legacyTagLists))
		for _, l := range legacyTagLists {
			tags := msg.List(l.field)
			if tags == nil {
				tags = []any{}
			}
			groups = append(groups, schema.NewRecord().Set("id", l.namespace).Set("tags", tags))
		}
		out := schema.NewMessage(KindSynchronizeTags)
		out.Set("groups", groups)
		return []*schema.Message{out}, nil
	})
}

package protocols

import (
	"strings"

	"github.com/Mmx233/ProtoBridge/datafix"
)

func setDefault(doc datafix.Document, key string, v any) {
	if _, ok := doc[key]; !ok {
		doc[key] = v
	}
}

func registerFixes(b *builder) {
	b.fixer.Declare(FixItemStack).Declare(FixHeightmaps)
	b.fix(
		// Dimension types gained a vertical extent in 1.17.
		datafix.Fix{Key: FixDimension, DataVersion: 2724, Name: "world height", Apply: func(doc datafix.Document) error {
			setDefault(doc, "min_y", 0)
			setDefault(doc, "height", 256)
			setDefault(doc, "logical_height", 256)
			return nil
		}},
		datafix.Fix{Key: FixDimension, DataVersion: 3105, Name: "monster spawn light", Apply: func(doc datafix.Document) error {
			setDefault(doc, "monster_spawn_light_level", 0)
			setDefault(doc, "monster_spawn_block_light_limit", 0)
			return nil
		}},
		datafix.Fix{Key: FixBlockEntity, DataVersion: 2566, Name: "namespaced id", Apply: func(doc datafix.Document) error {
			if id, ok := doc["id"].(string); ok && id != "" && !strings.Contains(id, ":") {
				doc["id"] = "minecraft:" + strings.ToLower(id)
			}
			return nil
		}},
	)
}

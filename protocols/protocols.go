package protocols

import (
	"fmt"
	"sync"

	"github.com/Mmx233/ProtoBridge/datafix"
	"github.com/Mmx233/ProtoBridge/handler"
	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/translator"
)

// Kinds.
const (
	KindRespawn               schema.Kind = "respawn"
	KindChunkData             schema.Kind = "chunk_data"
	KindCombatEvent           schema.Kind = "combat_event"
	KindEnterCombat           schema.Kind = "enter_combat"
	KindEndCombat             schema.Kind = "end_combat"
	KindDeathMessage          schema.Kind = "death_message"
	KindGameMessage           schema.Kind = "game_message"
	KindPlayerChat            schema.Kind = "player_chat"
	KindSynchronizeTags       schema.Kind = "synchronize_tags"
	KindEntityEquipment       schema.Kind = "entity_equipment"
	KindLookAt                schema.Kind = "look_at"
	KindCustomPayload         schema.Kind = "custom_payload"
	KindRecipeBookData        schema.Kind = "recipe_book_data"
	KindRecipeCategoryOptions schema.Kind = "recipe_category_options"
	KindDisplayedRecipe       schema.Kind = "displayed_recipe"
)

// Registry namespaces referenced by fields.
const (
	RegistryBlockState = "minecraft:block_state"
	RegistryBlock      = "minecraft:block"
	RegistryItem       = "minecraft:item"
	RegistryFluid      = "minecraft:fluid"
	RegistryEntityType = "minecraft:entity_type"
	RegistryGameEvent  = "minecraft:game_event"
)

// RegistryNamespaces lists every namespace a definition references.
func RegistryNamespaces() []string {
	return []string{RegistryBlock, RegistryBlockState, RegistryEntityType, RegistryFluid, RegistryGameEvent, RegistryItem}
}

// Datafix schema keys.
const (
	FixDimension   = "dimension"
	FixBlockEntity = "block_entity"
	FixItemStack   = "item_stack"
	FixHeightmaps  = "heightmaps"
)

type builder struct {
	table      *schema.Table
	dispatcher *handler.Dispatcher
	ids        *IDTable
	fixer      *datafix.Fixer
	err        error
}

func (b *builder) variant(kind schema.Kind, minVersion, maxVersion int32, s *schema.RecordSchema) {
	if b.err != nil {
		return
	}
	b.err = b.table.Register(&schema.Variant{Kind: kind, MinVersion: minVersion, MaxVersion: maxVersion, Schema: s})
}

func (b *builder) packet(dir schema.Direction, kind schema.Kind, id, minVersion, maxVersion int32) {
	if b.err != nil {
		return
	}
	b.err = b.ids.add(dir, kind, id, minVersion, maxVersion)
}

func (b *builder) fix(fixes ...datafix.Fix) {
	if b.err != nil {
		return
	}
	b.err = b.fixer.Register(fixes...)
}

// Set is the complete immutable definition shared by all connections.
type Set struct {
	Protocol *translator.Protocol
	IDs      *IDTable
	Fixer    *datafix.Fixer
}

// Build registers every definition and freezes the result.
func Build() (*Set, error) {
	b := &builder{
		table: schema.NewTable(),
		ids:   newIDTable(),
		fixer: datafix.NewFixer(),
	}
	b.dispatcher = handler.New(b.table, Current)

	for _, register := range []func(*builder){
		registerFixes,
		registerRespawn,
		registerChunkData,
		registerCombat,
		registerChat,
		registerTags,
		registerEquipment,
		registerLookAt,
		registerCustomPayload,
		registerRecipeBook,
	} {
		register(b)
		if b.err != nil {
			return nil, fmt.Errorf("build protocol definitions: %w", b.err)
		}
	}
	b.table.Freeze()

	return &Set{
		Protocol: &translator.Protocol{
			Current:     Current,
			Table:       b.table,
			Dispatcher:  b.dispatcher,
			IDs:         b.ids,
			Bridge:      b.fixer,
			DataVersion: DataVersion,
			PayloadKind: KindCustomPayload,
		},
		IDs:   b.ids,
		Fixer: b.fixer,
	}, nil
}

var (
	defaultOnce sync.Once
	defaultSet  *Set
	defaultErr  error
)

// Default returns the process-wide definition set, building it on first use.
func Default() (*Set, error) {
	defaultOnce.Do(func() {
		defaultSet, defaultErr = Build()
	})
	return defaultSet, defaultErr
}

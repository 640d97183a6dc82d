package protocols

import (
	"fmt"
	"slices"

	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
)

// Recipe book data cases.
const (
	RecipeDisplayed  = "DISPLAYED_RECIPE"
	RecipeBookStates = "RECIPE_BOOK_STATES"
)

var (
	recipeBookDataType = schema.NewEnum("RecipeBookDataType", RecipeDisplayed, RecipeBookStates)
	recipeBookType     = schema.NewEnum("RecipeBookType", "CRAFTING", "FURNACE", "BLAST_FURNACE", "SMOKER")
)

// recipeBookFields are the open and filter flags of every book, in wire order.
var recipeBookFields = [...]string{
	"craftingOpen", "craftingFilter",
	"smeltingOpen", "smeltingFilter",
	"blastingOpen", "blastingFilter",
	"smokingOpen", "smokingFilter",
}

// RecipeBookState is the open and filter flag pair of each recipe book.
type RecipeBookState [len(recipeBookFields)]bool

// SlotRecipeBook remembers the book flags, since current clients report one
// book per message while legacy servers expect all of them at once.
var SlotRecipeBook = session.NewKey("recipe_book", RecipeBookState{})

func registerRecipeBook(b *builder) {
	states := make([]*schema.Field, 0, len(recipeBookFields))
	for _, name := range recipeBookFields {
		states = append(states, schema.Bool(name))
	}
	b.variant(KindRecipeBookData, V1_14_4, V1_16_1, schema.NewSchema("RecipeBookData").
		Switch(schema.EnumOf("type", recipeBookDataType)).
		Case(RecipeDisplayed, schema.String("recipeId")).
		Case(RecipeBookStates, states...),
	)
	b.variant(KindRecipeCategoryOptions, V1_16_2, 0, schema.NewSchema("RecipeCategoryOptions",
		schema.EnumOf("bookId", recipeBookType),
		schema.Bool("bookOpen"),
		schema.Bool("filterActive"),
	))
	b.variant(KindDisplayedRecipe, V1_16_2, 0, schema.NewSchema("DisplayedRecipe",
		schema.String("recipeId"),
	))

	b.packet(schema.Serverbound, KindRecipeBookData, 0x1D, V1_14_4, V1_15_2)
	b.packet(schema.Serverbound, KindRecipeBookData, 0x1E, V1_16, V1_16_1)
	b.packet(schema.Serverbound, KindRecipeCategoryOptions, 0x1E, V1_16_2, V1_18_2)
	b.packet(schema.Serverbound, KindRecipeCategoryOptions, 0x1F, V1_19, 0)
	b.packet(schema.Serverbound, KindDisplayedRecipe, 0x1F, V1_16_2, V1_18_2)
	b.packet(schema.Serverbound, KindDisplayedRecipe, 0x20, V1_19, 0)

	b.dispatcher.HandleVersions(schema.Serverbound, KindRecipeCategoryOptions, V1_14_4, V1_16_1, func(msg *schema.Message, ctx *session.Context) ([]*schema.Message, error) {
		book := slices.Index(recipeBookType.Names, msg.String("bookId"))
		if book < 0 {
			return nil, fmt.Errorf("unknown recipe book %q", msg.String("bookId"))
		}
		state := session.Update(ctx, SlotRecipeBook, func(s RecipeBookState) RecipeBookState {
			s[2*book] = msg.Bool("bookOpen")
			s[2*book+1] = msg.Bool("filterActive")
			return s
		})
		out := schema.NewMessage(KindRecipeBookData)
		out.Set("type", RecipeBookStates)
		for i, name := range recipeBookFields {
			out.Set(name, state[i])
		}
		return []*schema.Message{out.WithCase(RecipeBookStates)}, nil
	})
	b.dispatcher.HandleVersions(schema.Serverbound, KindDisplayedRecipe, V1_14_4, V1_16_1, func(msg *schema.Message, _ *session.Context) ([]*schema.Message, error) {
		out := schema.NewMessage(KindRecipeBookData)
		out.Set("type", RecipeDisplayed).Set("recipeId", msg.String("recipeId"))
		return []*schema.Message{out.WithCase(RecipeDisplayed)}, nil
	})
}

package protocols

import (
	"fmt"
	"strings"

	"github.com/Mmx233/ProtoBridge/schema"
	"github.com/Mmx233/ProtoBridge/session"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// Legacy chat positions.
const (
	PositionChat     = 0
	PositionSystem   = 1
	PositionGameInfo = 2
)

// Chat type registry ids of the current version.
const (
	ChatTypeChat     int32 = 0
	ChatTypeSystem   int32 = 1
	ChatTypeGameInfo int32 = 2
	ChatTypeSay      int32 = 3
	ChatTypeMsg      int32 = 4
	ChatTypeTeam     int32 = 5
	ChatTypeEmote    int32 = 6
	ChatTypeTellraw  int32 = 7
)

// chatLayout places the arguments of a translated player message.
// team is -1 when the message names no team.
type chatLayout struct {
	typeID  int32
	team    int
	sender  int
	content int
}

func (l chatLayout) arity() int {
	return max(l.team, l.sender, l.content) + 1
}

var translationChatTypes = map[string]chatLayout{
	"chat.type.text":                    {typeID: ChatTypeChat, team: -1, sender: 0, content: 1},
	"chat.type.announcement":            {typeID: ChatTypeSay, team: -1, sender: 0, content: 1},
	"commands.message.display.incoming": {typeID: ChatTypeMsg, team: -1, sender: 0, content: 1},
	"chat.type.team.text":               {typeID: ChatTypeTeam, team: 0, sender: 1, content: 2},
	"chat.type.emote":                   {typeID: ChatTypeEmote, team: -1, sender: 0, content: 1},
}

type chatComponent struct {
	Translate  string                `json:"translate"`
	With       []jsoniter.RawMessage `json:"with"`
	HoverEvent *hoverEvent           `json:"hoverEvent"`
}

type hoverEvent struct {
	Action   string              `json:"action"`
	Contents jsoniter.RawMessage `json:"contents"`
	Value    jsoniter.RawMessage `json:"value"`
}

// entityID returns the UUID of a show_entity hover event. Since 1.16 it is
// structured contents, before that a stringified compound in value.
func (h *hoverEvent) entityID() (uuid.UUID, error) {
	if h == nil || h.Action != "show_entity" {
		return uuid.Nil, fmt.Errorf("no show_entity hover event")
	}
	if len(h.Contents) != 0 {
		var contents struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(h.Contents, &contents); err != nil {
			return uuid.Nil, err
		}
		return uuid.Parse(contents.ID)
	}
	var value struct {
		Text string `json:"text"`
	}
	var text string
	if err := json.Unmarshal(h.Value, &text); err != nil {
		if err = json.Unmarshal(h.Value, &value); err != nil {
			return uuid.Nil, err
		}
		text = value.Text
	}
	const marker = `id:"`
	i := strings.Index(text, marker)
	if i < 0 {
		return uuid.Nil, fmt.Errorf("no entity id in %q", text)
	}
	text = text[i+len(marker):]
	j := strings.IndexByte(text, '"')
	if j < 0 {
		return uuid.Nil, fmt.Errorf("unterminated entity id")
	}
	return uuid.Parse(text[:j])
}

func parseChat(message string) (*chatComponent, error) {
	var c chatComponent
	if err := json.UnmarshalFromString(message, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// playerChat returns the layout of a translated player message whose
// arguments are all present.
func playerChat(c *chatComponent) (chatLayout, bool) {
	layout, ok := translationChatTypes[c.Translate]
	if !ok || len(c.With) < layout.arity() {
		return chatLayout{}, false
	}
	return layout, true
}

// senderOf finds the sender of a translated chat line through the hover
// event of its sender argument.
func senderOf(in schema.SynthInput) (any, error) {
	c, err := parseChat(in.String("message"))
	if err != nil {
		return nil, err
	}
	layout, ok := playerChat(c)
	if !ok {
		return nil, fmt.Errorf("not a player message")
	}
	var name chatComponent
	if err = json.Unmarshal(c.With[layout.sender], &name); err != nil {
		return nil, err
	}
	return name.HoverEvent.entityID()
}

// richChat builds the signed chat form of a legacy player message. Legacy
// servers never sign, so the signature stays empty.
func richChat(msg *schema.Message) (*schema.Message, bool) {
	sender := msg.UUID("sender")
	if msg.Int("position") != PositionChat || sender == uuid.Nil {
		return nil, false
	}
	c, err := parseChat(msg.String("message"))
	if err != nil {
		return nil, false
	}
	layout, ok := playerChat(c)
	if !ok {
		return nil, false
	}
	var team any
	if layout.team >= 0 {
		team = string(c.With[layout.team])
	}
	out := schema.NewMessage(KindPlayerChat)
	out.Set("content", string(c.With[layout.content])).
		Set("unsignedContent", nil).
		Set("typeId", layout.typeID).
		Set("sender", sender).
		Set("displayName", string(c.With[layout.sender])).
		Set("teamName", team).
		Set("timestamp", int64(0)).
		Set("salt", int64(0)).
		Set("signature", []byte{})
	return out, true
}

func legacyPosition(position int64) int32 {
	switch position {
	case PositionSystem:
		return ChatTypeSystem
	case PositionGameInfo:
		return ChatTypeGameInfo
	default:
		return ChatTypeChat
	}
}

func registerChat(b *builder) {
	b.variant(KindGameMessage, V1_14_4, V1_15_2, schema.NewSchema("GameMessage_1_15",
		schema.String("message"),
		schema.Int8("position"),
		schema.UUID("sender").Compute(senderOf, "message").OrSentinel(uuid.Nil),
	))
	b.variant(KindGameMessage, V1_16, V1_18_2, schema.NewSchema("GameMessage_1_16",
		schema.String("message"),
		schema.Int8("position"),
		schema.UUID("sender"),
	))
	b.variant(KindGameMessage, V1_19, 0, schema.NewSchema("GameMessage",
		schema.String("message"),
		schema.VarInt("typeId"),
	))
	b.variant(KindPlayerChat, V1_19, 0, schema.NewSchema("PlayerChat",
		schema.String("content"),
		schema.Optional("unsignedContent", schema.String("")),
		schema.VarInt("typeId"),
		schema.UUID("sender"),
		schema.String("displayName"),
		schema.Optional("teamName", schema.String("")),
		schema.Int64("timestamp"),
		schema.Int64("salt"),
		schema.Bytes("signature"),
	))

	b.packet(schema.Clientbound, KindGameMessage, 0x0E, V1_14_4, V1_14_4)
	b.packet(schema.Clientbound, KindGameMessage, 0x0F, V1_15, V1_15_2)
	b.packet(schema.Clientbound, KindGameMessage, 0x0E, V1_16, V1_16_5)
	b.packet(schema.Clientbound, KindGameMessage, 0x0F, V1_17, V1_18_2)
	b.packet(schema.Clientbound, KindGameMessage, 0x5F, V1_19, 0)
	b.packet(schema.Clientbound, KindPlayerChat, 0x30, V1_19, 0)

	// A player message splits into the plain system line and the chat
	// form carrying its sender.
	b.dispatcher.HandleVersions(schema.Clientbound, KindGameMessage, V1_14_4, V1_18_2, func(msg *schema.Message, _ *session.Context) ([]*schema.Message, error) {
		basic := schema.NewMessage(KindGameMessage)
		basic.Set("message", msg.String("message")).Set("typeId", legacyPosition(msg.Int("position")))
		out := []*schema.Message{basic}
		if rich, ok := richChat(msg); ok {
			out = append(out, rich)
		}
		return out, nil
	})
}

package schema

import "fmt"

// Kind is the stable logical identity of a message across versions.
type Kind string

// Direction of a frame relative to the client.
type Direction uint8

const (
	Clientbound Direction = iota + 1
	Serverbound
)

func (d Direction) String() string {
	switch d {
	case Clientbound:
		return "clientbound"
	case Serverbound:
		return "serverbound"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// WireType selects how a field value is laid out on the wire and which Go
// type carries it in a Record.
type WireType uint8

const (
	TypeBool     WireType = iota + 1 // bool
	TypeInt8                         // int8
	TypeUInt8                        // uint8
	TypeInt16                        // int16
	TypeUInt16                       // uint16
	TypeInt32                        // int32
	TypeInt64                        // int64
	TypeFloat32                      // float32
	TypeFloat64                      // float64
	TypeVarInt                       // int32
	TypeVarLong                      // int64
	TypeString                       // string
	TypeBytes                        // []byte
	TypeUUID                         // uuid.UUID
	TypeRecord                       // *Record
	TypeList                         // []any
	TypeOptional                     // any, nil when absent
	TypeEnum                         // string constant name
)

var wireTypeNames = map[WireType]string{
	TypeBool:     "bool",
	TypeInt8:     "int8",
	TypeUInt8:    "uint8",
	TypeInt16:    "int16",
	TypeUInt16:   "uint16",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeFloat32:  "float32",
	TypeFloat64:  "float64",
	TypeVarInt:   "varint",
	TypeVarLong:  "varlong",
	TypeString:   "string",
	TypeBytes:    "bytes",
	TypeUUID:     "uuid",
	TypeRecord:   "record",
	TypeList:     "list",
	TypeOptional: "optional",
	TypeEnum:     "enum",
}

func (t WireType) String() string {
	if s, ok := wireTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("wiretype(%d)", uint8(t))
}

// Enum is an ordered set of constant names. A constant's wire code is its index.
type Enum struct {
	Name  string
	Names []string
	// Wire is the integer encoding of the code: TypeVarInt (default), TypeUInt8 or TypeInt32.
	Wire WireType
}

// NewEnum creates a VarInt coded enum.
func NewEnum(name string, names ...string) *Enum {
	return &Enum{Name: name, Names: names, Wire: TypeVarInt}
}

func (e *Enum) code(name string) (int, bool) {
	for i, n := range e.Names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (e *Enum) name(code int64) (string, bool) {
	if code < 0 || code >= int64(len(e.Names)) {
		return "", false
	}
	return e.Names[code], true
}

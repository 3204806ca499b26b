package schema

// BlockKind tags how a step participates in an implicit block structure.
type BlockKind int

const (
	BlockNone BlockKind = iota
	BlockStart
	BlockMiddle
	BlockEnd
)

func (k BlockKind) String() string {
	switch k {
	case BlockNone:
		return "none"
	case BlockStart:
		return "start"
	case BlockMiddle:
		return "middle"
	case BlockEnd:
		return "end"
	default:
		return "unknown"
	}
}

// BlockBehavior is the static block tag of an action. Pairing is shared by
// every Start/Middle/End action of the same kind of block (e.g. all "if"
// blocks share "if"); instances are told apart at run time by nesting depth.
type BlockBehavior struct {
	Kind    BlockKind
	Pairing string
}

// Well-known pairing ids of the built-in block actions.
const (
	PairingIf    = "if"
	PairingLoop  = "loop"
	PairingEvent = "event"
)

// NoBlock is the behavior of ordinary actions.
var NoBlock = BlockBehavior{Kind: BlockNone}

// StartOf, MiddleOf and EndOf build block behaviors for a pairing id.
func StartOf(pairing string) BlockBehavior {
	return BlockBehavior{Kind: BlockStart, Pairing: pairing}
}

func MiddleOf(pairing string) BlockBehavior {
	return BlockBehavior{Kind: BlockMiddle, Pairing: pairing}
}

func EndOf(pairing string) BlockBehavior {
	return BlockBehavior{Kind: BlockEnd, Pairing: pairing}
}

// IsBlock reports whether the behavior participates in a block.
func (b BlockBehavior) IsBlock() bool { return b.Kind != BlockNone }

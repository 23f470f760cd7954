package lanes

// Polymorphic name storage (spec.md §9): a Linda's name is empty, a short
// inline buffer, or a heap-allocated string. Ported from
// original_source/src/linda.cpp's std::variant<AllocatedName, EmbeddedName>
// and its kEmbeddedNameLength constant.
const embeddedNameLength = 24

type nameKind uint8

const (
	nameEmpty nameKind = iota
	nameInline
	nameHeap
)

type lindaName struct {
	kind   nameKind
	inline [embeddedNameLength]byte
	inlineLen uint8
	heap   string
}

func newLindaName(name string) lindaName {
	if name == "" {
		return lindaName{kind: nameEmpty}
	}
	if len(name) < embeddedNameLength {
		n := lindaName{kind: nameInline, inlineLen: uint8(len(name))}
		copy(n.inline[:], name)
		return n
	}
	return lindaName{kind: nameHeap, heap: name}
}

func (n lindaName) String() string {
	switch n.kind {
	case nameInline:
		return string(n.inline[:n.inlineLen])
	case nameHeap:
		return n.heap
	default:
		return ""
	}
}

func (n lindaName) isEmpty() bool { return n.kind == nameEmpty }

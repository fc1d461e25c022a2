package cel

import "fmt"

// MappingErrorKind enumerates the ways a parsed CEL value tree can fail to
// match the fixed certification schema, per §4.C.
type MappingErrorKind int

const (
	ErrUnexpectedNodeType MappingErrorKind = iota
	ErrUnexpectedNodeName
	ErrMissingField
	ErrExtraneousField
)

// MappingError reports a schema mismatch while mapping a parsed CelValue
// tree onto the typed Descriptor.
type MappingError struct {
	Kind    MappingErrorKind
	Node    string
	Field   string
	Wanted  string
	Found   string
}

func (e *MappingError) Error() string {
	switch e.Kind {
	case ErrUnexpectedNodeType:
		return fmt.Sprintf("cel: %s: expected %s, found %s", e.Node, e.Wanted, e.Found)
	case ErrUnexpectedNodeName:
		return fmt.Sprintf("cel: %s: expected name %q, found %q", e.Node, e.Wanted, e.Found)
	case ErrMissingField:
		return fmt.Sprintf("cel: %s: missing field %q", e.Node, e.Field)
	case ErrExtraneousField:
		return fmt.Sprintf("cel: %s: mutually exclusive fields both present (%s)", e.Node, e.Field)
	default:
		return "cel: mapping error"
	}
}

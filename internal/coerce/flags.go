package coerce

import "github.com/bamlgo/baml/internal/value"

// Flag is one annotation recording how the coercer reached a value,
// attached per-node as the metadata of a value.WithMeta[[]Flag] (spec
// §4.I's ParseFlags bag).
type Flag int

const (
	FlagNone Flag = iota
	FlagDefaultFromNoValue
	FlagImpliedKey
	FlagDefaultButHadUnparseableValue
	FlagExtraKey
	FlagOptionalDefaultFromNoValue
	FlagBoolStringToBool
	FlagSingleArrayElement
	FlagArrayElement
	FlagSingleObjectKey
	FlagObjectKey
	FlagUnsupportedResponse
	FlagStringToInt
	FlagFloatToIntLossy
	FlagSubstringMatch
)

// ArrayElement records which candidate index within an array/object a
// value was picked from, carried alongside the Flag in a TaggedFlag
// since Flag alone can't hold the index.
type TaggedFlag struct {
	Flag  Flag
	Index int    // meaningful for FlagArrayElement
	Key   string // meaningful for FlagObjectKey/FlagSingleObjectKey
}

// Flags is the per-node metadata type threaded through value.WithMeta.
type Flags []TaggedFlag

func (f Flags) with(t TaggedFlag) Flags {
	return append(append(Flags{}, f...), t)
}

// rank returns a flag's badness rank; lower is better.
func (t TaggedFlag) rank() int {
	switch t.Flag {
	case FlagNone:
		return 0
	case FlagSingleArrayElement, FlagSingleObjectKey, FlagBoolStringToBool:
		return 1
	case FlagImpliedKey, FlagSubstringMatch:
		return 2
	case FlagStringToInt:
		return 2
	case FlagArrayElement, FlagObjectKey:
		return 3 + t.Index
	case FlagOptionalDefaultFromNoValue, FlagDefaultFromNoValue:
		return 4
	case FlagExtraKey:
		return 1
	case FlagFloatToIntLossy:
		return 5
	case FlagDefaultButHadUnparseableValue:
		return 6
	case FlagUnsupportedResponse:
		return 100
	default:
		return 10
	}
}

// Rank is the max badness of any flag in the bag (0 for an empty bag),
// the primary score used to pick the best candidate/union-variant.
func (f Flags) Rank() int {
	best := 0
	for _, t := range f {
		if r := t.rank(); r > best {
			best = r
		}
	}
	return best
}

// Value is value.WithMeta specialized to the coercer's per-node Flags bag.
type Value = value.WithMeta[Flags]

// Result pairs a coerced value with a count of how many fields/elements
// were actually parsed (used as Scoring's tie-break) and its position
// among sibling candidates (the final tie-break).
type Result struct {
	Value       *Value
	FieldsCount int
	SourceOrder int
}

// less orders two results by rank, then fields parsed (descending --
// more fields is better), then source order.
func less(a, b Result) bool {
	ra, rb := a.Value.Meta.Rank(), b.Value.Meta.Rank()
	if ra != rb {
		return ra < rb
	}
	if a.FieldsCount != b.FieldsCount {
		return a.FieldsCount > b.FieldsCount
	}
	return a.SourceOrder < b.SourceOrder
}

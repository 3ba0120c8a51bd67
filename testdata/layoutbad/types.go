package layoutbad

import "time"

//bitpack:union
type U struct {
	A uint8  `bitpack:"when=1"`
	B uint16 `bitpack:"when=2"`
}

//bitpack:union
type Unselected struct {
	A uint8 `bitpack:"when=1"`
	B uint8
}

//bitpack:union
type Duplicate struct {
	A uint8 `bitpack:"when=1"`
	B uint8 `bitpack:"when=1"`
}

//bitpack:union
type Defaulted struct {
	A uint8 `bitpack:"when=1"`
	B uint8 `bitpack:"-,default=3"`
}

type LateTag struct {
	Value U `bitpack:"tag=Kind"`
	Kind  uint8
}

type ArrayTag struct {
	Kind  [2]uint8
	Value U `bitpack:"tag=Kind"`
}

type NoSelector struct {
	Kind  uint8
	Value Unselected `bitpack:"tag=Kind"`
}

type DuplicateSelector struct {
	Kind  uint8
	Value Duplicate `bitpack:"tag=Kind"`
}

type UnionArray struct {
	Kind   uint8
	Values [2]U `bitpack:"tag=Kind"`
}

type DefaultedArm struct {
	Kind  uint8
	Value Defaulted `bitpack:"tag=Kind"`
}

type StrayWhen struct {
	A uint8 `bitpack:"when=3"`
}

type BigBuffer struct {
	Data [64]byte `bitpack:"buffer"`
}

type Foreign struct {
	At time.Time
}

type NotAStruct uint8

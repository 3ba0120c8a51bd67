package parserbasic

import "github.com/seitarof/gen-bitpack/testdata/parsernested"

//bitpack:heritable integer level bits=7
//bitpack:heritable string nickname length=10

type Color uint8

const (
	ColorRed Color = iota + 1
	ColorGreen
	ColorBlue
)

const unrelated = 42

//bitpack:string,length=7
type Name [8]byte

// Slot indexes the active party member.
//
//bitpack:bits=4
type Slot uint8

type Member struct {
	Species parsernested.Species
	Moves   [4]parsernested.Move
	Stats   parsernested.Stats
	Level   uint8 `bitpack:"inherit=level"`
	Color   Color
	Name    Name
	hidden  uint8
}

type Save struct {
	Party [6]Member
	Slot  Slot
}

var Player Save

var count = 3

func PackLevel(src *uint8, dst *uint8) { *dst = *src - 1 }

func UnpackLevel(dst *uint8, src *uint8) { *dst = *src + 1 }

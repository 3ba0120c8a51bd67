package layout

type Kind uint8

const (
	KindNone Kind = iota
	KindItem
	KindMon
)

type Point struct {
	X uint8 `bitpack:"bits=5"`
	Y uint8 `bitpack:"bits=5"`
}

type Header struct {
	Version uint8 `bitpack:"bits=4"`
	Valid   bool
}

type Item struct {
	ID    uint16 `bitpack:"bits=10"`
	Count uint8  `bitpack:"bits=7"`
}

type Mon struct {
	Species uint16 `bitpack:"bits=11"`
	Level   uint8  `bitpack:"range=1:100"`
}

//bitpack:union
type Payload struct {
	Item Item `bitpack:"when=1"`
	Mon  Mon  `bitpack:"when=2"`
}

type Slot struct {
	Kind    Kind
	Payload Payload `bitpack:"tag=Kind"`
}

type EventBase struct {
	Code  uint8 `bitpack:"bits=3"`
	Flags uint8 `bitpack:"bits=2"`
}

type MoveEvent struct {
	EventBase
	To Point
}

type TalkEvent struct {
	EventBase
	Line uint16 `bitpack:"bits=9"`
	Seen bool
}

//bitpack:union
type Event struct {
	Move MoveEvent `bitpack:"when=0"`
	Talk TalkEvent `bitpack:"when=1|2"`
}

type Save struct {
	Header Header
	Party  [3]Mon
	Bag    [4]Item
	Name   [8]byte `bitpack:"string,terminator"`
	Slots  [2]Slot
	Event  Event `bitpack:"internal_tag=Code"`
	Pos    struct{ X, Y int8 }
	Cache  []byte      `bitpack:"-"`
	Scaled float32     `bitpack:"transform=PackScaled:UnpackScaled,range=0:1000"`
	Blob   [3]byte     `bitpack:"buffer"`
	Grid   [2][3]uint8 `bitpack:"bits=3"`
}

type Options struct {
	Sound uint8 `bitpack:"bits=2"`
	Speed uint8 `bitpack:"bits=2"`
	Frame uint8 `bitpack:"bits=5"`
}

const DefaultVolume = 7

type Tuning struct {
	Gain   float32
	Bias   [2]float64
	Volume uint8   `bitpack:"-,default=DefaultVolume"`
	Label  [6]byte `bitpack:"-,default=\"tune\""`
	Mode   Kind    `bitpack:"-,default=KindMon"`
	Trim   int16   `bitpack:"range=-40:40"`
}

var SaveData Save

var Settings Options

var Calibration Tuning

func PackScaled(src *float32, dst *uint16) { *dst = uint16(*src*10 + 0.5) }

func UnpackScaled(dst *float32, src *uint16) { *dst = float32(*src) / 10 }

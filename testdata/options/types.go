package options

//bitpack:heritable integer species bits=11
//bitpack:heritable string nickname length=5,terminator

type Color uint8

const (
	ColorRed Color = iota
	ColorGreen
	ColorBlue
	ColorGold
)

type Offset int8

const (
	OffsetBack  Offset = -2
	OffsetStay  Offset = 0
	OffsetAhead Offset = 5
)

//bitpack:bits=5
type Level uint8

//bitpack:string,length=7
type Name [8]byte

type Char uint8

type Flag uint8

type Fields struct {
	Flag          bool
	Small         uint8 `bitpack:"bits=3"`
	Ranged        int16 `bitpack:"range=-100:100"`
	Natural       int32
	Signed        int16 `bitpack:"bits=6"`
	Color         Color
	Offset        Offset
	Level         Level
	LevelOverride Level   `bitpack:"bits=7"`
	LevelInherit  Level   `bitpack:"inherit=species"`
	Species       uint16  `bitpack:"inherit=species"`
	Nick          [8]byte `bitpack:"inherit=nickname"`
	Name          Name
	Short         [4]byte    `bitpack:"string,terminator"`
	Names         [3][8]byte `bitpack:"string"`
	Chars         [6]Char
	Blob          [6]uint16 `bitpack:"buffer"`
	Addr          uintptr
	Grid          [2][3]uint8 `bitpack:"bits=4"`
	Skipped       string      `bitpack:"-"`
	Scaled        float32     `bitpack:"transform=PackScaled:UnpackScaled,bits=10"`
	Wide          uint8       `bitpack:"bits=12"`
	Custom        Flag
}

func PackScaled(src *float32, dst *uint16) { *dst = uint16(*src * 10) }

func UnpackScaled(dst *float32, src *uint16) { *dst = float32(*src) / 10 }

func PackWrong(src *float64, dst *uint16) { *dst = uint16(*src) }

const DefaultVolume = 7

type Defaults struct {
	Gain     float32
	Bias     float64 `bitpack:"buffer"`
	Volume   uint8   `bitpack:"-,default=DefaultVolume"`
	Label    [8]byte `bitpack:"-,default=\"ab, c\""`
	Tint     Color   `bitpack:"-,default=ColorGold"`
	Ratio    float32 `bitpack:"-,default=0.5"`
	Overflow uint8   `bitpack:"-,default=300"`
	LongText [2]byte `bitpack:"-,default=\"abc\""`
	Unknown  uint8   `bitpack:"-,default=Missing"`
	Mistyped Level   `bitpack:"-,default=ColorRed"`
	Packed   uint8   `bitpack:"bits=3,default=1"`
	FloatInt float32 `bitpack:"bits=8"`
}

type Invalid struct {
	Mixed     uint8   `bitpack:"bits=4,length=3"`
	Unknown   uint8   `bitpack:"inherit=missing"`
	Mismatch  uint8   `bitpack:"bits=3,inherit=nickname"`
	ZeroBits  uint8   `bitpack:"bits=0"`
	HugeBits  uint64  `bitpack:"bits=65"`
	Inverted  int16   `bitpack:"range=10:-10"`
	TooLong   [4]byte `bitpack:"length=9"`
	ScalarStr uint16  `bitpack:"string"`
	ScalarBuf uint32  `bitpack:"buffer"`
	Slice     []uint8
	Text      string
	Ptr       *uint8
	BadOpt    uint8     `bitpack:"bogus=1"`
	BadXform  float32   `bitpack:"transform=PackWrong:UnpackScaled"`
	BoolBits  bool      `bitpack:"bits=3"`
	NarrowRng uint16    `bitpack:"bits=3,range=0:100"`
	WideChar  [4]uint16 `bitpack:"string"`
}

type ArmA struct {
	Header uint16
	Tag    uint8
}

type ArmB struct {
	Header uint16
	Tag    uint8
	Data   uint16
}

type ArmC struct {
	Header uint16
	Tag    uint8
	Data   uint16
}

type ArmRenamed struct {
	Header uint16
	ID     uint8
	Data   uint16
}

//bitpack:union
type Shared struct {
	A ArmA `bitpack:"when=0"`
	B ArmB `bitpack:"when=1"`
	C ArmC `bitpack:"when=2|3"`
}

//bitpack:union
type Renamed struct {
	A ArmA       `bitpack:"when=0"`
	B ArmRenamed `bitpack:"when=1"`
	C ArmC       `bitpack:"when=2"`
}

//bitpack:union
type Disjoint struct {
	A struct{ X uint8 } `bitpack:"when=0"`
	B struct{ Y uint8 } `bitpack:"when=1"`
}

//bitpack:union
type Scalar struct {
	A uint8 `bitpack:"when=0"`
	B ArmA  `bitpack:"when=1"`
}

type Unions struct {
	Kind      uint8
	External  Shared   `bitpack:"tag=Kind"`
	Internal  Shared   `bitpack:"internal_tag=Tag"`
	Renamed   Renamed  `bitpack:"internal_tag=Tag"`
	Disjoint  Disjoint `bitpack:"internal_tag=X"`
	Scalar    Scalar   `bitpack:"internal_tag=Tag"`
	Untagged  Shared
	BothTags  Shared `bitpack:"tag=Kind,internal_tag=Tag"`
	TagOnLeaf uint8  `bitpack:"tag=Kind"`
	Bits      ArmA   `bitpack:"bits=3"`
}

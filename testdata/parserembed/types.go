package parserembed

type Base struct {
	ID   uint16
	Name [8]byte `bitpack:"string"`
}

type Inner struct {
	Code uint8
}

type Record struct {
	Base
	Inner
	Score  uint32
	Flag   bool `bitpack:"-"`
	hidden uint8
}

package parsernested

//bitpack:bits=11
type Species uint16

// Move is declared without options.
type Move uint16

type Stats struct {
	HP     uint16 `bitpack:"range=0:999"`
	Attack uint8
}

package chunk

import "strconv"

// Pointer is the store offset of a chunk header. Offset 0 is reserved and
// means "no chunk".
type Pointer uint64

// Null is the pointer to no chunk.
const Null Pointer = 0

// IsNull reports whether p is Null.
func (p Pointer) IsNull() bool { return p == Null }

func (p Pointer) String() string {
	if p == Null {
		return "NULL"
	}
	return "*" + strconv.FormatUint(uint64(p), 10)
}

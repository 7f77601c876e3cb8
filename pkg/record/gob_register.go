package record

import "encoding/gob"

// init registers every concrete type that can appear in a
// PropertyBlock's InlineValue or DynamicValue fields, both of which
// are declared `any` so a block can carry whichever PropertyType it
// was created with. gob requires concrete types stored behind an
// interface to be registered before they can cross an Encode/Decode
// boundary, which walog frames and badgerstore records both do.
func init() {
	gob.Register(false)
	gob.Register(byte(0))
	gob.Register(int16(0))
	gob.Register(int32(0))
	gob.Register(int64(0))
	gob.Register(float32(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register([]byte(nil))
}

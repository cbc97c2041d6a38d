package program

import "fmt"

/** @brief Primitive element types of ndarrays and fields. */
type DataType int

const (
	DataTypeUnknown DataType = iota
	F16
	F32
	F64
	U8
	U16
	U32
	I32
)

var dataTypeInfo = map[DataType]struct {
	name string
	size int
}{
	F16: {"f16", 2},
	F32: {"f32", 4},
	F64: {"f64", 8},
	U8:  {"u8", 1},
	U16: {"u16", 2},
	U32: {"u32", 4},
	I32: {"i32", 4},
}

func (dt DataType) String() string {
	if info, ok := dataTypeInfo[dt]; ok {
		return info.name
	}
	return fmt.Sprintf("DataType(%d)", int(dt))
}

// Size returns the element size in bytes, 0 for unknown types.
func (dt DataType) Size() int {
	return dataTypeInfo[dt].size
}

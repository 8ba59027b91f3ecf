//go:build single

package precision

// Real is the element type of every numeric buffer shared with the device.
type Real = float32

// Name is the OpenCL C spelling of Real.
const Name = "float"

const isDouble = false

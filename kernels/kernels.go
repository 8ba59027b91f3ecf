// Package kernels embeds the OpenCL C sources shipped with the binary.
package kernels

import _ "embed"

// Square squares every element of a Real buffer; see square.cl.
//
//go:embed square.cl
var Square []byte

// SquareName is the entry point declared in Square.
const SquareName = "square"

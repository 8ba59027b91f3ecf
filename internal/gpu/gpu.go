// Package gpu binds the system OpenCL runtime to the clkernel driver
// interfaces. The binding is compiled only with the gpu build tag:
//
//	go build -tags gpu ./...
//
// It requires an OpenCL 1.2 ICD loader (libOpenCL) and headers.
package gpu

import "errors"

// ErrNotBuilt indicates the binary was built without GPU support.
var ErrNotBuilt = errors.New("opencl support requires building with '-tags gpu'")

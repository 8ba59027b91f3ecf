// Package host emulates a compute runtime in Go. It implements the
// clkernel driver interfaces with one platform and one device so kernels
// with a registered Go implementation run without an OpenCL installation.
//
// Work items run sequentially, one work group at a time; barriers are not
// emulated.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"runtime"
	"strings"

	"github.com/cwbudde/oclkernel/internal/clkernel"
)

// ErrNotEmulated indicates a kernel declared in the source without a Go implementation.
var ErrNotEmulated = errors.New("kernel has no host implementation")

const (
	defaultMaxWorkGroupSize = 1024
	defaultLocalMemSize     = 32 * 1024
)

// Backend is the emulated runtime.
type Backend struct {
	platform clkernel.PlatformInfo
	device   clkernel.DeviceInfo
	registry Registry
}

// Option configures a Backend.
type Option func(*Backend)

// WithDeviceType makes the emulated device report t.
func WithDeviceType(t clkernel.DeviceType) Option {
	return func(b *Backend) {
		b.device.Type = t
	}
}

// WithLimits overrides the maximum work-group size and local memory size.
func WithLimits(maxWorkGroup, localMem uint64) Option {
	return func(b *Backend) {
		b.device.MaxWorkGroupSize = maxWorkGroup
		b.device.LocalMemSize = localMem
	}
}

// WithKernel registers fn under name, replacing any previous entry.
func WithKernel(name string, fn Func) Option {
	return func(b *Backend) {
		b.registry[name] = fn
	}
}

// New creates an emulated runtime with the default kernel registry.
func New(opts ...Option) *Backend {
	b := &Backend{
		platform: clkernel.PlatformInfo{
			Name:    "Go Host Emulator",
			Vendor:  "oclkernel",
			Version: "OpenCL 1.2 emulated",
			Profile: "FULL_PROFILE",
		},
		device: clkernel.DeviceInfo{
			Name:             "Go host (" + runtime.GOARCH + ")",
			Vendor:           "oclkernel",
			Version:          "OpenCL 1.2 emulated",
			Type:             clkernel.DeviceTypeCPU,
			MaxComputeUnits:  uint32(runtime.NumCPU()),
			MaxWorkGroupSize: defaultMaxWorkGroupSize,
			LocalMemSize:     defaultLocalMemSize,
			FP64:             true,
		},
		registry: DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) Name() string { return "host" }

func (b *Backend) Platforms() ([]clkernel.Platform, error) {
	return []clkernel.Platform{{Info: b.platform, Handle: b}}, nil
}

func (b *Backend) Devices(p clkernel.Platform, kind clkernel.DeviceType) ([]clkernel.Device, error) {
	if p.Handle != b {
		return nil, statusError("clGetDeviceIDs", -32, "CL_INVALID_PLATFORM")
	}
	if kind != clkernel.DeviceTypeAll && kind != b.device.Type {
		return nil, nil
	}
	return []clkernel.Device{{Info: b.device, Handle: b}}, nil
}

func (b *Backend) CreateContext(devices []clkernel.Device) (clkernel.Context, error) {
	if len(devices) == 0 {
		return nil, statusError("clCreateContext", clkernel.StatusInvalidValue, "CL_INVALID_VALUE")
	}
	for _, d := range devices {
		if d.Handle != b {
			return nil, statusError("clCreateContext", -33, "CL_INVALID_DEVICE")
		}
	}
	return &hostContext{b: b}, nil
}

type hostContext struct {
	b        *Backend
	released bool
}

func (c *hostContext) CreateQueue(d clkernel.Device) (clkernel.Queue, error) {
	if c.released {
		return nil, statusError("clCreateCommandQueue", -34, "CL_INVALID_CONTEXT")
	}
	return &queue{ctx: c}, nil
}

func (c *hostContext) CreateBuffer(flags clkernel.MemFlags, size int) (clkernel.Buffer, error) {
	if c.released {
		return nil, statusError("clCreateBuffer", -34, "CL_INVALID_CONTEXT")
	}
	if size <= 0 {
		return nil, statusError("clCreateBuffer", clkernel.StatusInvalidBufferSize, "CL_INVALID_BUFFER_SIZE")
	}
	return &buffer{flags: flags, data: make([]byte, size)}, nil
}

func (c *hostContext) CreateProgram(source []byte) (clkernel.Program, error) {
	if c.released {
		return nil, statusError("clCreateProgramWithSource", -34, "CL_INVALID_CONTEXT")
	}
	if len(source) == 0 {
		return nil, statusError("clCreateProgramWithSource", clkernel.StatusInvalidValue, "CL_INVALID_VALUE")
	}
	return &program{ctx: c, source: string(source)}, nil
}

func (c *hostContext) Release() error {
	c.released = true
	return nil
}

type buffer struct {
	flags clkernel.MemFlags
	data  []byte
}

func (b *buffer) Size() int      { return len(b.data) }
func (b *buffer) Release() error { b.data = nil; return nil }

var kernelDecl = regexp.MustCompile(`(?m)(?:__kernel|\bkernel)\s+void\s+([A-Za-z_]\w*)\s*\(`)

type program struct {
	ctx      *hostContext
	source   string
	options  string
	defines  map[string]string
	declared map[string]bool
	built    bool
}

func (p *program) Build(devices []clkernel.Device, options string) error {
	defines, err := parseOptions(options)
	if err != nil {
		return &clkernel.BuildError{
			Options: options,
			Log:     err.Error(),
			Err:     statusError("clBuildProgram", -43, "CL_INVALID_BUILD_OPTIONS"),
		}
	}

	declared := map[string]bool{}
	for _, m := range kernelDecl.FindAllStringSubmatch(p.source, -1) {
		declared[m[1]] = true
	}
	if len(declared) == 0 {
		return &clkernel.BuildError{
			Options: options,
			Log:     "error: no kernel functions declared in source",
			Err:     statusError("clBuildProgram", clkernel.StatusBuildProgramFailure, "CL_BUILD_PROGRAM_FAILURE"),
		}
	}

	p.options = options
	p.defines = defines
	p.declared = declared
	p.built = true
	slog.Debug("Host program built", "kernels", len(declared), "defines", len(defines))
	return nil
}

// parseOptions extracts -D macro definitions; other flags are accepted and ignored.
func parseOptions(options string) (map[string]string, error) {
	defines := map[string]string{}
	fields := strings.Fields(options)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if !strings.HasPrefix(f, "-D") {
			continue
		}
		def := strings.TrimPrefix(f, "-D")
		if def == "" {
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("error: macro name missing after -D")
			}
			i++
			def = fields[i]
		}
		name, value, ok := strings.Cut(def, "=")
		if !ok {
			value = "1"
		}
		if name == "" {
			return nil, fmt.Errorf("error: macro name missing in %q", f)
		}
		defines[name] = value
	}
	return defines, nil
}

// Define returns the value of a -D macro passed to the last successful build.
func (p *program) Define(name string) (string, bool) {
	v, ok := p.defines[name]
	return v, ok
}

func (p *program) CreateKernel(name string) (clkernel.Function, error) {
	if !p.built {
		return nil, statusError("clCreateKernel", clkernel.StatusInvalidProgramExec, "CL_INVALID_PROGRAM_EXECUTABLE")
	}
	if !p.declared[name] {
		return nil, statusError("clCreateKernel", clkernel.StatusInvalidKernelName, "CL_INVALID_KERNEL_NAME")
	}
	fn, ok := p.ctx.b.registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEmulated, name)
	}
	return &function{name: name, fn: fn, args: map[uint32]any{}}, nil
}

func (p *program) Release() error {
	p.built = false
	return nil
}

type function struct {
	name string
	fn   Func
	args map[uint32]any
}

func (f *function) Name() string { return f.name }

func (f *function) SetArg(index uint32, value any) error {
	switch v := value.(type) {
	case *buffer:
		if v.data == nil {
			return statusError("clSetKernelArg", clkernel.StatusInvalidMemObject, "CL_INVALID_MEM_OBJECT")
		}
	case clkernel.Buffer:
		return statusError("clSetKernelArg", clkernel.StatusInvalidMemObject, "CL_INVALID_MEM_OBJECT")
	case clkernel.LocalSpace:
		if v.Size == 0 {
			return statusError("clSetKernelArg", clkernel.StatusInvalidArgSize, "CL_INVALID_ARG_SIZE")
		}
	default:
		if _, err := clkernel.ScalarBytes(value); err != nil {
			return err
		}
	}
	f.args[index] = value
	return nil
}

func (f *function) Release() error {
	f.args = nil
	return nil
}

type queue struct {
	ctx      *hostContext
	released bool
}

func (q *queue) check(op string, buf clkernel.Buffer, n int) (*buffer, error) {
	if q.released {
		return nil, statusError(op, -36, "CL_INVALID_COMMAND_QUEUE")
	}
	b, ok := buf.(*buffer)
	if !ok || b.data == nil {
		return nil, statusError(op, clkernel.StatusInvalidMemObject, "CL_INVALID_MEM_OBJECT")
	}
	if n > len(b.data) {
		return nil, statusError(op, clkernel.StatusInvalidValue, "CL_INVALID_VALUE")
	}
	return b, nil
}

func (q *queue) WriteBuffer(buf clkernel.Buffer, data []byte) error {
	b, err := q.check("clEnqueueWriteBuffer", buf, len(data))
	if err != nil {
		return err
	}
	copy(b.data, data)
	return nil
}

func (q *queue) ReadBuffer(buf clkernel.Buffer, data []byte) error {
	b, err := q.check("clEnqueueReadBuffer", buf, len(data))
	if err != nil {
		return err
	}
	copy(data, b.data)
	return nil
}

// EnqueueKernel executes the kernel immediately; the queue is always drained.
func (q *queue) EnqueueKernel(fn clkernel.Function, r clkernel.Range) error {
	if q.released {
		return statusError("clEnqueueNDRangeKernel", -36, "CL_INVALID_COMMAND_QUEUE")
	}
	f, ok := fn.(*function)
	if !ok || f.args == nil {
		return statusError("clEnqueueNDRangeKernel", -48, "CL_INVALID_KERNEL")
	}
	if !r.Valid() {
		return statusError("clEnqueueNDRangeKernel", clkernel.StatusInvalidWorkDim, "CL_INVALID_WORK_DIMENSION")
	}
	if r.WorkGroupSize() > q.ctx.b.device.MaxWorkGroupSize {
		return statusError("clEnqueueNDRangeKernel", clkernel.StatusInvalidWorkGroup, "CL_INVALID_WORK_GROUP_SIZE")
	}
	return execute(f, r)
}

func (q *queue) Finish() error {
	if q.released {
		return statusError("clFinish", -36, "CL_INVALID_COMMAND_QUEUE")
	}
	return nil
}

func (q *queue) Release() error {
	q.released = true
	return nil
}

func execute(f *function, r clkernel.Range) error {
	var groups [clkernel.MaxDims]uint64
	for i := range groups {
		groups[i] = 1
		if i < r.Dims {
			groups[i] = r.Global[i] / r.Local[i]
		}
	}
	local := [clkernel.MaxDims]uint64{1, 1, 1}
	copy(local[:r.Dims], r.Local[:r.Dims])

	args := &Args{values: f.args}
	item := WorkItem{dims: r.Dims, rng: r}

	for gz := uint64(0); gz < groups[2]; gz++ {
		for gy := uint64(0); gy < groups[1]; gy++ {
			for gx := uint64(0); gx < groups[0]; gx++ {
				args.local = allocateLocal(f.args)
				item.group = [clkernel.MaxDims]uint64{gx, gy, gz}

				for lz := uint64(0); lz < local[2]; lz++ {
					for ly := uint64(0); ly < local[1]; ly++ {
						for lx := uint64(0); lx < local[0]; lx++ {
							item.local = [clkernel.MaxDims]uint64{lx, ly, lz}
							for d := 0; d < clkernel.MaxDims; d++ {
								item.global[d] = item.group[d]*local[d] + item.local[d] + r.Offset[d]
							}
							if err := f.fn(item, args); err != nil {
								return fmt.Errorf("kernel %s at global id %v: %w", f.name, item.global[:r.Dims], err)
							}
						}
					}
				}
			}
		}
	}
	return nil
}

func allocateLocal(values map[uint32]any) map[uint32][]byte {
	var local map[uint32][]byte
	for idx, v := range values {
		if ls, ok := v.(clkernel.LocalSpace); ok {
			if local == nil {
				local = map[uint32][]byte{}
			}
			local[idx] = make([]byte, ls.Size)
		}
	}
	return local
}

func statusError(op string, code int, name string) error {
	return &clkernel.StatusError{Op: op, Code: code, Name: name}
}

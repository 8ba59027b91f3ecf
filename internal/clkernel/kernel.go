// Package clkernel sequences the lifecycle of a single compute kernel:
// platform initialization, buffer transfer, program build, argument binding,
// execution range and launch.
//
// Every operation returns an error and also reports it on the diagnostic
// channel (slog plus an optional Observer). A failed operation leaves the
// Kernel in the state it had before the call.
package clkernel

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/go-multierror"
)

// State is the lifecycle stage a Kernel has reached.
type State int

const (
	StateUnconfigured State = iota
	StateInitialized
	StateSourceBuilt
	StateKernelActive
	StateRangeSet
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateSourceBuilt:
		return "source-built"
	case StateKernelActive:
		return "kernel-active"
	case StateRangeSet:
		return "range-set"
	case StateIdle:
		return "idle"
	default:
		return "unconfigured"
	}
}

// InitOptions controls device selection.
type InitOptions struct {
	// Verbose raises progress diagnostics from debug to info level.
	Verbose bool
	// CPUOnly skips GPU devices.
	CPUOnly bool
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger used for diagnostics. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithObserver registers a receiver for every diagnostic Event.
func WithObserver(o Observer) Option {
	return func(k *Kernel) {
		k.observer = o
	}
}

// Kernel owns a context, a command queue, a compiled program and one active
// kernel function. It is not safe for concurrent use.
type Kernel struct {
	backend  Backend
	logger   *slog.Logger
	observer Observer
	verbose  bool

	source    []byte
	sourceErr error

	platform Platform
	devices  []Device
	context  Context
	queue    Queue
	program  Program
	function Function
	rng      Range
	ran      bool
}

// New reads the kernel source at path. An unreadable file leaves the source
// empty; the cause is available from SourceErr and every operation that
// needs source fails with ErrNoSource.
func New(path string, backend Backend, opts ...Option) *Kernel {
	k := newKernel(backend, opts)

	data, err := os.ReadFile(path)
	if err != nil {
		k.sourceErr = fmt.Errorf("%w: %v", ErrNoSource, err)
		k.emit(slog.LevelWarn, "source", "kernel source unreadable", err, "path", path)
		return k
	}
	k.source = data
	k.emit(slog.LevelDebug, "source", "kernel source loaded", nil, "path", path, "bytes", len(data))
	return k
}

// NewFromSource uses src as the kernel source.
func NewFromSource(src []byte, backend Backend, opts ...Option) *Kernel {
	k := newKernel(backend, opts)
	k.source = append([]byte(nil), src...)
	if len(k.source) == 0 {
		k.sourceErr = ErrNoSource
	}
	return k
}

func newKernel(backend Backend, opts []Option) *Kernel {
	k := &Kernel{
		backend: backend,
		logger:  slog.Default(),
		verbose: true,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Init enumerates platforms and selects the devices used by every later
// call: the first platform with GPU devices, or the first with CPU devices
// when none has a GPU or opts.CPUOnly is set. ErrNoCPUDevice is returned when
// that fallback finds nothing; callers treat it as fatal.
func (k *Kernel) Init(opts InitOptions) error {
	k.verbose = opts.Verbose

	platforms, err := k.backend.Platforms()
	if err != nil {
		return k.fail("init", "initialization failed", err)
	}
	for _, p := range platforms {
		k.emit(k.info(), "init", "platform found", nil,
			"platform", p.Info.Name,
			"vendor", p.Info.Vendor,
			"version", p.Info.Version,
			"profile", p.Info.Profile,
		)
	}

	platform, devices, err := k.selectDevices(platforms, opts.CPUOnly)
	if err != nil {
		return k.fail("init", "initialization failed", err)
	}
	for i, d := range devices {
		k.emit(k.info(), "init", "device found", nil,
			"index", i,
			"device", d.Info.Name,
			"vendor", d.Info.Vendor,
			"max_work_group_size", d.Info.MaxWorkGroupSize,
			"local_mem_size", d.Info.LocalMemSize,
		)
	}

	ctx, err := k.backend.CreateContext(devices)
	if err != nil {
		return k.fail("init", "initialization failed", err)
	}
	queue, err := ctx.CreateQueue(devices[0])
	if err != nil {
		if rerr := ctx.Release(); rerr != nil {
			k.emit(slog.LevelWarn, "init", "releasing context failed", rerr)
		}
		return k.fail("init", "initialization failed", err)
	}

	if err := k.releaseAll(); err != nil {
		k.emit(slog.LevelWarn, "init", "releasing previous context failed", err)
	}
	k.platform = platform
	k.devices = devices
	k.context = ctx
	k.queue = queue

	k.emit(k.info(), "init", "context initialized", nil, "device", devices[0].Info.Name, "backend", k.backend.Name())
	return nil
}

func (k *Kernel) selectDevices(platforms []Platform, cpuOnly bool) (Platform, []Device, error) {
	if !cpuOnly {
		for _, p := range platforms {
			// Platforms without GPUs may report an error here; treat it as none.
			devices, err := k.backend.Devices(p, DeviceTypeGPU)
			if err == nil && len(devices) > 0 {
				return p, devices, nil
			}
		}
	}

	k.emit(slog.LevelWarn, "init", "switching over to CPU", nil, "cpu_only", cpuOnly)
	for _, p := range platforms {
		devices, err := k.backend.Devices(p, DeviceTypeCPU)
		if err != nil {
			k.emit(slog.LevelWarn, "init", "querying CPU devices failed", err, "platform", p.Info.Name)
			continue
		}
		if len(devices) > 0 {
			return p, devices, nil
		}
	}
	return Platform{}, nil, ErrNoCPUDevice
}

// NewBuffer allocates size bytes of device memory in the kernel's context.
// The caller owns the buffer and must release it.
func (k *Kernel) NewBuffer(flags MemFlags, size int) (Buffer, error) {
	if k.context == nil {
		return nil, k.fail("buffer", "cannot allocate device buffer", ErrNotInitialized)
	}
	buf, err := k.context.CreateBuffer(flags, size)
	if err != nil {
		return nil, k.fail("buffer", "cannot allocate device buffer", err, "size", size, "flags", flags.String())
	}
	return buf, nil
}

// WriteBuffer copies data from the host to buf, blocking until done.
func (k *Kernel) WriteBuffer(buf Buffer, data []byte) error {
	if err := k.checkTransfer(buf, data); err != nil {
		return k.fail("write", "error writing data to device", err)
	}
	if err := k.queue.WriteBuffer(buf, data); err != nil {
		return k.fail("write", "error writing data to device", err, "size", len(data))
	}
	return nil
}

// ReadBuffer copies buf to data on the host, blocking until done.
func (k *Kernel) ReadBuffer(buf Buffer, data []byte) error {
	if err := k.checkTransfer(buf, data); err != nil {
		return k.fail("read", "error reading data from device", err)
	}
	if err := k.queue.ReadBuffer(buf, data); err != nil {
		return k.fail("read", "error reading data from device", err, "size", len(data))
	}
	return nil
}

func (k *Kernel) checkTransfer(buf Buffer, data []byte) error {
	if k.queue == nil {
		return ErrNotInitialized
	}
	if buf == nil {
		return fmt.Errorf("%w: nil buffer", ErrBufferSize)
	}
	if len(data) > buf.Size() {
		return fmt.Errorf("%w: %d > %d", ErrBufferSize, len(data), buf.Size())
	}
	return nil
}

// Build compiles the kernel source for every selected device. A successful
// build releases the previous program and deactivates the current kernel;
// a failed one keeps both.
func (k *Kernel) Build(options string) error {
	if len(k.source) == 0 {
		return k.fail("build", "no kernel source file provided", ErrNoSource)
	}
	if k.context == nil {
		return k.fail("build", "kernel compilation failed", ErrNotInitialized)
	}

	k.emit(k.info(), "build", "building kernel binary", nil, "options", options)

	program, err := k.context.CreateProgram(k.source)
	if err != nil {
		return k.fail("build", "kernel compilation failed", err)
	}
	if err := program.Build(k.devices, options); err != nil {
		if rerr := program.Release(); rerr != nil {
			k.emit(slog.LevelWarn, "build", "releasing rejected program failed", rerr)
		}
		return k.fail("build", "kernel compilation failed", err, "options", options)
	}

	var errs error
	if k.function != nil {
		if err := k.function.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
		k.function = nil
	}
	if k.program != nil {
		if err := k.program.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs != nil {
		k.emit(slog.LevelWarn, "build", "releasing previous program failed", errs)
	}
	k.program = program
	k.ran = false

	k.emit(k.info(), "build", "kernel binary built", nil)
	return nil
}

// ActivateKernel makes the named function the target of SetArg, SetRange and
// Run. The previous function is released first, so on failure no function is
// active.
func (k *Kernel) ActivateKernel(name string) error {
	k.emit(k.info(), "activate", "activating kernel", nil, "kernel", name)

	if k.function != nil {
		if err := k.function.Release(); err != nil {
			k.emit(slog.LevelWarn, "activate", "releasing previous kernel failed", err)
		}
		k.function = nil
		k.ran = false
	}
	if k.program == nil {
		return k.fail("activate", "kernel activation failed", ErrNoProgram, "kernel", name)
	}

	fn, err := k.program.CreateKernel(name)
	if err != nil {
		return k.fail("activate", "kernel activation failed", err, "kernel", name)
	}
	k.function = fn
	return nil
}

// SetRange validates and stores the execution range of the active kernel.
// A rejected range leaves the previous one in place.
func (k *Kernel) SetRange(dims int, global, local, offset []uint64) error {
	if k.function == nil {
		return k.fail("range", "activate a kernel before setting its range", ErrNoKernel)
	}

	r, err := NewRange(dims, global, local, offset, k.Device().MaxWorkGroupSize)
	if err != nil {
		return k.fail("range", "kernel range rejected", err)
	}
	k.rng = r

	k.emit(k.info(), "range", fmt.Sprintf("%dD kernel execution range set", dims), nil,
		"global", r.GlobalSizes(),
		"local", r.LocalSizes(),
		"offset", r.Offsets(),
	)
	return nil
}

// Set1DRange is SetRange with one dimension.
func (k *Kernel) Set1DRange(global, local, offset []uint64) error {
	return k.SetRange(1, global, local, offset)
}

// Set2DRange is SetRange with two dimensions.
func (k *Kernel) Set2DRange(global, local, offset []uint64) error {
	return k.SetRange(2, global, local, offset)
}

// Set3DRange is SetRange with three dimensions.
func (k *Kernel) Set3DRange(global, local, offset []uint64) error {
	return k.SetRange(3, global, local, offset)
}

// GlobalRange returns the global sizes of the current range, or nil.
func (k *Kernel) GlobalRange() []uint64 {
	if !k.rng.Valid() {
		return nil
	}
	return k.rng.GlobalSizes()
}

// Range returns the current execution range.
func (k *Kernel) Range() Range {
	return k.rng
}

// SetLocal binds size bytes of work-group local memory to argument index.
func (k *Kernel) SetLocal(index uint32, size uint64) error {
	k.emit(k.info(), "local", "allocating local memory", nil, "bytes", size)

	limit := k.Device().LocalMemSize
	if size > limit {
		return k.fail("local", "cannot allocate local memory",
			fmt.Errorf("%w: %d bytes requested, hardware limit is %d bytes", ErrLocalMemory, size, limit))
	}
	return k.SetArg(index, LocalSpace{Size: size})
}

// SetArg binds value to the positional argument index of the active kernel.
// Indices are not checked against the kernel's declared arguments.
func (k *Kernel) SetArg(index uint32, value any) error {
	if k.function == nil {
		return k.fail("arg", "activate a kernel before setting arguments", ErrNoKernel, "index", index)
	}

	k.emit(k.info(), "arg", "setting parameter", nil, "index", index, "size", argSize(value))

	if err := k.function.SetArg(index, value); err != nil {
		return k.fail("arg", "error setting kernel parameter", err, "index", index)
	}
	return nil
}

// Run enqueues the active kernel over the current range. With wait it
// blocks until the queue drains.
func (k *Kernel) Run(wait bool) error {
	if k.function == nil {
		return k.fail("run", "a kernel has to be activated before running", ErrNoKernel)
	}
	if !k.rng.Valid() {
		return k.fail("run", "a valid kernel range has to be defined before running", ErrNoRange)
	}

	k.emit(k.info(), "run", "kernel execution started", nil, "kernel", k.function.Name(), "range", k.rng.String())

	if err := k.queue.EnqueueKernel(k.function, k.rng); err != nil {
		return k.fail("run", "kernel execution failed", err)
	}
	k.ran = true

	if wait {
		if err := k.queue.Finish(); err != nil {
			return k.fail("run", "kernel execution failed", err)
		}
		k.emit(k.info(), "run", "kernel execution done", nil)
	}
	return nil
}

// RunAndWait runs the active kernel and waits for it to finish.
func (k *Kernel) RunAndWait() error {
	return k.Run(true)
}

// Wait blocks until every command submitted to the queue completed.
func (k *Kernel) Wait() error {
	if k.queue == nil {
		return k.fail("wait", "cannot wait for the device", ErrNotInitialized)
	}
	if err := k.queue.Finish(); err != nil {
		return k.fail("wait", "cannot wait for the device", err)
	}
	return nil
}

// State reports the furthest lifecycle stage currently established.
func (k *Kernel) State() State {
	switch {
	case k.function != nil && k.rng.Valid() && k.ran:
		return StateIdle
	case k.function != nil && k.rng.Valid():
		return StateRangeSet
	case k.function != nil:
		return StateKernelActive
	case k.program != nil:
		return StateSourceBuilt
	case k.context != nil:
		return StateInitialized
	default:
		return StateUnconfigured
	}
}

// Backend returns the runtime driven by k.
func (k *Kernel) Backend() Backend {
	return k.backend
}

// Device returns the device every operation runs on.
func (k *Kernel) Device() DeviceInfo {
	if len(k.devices) == 0 {
		return DeviceInfo{}
	}
	return k.devices[0].Info
}

// Platform returns the platform of the selected device.
func (k *Kernel) Platform() PlatformInfo {
	return k.platform.Info
}

// Source returns the kernel source.
func (k *Kernel) Source() []byte {
	return k.source
}

// SourceSize is the source length including its terminator, or 0 without source.
func (k *Kernel) SourceSize() int {
	if len(k.source) == 0 {
		return 0
	}
	return len(k.source) + 1
}

// SourceErr reports why the source could not be loaded.
func (k *Kernel) SourceErr() error {
	return k.sourceErr
}

// Close releases every runtime object owned by k.
func (k *Kernel) Close() error {
	return k.releaseAll()
}

func (k *Kernel) releaseAll() error {
	var errs error
	if k.function != nil {
		if err := k.function.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
		k.function = nil
	}
	if k.program != nil {
		if err := k.program.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
		k.program = nil
	}
	if k.queue != nil {
		if err := k.queue.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
		k.queue = nil
	}
	if k.context != nil {
		if err := k.context.Release(); err != nil {
			errs = multierror.Append(errs, err)
		}
		k.context = nil
	}
	k.platform = Platform{}
	k.devices = nil
	k.rng = Range{}
	k.ran = false
	return errs
}

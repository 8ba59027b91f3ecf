package clkernel

// Platform is a platform discovered by a Backend. Handle is owned by the
// backend that produced it and must not be interpreted elsewhere.
type Platform struct {
	Info   PlatformInfo
	Handle any
}

// Device is a device discovered by a Backend.
type Device struct {
	Info   DeviceInfo
	Handle any
}

// MemFlags selects how a kernel may access a device buffer.
type MemFlags int

const (
	MemReadWrite MemFlags = iota
	MemReadOnly
	MemWriteOnly
)

func (f MemFlags) String() string {
	switch f {
	case MemReadOnly:
		return "read-only"
	case MemWriteOnly:
		return "write-only"
	default:
		return "read-write"
	}
}

// LocalSpace marks a kernel argument as Size bytes of work-group local memory.
type LocalSpace struct {
	Size uint64
}

// Backend is the compute runtime the wrapper drives.
type Backend interface {
	// Name identifies the backend in logs and reports.
	Name() string
	// Platforms lists the available platforms without their devices.
	Platforms() ([]Platform, error)
	// Devices lists the devices of the given type on a platform. An empty
	// result with a nil error means no such device exists.
	Devices(platform Platform, kind DeviceType) ([]Device, error)
	// CreateContext groups devices for shared resource allocation.
	CreateContext(devices []Device) (Context, error)
}

// Context owns the resources allocated for a set of devices.
type Context interface {
	CreateQueue(device Device) (Queue, error)
	CreateBuffer(flags MemFlags, size int) (Buffer, error)
	CreateProgram(source []byte) (Program, error)
	Release() error
}

// Queue is an in-order command queue bound to one device.
type Queue interface {
	// WriteBuffer copies data to the start of buf and blocks until done.
	WriteBuffer(buf Buffer, data []byte) error
	// ReadBuffer copies the start of buf into data and blocks until done.
	ReadBuffer(buf Buffer, data []byte) error
	// EnqueueKernel submits fn over r without waiting for completion.
	EnqueueKernel(fn Function, r Range) error
	// Finish blocks until every submitted command completed.
	Finish() error
	Release() error
}

// Program is a kernel source compiled for the devices of a context.
type Program interface {
	Build(devices []Device, options string) error
	CreateKernel(name string) (Function, error)
	Release() error
}

// Function is a compiled kernel entry point with positional arguments.
type Function interface {
	Name() string
	SetArg(index uint32, value any) error
	Release() error
}

// Buffer is a device memory region.
type Buffer interface {
	Size() int
	Release() error
}

// EnumeratePlatforms returns every platform of b together with all its devices.
func EnumeratePlatforms(b Backend) ([]PlatformInfo, error) {
	platforms, err := b.Platforms()
	if err != nil {
		return nil, err
	}

	out := make([]PlatformInfo, 0, len(platforms))
	for _, p := range platforms {
		info := p.Info
		devices, err := b.Devices(p, DeviceTypeAll)
		if err != nil {
			return nil, err
		}
		info.Devices = make([]DeviceInfo, len(devices))
		for i, d := range devices {
			info.Devices[i] = d.Info
		}
		out = append(out, info)
	}
	return out, nil
}

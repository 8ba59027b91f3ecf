package clkernel

import (
	"errors"
	"strings"
)

// fakeBackend is an in-memory Backend that records every runtime call.
type fakeBackend struct {
	platforms []fakePlatform
	maxWG     uint64
	localMem  uint64

	queueErr   error
	releaseErr error

	contexts  int
	programs  []*fakeProgram
	functions []*fakeFunction
	enqueued  []Range
	finished  int
	released  map[string]int
}

type fakePlatform struct {
	name   string
	gpus   int
	cpus   int
	gpuErr error
	cpuErr error
}

var errFakeBuild = errors.New("fake build failure")

func newFakeBackend(platforms ...fakePlatform) *fakeBackend {
	if len(platforms) == 0 {
		platforms = []fakePlatform{{name: "fake", gpus: 1, cpus: 1}}
	}
	return &fakeBackend{
		platforms: platforms,
		maxWG:     256,
		localMem:  1024,
		released:  map[string]int{},
	}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Platforms() ([]Platform, error) {
	out := make([]Platform, len(b.platforms))
	for i, p := range b.platforms {
		out[i] = Platform{Info: PlatformInfo{Name: p.name}, Handle: i}
	}
	return out, nil
}

func (b *fakeBackend) Devices(p Platform, kind DeviceType) ([]Device, error) {
	fp := b.platforms[p.Handle.(int)]
	var n int
	switch kind {
	case DeviceTypeGPU:
		if fp.gpuErr != nil {
			return nil, fp.gpuErr
		}
		n = fp.gpus
	case DeviceTypeCPU:
		if fp.cpuErr != nil {
			return nil, fp.cpuErr
		}
		n = fp.cpus
	case DeviceTypeAll:
		n = fp.gpus + fp.cpus
	}
	devices := make([]Device, n)
	for i := range devices {
		devices[i] = Device{Info: DeviceInfo{
			Name:             fp.name + "-" + string(kind),
			Type:             kind,
			MaxWorkGroupSize: b.maxWG,
			LocalMemSize:     b.localMem,
		}}
	}
	return devices, nil
}

func (b *fakeBackend) CreateContext(devices []Device) (Context, error) {
	b.contexts++
	return &fakeContext{b: b}, nil
}

type fakeContext struct{ b *fakeBackend }

func (c *fakeContext) CreateQueue(Device) (Queue, error) {
	if c.b.queueErr != nil {
		return nil, c.b.queueErr
	}
	return &fakeQueue{b: c.b}, nil
}

func (c *fakeContext) CreateBuffer(flags MemFlags, size int) (Buffer, error) {
	return &fakeBuffer{data: make([]byte, size)}, nil
}

func (c *fakeContext) CreateProgram(source []byte) (Program, error) {
	p := &fakeProgram{b: c.b, symbols: strings.Fields(string(source))}
	c.b.programs = append(c.b.programs, p)
	return p, nil
}

func (c *fakeContext) Release() error {
	c.b.released["context"]++
	return c.b.releaseErr
}

type fakeQueue struct{ b *fakeBackend }

func (q *fakeQueue) WriteBuffer(buf Buffer, data []byte) error {
	copy(buf.(*fakeBuffer).data, data)
	return nil
}

func (q *fakeQueue) ReadBuffer(buf Buffer, data []byte) error {
	copy(data, buf.(*fakeBuffer).data)
	return nil
}

func (q *fakeQueue) EnqueueKernel(fn Function, r Range) error {
	q.b.enqueued = append(q.b.enqueued, r)
	return nil
}

func (q *fakeQueue) Finish() error {
	q.b.finished++
	return nil
}

func (q *fakeQueue) Release() error {
	q.b.released["queue"]++
	return nil
}

type fakeProgram struct {
	b        *fakeBackend
	symbols  []string
	released bool
}

func (p *fakeProgram) Build(devices []Device, options string) error {
	if options == "fail" {
		return &BuildError{Options: options, Log: "error: fake", Err: errFakeBuild}
	}
	return nil
}

func (p *fakeProgram) CreateKernel(name string) (Function, error) {
	for _, s := range p.symbols {
		if s == name {
			fn := &fakeFunction{name: name, program: p, args: map[uint32]any{}}
			p.b.functions = append(p.b.functions, fn)
			return fn, nil
		}
	}
	return nil, &StatusError{Op: "clCreateKernel", Code: StatusInvalidKernelName, Name: "CL_INVALID_KERNEL_NAME"}
}

func (p *fakeProgram) Release() error {
	p.released = true
	p.b.released["program"]++
	return p.b.releaseErr
}

type fakeFunction struct {
	name     string
	program  *fakeProgram
	args     map[uint32]any
	released bool
}

func (f *fakeFunction) Name() string { return f.name }

func (f *fakeFunction) SetArg(index uint32, value any) error {
	switch value.(type) {
	case Buffer, LocalSpace:
	default:
		if _, err := ScalarBytes(value); err != nil {
			return err
		}
	}
	f.args[index] = value
	return nil
}

func (f *fakeFunction) Release() error {
	f.released = true
	f.program.b.released["function"]++
	return nil
}

type fakeBuffer struct{ data []byte }

func (b *fakeBuffer) Size() int      { return len(b.data) }
func (b *fakeBuffer) Release() error { return nil }

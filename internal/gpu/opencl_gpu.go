//go:build gpu

package gpu

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

#ifndef CL_PLATFORM_NOT_FOUND_KHR
#define CL_PLATFORM_NOT_FOUND_KHR -1001
#endif

static const char* oclk_error_string(cl_int status) {
	switch (status) {
	case CL_SUCCESS: return "CL_SUCCESS";
	case CL_DEVICE_NOT_FOUND: return "CL_DEVICE_NOT_FOUND";
	case CL_DEVICE_NOT_AVAILABLE: return "CL_DEVICE_NOT_AVAILABLE";
	case CL_COMPILER_NOT_AVAILABLE: return "CL_COMPILER_NOT_AVAILABLE";
	case CL_MEM_OBJECT_ALLOCATION_FAILURE: return "CL_MEM_OBJECT_ALLOCATION_FAILURE";
	case CL_OUT_OF_RESOURCES: return "CL_OUT_OF_RESOURCES";
	case CL_OUT_OF_HOST_MEMORY: return "CL_OUT_OF_HOST_MEMORY";
	case CL_PROFILING_INFO_NOT_AVAILABLE: return "CL_PROFILING_INFO_NOT_AVAILABLE";
	case CL_MEM_COPY_OVERLAP: return "CL_MEM_COPY_OVERLAP";
	case CL_BUILD_PROGRAM_FAILURE: return "CL_BUILD_PROGRAM_FAILURE";
	case CL_MAP_FAILURE: return "CL_MAP_FAILURE";
	case CL_INVALID_VALUE: return "CL_INVALID_VALUE";
	case CL_INVALID_DEVICE_TYPE: return "CL_INVALID_DEVICE_TYPE";
	case CL_INVALID_PLATFORM: return "CL_INVALID_PLATFORM";
	case CL_INVALID_DEVICE: return "CL_INVALID_DEVICE";
	case CL_INVALID_CONTEXT: return "CL_INVALID_CONTEXT";
	case CL_INVALID_QUEUE_PROPERTIES: return "CL_INVALID_QUEUE_PROPERTIES";
	case CL_INVALID_COMMAND_QUEUE: return "CL_INVALID_COMMAND_QUEUE";
	case CL_INVALID_HOST_PTR: return "CL_INVALID_HOST_PTR";
	case CL_INVALID_MEM_OBJECT: return "CL_INVALID_MEM_OBJECT";
	case CL_INVALID_BINARY: return "CL_INVALID_BINARY";
	case CL_INVALID_BUILD_OPTIONS: return "CL_INVALID_BUILD_OPTIONS";
	case CL_INVALID_PROGRAM: return "CL_INVALID_PROGRAM";
	case CL_INVALID_PROGRAM_EXECUTABLE: return "CL_INVALID_PROGRAM_EXECUTABLE";
	case CL_INVALID_KERNEL_NAME: return "CL_INVALID_KERNEL_NAME";
	case CL_INVALID_KERNEL_DEFINITION: return "CL_INVALID_KERNEL_DEFINITION";
	case CL_INVALID_KERNEL: return "CL_INVALID_KERNEL";
	case CL_INVALID_ARG_INDEX: return "CL_INVALID_ARG_INDEX";
	case CL_INVALID_ARG_VALUE: return "CL_INVALID_ARG_VALUE";
	case CL_INVALID_ARG_SIZE: return "CL_INVALID_ARG_SIZE";
	case CL_INVALID_KERNEL_ARGS: return "CL_INVALID_KERNEL_ARGS";
	case CL_INVALID_WORK_DIMENSION: return "CL_INVALID_WORK_DIMENSION";
	case CL_INVALID_WORK_GROUP_SIZE: return "CL_INVALID_WORK_GROUP_SIZE";
	case CL_INVALID_WORK_ITEM_SIZE: return "CL_INVALID_WORK_ITEM_SIZE";
	case CL_INVALID_GLOBAL_OFFSET: return "CL_INVALID_GLOBAL_OFFSET";
	case CL_INVALID_EVENT_WAIT_LIST: return "CL_INVALID_EVENT_WAIT_LIST";
	case CL_INVALID_EVENT: return "CL_INVALID_EVENT";
	case CL_INVALID_OPERATION: return "CL_INVALID_OPERATION";
	case CL_INVALID_BUFFER_SIZE: return "CL_INVALID_BUFFER_SIZE";
	case CL_INVALID_GLOBAL_WORK_SIZE: return "CL_INVALID_GLOBAL_WORK_SIZE";
	case CL_PLATFORM_NOT_FOUND_KHR: return "CL_PLATFORM_NOT_FOUND_KHR";
	default: return "CL_UNKNOWN_ERROR";
	}
}

static cl_command_queue oclk_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
#if CL_TARGET_OPENCL_VERSION >= 200
	const cl_queue_properties props[] = {0};
	return clCreateCommandQueueWithProperties(ctx, device, props, status);
#else
	return clCreateCommandQueue(ctx, device, 0, status);
#endif
}

static cl_context oclk_create_context(cl_platform_id platform, cl_uint count, const cl_device_id *devices, cl_int *status) {
	cl_context_properties props[] = {CL_CONTEXT_PLATFORM, (cl_context_properties)platform, 0};
	return clCreateContext(props, count, devices, NULL, NULL, status);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/cwbudde/oclkernel/internal/clkernel"
)

// Backend drives the OpenCL ICD installed on the system.
type Backend struct{}

// New returns the OpenCL backend.
func New() (*Backend, error) {
	return &Backend{}, nil
}

func (b *Backend) Name() string { return "opencl" }

type deviceHandle struct {
	id       C.cl_device_id
	platform C.cl_platform_id
}

// Platforms lists the installed OpenCL platforms. No ICD is reported as an
// empty list.
func (b *Backend) Platforms() ([]clkernel.Platform, error) {
	var count C.cl_uint
	status := C.clGetPlatformIDs(0, nil, &count)
	if status == C.CL_PLATFORM_NOT_FOUND_KHR {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	ids := make([]C.cl_platform_id, int(count))
	status = C.clGetPlatformIDs(count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetPlatformIDs(list)", status)
	}

	platforms := make([]clkernel.Platform, 0, len(ids))
	for _, id := range ids {
		info, err := buildPlatformInfo(id)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, clkernel.Platform{Info: info, Handle: id})
	}
	return platforms, nil
}

func (b *Backend) Devices(p clkernel.Platform, kind clkernel.DeviceType) ([]clkernel.Device, error) {
	pid, ok := p.Handle.(C.cl_platform_id)
	if !ok {
		return nil, statusError("clGetDeviceIDs", C.CL_INVALID_PLATFORM)
	}
	clType, ok := deviceTypeBits(kind)
	if !ok {
		return nil, statusError("clGetDeviceIDs", C.CL_INVALID_DEVICE_TYPE)
	}

	var count C.cl_uint
	status := C.clGetDeviceIDs(pid, clType, 0, nil, &count)
	if status == C.CL_DEVICE_NOT_FOUND {
		return nil, nil
	}
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(count)", status)
	}
	if count == 0 {
		return nil, nil
	}

	ids := make([]C.cl_device_id, int(count))
	status = C.clGetDeviceIDs(pid, clType, count, &ids[0], nil)
	if status != C.CL_SUCCESS {
		return nil, statusError("clGetDeviceIDs(list)", status)
	}

	devices := make([]clkernel.Device, 0, len(ids))
	for _, id := range ids {
		info, err := buildDeviceInfo(id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, clkernel.Device{Info: info, Handle: deviceHandle{id: id, platform: pid}})
	}
	return devices, nil
}

func (b *Backend) CreateContext(devices []clkernel.Device) (clkernel.Context, error) {
	ids, platform, err := deviceIDs(devices)
	if err != nil {
		return nil, err
	}

	var status C.cl_int
	ctx := C.oclk_create_context(platform, C.cl_uint(len(ids)), &ids[0], &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateContext", status)
	}
	return &context{ctx: ctx, platform: platform}, nil
}

func deviceIDs(devices []clkernel.Device) ([]C.cl_device_id, C.cl_platform_id, error) {
	if len(devices) == 0 {
		return nil, nil, statusError("deviceIDs", C.CL_INVALID_VALUE)
	}
	ids := make([]C.cl_device_id, len(devices))
	var platform C.cl_platform_id
	for i, d := range devices {
		h, ok := d.Handle.(deviceHandle)
		if !ok {
			return nil, nil, statusError("deviceIDs", C.CL_INVALID_DEVICE)
		}
		ids[i] = h.id
		platform = h.platform
	}
	return ids, platform, nil
}

type context struct {
	ctx      C.cl_context
	platform C.cl_platform_id
}

func (c *context) CreateQueue(d clkernel.Device) (clkernel.Queue, error) {
	h, ok := d.Handle.(deviceHandle)
	if !ok {
		return nil, statusError("clCreateCommandQueue", C.CL_INVALID_DEVICE)
	}
	var status C.cl_int
	q := C.oclk_create_queue(c.ctx, h.id, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateCommandQueue", status)
	}
	return &queue{queue: q}, nil
}

func (c *context) CreateBuffer(flags clkernel.MemFlags, size int) (clkernel.Buffer, error) {
	var clFlags C.cl_mem_flags
	switch flags {
	case clkernel.MemReadOnly:
		clFlags = C.CL_MEM_READ_ONLY
	case clkernel.MemWriteOnly:
		clFlags = C.CL_MEM_WRITE_ONLY
	default:
		clFlags = C.CL_MEM_READ_WRITE
	}

	var status C.cl_int
	mem := C.clCreateBuffer(c.ctx, clFlags, C.size_t(size), nil, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateBuffer", status)
	}
	return &buffer{mem: mem, size: size}, nil
}

func (c *context) CreateProgram(source []byte) (clkernel.Program, error) {
	src := C.CString(string(source))
	defer C.free(unsafe.Pointer(src))
	length := C.size_t(len(source))

	var status C.cl_int
	prog := C.clCreateProgramWithSource(c.ctx, 1, &src, &length, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateProgramWithSource", status)
	}
	return &program{program: prog, platform: c.platform}, nil
}

func (c *context) Release() error {
	if c.ctx == nil {
		return nil
	}
	status := C.clReleaseContext(c.ctx)
	c.ctx = nil
	if status != C.CL_SUCCESS {
		return statusError("clReleaseContext", status)
	}
	return nil
}

type buffer struct {
	mem  C.cl_mem
	size int
}

func (b *buffer) Size() int { return b.size }

func (b *buffer) Release() error {
	if b.mem == nil {
		return nil
	}
	status := C.clReleaseMemObject(b.mem)
	b.mem = nil
	if status != C.CL_SUCCESS {
		return statusError("clReleaseMemObject", status)
	}
	return nil
}

type program struct {
	program  C.cl_program
	platform C.cl_platform_id
}

func (p *program) Build(devices []clkernel.Device, options string) error {
	ids, _, err := deviceIDs(devices)
	if err != nil {
		return err
	}

	var cOptions *C.char
	if options != "" {
		cOptions = C.CString(options)
		defer C.free(unsafe.Pointer(cOptions))
	}

	status := C.clBuildProgram(p.program, C.cl_uint(len(ids)), &ids[0], cOptions, nil, nil)
	// Release compiler resources regardless of the outcome.
	defer C.clUnloadPlatformCompiler(p.platform)

	if status != C.CL_SUCCESS {
		return &clkernel.BuildError{
			Options: options,
			Log:     p.buildLog(ids[0]),
			Err:     statusError("clBuildProgram", status),
		}
	}
	return nil
}

func (p *program) buildLog(device C.cl_device_id) string {
	var logSize C.size_t
	if status := C.clGetProgramBuildInfo(p.program, device, C.CL_PROGRAM_BUILD_LOG, 0, nil, &logSize); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log size", "err", statusError("clGetProgramBuildInfo", status))
		return ""
	}
	if logSize == 0 {
		return ""
	}

	buf := make([]byte, int(logSize))
	if status := C.clGetProgramBuildInfo(p.program, device, C.CL_PROGRAM_BUILD_LOG, logSize, unsafe.Pointer(&buf[0]), nil); status != C.CL_SUCCESS {
		slog.Error("OpenCL: failed to fetch build log", "err", statusError("clGetProgramBuildInfo", status))
		return ""
	}
	return trimNull(buf)
}

func (p *program) CreateKernel(name string) (clkernel.Function, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	var status C.cl_int
	k := C.clCreateKernel(p.program, cName, &status)
	if status != C.CL_SUCCESS {
		return nil, statusError("clCreateKernel", status)
	}
	return &function{kernel: k, name: name}, nil
}

func (p *program) Release() error {
	if p.program == nil {
		return nil
	}
	status := C.clReleaseProgram(p.program)
	p.program = nil
	if status != C.CL_SUCCESS {
		return statusError("clReleaseProgram", status)
	}
	return nil
}

type function struct {
	kernel C.cl_kernel
	name   string
}

func (f *function) Name() string { return f.name }

func (f *function) SetArg(index uint32, value any) error {
	var status C.cl_int
	switch v := value.(type) {
	case *buffer:
		status = C.clSetKernelArg(f.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(v.mem)), unsafe.Pointer(&v.mem))
	case clkernel.Buffer:
		return statusError(fmt.Sprintf("clSetKernelArg(%d)", index), C.CL_INVALID_MEM_OBJECT)
	case clkernel.LocalSpace:
		status = C.clSetKernelArg(f.kernel, C.cl_uint(index), C.size_t(v.Size), nil)
	default:
		raw, err := clkernel.ScalarBytes(value)
		if err != nil {
			return err
		}
		status = C.clSetKernelArg(f.kernel, C.cl_uint(index), C.size_t(len(raw)), unsafe.Pointer(&raw[0]))
	}
	if status != C.CL_SUCCESS {
		return statusError(fmt.Sprintf("clSetKernelArg(%d)", index), status)
	}
	return nil
}

func (f *function) Release() error {
	if f.kernel == nil {
		return nil
	}
	status := C.clReleaseKernel(f.kernel)
	f.kernel = nil
	if status != C.CL_SUCCESS {
		return statusError("clReleaseKernel", status)
	}
	return nil
}

type queue struct {
	queue C.cl_command_queue
}

func (q *queue) WriteBuffer(buf clkernel.Buffer, data []byte) error {
	b, ok := buf.(*buffer)
	if !ok {
		return statusError("clEnqueueWriteBuffer", C.CL_INVALID_MEM_OBJECT)
	}
	if len(data) == 0 {
		return nil
	}
	status := C.clEnqueueWriteBuffer(q.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(data)), unsafe.Pointer(&data[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueWriteBuffer", status)
	}
	return nil
}

func (q *queue) ReadBuffer(buf clkernel.Buffer, data []byte) error {
	b, ok := buf.(*buffer)
	if !ok {
		return statusError("clEnqueueReadBuffer", C.CL_INVALID_MEM_OBJECT)
	}
	if len(data) == 0 {
		return nil
	}
	status := C.clEnqueueReadBuffer(q.queue, b.mem, C.CL_TRUE, 0, C.size_t(len(data)), unsafe.Pointer(&data[0]), 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueReadBuffer", status)
	}
	return nil
}

func (q *queue) EnqueueKernel(fn clkernel.Function, r clkernel.Range) error {
	f, ok := fn.(*function)
	if !ok {
		return statusError("clEnqueueNDRangeKernel", C.CL_INVALID_KERNEL)
	}

	var global, local, offset [clkernel.MaxDims]C.size_t
	for i := 0; i < r.Dims; i++ {
		global[i] = C.size_t(r.Global[i])
		local[i] = C.size_t(r.Local[i])
		offset[i] = C.size_t(r.Offset[i])
	}

	status := C.clEnqueueNDRangeKernel(q.queue, f.kernel, C.cl_uint(r.Dims), &offset[0], &global[0], &local[0], 0, nil, nil)
	if status != C.CL_SUCCESS {
		return statusError("clEnqueueNDRangeKernel", status)
	}
	return nil
}

func (q *queue) Finish() error {
	if status := C.clFinish(q.queue); status != C.CL_SUCCESS {
		return statusError("clFinish", status)
	}
	return nil
}

func (q *queue) Release() error {
	if q.queue == nil {
		return nil
	}
	status := C.clReleaseCommandQueue(q.queue)
	q.queue = nil
	if status != C.CL_SUCCESS {
		return statusError("clReleaseCommandQueue", status)
	}
	return nil
}

func buildPlatformInfo(id C.cl_platform_id) (clkernel.PlatformInfo, error) {
	var info clkernel.PlatformInfo
	fields := []struct {
		param C.cl_platform_info
		dst   *string
	}{
		{C.CL_PLATFORM_NAME, &info.Name},
		{C.CL_PLATFORM_VENDOR, &info.Vendor},
		{C.CL_PLATFORM_VERSION, &info.Version},
		{C.CL_PLATFORM_PROFILE, &info.Profile},
	}
	for _, f := range fields {
		s, err := getPlatformString(id, f.param)
		if err != nil {
			return clkernel.PlatformInfo{}, err
		}
		*f.dst = s
	}
	return info, nil
}

func buildDeviceInfo(id C.cl_device_id) (clkernel.DeviceInfo, error) {
	name, err := getDeviceString(id, C.CL_DEVICE_NAME)
	if err != nil {
		return clkernel.DeviceInfo{}, err
	}
	vendor, err := getDeviceString(id, C.CL_DEVICE_VENDOR)
	if err != nil {
		return clkernel.DeviceInfo{}, err
	}
	version, err := getDeviceString(id, C.CL_DEVICE_VERSION)
	if err != nil {
		return clkernel.DeviceInfo{}, err
	}

	var rawType C.cl_device_type
	if err := getDeviceValue(id, C.CL_DEVICE_TYPE, unsafe.Pointer(&rawType), unsafe.Sizeof(rawType)); err != nil {
		return clkernel.DeviceInfo{}, err
	}
	var computeUnits C.cl_uint
	if err := getDeviceValue(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, unsafe.Pointer(&computeUnits), unsafe.Sizeof(computeUnits)); err != nil {
		return clkernel.DeviceInfo{}, err
	}
	var maxWorkGroup C.size_t
	if err := getDeviceValue(id, C.CL_DEVICE_MAX_WORK_GROUP_SIZE, unsafe.Pointer(&maxWorkGroup), unsafe.Sizeof(maxWorkGroup)); err != nil {
		return clkernel.DeviceInfo{}, err
	}
	var localMem C.cl_ulong
	if err := getDeviceValue(id, C.CL_DEVICE_LOCAL_MEM_SIZE, unsafe.Pointer(&localMem), unsafe.Sizeof(localMem)); err != nil {
		return clkernel.DeviceInfo{}, err
	}
	var fp64 C.cl_device_fp_config
	if err := getDeviceValue(id, C.CL_DEVICE_DOUBLE_FP_CONFIG, unsafe.Pointer(&fp64), unsafe.Sizeof(fp64)); err != nil {
		// Devices without double support may reject the query.
		fp64 = 0
	}

	return clkernel.DeviceInfo{
		Name:             name,
		Vendor:           vendor,
		Version:          version,
		Type:             mapDeviceType(rawType),
		MaxComputeUnits:  uint32(computeUnits),
		MaxWorkGroupSize: uint64(maxWorkGroup),
		LocalMemSize:     uint64(localMem),
		FP64:             fp64 != 0,
	}, nil
}

func getDeviceValue(id C.cl_device_id, param C.cl_device_info, dst unsafe.Pointer, size uintptr) error {
	status := C.clGetDeviceInfo(id, param, C.size_t(size), dst, nil)
	if status != C.CL_SUCCESS {
		return statusError(fmt.Sprintf("clGetDeviceInfo(%#x)", int(param)), status)
	}
	return nil
}

func getPlatformString(id C.cl_platform_id, param C.cl_platform_info) (string, error) {
	var size C.size_t
	status := C.clGetPlatformInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetPlatformInfo(value)", status)
	}

	return trimNull(buf), nil
}

func getDeviceString(id C.cl_device_id, param C.cl_device_info) (string, error) {
	var size C.size_t
	status := C.clGetDeviceInfo(id, param, 0, nil, &size)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(size)", status)
	}
	if size == 0 {
		return "", nil
	}

	buf := make([]byte, int(size))
	status = C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	if status != C.CL_SUCCESS {
		return "", statusError("clGetDeviceInfo(value)", status)
	}

	return trimNull(buf), nil
}

func trimNull(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	if buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf)
}

func deviceTypeBits(t clkernel.DeviceType) (C.cl_device_type, bool) {
	switch t {
	case clkernel.DeviceTypeGPU:
		return C.CL_DEVICE_TYPE_GPU, true
	case clkernel.DeviceTypeCPU:
		return C.CL_DEVICE_TYPE_CPU, true
	case clkernel.DeviceTypeAccelerator:
		return C.CL_DEVICE_TYPE_ACCELERATOR, true
	case clkernel.DeviceTypeDefault:
		return C.CL_DEVICE_TYPE_DEFAULT, true
	case clkernel.DeviceTypeAll:
		return C.CL_DEVICE_TYPE_ALL, true
	default:
		return 0, false
	}
}

func mapDeviceType(dt C.cl_device_type) clkernel.DeviceType {
	switch {
	case dt&C.CL_DEVICE_TYPE_GPU != 0:
		return clkernel.DeviceTypeGPU
	case dt&C.CL_DEVICE_TYPE_CPU != 0:
		return clkernel.DeviceTypeCPU
	case dt&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return clkernel.DeviceTypeAccelerator
	case dt&C.CL_DEVICE_TYPE_DEFAULT != 0:
		return clkernel.DeviceTypeDefault
	default:
		return clkernel.DeviceTypeUnknown
	}
}

func statusError(op string, status C.cl_int) error {
	return &clkernel.StatusError{
		Op:   op,
		Code: int(status),
		Name: C.GoString(C.oclk_error_string(status)),
	}
}

// Package wrapper is a thin cgo layer over the CUDA driver API, just
// wide enough for internal/derive's GPU back-end: bind a device,
// allocate and move buffers, load a compiled kernel, launch it. Every
// exported call maps to exactly one CUDA driver entry point.
package wrapper

/*
#cgo LDFLAGS: -L/opt/cuda/lib64 -lcuda
#cgo CFLAGS: -I/opt/cuda/include

#include <cuda.h>
#include <stdlib.h>

static CUresult ks_init(void) {
    return cuInit(0);
}

static CUresult ks_device_count(int *count) {
    return cuDeviceGetCount(count);
}

static CUresult ks_device_get(CUdevice *dev, int ordinal) {
    return cuDeviceGet(dev, ordinal);
}

static CUresult ks_device_name(char *buf, int buflen, CUdevice dev) {
    return cuDeviceGetName(buf, buflen, dev);
}

static CUresult ks_device_total_mem(size_t *bytes, CUdevice dev) {
    return cuDeviceTotalMem(bytes, dev);
}

static CUresult ks_ctx_retain(CUcontext *ctx, CUdevice dev) {
    return cuDevicePrimaryCtxRetain(ctx, dev);
}

static CUresult ks_ctx_release(CUdevice dev) {
    return cuDevicePrimaryCtxRelease(dev);
}

static CUresult ks_ctx_set_current(CUcontext ctx) {
    return cuCtxSetCurrent(ctx);
}

static CUresult ks_ctx_sync(void) {
    return cuCtxSynchronize();
}

static CUresult ks_mem_alloc(CUdeviceptr *ptr, size_t bytes) {
    return cuMemAlloc(ptr, bytes);
}

static CUresult ks_mem_free(CUdeviceptr ptr) {
    return cuMemFree(ptr);
}

static CUresult ks_mem_htod(CUdeviceptr dst, void *src, size_t bytes) {
    return cuMemcpyHtoD(dst, src, bytes);
}

static CUresult ks_mem_dtoh(void *dst, CUdeviceptr src, size_t bytes) {
    return cuMemcpyDtoH(dst, src, bytes);
}

static CUresult ks_module_load(CUmodule *mod, const char *ptx) {
    return cuModuleLoadData(mod, ptx);
}

static CUresult ks_module_function(CUfunction *fn, CUmodule mod, const char *name) {
    return cuModuleGetFunction(fn, mod, name);
}

static CUresult ks_launch(CUfunction fn,
                           unsigned int gx, unsigned int gy, unsigned int gz,
                           unsigned int bx, unsigned int by, unsigned int bz,
                           unsigned int shared, void *params) {
    return cuLaunchKernel(fn, gx, gy, gz, bx, by, bz, shared, NULL, (void **)params, NULL);
}

static const char *ks_error_string(CUresult err) {
    const char *msg;
    cuGetErrorString(err, &msg);
    return msg;
}
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// cudaErr turns a non-success CUresult into a Go error tagged with the
// driver call that produced it, or nil on success.
func cudaErr(op string, result C.CUresult) error {
	if result == C.CUDA_SUCCESS {
		return nil
	}
	return fmt.Errorf("%s: %s", op, C.GoString(C.ks_error_string(result)))
}

// InitCUDA initializes the CUDA driver. It must run once before any
// other call in this package.
func InitCUDA() error {
	return cudaErr("cuInit", C.ks_init())
}

// DeviceCount reports the number of CUDA-capable devices visible to
// the driver, used by the acceleration-device enumeration command.
func DeviceCount() (int, error) {
	var count C.int
	if err := cudaErr("cuDeviceGetCount", C.ks_device_count(&count)); err != nil {
		return 0, err
	}
	return int(count), nil
}

// Device is a bound CUDA device with a retained primary context.
type Device struct {
	handle C.CUdevice
	ctx    C.CUcontext
	name   string
	memory uint64
}

// NewDevice binds ordinal, retains its primary context, and makes that
// context current on the calling OS thread.
func NewDevice(ordinal int) (*Device, error) {
	var dev C.CUdevice
	if err := cudaErr("cuDeviceGet", C.ks_device_get(&dev, C.int(ordinal))); err != nil {
		return nil, err
	}

	nameBuf := make([]byte, 256)
	if err := cudaErr("cuDeviceGetName", C.ks_device_name((*C.char)(unsafe.Pointer(&nameBuf[0])), C.int(len(nameBuf)), dev)); err != nil {
		return nil, err
	}

	var memBytes C.size_t
	if err := cudaErr("cuDeviceTotalMem", C.ks_device_total_mem(&memBytes, dev)); err != nil {
		return nil, err
	}

	var ctx C.CUcontext
	if err := cudaErr("cuDevicePrimaryCtxRetain", C.ks_ctx_retain(&ctx, dev)); err != nil {
		return nil, err
	}
	if err := cudaErr("cuCtxSetCurrent", C.ks_ctx_set_current(ctx)); err != nil {
		C.ks_ctx_release(dev)
		return nil, err
	}

	return &Device{
		handle: dev,
		ctx:    ctx,
		name:   string(nameBuf[:nullTerminatedLen(nameBuf)]),
		memory: uint64(memBytes),
	}, nil
}

// Name is the device's driver-reported name string.
func (d *Device) Name() string { return d.name }

// Memory is the device's total onboard memory, in bytes.
func (d *Device) Memory() uint64 { return d.memory }

// SetCurrent makes d's context current on the calling OS thread. Every
// device call from a new goroutine must call this first.
func (d *Device) SetCurrent() error {
	return cudaErr("cuCtxSetCurrent", C.ks_ctx_set_current(d.ctx))
}

// Synchronize blocks until all outstanding work on d's context
// completes.
func (d *Device) Synchronize() error {
	return cudaErr("cuCtxSynchronize", C.ks_ctx_sync())
}

// Close releases d's primary context.
func (d *Device) Close() error {
	return cudaErr("cuDevicePrimaryCtxRelease", C.ks_ctx_release(d.handle))
}

// Alloc reserves size bytes of device memory.
func (d *Device) Alloc(size uint64) (*DeviceMemory, error) {
	var ptr C.CUdeviceptr
	if err := cudaErr("cuMemAlloc", C.ks_mem_alloc(&ptr, C.size_t(size))); err != nil {
		return nil, err
	}
	return &DeviceMemory{ptr: ptr, size: size}, nil
}

// DeviceMemory is a single device-side allocation.
type DeviceMemory struct {
	ptr  C.CUdeviceptr
	size uint64
}

// Free releases the allocation.
func (m *DeviceMemory) Free() error {
	return cudaErr("cuMemFree", C.ks_mem_free(m.ptr))
}

// CopyFromHost copies data into the allocation, which must have room
// for it.
func (m *DeviceMemory) CopyFromHost(data []byte) error {
	if uint64(len(data)) > m.size {
		return fmt.Errorf("host buffer of %d bytes exceeds %d-byte allocation", len(data), m.size)
	}
	if len(data) == 0 {
		return nil
	}
	return cudaErr("cuMemcpyHtoD", C.ks_mem_htod(m.ptr, unsafe.Pointer(&data[0]), C.size_t(len(data))))
}

// CopyToHost copies the allocation's contents into data.
func (m *DeviceMemory) CopyToHost(data []byte) error {
	if uint64(len(data)) > m.size {
		return fmt.Errorf("host buffer of %d bytes exceeds %d-byte allocation", len(data), m.size)
	}
	if len(data) == 0 {
		return nil
	}
	return cudaErr("cuMemcpyDtoH", C.ks_mem_dtoh(unsafe.Pointer(&data[0]), m.ptr, C.size_t(len(data))))
}

// Ptr exposes the raw device pointer for use as a kernel argument.
func (m *DeviceMemory) Ptr() uintptr {
	return uintptr(m.ptr)
}

// Module is a loaded compiled-PTX module.
type Module struct {
	handle C.CUmodule
}

// LoadModule loads a module from PTX source text.
func LoadModule(ptx string) (*Module, error) {
	cptx := C.CString(ptx)
	defer C.free(unsafe.Pointer(cptx))

	var mod C.CUmodule
	if err := cudaErr("cuModuleLoadData", C.ks_module_load(&mod, cptx)); err != nil {
		return nil, err
	}
	return &Module{handle: mod}, nil
}

// GetFunction resolves a kernel entry point by name.
func (m *Module) GetFunction(name string) (*Function, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var fn C.CUfunction
	if err := cudaErr("cuModuleGetFunction", C.ks_module_function(&fn, m.handle, cname)); err != nil {
		return nil, err
	}
	return &Function{handle: fn}, nil
}

// Function is a resolved kernel entry point.
type Function struct {
	handle C.CUfunction
}

// Launch runs the kernel over a gx*gy*gz grid of bx*by*bz blocks.
// Each element of params must point directly at the argument value,
// not at a pointer to it.
func (f *Function) Launch(gx, gy, gz, bx, by, bz, shared uint32, params []unsafe.Pointer) error {
	if len(params) == 0 {
		return cudaErr("cuLaunchKernel", C.ks_launch(
			f.handle,
			C.uint(gx), C.uint(gy), C.uint(gz),
			C.uint(bx), C.uint(by), C.uint(bz),
			C.uint(shared), nil,
		))
	}

	argv := C.malloc(C.size_t(len(params)) * C.size_t(unsafe.Sizeof(uintptr(0))))
	defer C.free(argv)
	argvSlice := (*[1 << 30]unsafe.Pointer)(argv)[:len(params):len(params)]
	copy(argvSlice, params)

	return cudaErr("cuLaunchKernel", C.ks_launch(
		f.handle,
		C.uint(gx), C.uint(gy), C.uint(gz),
		C.uint(bx), C.uint(by), C.uint(bz),
		C.uint(shared), argv,
	))
}

// nullTerminatedLen returns the length of b up to its first NUL byte,
// or len(b) if none is present.
func nullTerminatedLen(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return len(b)
}

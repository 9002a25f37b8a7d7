//go:build windows

package media

// Minimal WinRT activation plumbing. go-ole only covers classic COM
// automation (ProgID + IDispatch), not WinRT runtime classes, so the
// handful of calls needed to reach
// GlobalSystemMediaTransportControlsSessionManager are hand-rolled over
// raw vtable calls using the same unsafe.Pointer/syscall idiom as other
// raw Win32 API access in this codebase.

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modCombase = windows.NewLazySystemDLL("combase.dll")

	procRoInitialize            = modCombase.NewProc("RoInitialize")
	procRoGetActivationFactory  = modCombase.NewProc("RoGetActivationFactory")
	procWindowsCreateString     = modCombase.NewProc("WindowsCreateString")
	procWindowsDeleteString     = modCombase.NewProc("WindowsDeleteString")
	procWindowsGetStringRawBuf  = modCombase.NewProc("WindowsGetStringRawBuffer")
)

const roInitMultithreaded = 1

func roInitialize() error {
	r1, _, _ := procRoInitialize.Call(roInitMultithreaded)
	// RPC_E_CHANGED_MODE (0x80010106) means another apartment already
	// initialized the thread; harmless for our read-only use.
	if r1 != 0 && r1 != 0x80010106 {
		return fmt.Errorf("RoInitialize failed: 0x%x", r1)
	}
	return nil
}

// hstring wraps a WinRT HSTRING handle.
type hstring uintptr

func newHString(s string) (hstring, error) {
	u16, err := syscall.UTF16PtrFromString(s)
	if err != nil {
		return 0, err
	}
	var h hstring
	r1, _, _ := procWindowsCreateString.Call(
		uintptr(unsafe.Pointer(u16)),
		uintptr(len(s)),
		uintptr(unsafe.Pointer(&h)),
	)
	if r1 != 0 {
		return 0, fmt.Errorf("WindowsCreateString failed: 0x%x", r1)
	}
	return h, nil
}

func (h hstring) release() {
	if h != 0 {
		procWindowsDeleteString.Call(uintptr(h))
	}
}

func (h hstring) string() string {
	if h == 0 {
		return ""
	}
	var length uint32
	r1, _, _ := procWindowsGetStringRawBuf.Call(uintptr(h), uintptr(unsafe.Pointer(&length)))
	if r1 == 0 || length == 0 {
		return ""
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(r1)))
}

// iinspectable is a raw COM/WinRT object pointer: [vtbl *uintptr][...].
// IUnknown occupies vtable slots 0-2 (QueryInterface/AddRef/Release),
// IInspectable adds 3-5 (GetIids/GetRuntimeClassName/GetTrustLevel).
// Interface-specific methods begin at slot 6.
type iinspectable struct {
	vtbl *uintptr
}

func (o *iinspectable) vtblSlot(index int) uintptr {
	base := unsafe.Pointer(o.vtbl)
	return *(*uintptr)(unsafe.Pointer(uintptr(base) + uintptr(index)*unsafe.Sizeof(uintptr(0))))
}

// call invokes a vtable method taking (self, ...args) and returns its
// raw HRESULT; any out-parameter is a pointer the caller passes in args.
func (o *iinspectable) call(slot int, args ...uintptr) (uintptr, error) {
	fn := o.vtblSlot(slot)
	full := append([]uintptr{uintptr(unsafe.Pointer(o))}, args...)
	r1, _, _ := syscall.SyscallN(fn, full...)
	if int32(r1) < 0 {
		return 0, fmt.Errorf("winrt call failed: hresult 0x%x", r1)
	}
	return r1, nil
}

func (o *iinspectable) release() {
	if o != nil {
		o.call(2)
	}
}

// activationFactory activates the given WinRT runtime class by name and
// returns the default interface pointer.
func activationFactory(className string, iid *windows.GUID) (*iinspectable, error) {
	if err := roInitialize(); err != nil {
		return nil, err
	}

	name, err := newHString(className)
	if err != nil {
		return nil, err
	}
	defer name.release()

	var out uintptr
	r1, _, _ := procRoGetActivationFactory.Call(
		uintptr(name),
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&out)),
	)
	if r1 != 0 {
		return nil, fmt.Errorf("RoGetActivationFactory(%s) failed: 0x%x", className, r1)
	}
	return (*iinspectable)(unsafe.Pointer(out)), nil
}

// ticksToUnixMicros converts Windows FILETIME-epoch 100ns ticks to Unix
// microseconds, per spec: divide by 10 for microseconds, then subtract
// the 1601->1970 epoch offset of 11,644,473,600 seconds.
const windowsEpochOffsetSeconds = 11_644_473_600

func ticksToUnixMicros(ticks int64) int64 {
	micros := ticks / 10
	return micros - windowsEpochOffsetSeconds*1_000_000
}

// ticksToDurationNanos converts a TimeSpan's 100ns-tick duration to
// nanoseconds.
func ticksToDurationNanos(ticks int64) int64 {
	return ticks * 100
}

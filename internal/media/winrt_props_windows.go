//go:build windows

package media

import "unsafe"

func unsafePointer(p uintptr) unsafe.Pointer {
	return unsafe.Pointer(p)
}

func uintptrOfPointer(p *uintptr) uintptr {
	return uintptr(unsafe.Pointer(p))
}

// readHStringProperty calls a no-argument property getter that returns
// an HSTRING out-parameter and converts it to a Go string.
func readHStringProperty(obj *iinspectable, slot int) string {
	var h uintptr
	if _, err := obj.call(slot, uintptrOfPointer(&h)); err != nil {
		return ""
	}
	s := hstring(h).string()
	hstring(h).release()
	return s
}

// readInt64Property calls a no-argument property getter that returns a
// 64-bit integer (ticks, in the timeline-property case) out-parameter.
func readInt64Property(obj *iinspectable, slot int) int64 {
	var v int64
	if _, err := obj.call(slot, uintptrOfPointer((*uintptr)(unsafe.Pointer(&v)))); err != nil {
		return 0
	}
	return v
}

// readThumbnail opens the properties' thumbnail stream reference,
// reads it fully via a DataReader, and returns its content type and
// bytes. Returns a nil slice if no thumbnail is attached.
func readThumbnail(props *iinspectable) (mime string, data []byte) {
	var streamRefPtr uintptr
	if _, err := props.call(slotThumbnail, uintptrOfPointer(&streamRefPtr)); err != nil || streamRefPtr == 0 {
		return "", nil
	}
	streamRef := ptrToInspectable(streamRefPtr)
	defer streamRef.release()

	streamPtr, err := streamRef.call(slotOpenReadAsync)
	if err != nil || streamPtr == 0 {
		return "", nil
	}
	stream := ptrToInspectable(streamPtr)
	defer stream.release()

	mime = readHStringProperty(stream, slotStreamContentType)
	size := readInt64Property(stream, slotStreamSize)
	if size <= 0 {
		return mime, nil
	}

	reader, err := activationFactory("Windows.Storage.Streams.DataReader", dataReaderClassGUID)
	if err != nil {
		return mime, nil
	}
	defer reader.release()

	if _, err := reader.call(slotDataReaderLoadAsync, uintptr(size)); err != nil {
		return mime, nil
	}

	buf := make([]byte, size)
	if _, err := reader.call(slotDataReaderReadBytes, uintptrOfPointer((*uintptr)(unsafe.Pointer(&buf[0]))), uintptr(size)); err != nil {
		return mime, nil
	}

	return mime, buf
}

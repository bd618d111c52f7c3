// Package marshal converts raw native payloads to Go values and pins Go bytes
// for outbound native calls.
//
// # Inbound Formats
//
//	Strings(mem, ptr, n)  n little-endian u32 pointers at ptr, each to a
//	                      NUL-terminated buffer (dropped paths)
//	Message(mem, ptr)     one NUL-terminated buffer (error descriptions)
//	Decode* helpers       fixed-width integer codes to enumerated values
//
// Decoding never aborts a dispatch. A malformed argument degrades to an empty
// value (an empty, non-nil slice, an empty string entry, the NoMessage
// sentinel, or an Unrecognized enum variant) and the error is returned
// alongside for logging.
//
// # Text Encoding
//
// Text is strict UTF-8 by default. WithEncoding selects a golang.org/x/text
// encoding for native libraries that report text in a legacy code page.
//
// # Outbound Pinning
//
// Pin copies bytes into native memory for the duration of one native call:
//
//	p, err := adapter.PinString(mem, alloc, title)
//	if err != nil {
//	    return err
//	}
//	defer p.Release()
//	callNative(p.Ptr)
package marshal

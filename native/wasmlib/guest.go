package wasmlib

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/callbridge/event"
	"github.com/wippyai/callbridge/trampoline"
)

// Module names on both sides of the boundary.
const (
	HostModule  = "callbridge"
	GuestModule = "native"
)

// Guest memory layout. Slot and flag tables are indexed by
// (handle << 5) | index; family slots use index 16 + family.
const (
	guestPages       = 2
	slotBase         = 0x0400
	flagBase         = 0x8400
	shouldCloseBase  = 0xA400
	tablesEnd        = 0xA500
	heapBase         = 0xB000
	familySlotOffset = 16

	// MinMemoryPages is the smallest memory limit the guest accepts.
	MinMemoryPages = guestPages

	// MaxHandle is the largest handle the guest has slots for.
	MaxHandle = 0xFF
)

// Guest exports.
const (
	exportMemory            = "memory"
	exportAlloc             = "alloc"
	exportFree              = "free"
	exportSetCallback       = "set_callback"
	exportSetFamilyCallback = "set_family_callback"
	exportEnableKind        = "enable_kind"
	exportSetShouldClose    = "set_should_close"
	exportShouldClose       = "should_close"
	exportTerminate         = "terminate"
	emitPrefix              = "emit_"
)

// Opcodes used by the guest bodies.
const (
	opIf        = 0x04
	opEnd       = 0x0b
	opReturn    = 0x0f
	opCall      = 0x10
	opLocalGet  = 0x20
	opLocalTee  = 0x22
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Load   = 0x28
	opI32Load8U = 0x2d
	opI32Store  = 0x36
	opI32Store8 = 0x3a
	opMemSize   = 0x3f
	opI32Const  = 0x41
	opI32Eqz    = 0x45
	opI32Eq     = 0x46
	opI32LtU    = 0x49
	opI32GtU    = 0x4b
	opI32Add    = 0x6a
	opI32And    = 0x71
	opI32Or     = 0x72
	opI32Shl    = 0x74
	opPrefixFC  = 0xfc
	opMemFill   = 0x0b
	blockEmpty  = 0x40
)

// EmitExport returns the guest export that drives the trampoline name.
func EmitExport(name string) string {
	return emitPrefix + name
}

type body []byte

func (b body) op(ops ...byte) body {
	return append(b, ops...)
}

func (b body) get(i uint32) body {
	return append(append(b, opLocalGet), encodeULEB128(i)...)
}

func (b body) i32(v int32) body {
	return append(append(b, opI32Const), encodeSLEB128(v)...)
}

func (b body) load() body {
	return append(b, opI32Load, 0x02, 0x00)
}

func (b body) load8() body {
	return append(b, opI32Load8U, 0x00, 0x00)
}

func (b body) store() body {
	return append(b, opI32Store, 0x02, 0x00)
}

func (b body) store8() body {
	return append(b, opI32Store8, 0x00, 0x00)
}

func (b body) ifThen() body {
	return append(b, opIf, blockEmpty)
}

func (b body) call(f uint32) body {
	return append(append(b, opCall), encodeULEB128(f)...)
}

// guardHandle returns early, with fail on the stack if given, when local 0
// is not a handle the tables cover.
func (b body) guardHandle(fail *int32) body {
	b = b.get(0).i32(MaxHandle).op(opI32GtU).ifThen()
	if fail != nil {
		b = b.i32(*fail)
	}
	return b.op(opReturn, opEnd)
}

// slotIndex pushes (local0 << 5) | index, where index is produced by idx.
func (b body) slotIndex(idx func(body) body) body {
	return idx(b.get(0).i32(5).op(opI32Shl)).op(opI32Or)
}

// slotAddr turns an index on the stack into a slot table address.
func (b body) slotAddr() body {
	return b.i32(2).op(opI32Shl).i32(slotBase).op(opI32Add)
}

type function struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
	locals  uint32
	code    body
}

// BuildGuest synthesizes the native guest module for sigs. Each signature
// becomes an import from HostModule and a matching emit_ export that calls
// it when the handle's slot is occupied.
func BuildGuest(sigs []trampoline.Signature) []byte {
	i32, minusOne := api.ValueTypeI32, int32(-1)
	imports := len(sigs)
	funcs := []function{
		{name: exportAlloc, params: []api.ValueType{i32}, results: []api.ValueType{i32}, locals: 1, code: allocBody()},
		{name: exportFree, params: []api.ValueType{i32, i32}, code: freeBody()},
		{name: exportSetCallback, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i32}, locals: 1,
			code: setSlotBody(&minusOne, func(b body) body { return b.get(1).i32(15).op(opI32And) })},
		{name: exportSetFamilyCallback, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i32}, locals: 1,
			code: setSlotBody(&minusOne, func(b body) body { return b.get(1).i32(15).op(opI32And).i32(familySlotOffset).op(opI32Add) })},
		{name: exportEnableKind, params: []api.ValueType{i32, i32, i32}, results: []api.ValueType{i32}, code: enableBody(minusOne)},
		{name: exportSetShouldClose, params: []api.ValueType{i32, i32}, code: setShouldCloseBody()},
		{name: exportShouldClose, params: []api.ValueType{i32}, results: []api.ValueType{i32}, code: shouldCloseBody()},
		{name: exportTerminate, code: terminateBody()},
	}
	for i, sig := range sigs {
		funcs = append(funcs, function{
			name:   EmitExport(sig.Name),
			params: sig.Params,
			code:   emitBody(sig, uint32(i)),
		})
	}

	// Types are deduplicated by signature.
	var types [][]byte
	typeIndex := map[string]uint32{}
	typeOf := func(params, results []api.ValueType) uint32 {
		enc := []byte{0x60}
		enc = append(enc, encodeULEB128(uint32(len(params)))...)
		for _, p := range params {
			enc = append(enc, valType(p))
		}
		enc = append(enc, encodeULEB128(uint32(len(results)))...)
		for _, r := range results {
			enc = append(enc, valType(r))
		}
		if idx, ok := typeIndex[string(enc)]; ok {
			return idx
		}
		idx := uint32(len(types))
		typeIndex[string(enc)] = idx
		types = append(types, enc)
		return idx
	}

	var importItems [][]byte
	for _, sig := range sigs {
		item := encodeName(HostModule)
		item = append(item, encodeName(sig.Name)...)
		item = append(item, 0x00)
		item = append(item, encodeULEB128(typeOf(sig.Params, nil))...)
		importItems = append(importItems, item)
	}

	var funcItems, codeItems [][]byte
	exportItems := [][]byte{append(encodeName(exportMemory), 0x02, 0x00)}
	for i, f := range funcs {
		funcItems = append(funcItems, encodeULEB128(typeOf(f.params, f.results)))

		item := encodeName(f.name)
		item = append(item, 0x00)
		item = append(item, encodeULEB128(uint32(imports+i))...)
		exportItems = append(exportItems, item)

		var fn []byte
		if f.locals > 0 {
			fn = append(fn, 0x01)
			fn = append(fn, encodeULEB128(f.locals)...)
			fn = append(fn, valType(i32))
		} else {
			fn = append(fn, 0x00)
		}
		fn = append(fn, f.code...)
		fn = append(fn, opEnd)
		codeItems = append(codeItems, append(encodeULEB128(uint32(len(fn))), fn...))
	}

	memory := vector([][]byte{{0x00, guestPages}})
	global := []byte{valType(i32), 0x01, opI32Const}
	global = append(global, encodeSLEB128(heapBase)...)
	global = append(global, opEnd)

	var wasm []byte
	wasm = append(wasm, 0x00, 0x61, 0x73, 0x6d)
	wasm = append(wasm, 0x01, 0x00, 0x00, 0x00)
	wasm = append(wasm, section(0x01, vector(types))...)
	wasm = append(wasm, section(0x02, vector(importItems))...)
	wasm = append(wasm, section(0x03, vector(funcItems))...)
	wasm = append(wasm, section(0x05, memory)...)
	wasm = append(wasm, section(0x06, vector([][]byte{global}))...)
	wasm = append(wasm, section(0x07, vector(exportItems))...)
	wasm = append(wasm, section(0x0a, vector(codeItems))...)
	return wasm
}

// alloc(size) bumps the heap by size rounded to 8 and returns the old top,
// or 0 when the memory cannot hold it.
func allocBody() body {
	var b body
	b = b.op(opGlobalGet, 0x00).get(0).op(opI32Add).
		i32(7).op(opI32Add).i32(-8).op(opI32And).
		op(opLocalTee, 0x01)
	b = b.op(opMemSize, 0x00).i32(16).op(opI32Shl).op(opI32GtU).
		ifThen().i32(0).op(opReturn, opEnd)
	b = b.get(1).op(opGlobalGet, 0x00).op(opI32LtU).
		ifThen().i32(0).op(opReturn, opEnd)
	return b.op(opGlobalGet, 0x00).get(1).op(opGlobalSet, 0x00)
}

// free(ptr, size) pops the heap when ptr is the most recent block.
func freeBody() body {
	var b body
	b = b.get(0).get(1).i32(7).op(opI32Add).i32(-8).op(opI32And).op(opI32Add).
		op(opGlobalGet, 0x00).op(opI32Eq).
		ifThen().get(0).op(opGlobalSet, 0x00).op(opEnd)
	return b
}

// set_*(h, index, slot) stores slot and returns the previous occupant.
func setSlotBody(fail *int32, idx func(body) body) body {
	var b body
	b = b.guardHandle(fail)
	b = b.slotIndex(idx).slotAddr().op(opLocalTee, 0x03).load()
	return b.get(3).get(2).store()
}

// enable_kind(h, kind, on) writes the kind's flag byte.
func enableBody(fail int32) body {
	var b body
	b = b.guardHandle(&fail)
	b = b.slotIndex(func(b body) body { return b.get(1).i32(31).op(opI32And) }).
		i32(flagBase).op(opI32Add).
		get(2).op(opI32Eqz, opI32Eqz).store8()
	return b.i32(0)
}

func shouldCloseAddr(b body) body {
	return b.get(0).i32(MaxHandle).op(opI32And).i32(shouldCloseBase).op(opI32Add)
}

func setShouldCloseBody() body {
	return shouldCloseAddr(nil).get(1).store8()
}

func shouldCloseBody() body {
	return shouldCloseAddr(nil).load8()
}

// terminate clears every table and resets the heap.
func terminateBody() body {
	var b body
	b = b.i32(slotBase).i32(0).i32(tablesEnd - slotBase).op(opPrefixFC, opMemFill, 0x00)
	return b.i32(heapBase).op(opGlobalSet, 0x00)
}

// emitBody checks the signature's slot and forwards every parameter to
// import fn.
func emitBody(sig trampoline.Signature, fn uint32) body {
	var b body
	switch {
	case sig.Family != event.FamilyNone:
		b = b.guardHandle(nil)
		b = b.slotIndex(func(b body) body { return b.i32(int32(familySlotOffset + sig.Family)) }).
			slotAddr().load().op(opI32Eqz).ifThen().op(opReturn, opEnd)
		// Recognized categories are gated by their flag.
		b = b.get(1).i32(32).op(opI32LtU).ifThen()
		b = b.slotIndex(func(b body) body { return b.get(1) }).
			i32(flagBase).op(opI32Add).load8().op(opI32Eqz).ifThen().op(opReturn, opEnd)
		b = b.op(opEnd)
	case sig.Kind.Global():
		b = b.i32(int32(slotBase + uint32(sig.Kind)*4)).load().op(opI32Eqz).ifThen().op(opReturn, opEnd)
	default:
		b = b.guardHandle(nil)
		// The default action happens whether or not anyone listens.
		if sig.Kind.Cancellable() {
			b = shouldCloseAddr(b).i32(1).store8()
		}
		b = b.slotIndex(func(b body) body { return b.i32(int32(sig.Kind)) }).
			slotAddr().load().op(opI32Eqz).ifThen().op(opReturn, opEnd)
	}
	for i := range sig.Params {
		b = b.get(uint32(i))
	}
	return b.call(fn)
}

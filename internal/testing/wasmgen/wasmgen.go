// Package wasmgen assembles small WASI command modules for tests, so that
// artifacts can be produced without a guest toolchain.
//
// A Program records steps that its exported "_start" runs in order. Every
// program imports the same wasi_snapshot_preview1 functions and exports one
// page of memory.
package wasmgen

import (
	"github.com/tetratelabs/wasitest/internal/leb128"
)

// TestDataSection is the custom section the harness reads expectations from.
const TestDataSection = ".test.data"

const wasiModule = "wasi_snapshot_preview1"

// Function index space: imports first, then _start.
const (
	funcFdWrite uint32 = iota
	funcFdRead
	funcProcExit
	funcArgsSizesGet
	funcArgsGet
	funcEnvironSizesGet
	funcEnvironGet
	funcFdPrestatGet
	funcFdPrestatDirName
	funcFdReaddir
	funcStart
)

const (
	i32 = 0x7f
	i64 = 0x7e

	typeFdWrite     = 0 // (i32, i32, i32, i32) -> i32
	typeProcExit    = 1 // (i32) -> ()
	typeTwoParams   = 2 // (i32, i32) -> i32
	typeThreeParams = 3 // (i32, i32, i32) -> i32
	typeStart       = 4 // () -> ()
	typeFdReaddir   = 5 // (i32, i32, i32, i64, i32) -> i32
)

var functionTypes = [][]byte{
	typeFdWrite:     {0x60, 4, i32, i32, i32, i32, 1, i32},
	typeProcExit:    {0x60, 1, i32, 0},
	typeTwoParams:   {0x60, 2, i32, i32, 1, i32},
	typeThreeParams: {0x60, 3, i32, i32, i32, 1, i32},
	typeStart:       {0x60, 0, 0},
	typeFdReaddir:   {0x60, 5, i32, i32, i32, i64, i32, 1, i32},
}

var imports = []struct {
	name    string
	typeIdx byte
}{
	funcFdWrite:          {"fd_write", typeFdWrite},
	funcFdRead:           {"fd_read", typeFdWrite},
	funcProcExit:         {"proc_exit", typeProcExit},
	funcArgsSizesGet:     {"args_sizes_get", typeTwoParams},
	funcArgsGet:          {"args_get", typeTwoParams},
	funcEnvironSizesGet:  {"environ_sizes_get", typeTwoParams},
	funcEnvironGet:       {"environ_get", typeTwoParams},
	funcFdPrestatGet:     {"fd_prestat_get", typeTwoParams},
	funcFdPrestatDirName: {"fd_prestat_dir_name", typeThreeParams},
	funcFdReaddir:        {"fd_readdir", typeFdReaddir},
}

// Memory layout.
const (
	addrIOV     = 0  // iovec: buf, buf_len
	addrN       = 8  // nwritten or nread
	addrSizes   = 16 // count, buffer size
	addrPrestat = 24 // tag, pr_name_len
	addrPtrs    = 256
	addrBuf     = 1024
	bufSize     = 15 * 1024
	addrLiteral = 16 * 1024
)

// Layout of a dirent written by fd_readdir.
const (
	direntSize       = 24 // d_next, d_ino, d_namlen, d_type and padding
	direntNamlenOffs = 16
)

// Opcodes.
const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opBr          = 0x0c
	opBrIf        = 0x0d
	opEnd         = 0x0b
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opI32Load     = 0x28
	opI32Store    = 0x36
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI32GeU      = 0x4f
	opI32Add      = 0x6a

	blockTypeEmpty = 0x40
)

type customSection struct {
	name string
	data []byte
}

type segment struct {
	addr uint32
	init []byte
}

// Program is a WASI command under construction. The zero value is not usable,
// use New.
type Program struct {
	body       []byte
	segments   []segment
	next       uint32
	headCustom []customSection
	tailCustom []customSection
}

// New returns a Program whose _start returns without doing anything.
func New() *Program {
	return &Program{next: addrLiteral}
}

// Write writes s to the file descriptor fd with a single fd_write.
func (p *Program) Write(fd int32, s string) *Program {
	p.writeLiteral(fd, p.literal([]byte(s)), uint32(len(s)))
	return p
}

// Stdout is Write to file descriptor 1.
func (p *Program) Stdout(s string) *Program {
	return p.Write(1, s)
}

// Stderr is Write to file descriptor 2.
func (p *Program) Stderr(s string) *Program {
	return p.Write(2, s)
}

// EchoStdin reads stdin once and writes what it got to stdout.
func (p *Program) EchoStdin() *Program {
	p.store(addrIOV, addrBuf)
	p.store(addrIOV+4, bufSize)
	p.i32Const(0)
	p.i32Const(addrIOV)
	p.i32Const(1)
	p.i32Const(addrN)
	p.call(funcFdRead)
	p.body = append(p.body, opDrop)
	p.copyWord(addrIOV+4, addrN)
	p.fdWrite(1)
	return p
}

// WriteArgs writes the NUL terminated arguments to stdout, as args_get
// returns them.
func (p *Program) WriteArgs() *Program {
	p.writeStrings(funcArgsSizesGet, funcArgsGet)
	return p
}

// WriteEnviron writes the NUL terminated "key=value" environment to stdout,
// as environ_get returns it.
func (p *Program) WriteEnviron() *Program {
	p.writeStrings(funcEnvironSizesGet, funcEnvironGet)
	return p
}

// WritePreopens writes "|" then, for each pre-opened file descriptor from 3
// until fd_prestat_get fails, its name followed by "|".
func (p *Program) WritePreopens() *Program {
	pipe := p.literal([]byte("|"))
	p.writeLiteral(1, pipe, 1)

	// local 0 holds the fd.
	p.i32Const(3)
	p.body = append(p.body, opLocalSet, 0)
	p.body = append(p.body, opBlock, blockTypeEmpty, opLoop, blockTypeEmpty)
	{
		p.body = append(p.body, opLocalGet, 0)
		p.i32Const(addrPrestat)
		p.call(funcFdPrestatGet)
		p.body = append(p.body, opBrIf, 1) // errno != 0: no more preopens

		p.body = append(p.body, opLocalGet, 0)
		p.i32Const(addrBuf)
		p.load(addrPrestat + 4)
		p.call(funcFdPrestatDirName)
		p.body = append(p.body, opDrop)

		p.store(addrIOV, addrBuf)
		p.copyWord(addrIOV+4, addrPrestat+4)
		p.fdWrite(1)
		p.writeLiteral(1, pipe, 1)

		p.body = append(p.body, opLocalGet, 0)
		p.i32Const(1)
		p.body = append(p.body, opI32Add, opLocalSet, 0)
		p.body = append(p.body, opBr, 0)
	}
	p.body = append(p.body, opEnd, opEnd)
	return p
}

// ReadDir reads the directory open as fd with a single fd_readdir, then
// writes "|" and each entry name followed by "|" to stdout.
func (p *Program) ReadDir(fd int32) *Program {
	pipe := p.literal([]byte("|"))

	p.i32Const(fd)
	p.i32Const(addrBuf)
	p.i32Const(bufSize)
	p.body = append(p.body, opI64Const, 0) // cookie
	p.i32Const(addrN)
	p.call(funcFdReaddir)
	p.body = append(p.body, opDrop)

	p.writeLiteral(1, pipe, 1)

	// local 1 is the current dirent, local 2 the end of the entries read.
	p.i32Const(addrBuf)
	p.body = append(p.body, opLocalSet, 1)
	p.i32Const(addrBuf)
	p.load(addrN)
	p.body = append(p.body, opI32Add, opLocalSet, 2)
	p.body = append(p.body, opBlock, blockTypeEmpty, opLoop, blockTypeEmpty)
	{
		p.body = append(p.body, opLocalGet, 1, opLocalGet, 2, opI32GeU, opBrIf, 1)

		// iovec of the name following the dirent header.
		p.i32Const(addrIOV)
		p.body = append(p.body, opLocalGet, 1)
		p.i32Const(direntSize)
		p.body = append(p.body, opI32Add, opI32Store, 0x02, 0x00)
		p.i32Const(addrIOV + 4)
		p.loadNamlen()
		p.body = append(p.body, opI32Store, 0x02, 0x00)
		p.fdWrite(1)
		p.writeLiteral(1, pipe, 1)

		p.body = append(p.body, opLocalGet, 1)
		p.i32Const(direntSize)
		p.body = append(p.body, opI32Add)
		p.loadNamlen()
		p.body = append(p.body, opI32Add, opLocalSet, 1)
		p.body = append(p.body, opBr, 0)
	}
	p.body = append(p.body, opEnd, opEnd)
	return p
}

// loadNamlen pushes d_namlen of the dirent at local 1. Dirents are not
// aligned.
func (p *Program) loadNamlen() {
	p.body = append(p.body, opLocalGet, 1, opI32Load, 0x00, direntNamlenOffs)
}

// Exit calls proc_exit with code.
func (p *Program) Exit(code uint32) *Program {
	p.i32Const(int32(code))
	p.call(funcProcExit)
	return p
}

// Spin loops forever.
func (p *Program) Spin() *Program {
	p.body = append(p.body, opLoop, blockTypeEmpty, opBr, 0, opEnd)
	return p
}

// Trap executes the unreachable instruction.
func (p *Program) Trap() *Program {
	p.body = append(p.body, opUnreachable)
	return p
}

// CustomSection adds a custom section after all other sections.
func (p *Program) CustomSection(name string, data []byte) *Program {
	p.tailCustom = append(p.tailCustom, customSection{name, data})
	return p
}

// LeadingCustomSection adds a custom section directly after the header.
func (p *Program) LeadingCustomSection(name string, data []byte) *Program {
	p.headCustom = append(p.headCustom, customSection{name, data})
	return p
}

// TestData adds doc as the TestDataSection.
func (p *Program) TestData(doc string) *Program {
	return p.CustomSection(TestDataSection, []byte(doc))
}

// Build returns the module in WebAssembly 1.0 (20191205) Binary Format.
func (p *Program) Build() []byte {
	bin := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, c := range p.headCustom {
		bin = append(bin, encodeCustomSection(c)...)
	}

	bin = append(bin, encodeSection(1, encodeVector(functionTypes))...)

	var importEntries [][]byte
	for _, i := range imports {
		entry := append(encodeName(wasiModule), encodeName(i.name)...)
		importEntries = append(importEntries, append(entry, 0x00, i.typeIdx))
	}
	bin = append(bin, encodeSection(2, encodeVector(importEntries))...)

	bin = append(bin, encodeSection(3, encodeVector([][]byte{{typeStart}}))...)

	// One memory with a minimum of one page and no maximum.
	bin = append(bin, encodeSection(5, encodeVector([][]byte{{0x00, 0x01}}))...)

	exports := [][]byte{
		append(encodeName("memory"), 0x02, 0x00),
		append(encodeName("_start"), append([]byte{0x00}, leb128.EncodeUint32(funcStart)...)...),
	}
	bin = append(bin, encodeSection(7, encodeVector(exports))...)

	// Three i32 locals, used by the loops of WritePreopens and ReadDir.
	code := append([]byte{0x01, 0x03, i32}, p.body...)
	code = append(code, opEnd)
	code = append(leb128.EncodeUint32(uint32(len(code))), code...)
	bin = append(bin, encodeSection(10, encodeVector([][]byte{code}))...)

	if len(p.segments) > 0 {
		var segments [][]byte
		for _, s := range p.segments {
			seg := append([]byte{0x00, opI32Const}, leb128.EncodeInt32(int32(s.addr))...)
			seg = append(seg, opEnd)
			seg = append(seg, leb128.EncodeUint32(uint32(len(s.init)))...)
			segments = append(segments, append(seg, s.init...))
		}
		bin = append(bin, encodeSection(11, encodeVector(segments))...)
	}

	for _, c := range p.tailCustom {
		bin = append(bin, encodeCustomSection(c)...)
	}
	return bin
}

// literal places b in the data section and returns its address.
func (p *Program) literal(b []byte) uint32 {
	addr := p.next
	if len(b) > 0 {
		p.segments = append(p.segments, segment{addr: addr, init: b})
		p.next += uint32(len(b))
	}
	return addr
}

func (p *Program) writeLiteral(fd int32, addr, size uint32) {
	p.store(addrIOV, int32(addr))
	p.store(addrIOV+4, int32(size))
	p.fdWrite(fd)
}

func (p *Program) writeStrings(sizesGet, get uint32) {
	p.i32Const(addrSizes)
	p.i32Const(addrSizes + 4)
	p.call(sizesGet)
	p.body = append(p.body, opDrop)

	p.i32Const(addrPtrs)
	p.i32Const(addrBuf)
	p.call(get)
	p.body = append(p.body, opDrop)

	p.store(addrIOV, addrBuf)
	p.copyWord(addrIOV+4, addrSizes+4)
	p.fdWrite(1)
}

// fdWrite writes the iovec at addrIOV to fd, ignoring the errno.
func (p *Program) fdWrite(fd int32) {
	p.i32Const(fd)
	p.i32Const(addrIOV)
	p.i32Const(1)
	p.i32Const(addrN)
	p.call(funcFdWrite)
	p.body = append(p.body, opDrop)
}

func (p *Program) i32Const(v int32) {
	p.body = append(p.body, opI32Const)
	p.body = append(p.body, leb128.EncodeInt32(v)...)
}

func (p *Program) call(funcIdx uint32) {
	p.body = append(p.body, opCall)
	p.body = append(p.body, leb128.EncodeUint32(funcIdx)...)
}

// store writes the constant value to memory at addr.
func (p *Program) store(addr, value int32) {
	p.i32Const(addr)
	p.i32Const(value)
	p.body = append(p.body, opI32Store, 0x02, 0x00)
}

// load pushes the i32 in memory at addr.
func (p *Program) load(addr int32) {
	p.i32Const(addr)
	p.body = append(p.body, opI32Load, 0x02, 0x00)
}

// copyWord copies the i32 at src to dst.
func (p *Program) copyWord(dst, src int32) {
	p.i32Const(dst)
	p.load(src)
	p.body = append(p.body, opI32Store, 0x02, 0x00)
}

func encodeSection(id byte, contents []byte) []byte {
	return append([]byte{id}, encodeSizePrefixed(contents)...)
}

func encodeCustomSection(c customSection) []byte {
	return encodeSection(0, append(encodeName(c.name), c.data...))
}

func encodeVector(items [][]byte) []byte {
	ret := leb128.EncodeUint32(uint32(len(items)))
	for _, item := range items {
		ret = append(ret, item...)
	}
	return ret
}

func encodeName(name string) []byte {
	return encodeSizePrefixed([]byte(name))
}

// encodeSizePrefixed encodes the data prefixed by their size.
func encodeSizePrefixed(data []byte) []byte {
	size := leb128.EncodeUint32(uint32(len(data)))
	return append(size, data...)
}

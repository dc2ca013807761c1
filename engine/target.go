package engine

// Bus gives word-level access to the target's physical address space.
// hwio.Table implements it; a native backend would map device memory
// instead.
type Bus interface {
	Read8(addr uint32) uint8
	Read16(addr uint32) uint16
	Read32(addr uint32) uint32
	Write32(addr uint32, val uint32)
}

// CPReg names the coprocessor registers the engine touches. The set is
// the XScale debug/performance unit plus the few CP15 registers needed
// for address translation and family detection.
type CPReg int

const (
	CpMainID CPReg = iota // CP15 c0, ID register
	CpPID                 // CP15 c13, process id (MVA translation)
	CpFSR                 // CP15 c5, fault status
	CpCCNT                // CP14 performance counter
	CpEVTSEL              // CP14 event select
	CpINTEN               // CP14 interrupt enable
	CpPMNC                // CP14 performance monitor control
	CpDBCON               // CP15 c14, data-watch control
	CpDBR0                // CP15 c14, data-watch address
	CpDBR1                // CP15 c14, data-watch address/mask
	CpDCSR                // CP14 debug control and status
	CpIBCR0               // CP15 c14, instruction breakpoint 0
	CpIBCR1               // CP15 c14, instruction breakpoint 1
)

// CPU exposes the interrupted processor state to exception-context code.
type CPU interface {
	ReadCP(reg CPReg) uint32
	WriteCP(reg CPReg, val uint32)

	// SPSR of the exception mode the handler was entered in.
	SPSR() uint32

	// BankedRegs returns r13/r14 of the given processor mode. The
	// implementation must switch modes with interrupts disabled and
	// restore the original mode before returning.
	BankedRegs(mode uint32) (r13, r14 uint32)
}

// Block is a physically-contiguous, executable-mapped allocation holding
// the per-vector stacks, the relocated handler code and the shared data
// area. Base is already translated for pre-paging access.
type Block struct {
	Base uint32
	Size int
}

// Handlers are the core exception handlers the installed wrappers invoke.
// The boolean result of the abort/prefetch handlers selects chaining: a
// false return routes the exception to the original OS handler.
type Handlers struct {
	IRQ      func(regs *ExcRegs)
	Abort    func(regs *ExcRegs) bool
	Prefetch func(regs *ExcRegs) bool
}

// WrapperAddrs are the entry points of the relocated wrapper code, one
// per vector, valid as exception vector targets.
type WrapperAddrs struct {
	IRQ      uint32
	Abort    uint32
	Prefetch uint32
}

// Target is the platform adapter: everything the engine needs from a
// concrete machine backend. The vector-patching wrapper mechanics
// (capture registers on entry, invoke the core handler, conditionally
// chain to the previous handler) live behind InstallWrappers.
type Target interface {
	Bus() Bus
	CPU() CPU

	// CanAlloc reports whether the target exposes physically-contiguous
	// executable allocation. The watch feature does not register at all
	// without it.
	CanAlloc() bool
	AllocContiguous(size int) (*Block, error)
	FreeContiguous(blk *Block)

	// MapPhys returns a bus address through which the given physical
	// address can be read and written.
	MapPhys(addr uint32) uint32

	// VectorTableBase returns the mapped address of the exception
	// vector table with full read/write access.
	VectorTableBase() uint32

	// InstallWrappers relocates the wrapper code into blk and binds it
	// to the given handlers. Every address the wrapper code touches is
	// translated through the target's pre-paging scheme.
	InstallWrappers(blk *Block, h Handlers) (WrapperAddrs, error)

	// ExclusiveControl runs fn with exception delivery excluded
	// (interrupts masked). This is the only true critical section.
	ExclusiveControl(fn func())

	FlushICache()
}

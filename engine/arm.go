package engine

// ARM encodings the engine recognizes.
const (
	// ldr pc, [pc, #imm] - the only vector target encoding we know how
	// to chain.
	ldrPCMask uint32 = 0xfffff000
	ldrPCSet  uint32 = 0xe59ff000

	singleDataTransferMask uint32 = 0x0c000000
	singleDataTransferSet  uint32 = 0x04000000
	halfwordTransferMask   uint32 = 0x0e000000
	halfwordTransferSet    uint32 = 0x00000000

	loadBit uint32 = 1 << 20
	byteBit uint32 = 1 << 22
)

func maskRn(insn uint32) uint32 { return (insn >> 16) & 0xf }
func maskRd(insn uint32) uint32 { return (insn >> 12) & 0xf }

// InsnName returns an assembler mnemonic for a memory-access
// instruction. Best effort: unrecognized encodings report "?".
func InsnName(insn uint32) string {
	isLoad := insn&loadBit != 0
	switch {
	case insn&singleDataTransferMask == singleDataTransferSet:
		if isLoad {
			if insn&byteBit != 0 {
				return "ldrb"
			}
			return "ldr"
		}
		if insn&byteBit != 0 {
			return "strb"
		}
		return "str"

	case insn&halfwordTransferMask == halfwordTransferSet:
		lowbyte := insn & 0xf0
		if isLoad {
			switch lowbyte {
			case 0xb0:
				return "ldrh"
			case 0xd0:
				return "ldrsb"
			case 0xf0:
				return "ldrsh"
			}
		} else {
			switch lowbyte {
			case 0xb0:
				return "strh"
			case 0x90:
				return "swp?"
			}
		}
	}
	return "?"
}

// TransPC returns the Modified Virtual Address of a given PC. Addresses
// in the low 32MB slot belong to the current process and must be
// combined with the process id before the handler can dereference them.
func TransPC(cpu CPU, pc uint32) uint32 {
	if pc <= 0x01ffffff {
		pc |= cpu.ReadCP(CpPID) & 0xfe000000
	}
	return pc
}

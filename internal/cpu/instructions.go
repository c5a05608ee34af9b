package cpu

// Opcode values (top 4 bits of byte 1).
const (
	opNOP  uint8 = 0x0
	opLD   uint8 = 0x1
	opST   uint8 = 0x2
	opMOV  uint8 = 0x3
	opADD  uint8 = 0x4
	opSUB  uint8 = 0x5
	opAND  uint8 = 0x6
	opOR   uint8 = 0x7
	opXOR  uint8 = 0x8
	opSHL  uint8 = 0x9
	opSHR  uint8 = 0xA
	opCMP  uint8 = 0xB
	opJMP  uint8 = 0xC
	opBR   uint8 = 0xD
	opCALL uint8 = 0xE
	opEXT  uint8 = 0xF
)

// Addressing modes (bits 3-1 of byte 1). ALU-family opcodes (MOV
// through CMP) only ever use modeImmediate or modeRegister; LD/ST/JMP/
// CALL only ever use modeAbsolute, modeZeroPage, modeZeroPageIndexed,
// or modeRegisterPair. This split is what makes the per-mode cycle
// cost table below well-defined.
const (
	modeImmediate       uint8 = 0
	modeRegister        uint8 = 1
	modeAbsolute        uint8 = 2
	modeZeroPage        uint8 = 3
	modeZeroPageIndexed uint8 = 4
	modeRegisterPair    uint8 = 5
)

// EXT sub-opcodes: the full byte 2 value, low nibble significant.
const (
	extRET  uint8 = 0x0
	extRTI  uint8 = 0x1
	extPUSH uint8 = 0x2
	extPOP  uint8 = 0x3
	extINC  uint8 = 0x4
	extDEC  uint8 = 0x5
	extROL  uint8 = 0x6
	extROR  uint8 = 0x7
	extSEI  uint8 = 0x8
	extCLI  uint8 = 0x9
	extNOP  uint8 = 0xA
)

// BR condition codes, packed into byte 2's dest field.
const (
	brZ  uint8 = 0x0
	brNZ uint8 = 0x1
	brC  uint8 = 0x2
	brNC uint8 = 0x3
	brN  uint8 = 0x4
	brNN uint8 = 0x5
	brV  uint8 = 0x6
	brNV uint8 = 0x7
)

// destSrc unpacks a generic byte 2 (dest<<5 | src<<2 | reserved) into
// its 3-bit register fields.
func destSrc(b2 uint8) (dest, src uint8) {
	return (b2 >> 5) & 0x7, (b2 >> 2) & 0x7
}

// regPairAddr implements mode 5 (register-pair): addr = (R[src]<<8) |
// R[(src+1)&7].
func (c *CPU) regPairAddr(src uint8) uint16 {
	hi := c.reg(src)
	lo := c.reg((src + 1) & 0x7)
	return uint16(hi)<<8 | uint16(lo)
}

// execute dispatches one decoded instruction. startPC is the address
// of the opcode byte (for error reporting); opcode/mode come from the
// already-consumed byte 1.
func (c *CPU) execute(startPC uint16, opcode, mode uint8) error {
	switch opcode {
	case opNOP:
		c.State.Cycles++
		return nil
	case opLD:
		return c.executeLD(startPC, mode)
	case opST:
		return c.executeST(startPC, mode)
	case opMOV, opADD, opSUB, opAND, opOR, opXOR, opSHL, opSHR, opCMP:
		return c.executeALU2(startPC, opcode, mode)
	case opJMP:
		return c.executeJMP(startPC, mode)
	case opBR:
		return c.executeBR(startPC)
	case opCALL:
		return c.executeCALL(startPC, mode)
	case opEXT:
		return c.executeEXT(startPC)
	default:
		return c.illegal(startPC, opcode, mode, "unknown opcode")
	}
}

// executeALU2 handles the two-register-operand family: MOV, ADD, SUB,
// AND, OR, XOR, SHL, SHR, CMP. Byte 2 packs dest and src as 3-bit
// register indices; mode selects whether the "b" operand (or, for
// SHL/SHR, the shift count) comes from R[src] or a following immediate
// byte.
func (c *CPU) executeALU2(startPC uint16, opcode, mode uint8) error {
	b2 := c.fetch8()
	dest, srcField := destSrc(b2)

	var b uint8
	switch mode {
	case modeRegister:
		b = c.reg(srcField)
	case modeImmediate:
		b = c.fetch8()
	default:
		return c.illegal(startPC, opcode, mode, "ALU opcode requires immediate or register mode")
	}

	if opcode == opMOV {
		c.setReg(dest, b)
		c.updateZN(b)
		c.State.Cycles++
		return nil
	}

	a := c.reg(dest)
	var r uint8
	switch opcode {
	case opADD:
		sum := uint16(a) + uint16(b)
		r = uint8(sum)
		c.setFlag(FlagC, sum > 0xFF)
		c.setFlag(FlagV, (a^r)&(b^r)&0x80 != 0)
		c.setReg(dest, r)
		c.updateZN(r)
	case opSUB, opCMP:
		diff := int16(a) - int16(b)
		r = uint8(diff)
		c.setFlag(FlagC, diff >= 0)
		c.setFlag(FlagV, (a^b)&(a^r)&0x80 != 0)
		c.updateZN(r)
		if opcode == opSUB {
			c.setReg(dest, r)
		}
	case opAND:
		r = a & b
		c.setReg(dest, r)
		c.updateZN(r)
	case opOR:
		r = a | b
		c.setReg(dest, r)
		c.updateZN(r)
	case opXOR:
		r = a ^ b
		c.setReg(dest, r)
		c.updateZN(r)
	case opSHL:
		v := a
		for i := uint8(0); i < b; i++ {
			c.setFlag(FlagC, v&0x80 != 0)
			v <<= 1
		}
		c.setReg(dest, v)
		c.updateZN(v)
	case opSHR:
		v := a
		for i := uint8(0); i < b; i++ {
			c.setFlag(FlagC, v&0x01 != 0)
			v >>= 1
		}
		c.setReg(dest, v)
		c.updateZN(v)
	}

	if mode == modeRegister {
		c.State.Cycles++
	} else {
		c.State.Cycles += 2
	}
	return nil
}

// operandAddr resolves the memory address for LD/ST given mode and
// byte 2's dest/src fields. dest names the register being loaded or
// stored; src names the index register for zp-indexed and
// register-pair modes.
func (c *CPU) operandAddr(startPC uint16, opcode, mode, src uint8) (uint16, error) {
	switch mode {
	case modeAbsolute:
		// Instruction-stream literal, little-endian: low byte first.
		lo := c.fetch8()
		hi := c.fetch8()
		return uint16(hi)<<8 | uint16(lo), nil
	case modeZeroPage:
		zp := c.fetch8()
		return c.Mem.Read16(uint16(zp)), nil
	case modeZeroPageIndexed:
		zp := c.fetch8()
		return c.Mem.Read16(uint16(zp)) + uint16(c.reg(src)), nil
	case modeRegisterPair:
		return c.regPairAddr(src), nil
	default:
		return 0, c.illegal(startPC, opcode, mode, "memory opcode requires an address mode")
	}
}

func (c *CPU) executeLD(startPC uint16, mode uint8) error {
	b2 := c.fetch8()
	dest, src := destSrc(b2)
	addr, err := c.operandAddr(startPC, opLD, mode, src)
	if err != nil {
		return err
	}
	v := c.Mem.Read8(addr)
	c.setReg(dest, v)
	c.updateZN(v)
	c.State.Cycles += addrModeCost(mode)
	return nil
}

func (c *CPU) executeST(startPC uint16, mode uint8) error {
	b2 := c.fetch8()
	dest, src := destSrc(b2)
	addr, err := c.operandAddr(startPC, opST, mode, src)
	if err != nil {
		return err
	}
	c.Mem.Write8(addr, c.reg(dest))
	c.State.Cycles += addrModeCost(mode)
	return nil
}

// addrModeCost is the per-mode LD/ST cycle table.
func addrModeCost(mode uint8) uint64 {
	switch mode {
	case modeAbsolute:
		return 3
	case modeZeroPage, modeZeroPageIndexed, modeRegisterPair:
		return 2
	default:
		return 2
	}
}

func (c *CPU) executeJMP(startPC uint16, mode uint8) error {
	b2 := c.fetch8()
	_, src := destSrc(b2)
	addr, err := c.operandAddr(startPC, opJMP, mode, src)
	if err != nil {
		return err
	}
	c.State.PC = addr
	c.State.Cycles += 2
	return nil
}

// executeBR reads byte 2's dest field as the condition code and a
// following signed 8-bit displacement, applied to the PC only after
// the whole instruction has been fetched.
func (c *CPU) executeBR(startPC uint16) error {
	b2 := c.fetch8()
	cond, _ := destSrc(b2)
	disp := int8(c.fetch8())

	var taken bool
	switch cond {
	case brZ:
		taken = c.getFlag(FlagZ)
	case brNZ:
		taken = !c.getFlag(FlagZ)
	case brC:
		taken = c.getFlag(FlagC)
	case brNC:
		taken = !c.getFlag(FlagC)
	case brN:
		taken = c.getFlag(FlagN)
	case brNN:
		taken = !c.getFlag(FlagN)
	case brV:
		taken = c.getFlag(FlagV)
	case brNV:
		taken = !c.getFlag(FlagV)
	default:
		return c.illegal(startPC, opBR, cond, "unknown branch condition")
	}
	if taken {
		c.State.PC = uint16(int32(c.State.PC) + int32(disp))
		c.State.Cycles += 2
	} else {
		c.State.Cycles++
	}
	return nil
}

func (c *CPU) executeCALL(startPC uint16, mode uint8) error {
	b2 := c.fetch8()
	_, src := destSrc(b2)
	addr, err := c.operandAddr(startPC, opCALL, mode, src)
	if err != nil {
		return err
	}
	ret := c.State.PC
	c.push(uint8(ret >> 8))
	c.push(uint8(ret))
	c.State.PC = addr
	c.State.Cycles += 4
	return nil
}

// executeEXT handles the zero-operand (or single-register-operand)
// extended opcode family: the low nibble of byte 2 selects the
// sub-opcode (the high nibble is ignored). PUSH, POP,
// INC, DEC, ROL, and ROR consume a third byte whose top 3 bits name
// the register.
func (c *CPU) executeEXT(startPC uint16) error {
	sub := c.fetch8() & 0xF
	switch sub {
	case extRET:
		lo := c.pop()
		hi := c.pop()
		c.State.PC = uint16(hi)<<8 | uint16(lo)
		c.State.Cycles += 3
		return nil
	case extRTI:
		lo := c.pop()
		hi := c.pop()
		c.State.PC = uint16(hi)<<8 | uint16(lo)
		c.State.Status = c.pop()
		c.State.Cycles += 3
		return nil
	case extPUSH:
		r := c.fetch8() >> 5
		c.push(c.reg(r))
		c.State.Cycles += 2
		return nil
	case extPOP:
		r := c.fetch8() >> 5
		v := c.pop()
		c.setReg(r, v)
		c.updateZN(v)
		c.State.Cycles += 2
		return nil
	case extINC:
		r := c.fetch8() >> 5
		v := c.reg(r) + 1
		c.setReg(r, v)
		c.updateZN(v)
		c.State.Cycles += 2
		return nil
	case extDEC:
		r := c.fetch8() >> 5
		v := c.reg(r) - 1
		c.setReg(r, v)
		c.updateZN(v)
		c.State.Cycles += 2
		return nil
	case extROL:
		r := c.fetch8() >> 5
		v := c.reg(r)
		carryIn := uint8(0)
		if c.getFlag(FlagC) {
			carryIn = 1
		}
		c.setFlag(FlagC, v&0x80 != 0)
		v = v<<1 | carryIn
		c.setReg(r, v)
		c.updateZN(v)
		c.State.Cycles += 2
		return nil
	case extROR:
		r := c.fetch8() >> 5
		v := c.reg(r)
		carryIn := uint8(0)
		if c.getFlag(FlagC) {
			carryIn = 0x80
		}
		c.setFlag(FlagC, v&0x01 != 0)
		v = v>>1 | carryIn
		c.setReg(r, v)
		c.updateZN(v)
		c.State.Cycles += 2
		return nil
	case extSEI:
		c.setFlag(FlagI, true)
		c.State.Cycles++
		return nil
	case extCLI:
		c.setFlag(FlagI, false)
		c.State.Cycles++
		return nil
	case extNOP:
		c.State.Cycles++
		return nil
	default:
		return c.illegal(startPC, opEXT, sub, "unknown extended sub-opcode")
	}
}

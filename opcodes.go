// opcodes.go - the 72-opcode dispatch table
//
// Grounded on cpu_ie32.go's opcode constant block and (fn, n_args,
// default_args) dispatch-table shape; generalised from cpu_ie32's ~30
// fixed-register opcodes to spec.md §4.3's 72-opcode set operating over
// tagged Operand values.

package main

const (
	OpMOV = iota

	OpADD
	OpADDNF
	OpSUB
	OpSUBNF
	OpMUL
	OpMULNF
	OpMULS
	OpMULSNF
	OpDIV
	OpDIVNF
	OpDIVS
	OpDIVSNF

	OpAND
	OpANDNF
	OpOR
	OpORNF
	OpXOR
	OpXORNF
	OpNOT
	OpNOTNF

	OpSHL
	OpSHLNF
	OpSAL
	OpSALNF
	OpSHR
	OpSHRNF
	OpSAR
	OpSARNF

	OpPUSH
	OpPOP
	OpPUSHN
	OpPOPN
	OpPOPR
	OpPOPNR

	OpJMP
	OpCMP
	OpCMPS
	OpJL
	OpJG
	OpJE
	OpJLE
	OpJGE
	OpJNE
	OpCALL
	OpRET
	OpNOP
	OpHLT
	OpINFL
	OpEIR

	OpML
	OpMG
	OpME
	OpMLE
	OpMGE
	OpMNE

	OpARGN
	OpVARN
	OpOFFSG

	OpSYS
	OpINT
	OpLIB

	OpADDF
	OpSUBF
	OpMULF
	OpDIVF
	OpPOWF
	OpCMPF
	OpITF
	OpSITF
	OpFTI
	OpFTSI

	NumOpcodes
)

// opcodeHandler executes one decoded instruction given its resolved
// operands, returning the kernel-visible step outcome.
type opcodeHandler func(ctx *execContext, args []Operand) (StepOutcome, Result)

type opcodeInfo struct {
	name    string
	nArgs   int
	handler opcodeHandler
}

var opcodeTable [NumOpcodes]opcodeInfo

func reg(op int, name string, nargs int, fn opcodeHandler) {
	opcodeTable[op] = opcodeInfo{name: name, nArgs: nargs, handler: fn}
}

func init() {
	reg(OpMOV, "MOV", 2, execMov)

	reg(OpADD, "ADD", 2, binArith(true, aluAdd2))
	reg(OpADDNF, "ADDNF", 2, binArith(false, aluAdd2))
	reg(OpSUB, "SUB", 2, binArith(true, aluSub2))
	reg(OpSUBNF, "SUBNF", 2, binArith(false, aluSub2))
	reg(OpMUL, "MUL", 2, binArith(true, aluMul2))
	reg(OpMULNF, "MULNF", 2, binArith(false, aluMul2))
	reg(OpMULS, "MULS", 2, binArith(true, aluMulSigned2))
	reg(OpMULSNF, "MULSNF", 2, binArith(false, aluMulSigned2))
	reg(OpDIV, "DIV", 4, execDiv(false))
	reg(OpDIVNF, "DIVNF", 4, execDivNF(false))
	reg(OpDIVS, "DIVS", 4, execDiv(true))
	reg(OpDIVSNF, "DIVSNF", 4, execDivNF(true))

	reg(OpAND, "AND", 2, binArith(true, aluAnd2))
	reg(OpANDNF, "ANDNF", 2, binArith(false, aluAnd2))
	reg(OpOR, "OR", 2, binArith(true, aluOr2))
	reg(OpORNF, "ORNF", 2, binArith(false, aluOr2))
	reg(OpXOR, "XOR", 2, binArith(true, aluXor2))
	reg(OpXORNF, "XORNF", 2, binArith(false, aluXor2))
	reg(OpNOT, "NOT", 2, unArith(true, func(a []byte) aluResult { return aluNot(a) }))
	reg(OpNOTNF, "NOTNF", 2, unArith(false, func(a []byte) aluResult { return aluNot(a) }))

	reg(OpSHL, "SHL", 2, shiftOp(true, aluShl))
	reg(OpSHLNF, "SHLNF", 2, shiftOp(false, aluShl))
	reg(OpSAL, "SAL", 2, shiftOp(true, aluShl))
	reg(OpSALNF, "SALNF", 2, shiftOp(false, aluShl))
	reg(OpSHR, "SHR", 2, shiftOp(true, aluShr))
	reg(OpSHRNF, "SHRNF", 2, shiftOp(false, aluShr))
	reg(OpSAR, "SAR", 2, shiftOp(true, aluSar))
	reg(OpSARNF, "SARNF", 2, shiftOp(false, aluSar))

	reg(OpPUSH, "PUSH", 1, execPush)
	reg(OpPOP, "POP", 1, execPop)
	reg(OpPUSHN, "PUSHN", 1, execPushn)
	reg(OpPOPN, "POPN", 2, execPopn)
	reg(OpPOPR, "POPR", 0, execPopr)
	reg(OpPOPNR, "POPNR", 1, execPopnr)

	reg(OpJMP, "JMP", 1, execJmp)
	reg(OpCMP, "CMP", 2, execCmp(false))
	reg(OpCMPS, "CMPS", 2, execCmp(true))
	reg(OpJL, "JL", 1, condJump(FlagLT))
	reg(OpJG, "JG", 1, condJump(FlagGT))
	reg(OpJE, "JE", 1, condJump(FlagEQ))
	reg(OpJLE, "JLE", 1, condJumpOr(FlagLT, FlagEQ))
	reg(OpJGE, "JGE", 1, condJumpOr(FlagGT, FlagEQ))
	reg(OpJNE, "JNE", 1, condJumpNot(FlagEQ))
	reg(OpCALL, "CALL", 1, execCall)
	reg(OpRET, "RET", 0, execRet)
	reg(OpNOP, "NOP", 0, execNop)
	reg(OpHLT, "HLT", 1, execHlt)
	reg(OpINFL, "INFL", 0, execInfl)
	reg(OpEIR, "EIR", 0, execEir)

	reg(OpML, "ML", 2, condMove(FlagLT))
	reg(OpMG, "MG", 2, condMove(FlagGT))
	reg(OpME, "ME", 2, condMove(FlagEQ))
	reg(OpMLE, "MLE", 2, condMoveOr(FlagLT, FlagEQ))
	reg(OpMGE, "MGE", 2, condMoveOr(FlagGT, FlagEQ))
	reg(OpMNE, "MNE", 2, condMoveNot(FlagEQ))

	reg(OpARGN, "ARGN", 2, execArgn)
	reg(OpVARN, "VARN", 2, execVarn)
	reg(OpOFFSG, "OFFSG", 3, execOffsg)

	reg(OpSYS, "SYS", 0, execSys)
	reg(OpINT, "INT", 1, execInt)
	reg(OpLIB, "LIB", 2, execLib)

	reg(OpADDF, "ADDF", 2, binFloat(fpuAdd))
	reg(OpSUBF, "SUBF", 2, binFloat(fpuSub))
	reg(OpMULF, "MULF", 2, binFloat(fpuMul))
	reg(OpDIVF, "DIVF", 2, execDivf)
	reg(OpPOWF, "POWF", 2, binFloat(fpuPow))
	reg(OpCMPF, "CMPF", 2, execCmpf)
	reg(OpITF, "ITF", 2, convOp(intToFloat))
	reg(OpSITF, "SITF", 2, convOp(sintToFloat))
	reg(OpFTI, "FTI", 2, convOpLen(floatToInt))
	reg(OpFTSI, "FTSI", 2, convOpLen(floatToSint))
}

// Thin per-op adapters over the integer ALU functions, each returning a
// single aluResult, for binArith.
func aluAdd2(a, b []byte) aluResult        { return aluAdd(a, b) }
func aluSub2(a, b []byte) aluResult        { return aluSub(a, b) }
func aluMul2(a, b []byte) aluResult        { return aluMul(a, b) }
func aluMulSigned2(a, b []byte) aluResult  { return aluMulSigned(a, b) }
func aluAnd2(a, b []byte) aluResult        { return aluAnd(a, b) }
func aluOr2(a, b []byte) aluResult         { return aluOr(a, b) }
func aluXor2(a, b []byte) aluResult        { return aluXor(a, b) }

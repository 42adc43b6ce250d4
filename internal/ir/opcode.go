// Package ir implements the stack-machine instruction set (spec component C2)
// produced by the lowerer and executed by the VM.
//
// The teacher's internal/bytecode package shaped this file: a flat OpCode
// enum plus a Chunk of bytes. Here each Instruction carries its operand
// inline (an Op struct) instead of a raw byte stream, since the VM
// interprets a typed instruction slice rather than decoding bytes — the
// spec's opcodes already carry typed payloads (Const(Value), Jump(i32), ...)
// and encoding them back down to bytes would just be re-decoded on the next
// line for no reader's benefit.
package ir

import "vela/internal/value"

type OpCode int

const (
	// Stack / locals
	OpConst OpCode = iota
	OpPop
	OpDup
	OpLoad
	OpLoadLocal
	OpStore
	OpStoreLocal

	// Arithmetic / comparison / logical
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpEq
	OpNeq
	OpLt
	OpGt
	OpLte
	OpGte
	OpAnd
	OpOr
	OpNot

	// Container
	OpLen
	OpIndex
	OpGetField
	OpMakeArray
	OpMakeSet
	OpMakeStruct
	OpSlice
	OpRange
	OpContains
	OpConcat

	// Higher-order
	OpMap
	OpFilter
	OpReduce

	// Peephole-optimized
	OpMapMulConst
	OpMapAddConst
	OpMapSubConst
	OpMapDivConst
	OpFilterGtConst
	OpFilterLtConst
	OpFilterGteConst
	OpFilterLteConst
	OpFilterEqConst
	OpFilterNeqConst
	OpFilterEven
	OpFilterOdd

	// Calls
	OpCall
	OpCallBuiltin
	OpCallFfi
	OpSelfCall
	OpTailSelfCall

	// Closures
	OpMakeClosure
	OpCallClosure

	// Control
	OpJump
	OpJumpIf
	OpJumpIfNot
	OpReturn
	OpNop
	OpHalt

	// Exceptions
	OpSetCatch
	OpClearCatch
	OpError
	OpTry
	OpCoalesce

	// Concurrency
	OpAwait
	OpSpawn
	OpSend
	OpRecv
	OpParallelMap
	OpParallelFilter
	OpParallelReduce
)

var names = map[OpCode]string{
	OpConst: "Const", OpPop: "Pop", OpDup: "Dup", OpLoad: "Load",
	OpLoadLocal: "LoadLocal", OpStore: "Store", OpStoreLocal: "StoreLocal",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod",
	OpNeg: "Neg", OpEq: "Eq", OpNeq: "Neq", OpLt: "Lt", OpGt: "Gt",
	OpLte: "Lte", OpGte: "Gte", OpAnd: "And", OpOr: "Or", OpNot: "Not",
	OpLen: "Len", OpIndex: "Index", OpGetField: "GetField",
	OpMakeArray: "MakeArray", OpMakeSet: "MakeSet", OpMakeStruct: "MakeStruct",
	OpSlice: "Slice", OpRange: "Range", OpContains: "Contains", OpConcat: "Concat",
	OpMap: "Map", OpFilter: "Filter", OpReduce: "Reduce",
	OpMapMulConst: "MapMulConst", OpMapAddConst: "MapAddConst",
	OpMapSubConst: "MapSubConst", OpMapDivConst: "MapDivConst",
	OpFilterGtConst: "FilterGtConst", OpFilterLtConst: "FilterLtConst",
	OpFilterGteConst: "FilterGteConst", OpFilterLteConst: "FilterLteConst",
	OpFilterEqConst: "FilterEqConst", OpFilterNeqConst: "FilterNeqConst",
	OpFilterEven: "FilterEven", OpFilterOdd: "FilterOdd",
	OpCall: "Call", OpCallBuiltin: "CallBuiltin", OpCallFfi: "CallFfi",
	OpSelfCall: "SelfCall", OpTailSelfCall: "TailSelfCall",
	OpMakeClosure: "MakeClosure", OpCallClosure: "CallClosure",
	OpJump: "Jump", OpJumpIf: "JumpIf", OpJumpIfNot: "JumpIfNot",
	OpReturn: "Return", OpNop: "Nop", OpHalt: "Halt",
	OpSetCatch: "SetCatch", OpClearCatch: "ClearCatch", OpError: "Error",
	OpTry: "Try", OpCoalesce: "Coalesce",
	OpAwait: "Await", OpSpawn: "Spawn", OpSend: "Send", OpRecv: "Recv",
	OpParallelMap: "ParallelMap", OpParallelFilter: "ParallelFilter",
	OpParallelReduce: "ParallelReduce",
}

func (op OpCode) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return "Unknown"
}

// ReduceKind enumerates the built-in reduction strategies of OpReduce /
// OpParallelReduce; Custom carries a lowered body like Map/Filter do.
type ReduceKind int

const (
	ReduceSum ReduceKind = iota
	ReduceProduct
	ReduceMin
	ReduceMax
	ReduceAll
	ReduceAny
	ReduceCount
	ReduceFirst
	ReduceLast
	ReduceAvg
	ReduceCustom
)

// Span is a source-location tag carried on each Instruction for diagnostics;
// it has no bearing on execution.
type Span struct {
	Start int
	End   int
}

// Instruction is spec §3's record {opcode, source-span}, generalized with
// a typed operand payload per opcode.
type Instruction struct {
	Op   OpCode
	Span Span

	// Operand payload; only the field(s) relevant to Op are populated.
	Const      value.Value
	Name       string // Load/Store/GetField/CallBuiltin name; MakeClosure: enclosing function's name, for nested SelfCall
	Slot       uint16
	Offset     int32 // relative jump offset: target = ip + Offset + 1
	N          int   // arg/element count; peephole Map/FilterXConst's constant operand; MakeClosure's own local_count
	Fields     []string
	ReduceKind ReduceKind
	Body       []Instruction // Map/Filter/Reduce(Custom)/MakeClosure/ParallelX bodies
	Params     []string      // MakeClosure params
	Lib        string        // CallFfi library
	Extern     string        // CallFfi symbol within Lib

	// CaptureSlots pairs with Fields on MakeClosure: Fields[i] is the
	// captured variable's name, CaptureSlots[i] its slot in the creating
	// frame (spec §4.7 "captures the whole current locals map" — the
	// lowerer already knows which outer slots are live free variables from
	// the checker's capture-set analysis, so the instruction carries that
	// resolution instead of the VM re-deriving names from slot numbers).
	CaptureSlots []uint16
}

// CompiledFunction is the IR artifact handed to the VM and, per spec §6b,
// to any backend.
type CompiledFunction struct {
	Name         string
	Params       []string
	Instructions []Instruction
	LocalCount   uint16
}

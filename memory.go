// memory.go - the global partitioned address space
//
// Grounded on original_source/emos/memory.py's Memory class: a name-keyed
// map of partitions (each a MemorySection or a ProcessMemory), addressed as
// one linear space by walking partitions in insertion order and subtracting
// each one's length from the offset until it falls inside a partition. The
// locking discipline (one RWMutex guarding the partition table; spec.md §5
// calls insertion/removal "rare, a single lock suffices") is carried over
// from memory_bus.go's RWMutex-protected bus.

package main

import "sync"

const MaxMemory = 0xFFFFFFFF

// PartitionKind tags what a PartitionName refers to, per the glossary's
// "Partition. A named slot in the global address map, of one of three
// kinds: process, heap, peripheral."
type PartitionKind int

const (
	PartitionProc PartitionKind = iota
	PartitionHeap
	PartitionPerp
)

// PartitionName is a tagged pair identifying one slot in global memory:
// ("proc", pid), ("mem", hid), ("perp", dev_id).
type PartitionName struct {
	Kind PartitionKind
	ID   uint32
}

func ProcName(pid uint32) PartitionName { return PartitionName{PartitionProc, pid} }
func HeapName(hid uint32) PartitionName { return PartitionName{PartitionHeap, hid} }
func PerpName(did uint32) PartitionName { return PartitionName{PartitionPerp, did} }

// Partition is implemented by both MemorySection (heap/peripheral
// partitions) and ProcessMemory (process partitions); len reports what
// counts toward Memory's total size (es for ProcessMemory, size for a
// MemorySection).
type Partition interface {
	partitionLen() uint32
	partitionGetByte(offset uint32) (byte, Result)
	partitionSetByte(offset uint32, b byte) Result
}

func (m *MemorySection) partitionLen() uint32 { return uint32(m.Size()) }

func (m *MemorySection) partitionGetByte(offset uint32) (byte, Result) {
	b, r := m.GetBytes(int(offset), 1)
	if r.IsErr() {
		return 0, r
	}
	return b[0], Ok()
}

func (m *MemorySection) partitionSetByte(offset uint32, b byte) Result {
	return m.SetBytes(int(offset), []byte{b})
}

func (pm *ProcessMemory) partitionLen() uint32 { return pm.ES }

func (pm *ProcessMemory) partitionGetByte(offset uint32) (byte, Result) {
	return pm.GetByte(offset)
}

func (pm *ProcessMemory) partitionSetByte(offset uint32, b byte) Result {
	return pm.SetByte(offset, b)
}

// Memory is the main addressable memory of the computer: an insertion-
// ordered table of named partitions, each independently sized, whose
// concatenation forms one linear global address space.
type Memory struct {
	mu       sync.RWMutex
	order    []PartitionName
	table    map[PartitionName]Partition
	maxSize  uint32
	size     uint32
}

func NewMemory() *Memory {
	return &Memory{
		table:   make(map[PartitionName]Partition),
		maxSize: MaxMemory,
	}
}

// AddPartition inserts a new named partition. If the resulting total size
// exceeds maxSize, the insertion is rolled back and OutOfMemory returned.
func (m *Memory) AddPartition(name PartitionName, p Partition) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.table[name]; !exists {
		m.order = append(m.order, name)
	}
	m.table[name] = p
	m.recalculateLocked()
	var total uint64
	for _, n := range m.order {
		total += uint64(m.table[n].partitionLen())
	}
	if total > uint64(m.maxSize) {
		m.deletePartitionLocked(name)
		return Err(OutOfMemory, "adding partition %v would exceed max memory", name)
	}
	return Ok()
}

func (m *Memory) DeletePartition(name PartitionName) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.table[name]; !ok {
		return Err(NameNotInMemory, "partition %v not in memory", name)
	}
	m.deletePartitionLocked(name)
	return Ok()
}

func (m *Memory) deletePartitionLocked(name PartitionName) {
	delete(m.table, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.recalculateLocked()
}

func (m *Memory) recalculateLocked() {
	var total uint32
	for _, n := range m.order {
		total += m.table[n].partitionLen()
	}
	m.size = total
}

func (m *Memory) Size() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Partition looks up a partition by name, for callers (syscalls, operand
// resolution) that need direct access to a specific process/heap/peripheral
// rather than the flattened global address space.
func (m *Memory) Partition(name PartitionName) (Partition, Result) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.table[name]
	if !ok {
		return nil, Err(PartitionMissing, "partition %v not in memory", name)
	}
	return p, Ok()
}

// GetByte walks partitions in insertion order, subtracting each partition's
// length from the target offset until it falls within the current
// partition — the same shape of scan as emos/memory.py Memory.get_byte,
// with the off-by-reference bug in that scan (the original never actually
// narrows the offset against partition boundaries) fixed rather than
// reproduced.
func (m *Memory) GetByte(offset uint32) (byte, Result) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	remaining := offset
	for _, n := range m.order {
		length := m.table[n].partitionLen()
		if remaining < length {
			return m.table[n].partitionGetByte(remaining)
		}
		remaining -= length
	}
	return 0, Err(OutOfRange, "offset 0x%x not in memory", offset)
}

func (m *Memory) SetByte(offset uint32, b byte) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := offset
	for _, n := range m.order {
		length := m.table[n].partitionLen()
		if remaining < length {
			return m.table[n].partitionSetByte(remaining, b)
		}
		remaining -= length
	}
	return Err(OutOfRange, "offset 0x%x not in memory", offset)
}

func (m *Memory) GetBytes(offset uint32, length int) ([]byte, Result) {
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		b, r := m.GetByte(offset + uint32(i))
		if r.IsErr() {
			return nil, r
		}
		out[i] = b
	}
	return out, Ok()
}

func (m *Memory) SetBytes(offset uint32, data []byte) Result {
	for i, b := range data {
		if r := m.SetByte(offset+uint32(i), b); r.IsErr() {
			return r
		}
	}
	return Ok()
}

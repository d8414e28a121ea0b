// kernelctx.go - the shared kernel context object
//
// spec.md §9's design note calls out the source's cyclic back-pointer chain
// (CPU -> Computer -> OS -> Memory -> Process) as something to break; this
// is the single object every core and kernel service borrows instead,
// grounded on cpu_ie32.go's Computer aggregate but flattened to plain
// fields rather than parent pointers.

package main

import (
	"sync"
	"time"
)

// KernelCtx aggregates everything a core, syscall, interrupt, or library
// call needs to reach: global memory, the process table, the peripheral
// registry, and a handle back to the scheduler for fork/spawn/reschedule
// requests.
type KernelCtx struct {
	mu sync.RWMutex

	Memory      *Memory
	Processes   map[uint32]*Process
	NextPID     uint32
	Peripherals map[uint32]Device
	NextDevID   uint32
	Libraries   map[uint32]DynamicLibrary
	Scheduler   *Scheduler
	FS          *FileSystem
	Terminal    *TerminalMMIO

	NextHeapID        uint32
	Panicked          bool
	ShutdownRequested bool
	Debug             bool
}

// now is the kernel's wall-clock read, shared by the time syscall and the
// shell's time builtin.
func (k *KernelCtx) now() time.Time { return time.Now() }

func NewKernelCtx() *KernelCtx {
	return &KernelCtx{
		Memory:      NewMemory(),
		Processes:   make(map[uint32]*Process),
		Peripherals: make(map[uint32]Device),
		Libraries:   make(map[uint32]DynamicLibrary),
	}
}

// SpawnProcess allocates a pid, registers the process's memory as a "proc"
// partition, and installs its first thread, per spec.md §6's loader
// contract.
func (k *KernelCtx) SpawnProcess(code, data []byte, sec SecurityLevel) (*Process, Result) {
	k.mu.Lock()
	pid := k.NextPID
	k.NextPID++
	k.mu.Unlock()

	proc := NewProcess(pid, code, data, sec)
	thread := proc.NewThread()

	if r := k.Memory.AddPartition(ProcName(pid), proc.view(thread)); r.IsErr() {
		return nil, r
	}

	k.mu.Lock()
	k.Processes[pid] = proc
	k.mu.Unlock()
	return proc, Ok()
}

// Process looks up a process by pid, the CPU/syscall layer's most common
// kernel-context query.
func (k *KernelCtx) Process(pid uint32) (*Process, Result) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	p, ok := k.Processes[pid]
	if !ok {
		return nil, Err(PIDNotFound, "no process with pid %d", pid)
	}
	return p, Ok()
}

// RemoveProcess tears down a finished process's global-memory partition.
func (k *KernelCtx) RemoveProcess(pid uint32) {
	k.mu.Lock()
	delete(k.Processes, pid)
	k.mu.Unlock()
	k.Memory.DeletePartition(ProcName(pid))
}

// AllocHeap registers a new zero-filled heap partition of the given size,
// returning its heap id, per spec.md §4.1's HEAP operand kind.
func (k *KernelCtx) AllocHeap(size uint32) (uint32, Result) {
	k.mu.Lock()
	hid := k.NextHeapID
	k.NextHeapID++
	k.mu.Unlock()

	sec := NewMemorySection("heap", make([]byte, size))
	if r := k.Memory.AddPartition(HeapName(hid), sec); r.IsErr() {
		return 0, r
	}
	return hid, Ok()
}

// FreeHeap removes a heap partition, per the matching kernel free syscall.
func (k *KernelCtx) FreeHeap(hid uint32) Result {
	return k.Memory.DeletePartition(HeapName(hid))
}

// RegisterDevice installs a peripheral in both the device registry and
// global memory's "perp" partition table, per spec.md §8's device model.
func (k *KernelCtx) RegisterDevice(dev Device, section *MemorySection) uint32 {
	k.mu.Lock()
	id := k.NextDevID
	k.NextDevID++
	k.Peripherals[id] = dev
	k.mu.Unlock()
	k.Memory.AddPartition(PerpName(id), section)
	return id
}

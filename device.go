// device.go - the peripheral interface
//
// spec.md §9 collapses the source's deep Peripheral inheritance chain to a
// two-method interface; grounded on cpu_ie32.go's own small interrupt-
// dispatch convention (a device declares the interrupt IDs it answers, the
// core looks them up by id rather than by type).

package main

// Device is a peripheral: it owns one ("perp", dev_id) memory partition and
// answers a declared set of interrupt IDs.
type Device interface {
	DefinedInterrupts() map[uint32]bool
	HandleInterrupt(kctx *KernelCtx, iid uint32, proc *Process, thread *Thread) Result
	Partition() *MemorySection
}

// routeInterrupt looks up dev by id in the kernel context's registry and
// dispatches iid to it, failing with InvalidSyscall if the device id is
// unknown or the device does not declare iid — grounded on spec.md §4.9's "peripherals
// declare defined_interrupts".
func routeInterrupt(kctx *KernelCtx, devID, iid uint32, proc *Process, thread *Thread) Result {
	kctx.mu.RLock()
	dev, ok := kctx.Peripherals[devID]
	kctx.mu.RUnlock()
	if !ok {
		return Err(InvalidSyscall, "no device with id %d", devID)
	}
	if !dev.DefinedInterrupts()[iid] {
		return Err(InvalidSyscall, "device %d does not handle interrupt %d", devID, iid)
	}
	return dev.HandleInterrupt(kctx, iid, proc, thread)
}

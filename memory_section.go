// memory_section.go - growable named byte buffer
//
// Grounded on original_source/emos/memory.py's MemorySection: push/pop
// 4-byte words, popn/removebytes by count, and offset-bounded get/set.
// memory_bus.go supplied the RWMutex-per-buffer convention
// generalised onto these sections in process_memory.go/memory.go.

package main

// MemorySection is a growable byte buffer identified by name. data/stack
// sections grow via Set beyond current size; code sections never grow
// after load.
type MemorySection struct {
	Name string
	data []byte
}

func NewMemorySection(name string, data []byte) *MemorySection {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &MemorySection{Name: name, data: buf}
}

func (m *MemorySection) Size() int { return len(m.data) }

// Push appends data to the end of the section, growing it.
func (m *MemorySection) Push(data []byte) Result {
	m.data = append(m.data, data...)
	return Ok()
}

// Pop removes and returns the last 4 bytes.
func (m *MemorySection) Pop() ([]byte, Result) {
	return m.Popn(4)
}

// Popn removes and returns the last n bytes.
func (m *MemorySection) Popn(n int) ([]byte, Result) {
	if n == 0 {
		return []byte{}, Ok()
	}
	if len(m.data) < n {
		return nil, Err(StackUnderflow, "section %q has %d bytes, need %d", m.Name, len(m.data), n)
	}
	out := make([]byte, n)
	copy(out, m.data[len(m.data)-n:])
	m.data = m.data[:len(m.data)-n]
	return out, Ok()
}

// RemoveBytes discards numbytes bytes from the end without returning them.
func (m *MemorySection) RemoveBytes(numbytes int) Result {
	if len(m.data) < numbytes {
		return Err(StackUnderflow, "not enough bytes to remove from %q", m.Name)
	}
	m.data = m.data[:len(m.data)-numbytes]
	return Ok()
}

// GetBytes reads numbytes bytes starting at offset.
func (m *MemorySection) GetBytes(offset, numbytes int) ([]byte, Result) {
	if offset < 0 || offset+numbytes > len(m.data) {
		return nil, Err(OutOfRange, "offset %d+%d outside section %q (size %d)", offset, numbytes, m.Name, len(m.data))
	}
	out := make([]byte, numbytes)
	copy(out, m.data[offset:offset+numbytes])
	return out, Ok()
}

// SetBytes writes data at offset, growing the section if the write extends
// past the current end (data/stack semantics; see emos/memory.py set_bytes).
func (m *MemorySection) SetBytes(offset int, data []byte) Result {
	if offset < 0 {
		return Err(OutOfRange, "negative offset into section %q", m.Name)
	}
	end := offset + len(data)
	if end > len(m.data) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[offset:end], data)
	return Ok()
}

func (m *MemorySection) String() string {
	return "<MemorySection " + m.Name + ">"
}

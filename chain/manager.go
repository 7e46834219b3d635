package chain

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/width"
)

// Allocator supplies and takes back chunks on behalf of chain I/O.
type Allocator interface {
	Alloc(req chunk.Request) (*chunk.Chunk, error)
	Free(ptrs ...chunk.Pointer) error
}

// Manager hands out cursors over chains and keeps one session stack per
// chain head.
//
// NOT thread-safe.
type Manager struct {
	p      *chunk.Provider
	alloc  Allocator
	opts   *Options
	log    *slog.Logger
	states map[chunk.Pointer]*chainState
	nextID uint64
}

// NewManager creates a manager that grows and shrinks chains through a.
func NewManager(p *chunk.Provider, a Allocator, opts *Options) *Manager {
	o := opts.norm()
	return &Manager{
		p:      p,
		alloc:  a,
		opts:   o,
		log:    o.Logger,
		states: make(map[chunk.Pointer]*chainState),
	}
}

// Provider returns the chunk provider.
func (m *Manager) Provider() *chunk.Provider { return m.p }

// Create allocates a new chain head for req and opens a session on it.
func (m *Manager) Create(req chunk.Request) (*Cursor, error) {
	c, err := m.alloc.Alloc(req)
	if err != nil {
		return nil, err
	}
	return m.Open(c.Ptr())
}

// Open pushes a new session on the chain starting at head.
func (m *Manager) Open(head chunk.Pointer) (*Cursor, error) {
	s, err := m.state(head)
	if err != nil {
		return nil, err
	}
	m.nextID++
	cur := &Cursor{m: m, st: s, id: m.nextID}
	if n := len(s.stack); n > 0 {
		cur.parent = s.stack[n-1].id
	}
	s.stack = append(s.stack, cur)
	return cur, nil
}

// Sessions returns the number of open sessions on head.
func (m *Manager) Sessions(head chunk.Pointer) int {
	if s, ok := m.states[head]; ok {
		return len(s.stack)
	}
	return 0
}

// OpenSessions returns the total number of open sessions across all chains.
func (m *Manager) OpenSessions() int {
	n := 0
	for _, s := range m.states {
		n += len(s.stack)
	}
	return n
}

// Chunks returns the pointers of the chain starting at head in link order.
func (m *Manager) Chunks(head chunk.Pointer) ([]chunk.Pointer, error) {
	chunks, err := m.p.Walk(head)
	if err != nil {
		return nil, err
	}
	out := make([]chunk.Pointer, len(chunks))
	for i, c := range chunks {
		out[i] = c.Ptr()
	}
	return out, nil
}

// Free releases every chunk of the chain starting at head. The chain must
// have no open sessions.
func (m *Manager) Free(head chunk.Pointer) error {
	if n := m.Sessions(head); n > 0 {
		return fmt.Errorf("%w: free of %s with %d open sessions", chunk.ErrIllegalState, head, n)
	}
	ptrs, err := m.Chunks(head)
	if err != nil {
		return err
	}
	delete(m.states, head)
	return m.alloc.Free(ptrs...)
}

// Reset drops every cached chain. It fails while sessions are open.
func (m *Manager) Reset() error {
	if n := m.OpenSessions(); n > 0 {
		return fmt.Errorf("%w: reset with %d open sessions", chunk.ErrIllegalState, n)
	}
	clear(m.states)
	return nil
}

func (m *Manager) state(head chunk.Pointer) (*chainState, error) {
	if s, ok := m.states[head]; ok {
		return s, nil
	}
	chunks, err := m.p.Walk(head)
	if err != nil {
		return nil, err
	}
	s := &chainState{head: head, chunks: chunks}
	m.states[head] = s
	return s, nil
}

// forget drops s once its last session has closed. The next Open walks
// the chain again.
func (m *Manager) forget(s *chainState) {
	if m.states[s.head] == s {
		delete(m.states, s.head)
	}
}

// Tracked returns the number of chains with at least one open session.
func (m *Manager) Tracked() int { return len(m.states) }

// chainState is shared by every session on one chain.
type chainState struct {
	head   chunk.Pointer
	chunks []*chunk.Chunk
	stack  []*Cursor
}

func (s *chainState) size() uint64 {
	var n uint64
	for _, c := range s.chunks {
		n += c.Size()
	}
	return n
}

func (s *chainState) capacity() uint64 {
	var n uint64
	for _, c := range s.chunks {
		n += c.Capacity()
	}
	return n
}

// locate returns the chunk holding logical position pos and the body offset
// within it. ok is false when pos is at or past the logical end.
func (s *chainState) locate(pos uint64) (i int, off uint64, ok bool) {
	var start uint64
	for i, c := range s.chunks {
		if pos < start+c.Size() {
			return i, pos - start, true
		}
		start += c.Size()
	}
	return 0, 0, false
}

// tail returns the index of the chunk receiving appended bytes: the last
// chunk with a non-zero used size, or the head.
func (s *chainState) tail() int {
	for i := len(s.chunks) - 1; i > 0; i-- {
		if s.chunks[i].Size() > 0 {
			return i
		}
	}
	return 0
}

// grow appends a continuation able to take deficit more bytes.
func (m *Manager) grow(s *chainState, deficit uint64) error {
	last := s.chunks[len(s.chunks)-1]
	if last.Fixed() {
		return fmt.Errorf("%w: fixed chunk exhausted at %s", chunk.ErrIllegalState, last.Ptr())
	}
	size := max(deficit, s.capacity())
	if size > m.opts.MaxGrowth {
		size = max(m.opts.MaxGrowth, deficit)
	}
	// room for bytes moved over when the link needs a wider next field
	size += uint64(chunk.MaxHeaderSize)

	nc, err := m.alloc.Alloc(chunk.Req(size))
	if err != nil {
		return fmt.Errorf("chain: grow %s: %w", s.head, err)
	}
	if err := m.link(last, nc); err != nil {
		return errors.Join(err, m.alloc.Free(nc.Ptr()))
	}
	s.chunks = append(s.chunks, nc)
	m.log.Debug("chain grown", "head", uint64(s.head), "continuation", uint64(nc.Ptr()), "capacity", nc.Capacity())
	return nil
}

// link points last at nc. When nc's pointer does not fit last's next field
// and last has no slack to widen its header, the tail of last's body moves
// to the front of nc first.
func (m *Manager) link(last, nc *chunk.Chunk) error {
	err := last.SetNext(nc.Ptr())
	if !errors.Is(err, chunk.ErrBitDepthOutOfSpace) {
		return err
	}
	need := uint64(width.For(uint64(nc.Ptr())).Bytes() - last.Header().NextWidth.Bytes())
	if last.Capacity() < need {
		return err
	}
	keep := min(last.Size(), last.Capacity()-need)
	moved := make([]byte, last.Size()-keep)
	if _, err := last.ReadBody(moved, keep); err != nil {
		return fmt.Errorf("chain: move tail of %s: %w", last.Ptr(), err)
	}
	if _, err := nc.WriteBody(moved, 0); err != nil {
		return fmt.Errorf("chain: move tail of %s: %w", last.Ptr(), err)
	}
	if err := nc.SetSize(uint64(len(moved))); err != nil {
		return err
	}
	if err := last.SetSize(keep); err != nil {
		return err
	}
	m.log.Debug("chain tail moved for link", "from", uint64(last.Ptr()), "to", uint64(nc.Ptr()), "bytes", len(moved))
	return last.SetNext(nc.Ptr())
}

// release drops chunks[i+1:] from the chain, keeping them empty when the
// manager retains tails.
func (m *Manager) release(s *chainState, i int) error {
	rest := s.chunks[i+1:]
	if len(rest) == 0 {
		return nil
	}
	if m.opts.RetainTail {
		for _, c := range rest {
			if err := c.SetSize(0); err != nil {
				return err
			}
		}
		return nil
	}
	if err := s.chunks[i].SetNext(chunk.Null); err != nil {
		return err
	}
	ptrs := make([]chunk.Pointer, len(rest))
	for j, c := range rest {
		ptrs[j] = c.Ptr()
	}
	s.chunks = s.chunks[:i+1]
	m.log.Debug("chain released tail", "head", uint64(s.head), "chunks", len(ptrs))
	return m.alloc.Free(ptrs...)
}

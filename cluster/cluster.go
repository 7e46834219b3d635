package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joshuapare/chunkkit/alloc"
	"github.com/joshuapare/chunkkit/chain"
	"github.com/joshuapare/chunkkit/chunk"
	"github.com/joshuapare/chunkkit/internal/logger"
	"github.com/joshuapare/chunkkit/pack"
	"github.com/joshuapare/chunkkit/store"
	"github.com/joshuapare/chunkkit/verify"
)

// DefaultRootsCapacity is the body size of a new roots table head.
const DefaultRootsCapacity = 64

// Options configures a Cluster. The zero value is usable.
type Options struct {
	// Provider configures the chunk cache.
	Provider *chunk.ProviderOptions

	// Alloc configures the allocator. DataStart is always HeaderSize.
	Alloc *alloc.Options

	// Chain configures chain I/O.
	Chain *chain.Options

	// File configures stores opened by CreateFile and OpenFile.
	File *store.FileOptions

	// ShrinkOnPack lowers growable chunks to their used size during Pack.
	ShrinkOnPack bool

	// Logger is passed to every component that has none. Default: logger.L.
	Logger *slog.Logger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}
	oo.Logger = logger.Or(oo.Logger)

	var ao alloc.Options
	if oo.Alloc != nil {
		ao = *oo.Alloc
	}
	ao.DataStart = HeaderSize
	if ao.Logger == nil {
		ao.Logger = oo.Logger
	}
	oo.Alloc = &ao

	var co chain.Options
	if oo.Chain != nil {
		co = *oo.Chain
	}
	if co.Logger == nil {
		co.Logger = oo.Logger
	}
	oo.Chain = &co
	return &oo
}

// Cluster is one engine instance over a store: a header, two bootstrap
// chunks (the roots table and the free registry) and the chains hanging
// off named roots.
//
// NOT thread-safe.
type Cluster struct {
	st     store.Store
	opts   *Options
	log    *slog.Logger
	hdr    Header
	p      *chunk.Provider
	a      *alloc.Allocator
	chains *chain.Manager
	roots  map[string]chunk.Pointer
	closed bool
}

// Create initialises an empty cluster in st, discarding any previous
// contents.
func Create(st store.Store, opts *Options) (*Cluster, error) {
	o := opts.norm()
	if err := st.SetSize(0); err != nil {
		return nil, fmt.Errorf("cluster: reset store: %w", err)
	}
	c, err := newCluster(st, o)
	if err != nil {
		return nil, err
	}
	c.hdr = Header{Version: Version, ID: uuid.New()}

	rc, err := c.a.Alloc(chunk.Req(DefaultRootsCapacity))
	if err != nil {
		return nil, fmt.Errorf("cluster: roots table: %w", err)
	}
	c.hdr.RootsHead = rc.Ptr()
	if c.hdr.FreeHead, err = c.a.CreateRegistry(); err != nil {
		return nil, fmt.Errorf("cluster: free registry: %w", err)
	}
	c.roots = make(map[string]chunk.Pointer)
	if err := c.saveRoots(); err != nil {
		return nil, err
	}
	if err := c.writeHeader(); err != nil {
		return nil, err
	}
	c.log.Debug("cluster created", "id", c.hdr.ID, "roots", uint64(c.hdr.RootsHead), "free", uint64(c.hdr.FreeHead))
	return c, nil
}

// Open loads the cluster stored in st.
func Open(st store.Store, opts *Options) (*Cluster, error) {
	o := opts.norm()
	raw := make([]byte, HeaderSize)
	if n, err := st.ReadAt(raw, 0); n < HeaderSize {
		return nil, fmt.Errorf("%w: read %d of %d bytes: %w", ErrBadHeader, n, HeaderSize, err)
	}
	hdr, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	c, err := newCluster(st, o)
	if err != nil {
		return nil, err
	}
	c.hdr = *hdr
	if err := c.a.AttachRegistry(hdr.FreeHead); err != nil {
		return nil, fmt.Errorf("cluster: free registry: %w", err)
	}
	if err := c.loadRoots(); err != nil {
		return nil, err
	}
	c.log.Debug("cluster opened", "id", c.hdr.ID, "roots", len(c.roots))
	return c, nil
}

// CreateFile creates a cluster in a new file at path.
func CreateFile(path string, opts *Options) (*Cluster, error) {
	st, err := store.CreateFile(path, fileOptions(opts))
	if err != nil {
		return nil, err
	}
	c, err := Create(st, opts)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}
	return c, nil
}

// OpenFile opens the cluster stored in the file at path for writing.
func OpenFile(path string, opts *Options) (*Cluster, error) {
	st, err := store.OpenFile(path, fileOptions(opts))
	if err != nil {
		return nil, err
	}
	c, err := Open(st, opts)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}
	return c, nil
}

func fileOptions(opts *Options) *store.FileOptions {
	if opts == nil {
		return nil
	}
	return opts.File
}

func newCluster(st store.Store, o *Options) (*Cluster, error) {
	p := chunk.NewProvider(st, o.Provider)
	a, err := alloc.New(p, o.Alloc)
	if err != nil {
		return nil, err
	}
	return &Cluster{
		st:     st,
		opts:   o,
		log:    o.Logger,
		p:      p,
		a:      a,
		chains: chain.NewManager(p, a, o.Chain),
	}, nil
}

func (c *Cluster) ensureOpen() error {
	if c.closed {
		return fmt.Errorf("%w: cluster is closed", chunk.ErrIllegalState)
	}
	return nil
}

func (c *Cluster) writeHeader() error {
	raw, err := c.hdr.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := c.st.WriteAt(raw, 0); err != nil {
		return fmt.Errorf("cluster: write header: %w", err)
	}
	return nil
}

// Header returns a copy of the store header.
func (c *Cluster) Header() Header { return c.hdr }

// ID returns the store identity.
func (c *Cluster) ID() uuid.UUID { return c.hdr.ID }

// Store returns the backing store.
func (c *Cluster) Store() store.Store { return c.st }

// Provider returns the chunk provider.
func (c *Cluster) Provider() *chunk.Provider { return c.p }

// Allocator returns the allocator.
func (c *Cluster) Allocator() *alloc.Allocator { return c.a }

// Chains returns the chain manager.
func (c *Cluster) Chains() *chain.Manager { return c.chains }

// Alloc allocates a single chunk and returns its pointer. The chunk starts
// a chain of its own once opened with OpenChain.
func (c *Cluster) Alloc(req chunk.Request) (chunk.Pointer, error) {
	if err := c.ensureOpen(); err != nil {
		return chunk.Null, err
	}
	ch, err := c.a.Alloc(req)
	if err != nil {
		return chunk.Null, err
	}
	return ch.Ptr(), nil
}

// NewChain allocates a chain head for req and opens a session on it.
func (c *Cluster) NewChain(req chunk.Request) (*chain.Cursor, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	return c.chains.Create(req)
}

// OpenChain opens a session on the chain starting at head.
func (c *Cluster) OpenChain(head chunk.Pointer) (*chain.Cursor, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	if c.bootstrap(head) {
		return nil, fmt.Errorf("%w: %s is a bootstrap chunk", chunk.ErrIllegalState, head)
	}
	return c.chains.Open(head)
}

// Free releases every chunk of the chain starting at head.
func (c *Cluster) Free(head chunk.Pointer) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if c.bootstrap(head) {
		return fmt.Errorf("%w: %s is a bootstrap chunk", chunk.ErrIllegalState, head)
	}
	return c.chains.Free(head)
}

func (c *Cluster) bootstrap(ptr chunk.Pointer) bool {
	return ptr == c.hdr.RootsHead || ptr == c.hdr.FreeHead
}

// own is the RootWalker over the pointers the cluster itself holds.
func (c *Cluster) own() pack.RootWalker {
	return pack.Func{
		List: func() []chunk.Pointer {
			ptrs := []chunk.Pointer{c.hdr.RootsHead, c.hdr.FreeHead}
			for _, name := range c.Roots() {
				ptrs = append(ptrs, c.roots[name])
			}
			return ptrs
		},
		Update: func(remap pack.Remap) error {
			var errs []error
			move := func(ptr *chunk.Pointer) {
				np, err := remap.Lookup(*ptr)
				if err != nil {
					errs = append(errs, err)
					return
				}
				*ptr = np
			}
			move(&c.hdr.RootsHead)
			move(&c.hdr.FreeHead)
			for name, ptr := range c.roots {
				move(&ptr)
				c.roots[name] = ptr
			}
			return errors.Join(errs...)
		},
	}
}

// Pack compacts the store. Chunks reachable from the named roots, the
// bootstrap chunks or any of walkers survive; the free registry is emptied.
// No chain session may be open.
func (c *Cluster) Pack(walkers ...pack.RootWalker) (*pack.Report, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	if n := c.chains.OpenSessions(); n > 0 {
		return nil, fmt.Errorf("%w: %d chain sessions open", chunk.ErrIllegalState, n)
	}

	all := append([]pack.RootWalker{c.own()}, walkers...)
	rep, err := pack.Pack(c.p, all, &pack.Options{
		DataStart:      HeaderSize,
		ShrinkCapacity: c.opts.ShrinkOnPack,
		Logger:         c.log,
	})
	if rep == nil {
		return nil, err
	}
	// The store is compacted even when a walker failed; the free index,
	// registry, roots table and header must follow it.
	if ferr := c.afterPack(); ferr != nil {
		return rep, errors.Join(err, ferr)
	}
	return rep, err
}

func (c *Cluster) afterPack() error {
	if err := c.chains.Reset(); err != nil {
		return err
	}
	c.a.Discard()
	if err := c.a.MoveRegistry(c.hdr.FreeHead); err != nil {
		return err
	}
	if err := c.a.Persist(); err != nil {
		return fmt.Errorf("cluster: rewrite free registry: %w", err)
	}
	if err := c.saveRoots(); err != nil {
		return err
	}
	return c.writeHeader()
}

// Validate checks the store structure. Chunks reachable from the named
// roots, the bootstrap chunks or walkers count as live.
func (c *Cluster) Validate(walkers ...pack.RootWalker) (*verify.Report, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	roots := c.own().Pointers()
	for _, w := range walkers {
		roots = append(roots, w.Pointers()...)
	}
	entries, err := c.a.FreeEntries()
	if err != nil {
		return nil, err
	}
	free := make([]chunk.Pointer, len(entries))
	for i, e := range entries {
		free[i] = e.Ptr
	}
	return verify.Validate(c.p, roots, free, &verify.Options{DataStart: HeaderSize, Logger: c.log}), nil
}

// Info summarizes the cluster.
type Info struct {
	Header   Header
	Size     int64
	Capacity int64
	Roots    int
	Alloc    alloc.Stats
}

// Info returns a summary of the cluster.
func (c *Cluster) Info() Info {
	return Info{
		Header:   c.hdr,
		Size:     c.st.Size(),
		Capacity: c.st.Capacity(),
		Roots:    len(c.roots),
		Alloc:    c.a.Stats(),
	}
}

// Flush persists the store.
func (c *Cluster) Flush(ctx context.Context) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	return c.st.Flush(ctx)
}

// Close closes the backing store. Every chain session must be closed first.
func (c *Cluster) Close() error {
	if c.closed {
		return nil
	}
	if n := c.chains.OpenSessions(); n > 0 {
		return fmt.Errorf("%w: %d chain sessions open", chunk.ErrIllegalState, n)
	}
	c.closed = true
	return c.st.Close()
}

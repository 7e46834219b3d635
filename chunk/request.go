package chunk

// Request is an allocation ticket. It is a value type: the builder methods
// return modified copies and the allocator consumes it once.
//
//	req := chunk.Req(128).WithTag(3).Fixed()
//	c, err := allocator.Alloc(req)
type Request struct {
	// Size is the requested body capacity in bytes.
	Size uint64

	// DisableGrowth marks the chunk fixed: chain writes past its capacity
	// fail instead of allocating a continuation.
	DisableGrowth bool

	// Tag is an optional small user tag stored in the header.
	Tag    uint8
	Tagged bool

	// Approve, when set, restricts reuse to free chunks it accepts. Reuse
	// then takes the first approved fit in ascending offset order.
	Approve func(*Chunk) bool

	// Populate runs with exclusive access to the new chunk before the
	// allocation returns. An error frees the chunk again.
	Populate func(*Chunk) error
}

// Req starts a request for size body bytes.
func Req(size uint64) Request { return Request{Size: size} }

// Fixed returns a copy with growth disabled.
func (r Request) Fixed() Request {
	r.DisableGrowth = true
	return r
}

// WithTag returns a copy carrying user tag t.
func (r Request) WithTag(t uint8) Request {
	r.Tag, r.Tagged = t, true
	return r
}

// WithApprove returns a copy with a reuse predicate.
func (r Request) WithApprove(fn func(*Chunk) bool) Request {
	r.Approve = fn
	return r
}

// WithPopulate returns a copy with a populate callback.
func (r Request) WithPopulate(fn func(*Chunk) error) Request {
	r.Populate = fn
	return r
}

// Proto returns the header template for a chunk fulfilling r.
func (r Request) Proto() Header {
	return Header{Tag: r.Tag, HasTag: r.Tagged, Fixed: r.DisableGrowth}
}

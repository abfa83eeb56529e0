package domain

const (
	// KeyMetadata holds the invocation metadata injected by the dispatcher.
	KeyMetadata = "metadata"
	// KeyPrevious holds the continuation payload of the prior invocation.
	KeyPrevious = "previous"
)

// Request is the envelope handed to a handler: the caller's payload plus
// the injected metadata and, on re-invocations, the previous payload.
type Request struct {
	Object
}

// NewRequest wraps body and injects metadata. body is copied; the caller's map is not modified.
func NewRequest(body Object, ic InvocationContext) Request {
	obj := body.Clone()
	if obj == nil {
		obj = Object{}
	}
	obj[KeyMetadata] = ic.Metadata()
	return Request{Object: obj}
}

// Metadata returns the injected invocation metadata.
func (r Request) Metadata() Object {
	return r.GetObject(KeyMetadata)
}

// Previous returns the continuation payload, or nil on a first invocation.
func (r Request) Previous() Object {
	return r.GetObject(KeyPrevious)
}

// IsContinuation reports whether the engine re-invoked this step with a payload.
func (r Request) IsContinuation() bool {
	return r.Previous() != nil
}

// ActivityID is a shortcut for the activity id found in metadata.
func (r Request) ActivityID() string {
	return r.Metadata().GetString(MetaActivityID)
}

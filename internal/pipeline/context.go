package pipeline

// Well-known context keys shared by the stock stages.
const (
	// KeyInput holds the *archive.TimeStream being processed.
	KeyInput = "input"
	// KeyOutput holds the *archive.TimeStream results are written to.
	KeyOutput = "output"
	// KeyFrame holds the *archive.Frame currently in flight.
	KeyFrame = "frame"
	// KeyPots holds the most recent *pot.Matrix, so the next frame's
	// locator can chain predecessors.
	KeyPots = "pots"
	// KeyStore holds the optional *store.Store for feature persistence.
	KeyStore = "store"
	// KeyRunID holds the current run identifier.
	KeyRunID = "run_id"
)

// Context is the string-keyed store of cross-stage globals a pipeline
// run shares: input/output archives, the frame in flight, the
// predecessor pot matrix. The driver is single-threaded, so no locking.
type Context struct {
	vals map[string]interface{}
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{vals: map[string]interface{}{}}
}

// Set stores a value under key, replacing any existing value.
func (c *Context) Set(key string, v interface{}) { c.vals[key] = v }

// Get returns the value under key, if present.
func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.vals[key]
	return v, ok
}

// Delete removes a key.
func (c *Context) Delete(key string) { delete(c.vals, key) }

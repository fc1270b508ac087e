package redirect

// Condition decides whether a rule applies to a request context. It must
// be pure: same context, same answer.
type Condition func(Context) bool

// Destination is a tagged variant: either a literal path or a pure function
// of the context (for destinations that embed the original path, reason
// codes, and similar). Exactly one side is set; construct through [Literal]
// or [Derived].
type Destination struct {
	literal string
	derive  func(Context) string
}

// Literal returns a fixed-path destination.
func Literal(path string) Destination {
	return Destination{literal: path}
}

// Derived returns a destination computed from the request context.
func Derived(fn func(Context) string) Destination {
	return Destination{derive: fn}
}

// Resolve materializes the destination for a context.
func (d Destination) Resolve(ctx Context) string {
	if d.derive != nil {
		return d.derive(ctx)
	}
	return d.literal
}

// IsZero reports whether the destination was never set.
func (d Destination) IsZero() bool {
	return d.derive == nil && d.literal == ""
}

// Rule is one declarative access-control rule. Higher Priority evaluates
// first; Reason is the machine-readable code recorded on every match.
type Rule struct {
	ID          string
	Name        string
	Condition   Condition
	Destination Destination
	Priority    int
	Enabled     bool
	Reason      string
}

// Patch is a partial rule update for [Engine.UpdateRule]. Nil fields are
// left untouched.
type Patch struct {
	Name        *string
	Condition   Condition
	Destination *Destination
	Priority    *int
	Enabled     *bool
	Reason      *string
}

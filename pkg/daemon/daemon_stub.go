//go:build !linux

package daemon

// Detacher is a placeholder on non-Linux platforms.
type Detacher struct{}

// New returns a Detacher that cannot detach.
func New(Options) *Detacher {
	return &Detacher{}
}

// Daemonize always fails on unsupported platforms; use Foreground instead.
func (*Detacher) Daemonize() (Identity, error) {
	return Identity{}, ErrUnsupported
}

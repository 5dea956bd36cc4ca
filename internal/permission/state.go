// Package permission sequences the capability grants the tracker needs before
// it starts polling.
package permission

import (
	"context"
	"errors"
)

// State is the answer a capability gives to a permission query.
type State string

const (
	StateGranted     State = "granted"
	StatePrompt      State = "prompt"
	StateDenied      State = "denied"
	StateUnsupported State = "unsupported"
)

// Allowed reports whether s lets the capability be used. A pending prompt
// counts as allowed.
func (s State) Allowed() bool {
	return s == StateGranted || s == StatePrompt
}

// ErrNotGranted is returned when a capability is denied, missing, or its
// query fails.
var ErrNotGranted = errors.New("permission not granted")

// Querier is a capability that can be asked for permission.
type Querier interface {
	Name() string
	Query(ctx context.Context) (State, error)
}

// PortLister is implemented by capabilities that can enumerate their ports
// once access is granted.
type PortLister interface {
	Ports() (inputs, outputs []string, err error)
}

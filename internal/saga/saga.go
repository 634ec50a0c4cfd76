// Package saga models the two-step "store then announce" protocol used on
// both pipeline hops. Storage and broker share no transaction, so the only
// consistency tool is an explicit compensating action for the first step
// when the second one fails.
package saga

import "context"

type State int

const (
	StatePending State = iota
	StateStored
	StateAnnounced
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStored:
		return "stored"
	case StateAnnounced:
		return "announced"
	case StateRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Saga tracks one store-then-announce unit of work.
// Transitions: pending → stored → announced, or stored → rolled_back.
type Saga struct {
	state      State
	compensate func(context.Context) error
}

func Begin() *Saga {
	return &Saga{state: StatePending}
}

func (s *Saga) State() State { return s.state }

// Stored records that the first step succeeded, together with the action
// that undoes it.
func (s *Saga) Stored(compensate func(context.Context) error) {
	s.state = StateStored
	s.compensate = compensate
}

// Announced marks the unit of work complete. The compensation is dropped;
// from here on the stored object is referenced by a published descriptor.
func (s *Saga) Announced() {
	s.state = StateAnnounced
	s.compensate = nil
}

// Rollback runs the compensating action. The saga ends rolled_back even if
// the compensation fails — the caller logs the leak and moves on.
func (s *Saga) Rollback(ctx context.Context) error {
	if s.state != StateStored {
		return nil
	}
	s.state = StateRolledBack
	if s.compensate == nil {
		return nil
	}
	return s.compensate(ctx)
}

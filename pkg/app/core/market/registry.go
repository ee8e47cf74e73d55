package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownInstrument = errors.New("unknown instrument")

// Registry holds one independently lockable Instrument per symbol.
// The registry lock only guards the symbol map; matching on one instrument
// never blocks another.
type Registry struct {
	mu          sync.RWMutex
	instruments map[string]*Instrument
	slots       []*Instrument // registration order
}

func NewRegistry() *Registry {
	return &Registry{
		instruments: make(map[string]*Instrument),
	}
}

// Register adds inst. Returns error if the symbol is already registered.
func (r *Registry) Register(inst *Instrument) error {
	if inst == nil {
		return fmt.Errorf("cannot register nil instrument")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instruments[inst.Symbol]; exists {
		return fmt.Errorf("instrument %s already registered", inst.Symbol)
	}
	r.instruments[inst.Symbol] = inst
	r.slots = append(r.slots, inst)
	return nil
}

func (r *Registry) Get(symbol string) (*Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, exists := r.instruments[symbol]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	return inst, nil
}

// List returns instruments in registration order.
func (r *Registry) List() []*Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Instrument, len(r.slots))
	copy(out, r.slots)
	return out
}

// Symbols returns registered symbols sorted alphabetically.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.instruments))
	for s := range r.instruments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// UpdateStatus changes an instrument's trading status.
func (r *Registry) UpdateStatus(symbol string, status Status) error {
	inst, err := r.Get(symbol)
	if err != nil {
		return err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if err := validateStatusTransition(inst.status, status); err != nil {
		return err
	}
	inst.status = status
	return nil
}

func validateStatusTransition(from, to Status) error {
	// Active <-> Paused, either -> Closed. Closed is terminal.
	if from == Closed {
		return fmt.Errorf("cannot change status from Closed (terminal state)")
	}
	if to < Active || to > Closed {
		return fmt.Errorf("unknown status %d", to)
	}
	return nil
}

// Remove drops a Closed instrument from the registry.
func (r *Registry) Remove(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inst, exists := r.instruments[symbol]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownInstrument, symbol)
	}
	if st := inst.Status(); st != Closed {
		return fmt.Errorf("cannot remove instrument %s with status %s (must be Closed)", symbol, st)
	}

	delete(r.instruments, symbol)
	for i, s := range r.slots {
		if s == inst {
			r.slots = append(r.slots[:i], r.slots[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instruments)
}

func (r *Registry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.instruments[symbol]
	return exists
}

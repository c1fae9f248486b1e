package region

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRegion = errors.New("region: region is nil or has no id")
	ErrNoLeader      = errors.New("region: region has no leader")
	ErrInvalidStore  = errors.New("region: store is nil or has no address")
	ErrStoreMismatch = errors.New("region: leader is not hosted on the given store")
)

// Context is the routing information attached to every request sent for a
// region: which region, under which epoch, to which leader peer on which store.
//
// A Context is a value and never changes after construction. When routing
// turns out to be stale, the caller builds a new Context (and a new client)
// from fresh metadata.
type Context struct {
	regionID uint64
	epoch    Epoch
	leader   Peer
	storeID  uint64
	addr     string
}

// NewContext derives the routing context for sending requests for r to s.
func NewContext(r *Region, s *Store) (Context, error) {
	if r == nil || r.ID == 0 {
		return Context{}, ErrInvalidRegion
	}
	if r.Leader == nil {
		return Context{}, fmt.Errorf("%w: region %d", ErrNoLeader, r.ID)
	}
	if s == nil || s.Address == "" {
		return Context{}, ErrInvalidStore
	}
	if r.Leader.StoreID != s.ID {
		return Context{}, fmt.Errorf("%w: region %d leader on store %d, got store %d",
			ErrStoreMismatch, r.ID, r.Leader.StoreID, s.ID)
	}
	return Context{
		regionID: r.ID,
		epoch:    r.Epoch,
		leader:   *r.Leader,
		storeID:  s.ID,
		addr:     s.Address,
	}, nil
}

func (c Context) RegionID() uint64 { return c.regionID }
func (c Context) Epoch() Epoch      { return c.epoch }
func (c Context) Leader() Peer      { return c.leader }
func (c Context) StoreID() uint64   { return c.storeID }
func (c Context) Address() string   { return c.addr }

func (c Context) String() string {
	return fmt.Sprintf("region %d (%s) peer %d store %d at %s",
		c.regionID, c.epoch, c.leader.ID, c.storeID, c.addr)
}

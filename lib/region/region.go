package region

import (
	"fmt"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
)

// Epoch tracks structural changes of a Region.
type Epoch struct {
	// ConfVersion increases when the peer set changes.
	ConfVersion uint64 `json:"conf_version" msgpack:"cv" yaml:"conf_version"`
	// Version increases when the key range changes (split/merge).
	Version uint64 `json:"version" msgpack:"v" yaml:"version"`
}

func (e Epoch) String() string {
	return fmt.Sprintf("conf_ver:%d ver:%d", e.ConfVersion, e.Version)
}

// Peer is a replica of a Region hosted on a Store.
type Peer struct {
	ID      uint64 `json:"id" msgpack:"id" yaml:"id"`
	StoreID uint64 `json:"store_id" msgpack:"store" yaml:"store_id"`
}

// Store is a storage node reachable at Address.
type Store struct {
	ID      uint64 `yaml:"id"`
	Address string `yaml:"address"`
}

// Region is one shard of the keyspace together with its replicas.
type Region struct {
	ID     uint64
	Range  keyspace.Range
	Epoch  Epoch
	Peers  []Peer
	Leader *Peer // current leader as far as the holder knows, nil if unknown
}

// ContainsKey reports whether the region manages key.
func (r *Region) ContainsKey(key []byte) bool {
	if r == nil {
		return false
	}
	return r.Range.Contains(key)
}

// PeerOnStore returns the peer hosted on storeID, if any.
func (r *Region) PeerOnStore(storeID uint64) (Peer, bool) {
	for _, p := range r.Peers {
		if p.StoreID == storeID {
			return p, true
		}
	}
	return Peer{}, false
}

// Peer returns the peer with the given id.
func (r *Region) Peer(peerID uint64) (Peer, bool) {
	for _, p := range r.Peers {
		if p.ID == peerID {
			return p, true
		}
	}
	return Peer{}, false
}

// Clone returns a deep copy that can be mutated freely.
func (r *Region) Clone() *Region {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Range = keyspace.Range{
		Start: append([]byte(nil), r.Range.Start...),
		End:   append([]byte(nil), r.Range.End...),
	}
	cp.Peers = append([]Peer(nil), r.Peers...)
	if r.Leader != nil {
		leader := *r.Leader
		cp.Leader = &leader
	}
	return &cp
}

func (r *Region) String() string {
	if r == nil {
		return "region<nil>"
	}
	leader := "none"
	if r.Leader != nil {
		leader = fmt.Sprintf("%d@store%d", r.Leader.ID, r.Leader.StoreID)
	}
	return fmt.Sprintf("region %d %s epoch(%s) leader %s", r.ID, r.Range, r.Epoch, leader)
}

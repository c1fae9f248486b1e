package region

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"gopkg.in/yaml.v3"
)

// Topology is the static cluster layout read from a YAML file:
//
//	stores:
//	  - {id: 1, address: "127.0.0.1:20160"}
//	regions:
//	  - id: 10
//	    start_key: ""
//	    end_key: "m"
//	    epoch: {conf_version: 1, version: 1}
//	    peers: [{id: 11, store_id: 1}]
//	    leader: 11
//	seed:
//	  mvcc:  [{key: a, value: "1", version: 5}]
//	  raw:   [{key: x, value: y}]
//	  locks: [{key: l, primary: l, version: 7, ttl: 3000}]
type Topology struct {
	Stores  []Store      `yaml:"stores"`
	Regions []RegionSpec `yaml:"regions"`
	Seed    Seed         `yaml:"seed"`
}

// RegionSpec is the YAML form of a Region.
type RegionSpec struct {
	ID       uint64 `yaml:"id"`
	StartKey string `yaml:"start_key"`
	EndKey   string `yaml:"end_key"`
	Epoch    Epoch  `yaml:"epoch"`
	Peers    []Peer `yaml:"peers"`
	Leader   uint64 `yaml:"leader"`
}

// Seed is initial data loaded by storage nodes at start.
type Seed struct {
	MVCC  []SeedValue `yaml:"mvcc"`
	Raw   []SeedValue `yaml:"raw"`
	Locks []SeedLock  `yaml:"locks"`
}

type SeedValue struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Version uint64 `yaml:"version"`
}

type SeedLock struct {
	Key     string `yaml:"key"`
	Primary string `yaml:"primary"`
	Version uint64 `yaml:"version"`
	TTL     uint64 `yaml:"ttl"`
}

// LoadTopology reads and validates a topology file.
func LoadTopology(path string) (*Topology, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topology %s: %w", path, err)
	}
	return ParseTopology(b)
}

// ParseTopology decodes and validates a YAML topology.
func ParseTopology(b []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse topology: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks that ids are unique and every reference resolves.
func (t *Topology) Validate() error {
	stores := make(map[uint64]struct{}, len(t.Stores))
	for _, s := range t.Stores {
		if s.ID == 0 || s.Address == "" {
			return fmt.Errorf("topology: store needs id and address: %+v", s)
		}
		if _, dup := stores[s.ID]; dup {
			return fmt.Errorf("topology: duplicate store id %d", s.ID)
		}
		stores[s.ID] = struct{}{}
	}

	regions := make(map[uint64]struct{}, len(t.Regions))
	for _, r := range t.Regions {
		if r.ID == 0 {
			return fmt.Errorf("topology: region without id")
		}
		if _, dup := regions[r.ID]; dup {
			return fmt.Errorf("topology: duplicate region id %d", r.ID)
		}
		regions[r.ID] = struct{}{}

		if r.EndKey != "" && keyspace.CompareBytes([]byte(r.StartKey), []byte(r.EndKey)) >= 0 {
			return fmt.Errorf("topology: region %d has empty range", r.ID)
		}
		leaderFound := r.Leader == 0
		for _, p := range r.Peers {
			if _, ok := stores[p.StoreID]; !ok {
				return fmt.Errorf("topology: region %d peer %d on unknown store %d", r.ID, p.ID, p.StoreID)
			}
			if p.ID == r.Leader {
				leaderFound = true
			}
		}
		if !leaderFound {
			return fmt.Errorf("topology: region %d leader %d is not one of its peers", r.ID, r.Leader)
		}
	}
	return nil
}

// Store returns the store with the given id.
func (t *Topology) Store(id uint64) (*Store, bool) {
	for i := range t.Stores {
		if t.Stores[i].ID == id {
			s := t.Stores[i]
			return &s, true
		}
	}
	return nil, false
}

// BuildRegions converts the YAML regions into Region values.
func (t *Topology) BuildRegions() []*Region {
	out := make([]*Region, 0, len(t.Regions))
	for _, spec := range t.Regions {
		r := &Region{
			ID:    spec.ID,
			Range: keyspace.Range{Start: []byte(spec.StartKey), End: []byte(spec.EndKey)},
			Epoch: spec.Epoch,
			Peers: append([]Peer(nil), spec.Peers...),
		}
		if p, ok := r.Peer(spec.Leader); ok {
			r.Leader = &p
		}
		out = append(out, r)
	}
	return out
}

package server

import (
	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/lib/store"
	"github.com/ValentinKolb/regionKV/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// It is responsible for executing requests that already passed routing
// validation.
type IRPCServerAdapter interface {
	// Handle executes req for region r against store and returns the
	// response. Failures are reported inside the response.
	Handle(req *common.Message, r *region.Region, store store.IStore) (resp *common.Message)
}

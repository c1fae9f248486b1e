package server

import (
	"fmt"

	"github.com/ValentinKolb/regionKV/lib/keyspace"
	"github.com/ValentinKolb/regionKV/lib/region"
	"github.com/ValentinKolb/regionKV/lib/store"
	"github.com/ValentinKolb/regionKV/rpc/common"
	"github.com/ValentinKolb/regionKV/rpc/coprocessor"
)

func NewCoprocessorServerAdapter() IRPCServerAdapter {
	return &coprocessorServerAdapterImpl{}
}

type coprocessorServerAdapterImpl struct{}

func (adapter *coprocessorServerAdapterImpl) Handle(req *common.Message, r *region.Region, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}
	if req.MsgType != common.MsgTCoprocessor {
		return common.NewErrorResponse(
			fmt.Sprintf("coprocessor adapter: unsupported message type: %s", req.MsgType),
		)
	}

	sel, err := coprocessor.DecodeRequest(req.Data)
	if err != nil {
		return common.NewErrorResponse(err.Error())
	}

	ranges := req.Ranges
	if len(ranges) == 0 {
		ranges = []keyspace.Range{r.Range}
	}

	resp, err := coprocessor.Execute(s, req.CopType, sel, ranges)
	if err != nil {
		return storeErrorResponse(req.MsgType, err)
	}

	data, err := coprocessor.EncodeResponse(resp)
	if err != nil {
		return common.NewErrorResponse(fmt.Sprintf("failed to encode select response: %v", err))
	}
	return common.NewCoprocessorResponse(data)
}

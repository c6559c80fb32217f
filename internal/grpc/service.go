package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "powledger.Ledger"

// LedgerServer is the server API for the ledger service
type LedgerServer interface {
	SubmitTransaction(context.Context, *SubmitTransactionRequest) (*SubmitTransactionResponse, error)
	Mine(context.Context, *MineRequest) (*MineResponse, error)
	Validate(context.Context, *ValidateRequest) (*ValidateResponse, error)
	GetChain(context.Context, *GetChainRequest) (*GetChainResponse, error)
	GetBlock(context.Context, *GetBlockRequest) (*Block, error)
	GetInfo(context.Context, *GetInfoRequest) (*ChainInfo, error)
	GetPending(context.Context, *GetPendingRequest) (*GetPendingResponse, error)
	StartMining(context.Context, *StartMiningRequest) (*StartMiningResponse, error)
	StopMining(context.Context, *StopMiningRequest) (*StopMiningResponse, error)
	GetMiningInfo(context.Context, *GetMiningInfoRequest) (*MiningInfo, error)
	SubscribeBlocks(*SubscribeBlocksRequest, grpc.ServerStream) error
}

// RegisterLedgerServer registers srv on a gRPC server
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ledgerServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unary[Req, Resp any](method string, call func(LedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	handler := func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		next := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, next)
	}
	return grpc.MethodDesc{MethodName: method, Handler: handler}
}

func subscribeBlocksHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeBlocksRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(LedgerServer).SubscribeBlocks(in, stream)
}

var subscribeBlocksStream = grpc.StreamDesc{
	StreamName:    "SubscribeBlocks",
	Handler:       subscribeBlocksHandler,
	ServerStreams: true,
}

var ledgerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("SubmitTransaction", LedgerServer.SubmitTransaction),
		unary("Mine", LedgerServer.Mine),
		unary("Validate", LedgerServer.Validate),
		unary("GetChain", LedgerServer.GetChain),
		unary("GetBlock", LedgerServer.GetBlock),
		unary("GetInfo", LedgerServer.GetInfo),
		unary("GetPending", LedgerServer.GetPending),
		unary("StartMining", LedgerServer.StartMining),
		unary("StopMining", LedgerServer.StopMining),
		unary("GetMiningInfo", LedgerServer.GetMiningInfo),
	},
	Streams:  []grpc.StreamDesc{subscribeBlocksStream},
	Metadata: "powledger/ledger",
}

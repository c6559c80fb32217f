package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client talks to a ledger node
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a ledger node at target. Extra options are applied after
// the defaults (plaintext transport, JSON codec).
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	}
	conn, err := grpc.DialContext(ctx, target, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(ctx, fullMethod(method), req, resp)
}

func (c *Client) SubmitTransaction(ctx context.Context, payload string) (int, error) {
	resp := new(SubmitTransactionResponse)
	if err := c.invoke(ctx, "SubmitTransaction", &SubmitTransactionRequest{Payload: payload}, resp); err != nil {
		return 0, err
	}
	return resp.Pending, nil
}

func (c *Client) Mine(ctx context.Context) (*MineResponse, error) {
	resp := new(MineResponse)
	if err := c.invoke(ctx, "Mine", &MineRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Validate(ctx context.Context) (*ValidateResponse, error) {
	resp := new(ValidateResponse)
	if err := c.invoke(ctx, "Validate", &ValidateRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetChain(ctx context.Context, from uint64, limit int) (*GetChainResponse, error) {
	resp := new(GetChainResponse)
	if err := c.invoke(ctx, "GetChain", &GetChainRequest{From: from, Limit: limit}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetBlockByIndex(ctx context.Context, index uint64) (*Block, error) {
	resp := new(Block)
	if err := c.invoke(ctx, "GetBlock", &GetBlockRequest{Index: &index}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetBlockByHash(ctx context.Context, hash string) (*Block, error) {
	resp := new(Block)
	if err := c.invoke(ctx, "GetBlock", &GetBlockRequest{Hash: hash}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetInfo(ctx context.Context) (*ChainInfo, error) {
	resp := new(ChainInfo)
	if err := c.invoke(ctx, "GetInfo", &GetInfoRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetPending(ctx context.Context) ([]string, error) {
	resp := new(GetPendingResponse)
	if err := c.invoke(ctx, "GetPending", &GetPendingRequest{}, resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

func (c *Client) StartMining(ctx context.Context, intervalMs int64) (bool, error) {
	resp := new(StartMiningResponse)
	if err := c.invoke(ctx, "StartMining", &StartMiningRequest{IntervalMs: intervalMs}, resp); err != nil {
		return false, err
	}
	return resp.Started, nil
}

func (c *Client) StopMining(ctx context.Context) (bool, error) {
	resp := new(StopMiningResponse)
	if err := c.invoke(ctx, "StopMining", &StopMiningRequest{}, resp); err != nil {
		return false, err
	}
	return resp.Stopped, nil
}

func (c *Client) GetMiningInfo(ctx context.Context) (*MiningInfo, error) {
	resp := new(MiningInfo)
	if err := c.invoke(ctx, "GetMiningInfo", &GetMiningInfoRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// BlockStream receives blocks as they are mined
type BlockStream struct {
	stream grpc.ClientStream
}

// Recv blocks until the next block arrives or the stream ends
func (b *BlockStream) Recv() (*Block, error) {
	block := new(Block)
	if err := b.stream.RecvMsg(block); err != nil {
		return nil, err
	}
	return block, nil
}

// SubscribeBlocks opens a block stream; cancel ctx to close it
func (c *Client) SubscribeBlocks(ctx context.Context) (*BlockStream, error) {
	stream, err := c.conn.NewStream(ctx, &subscribeBlocksStream, fullMethod("SubscribeBlocks"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&SubscribeBlocksRequest{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &BlockStream{stream: stream}, nil
}

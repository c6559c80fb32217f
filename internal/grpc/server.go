package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yourusername/powledger/internal/blockchain"
	"github.com/yourusername/powledger/internal/pow"
	"github.com/yourusername/powledger/pkg/types"
)

const (
	// DefaultMiningInterval is how often the background miner checks for pending transactions
	DefaultMiningInterval = 5 * time.Second

	subscriberBuffer = 16
)

// Option customizes a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMineTimeout bounds every mining attempt; 0 disables the bound
func WithMineTimeout(timeout time.Duration) Option {
	return func(s *Server) { s.mineTimeout = timeout }
}

// WithMiningInterval sets the default background mining interval
func WithMiningInterval(interval time.Duration) Option {
	return func(s *Server) { s.miningInterval = interval }
}

// Server implements LedgerServer on top of one chain.
// chainMu is held for every chain call, mining included.
type Server struct {
	chainMu sync.Mutex
	bc      *blockchain.Blockchain

	logger      *zap.Logger
	mineTimeout time.Duration

	// Mining control
	miningMu       sync.Mutex
	isMining       bool
	stopMining     chan struct{}
	miningDone     chan struct{}
	miningInterval time.Duration
	blocksMined    int64

	// Streaming subscriptions
	subsMu    sync.RWMutex
	blockSubs map[chan *Block]struct{}

	done       chan struct{}
	stopOnce   sync.Once
	grpcServer *grpc.Server
}

// NewServer creates a new gRPC server for bc
func NewServer(bc *blockchain.Blockchain, opts ...Option) *Server {
	s := &Server{
		bc:             bc,
		logger:         zap.NewNop(),
		miningInterval: DefaultMiningInterval,
		blockSubs:      make(map[chan *Block]struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.grpcServer = grpc.NewServer(
		grpc.ForceServerCodec(jsonCodec{}),
		grpc.ChainUnaryInterceptor(s.logUnary),
	)
	RegisterLedgerServer(s.grpcServer, s)
	return s
}

// Start listens on address and serves until Stop is called
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("gRPC server listening", zap.String("address", lis.Addr().String()))
	return s.Serve(lis)
}

// Serve accepts connections on lis
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop stops the background miner, ends subscriptions and drains in-flight calls
func (s *Server) Stop() {
	s.StopMiningInternal()
	s.stopOnce.Do(func() { close(s.done) })
	s.grpcServer.GracefulStop()
}

// logUnary tags every call with a request id and logs its outcome
func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	requestID := uuid.NewString()

	resp, err := handler(ctx, req)

	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("method", info.FullMethod),
		zap.Duration("elapsed", time.Since(start)),
		zap.Stringer("code", status.Code(err)),
	}
	if err != nil {
		s.logger.Warn("rpc failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("rpc", fields...)
	}
	return resp, err
}

// SubmitTransaction queues a payload for the next block
func (s *Server) SubmitTransaction(ctx context.Context, req *SubmitTransactionRequest) (*SubmitTransactionResponse, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	s.bc.AddTransaction(req.Payload)
	return &SubmitTransactionResponse{Pending: len(s.bc.Pending())}, nil
}

// Mine seals the pending transactions into a block
func (s *Server) Mine(ctx context.Context, req *MineRequest) (*MineResponse, error) {
	block, err := s.mineOnce(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if block == nil {
		return &MineResponse{Mined: false}, nil
	}
	return &MineResponse{Mined: true, Index: block.Index(), Block: blockToMessage(block)}, nil
}

// mineOnce mines and notifies subscribers under the chain lock.
// It returns a nil block when nothing was pending.
func (s *Server) mineOnce(ctx context.Context) (*types.Block, error) {
	if s.mineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.mineTimeout)
		defer cancel()
	}

	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	index, mined, err := s.bc.Mine(ctx)
	if err != nil || !mined {
		return nil, err
	}
	block, err := s.bc.GetBlock(index)
	if err != nil {
		return nil, err
	}

	// Notify under the lock so subscribers see blocks in chain order
	s.notifyBlockSubscribers(blockToMessage(block))
	return block, nil
}

// Validate re-checks the whole chain
func (s *Server) Validate(ctx context.Context, req *ValidateRequest) (*ValidateResponse, error) {
	s.chainMu.Lock()
	err := s.bc.Validate()
	s.chainMu.Unlock()

	if err == nil {
		return &ValidateResponse{Valid: true}, nil
	}

	resp := &ValidateResponse{Valid: false, Reason: err.Error()}
	var verr *blockchain.ValidationError
	if errors.As(err, &verr) {
		resp.BlockIndex = verr.Index
		resp.Reason = verr.Reason.Error()
	}
	return resp, nil
}

// GetChain returns blocks in order starting at req.From
func (s *Server) GetChain(ctx context.Context, req *GetChainRequest) (*GetChainResponse, error) {
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	s.chainMu.Lock()
	blocks := s.bc.Blocks()
	s.chainMu.Unlock()

	resp := &GetChainResponse{Height: len(blocks), Blocks: []*Block{}}
	if req.From >= uint64(len(blocks)) {
		return resp, nil
	}

	blocks = blocks[req.From:]
	if req.Limit > 0 && req.Limit < len(blocks) {
		blocks = blocks[:req.Limit]
	}
	for _, block := range blocks {
		resp.Blocks = append(resp.Blocks, blockToMessage(block))
	}
	return resp, nil
}

// GetBlock retrieves a block by hash or index
func (s *Server) GetBlock(ctx context.Context, req *GetBlockRequest) (*Block, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	var (
		block *types.Block
		err   error
	)
	switch {
	case req.Hash != "":
		block, err = s.bc.GetBlockByHash(req.Hash)
	case req.Index != nil:
		block, err = s.bc.GetBlock(*req.Index)
	default:
		return nil, status.Error(codes.InvalidArgument, "hash or index is required")
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return blockToMessage(block), nil
}

// GetInfo returns blockchain information
func (s *Server) GetInfo(ctx context.Context, req *GetInfoRequest) (*ChainInfo, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	return &ChainInfo{
		Height:     s.bc.Height(),
		TipHash:    s.bc.Tip().Hash(),
		Difficulty: s.bc.Difficulty(),
		Algorithm:  s.bc.Algorithm().String(),
		Pending:    len(s.bc.Pending()),
	}, nil
}

// GetPending returns the transactions waiting to be mined
func (s *Server) GetPending(ctx context.Context, req *GetPendingRequest) (*GetPendingResponse, error) {
	s.chainMu.Lock()
	defer s.chainMu.Unlock()

	return &GetPendingResponse{Transactions: s.bc.Pending()}, nil
}

// StartMining starts the background miner
func (s *Server) StartMining(ctx context.Context, req *StartMiningRequest) (*StartMiningResponse, error) {
	if req.IntervalMs < 0 {
		return nil, status.Error(codes.InvalidArgument, "interval must not be negative")
	}

	interval := time.Duration(req.IntervalMs) * time.Millisecond
	return &StartMiningResponse{Started: s.StartMiningInternal(interval)}, nil
}

// StartMiningInternal starts the background miner. It returns false if the
// miner was already running. A zero interval keeps the configured one.
func (s *Server) StartMiningInternal(interval time.Duration) bool {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	if s.isMining {
		return false
	}
	if interval > 0 {
		s.miningInterval = interval
	}

	s.isMining = true
	s.stopMining = make(chan struct{})
	s.miningDone = make(chan struct{})
	go s.mineBlocks(s.miningInterval, s.stopMining, s.miningDone)
	return true
}

// StopMining stops the background miner
func (s *Server) StopMining(ctx context.Context, req *StopMiningRequest) (*StopMiningResponse, error) {
	return &StopMiningResponse{Stopped: s.StopMiningInternal()}, nil
}

// StopMiningInternal stops the background miner and waits for it to exit.
// It returns false if the miner was not running.
func (s *Server) StopMiningInternal() bool {
	s.miningMu.Lock()
	if !s.isMining {
		s.miningMu.Unlock()
		return false
	}
	close(s.stopMining)
	done := s.miningDone
	s.isMining = false
	s.miningMu.Unlock()

	<-done
	return true
}

// GetMiningInfo reports the background miner state
func (s *Server) GetMiningInfo(ctx context.Context, req *GetMiningInfoRequest) (*MiningInfo, error) {
	s.miningMu.Lock()
	defer s.miningMu.Unlock()

	return &MiningInfo{
		IsMining:    s.isMining,
		BlocksMined: s.blocksMined,
		IntervalMs:  s.miningInterval.Milliseconds(),
	}, nil
}

func (s *Server) mineBlocks(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("background mining started", zap.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.logger.Info("background mining stopped")
			return
		case <-ticker.C:
			block, err := s.mineOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("mining error", zap.Error(err))
				}
				continue
			}
			if block != nil {
				s.miningMu.Lock()
				s.blocksMined++
				s.miningMu.Unlock()
			}
		}
	}
}

// SubscribeBlocks streams every block mined after the call
func (s *Server) SubscribeBlocks(req *SubscribeBlocksRequest, stream grpc.ServerStream) error {
	ch := make(chan *Block, subscriberBuffer)

	s.subsMu.Lock()
	s.blockSubs[ch] = struct{}{}
	s.subsMu.Unlock()

	defer func() {
		s.subsMu.Lock()
		delete(s.blockSubs, ch)
		s.subsMu.Unlock()
	}()

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		case block := <-ch:
			if err := stream.SendMsg(block); err != nil {
				return err
			}
		}
	}
}

func (s *Server) notifyBlockSubscribers(block *Block) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for ch := range s.blockSubs {
		select {
		case ch <- block:
		default:
			s.logger.Warn("dropping block for slow subscriber", zap.Uint64("index", block.Index))
		}
	}
}

// subscriberCount is used by tests to wait for a stream to register
func (s *Server) subscriberCount() int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	return len(s.blockSubs)
}

// toStatus maps chain errors onto gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, blockchain.ErrBlockNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, pow.ErrAttemptsExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

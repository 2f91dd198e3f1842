package client

import (
	"context"
	"fmt"
	"time"

	gentlerpc "gentle/pkg/api/gentlerpc/v1"
	"gentle/pkg/core"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// MaxMessageSize 单个内容对象在线路上的上限
const MaxMessageSize = 1024 * 1024 * 1024 // 1GB

// Client 把远端 gentle-server 包装成一个 storage.DataStore
type Client struct {
	conn     *grpc.ClientConn
	content  *ContentStore
	pointers *PointerStore
}

var _ storage.DataStore = (*Client)(nil)

type Option func(*callTimeout)

// WithTimeout 每次 RPC 的超时；调用方的 ctx 已有 deadline 时以调用方为准
// d <= 0 表示不限制
func WithTimeout(d time.Duration) Option {
	return func(t *callTimeout) { *t = callTimeout(d) }
}

// New 创建并初始化客户端
// 它只负责创建对象，连接在后台建立，网络不通会在第一次调用时报错
func New(addr string, opts ...Option) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxMessageSize),
			grpc.MaxCallSendMsgSize(MaxMessageSize),
		),
		// 保持连接活跃
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		// 这里的 err 通常只是配置错误（如地址格式不对）
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}
	c := NewWithConn(conn, opts...)
	c.conn = conn
	return c, nil
}

// NewWithConn 复用调用方的连接，Close 不会关闭它
func NewWithConn(cc grpc.ClientConnInterface, opts ...Option) *Client {
	var timeout callTimeout
	for _, o := range opts {
		o(&timeout)
	}
	rpc := gentlerpc.NewDataStoreClient(cc)
	return &Client{
		content:  &ContentStore{rpc: rpc, timeout: timeout},
		pointers: &PointerStore{rpc: rpc, timeout: timeout},
	}
}

type callTimeout time.Duration

func (t callTimeout) with(ctx context.Context) (context.Context, context.CancelFunc) {
	if t <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(t))
}

func (c *Client) ContentStore() storage.ContentStore { return c.content }
func (c *Client) PointerStore() storage.PointerStore { return c.pointers }

// Close 关闭底层连接
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// =============================================================================
// Content
// =============================================================================

type ContentStore struct {
	rpc     gentlerpc.DataStoreClient
	timeout callTimeout
}

// Put 服务端返回的标识符必须与本地计算的一致，否则视为线路损坏
func (s *ContentStore) Put(ctx context.Context, data []byte) (types.Hash, error) {
	want := core.CalculateBlobHash(data)
	ctx, cancel := s.timeout.with(ctx)
	defer cancel()
	resp, err := s.rpc.PutContent(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return "", FromStatus(err)
	}
	if got := types.Hash(resp.GetValue()); got != want {
		return "", fmt.Errorf("%w: server returned %s for content %s", storage.ErrIntegrityViolation, got.Short(), want.Short())
	}
	return want, nil
}

func (s *ContentStore) Get(ctx context.Context, hash types.Hash) ([]byte, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return nil, err
	}
	ctx, cancel := s.timeout.with(ctx)
	defer cancel()
	resp, err := s.rpc.GetContent(ctx, wrapperspb.String(hash.String()))
	if err != nil {
		return nil, FromStatus(err)
	}
	data := resp.GetValue()
	if !core.VerifyBlob(hash, data) {
		return nil, fmt.Errorf("%w: server returned bytes that do not hash to %s", storage.ErrIntegrityViolation, hash.Short())
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func (s *ContentStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	if err := ident.ValidateHash(hash); err != nil {
		return false, err
	}
	ctx, cancel := s.timeout.with(ctx)
	defer cancel()
	resp, err := s.rpc.HasContent(ctx, wrapperspb.String(hash.String()))
	if err != nil {
		return false, FromStatus(err)
	}
	return resp.GetValue(), nil
}

func (s *ContentStore) Find(ctx context.Context, prefix string) ([]types.Hash, error) {
	ctx, cancel := s.timeout.with(ctx)
	defer cancel()
	resp, err := s.rpc.FindContent(ctx, wrapperspb.String(prefix))
	if err != nil {
		return nil, FromStatus(err)
	}
	return convert[types.Hash](gentlerpc.Strings(resp)), nil
}

// =============================================================================
// Pointer
// =============================================================================

type PointerStore struct {
	rpc     gentlerpc.DataStoreClient
	timeout callTimeout
}

func (s *PointerStore) Put(ctx context.Context, pointer types.PointerID, content types.Hash) (types.Hash, error) {
	// 本地先校验，保证错误里带着正确的 Grammar
	if err := ident.ValidatePointer(pointer); err != nil {
		return "", err
	}
	if err := ident.ValidateHash(content); err != nil {
		return "", err
	}
	ctx, cancel := s.timeout.with(ctx)
	defer cancel()
	resp, err := s.rpc.PutPointer(ctx, gentlerpc.NewPointerRequest(pointer.String(), content.String()))
	if err != nil {
		return "", FromStatus(err)
	}
	return types.Hash(resp.GetValue()), nil
}

func (s *PointerStore) Get(ctx context.Context, pointer types.PointerID) (types.Hash, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return "", err
	}
	ctx, cancel := s.timeout.with(ctx)
	defer cancel()
	resp, err := s.rpc.GetPointer(ctx, wrapperspb.String(pointer.String()))
	if err != nil {
		return "", FromStatus(err)
	}
	return types.Hash(resp.GetValue()), nil
}

func (s *PointerStore) Has(ctx context.Context, pointer types.PointerID) (bool, error) {
	if err := ident.ValidatePointer(pointer); err != nil {
		return false, err
	}
	ctx, cancel := s.timeout.with(ctx)
	defer cancel()
	resp, err := s.rpc.HasPointer(ctx, wrapperspb.String(pointer.String()))
	if err != nil {
		return false, FromStatus(err)
	}
	return resp.GetValue(), nil
}

func (s *PointerStore) Find(ctx context.Context, prefix string) ([]types.PointerID, error) {
	ctx, cancel := s.timeout.with(ctx)
	defer cancel()
	resp, err := s.rpc.FindPointers(ctx, wrapperspb.String(prefix))
	if err != nil {
		return nil, FromStatus(err)
	}
	return convert[types.PointerID](gentlerpc.Strings(resp)), nil
}

// =============================================================================
// Helpers
// =============================================================================

// FromStatus 把 gRPC 状态码还原为存储层的哨兵错误
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var sentinel error
	switch st.Code() {
	case codes.InvalidArgument:
		sentinel = storage.ErrInvalidIdentifier
	case codes.NotFound:
		sentinel = storage.ErrNotFound
	case codes.DataLoss:
		sentinel = storage.ErrIntegrityViolation
	case codes.Aborted:
		sentinel = storage.ErrConcurrentUpdate
	case codes.Unimplemented:
		sentinel = storage.ErrDeleteUnsupported
	case codes.Canceled:
		sentinel = context.Canceled
	case codes.DeadlineExceeded:
		sentinel = context.DeadlineExceeded
	default:
		return fmt.Errorf("remote store: %w", err)
	}
	return fmt.Errorf("%w (remote: %s)", sentinel, st.Message())
}

func convert[K ~string](items []string) []K {
	out := make([]K, len(items))
	for i, s := range items {
		out[i] = K(s)
	}
	return out
}

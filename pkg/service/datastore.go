package service

import (
	"context"
	"errors"

	gentlerpc "gentle/pkg/api/gentlerpc/v1"
	"gentle/pkg/ident"
	"gentle/pkg/storage"
	"gentle/pkg/types"

	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DataService 把一个 storage.DataStore 暴露为 gentle.v1.DataStore 服务
// 校验全部交给底层 store，这里只负责转换类型和错误码
type DataService struct {
	ds     storage.DataStore
	logger *zap.Logger
}

var _ gentlerpc.DataStoreServer = (*DataService)(nil)

func NewDataService(ds storage.DataStore, logger *zap.Logger) *DataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataService{ds: ds, logger: logger}
}

// =============================================================================
// 1. Content
// =============================================================================

func (s *DataService) PutContent(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	h, err := s.ds.ContentStore().Put(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, storage.ErrIntegrityViolation) {
			s.logger.Error("🚨 integrity violation on put", zap.Error(err))
		}
		return nil, ToStatus(err)
	}
	return wrapperspb.String(h.String()), nil
}

func (s *DataService) GetContent(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	data, err := s.ds.ContentStore().Get(ctx, types.Hash(req.GetValue()))
	if err != nil {
		return nil, ToStatus(err)
	}
	return wrapperspb.Bytes(data), nil
}

func (s *DataService) HasContent(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	ok, err := s.ds.ContentStore().Has(ctx, types.Hash(req.GetValue()))
	if err != nil {
		return nil, ToStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *DataService) FindContent(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	hashes, err := s.ds.ContentStore().Find(ctx, req.GetValue())
	if err != nil {
		return nil, ToStatus(err)
	}
	return gentlerpc.NewStringList(hashes), nil
}

// =============================================================================
// 2. Pointer
// =============================================================================

func (s *DataService) PutPointer(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	fields := req.GetFields()
	pointer := types.PointerID(fields[gentlerpc.FieldPointer].GetStringValue())
	content := types.Hash(fields[gentlerpc.FieldContent].GetStringValue())

	prev, err := s.ds.PointerStore().Put(ctx, pointer, content)
	if err != nil {
		return nil, ToStatus(err)
	}
	return wrapperspb.String(prev.String()), nil
}

func (s *DataService) GetPointer(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	h, err := s.ds.PointerStore().Get(ctx, types.PointerID(req.GetValue()))
	if err != nil {
		return nil, ToStatus(err)
	}
	return wrapperspb.String(h.String()), nil
}

func (s *DataService) HasPointer(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	ok, err := s.ds.PointerStore().Has(ctx, types.PointerID(req.GetValue()))
	if err != nil {
		return nil, ToStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *DataService) FindPointers(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	ids, err := s.ds.PointerStore().Find(ctx, req.GetValue())
	if err != nil {
		return nil, ToStatus(err)
	}
	return gentlerpc.NewStringList(ids), nil
}

// =============================================================================
// 3. Error mapping
// =============================================================================

// ToStatus 映射存储层错误到 gRPC 状态码
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, storage.ErrInvalidIdentifier), errors.Is(err, storage.ErrAmbiguousHash):
		code = codes.InvalidArgument
	case errors.Is(err, storage.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, storage.ErrIntegrityViolation):
		code = codes.DataLoss
	case errors.Is(err, storage.ErrConcurrentUpdate):
		code = codes.Aborted
	case errors.Is(err, storage.ErrDeleteUnsupported):
		code = codes.Unimplemented
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	st := status.New(code, err.Error())

	// 标出是哪个参数违反了语法 ("pointer" / "content" / "prefix")
	if g := ident.GrammarOf(err); g != 0 {
		detailed, derr := st.WithDetails(&errdetails.BadRequest{
			FieldViolations: []*errdetails.BadRequest_FieldViolation{{
				Field:       g.String(),
				Description: err.Error(),
			}},
		})
		if derr == nil {
			st = detailed
		}
	}
	return st.Err()
}

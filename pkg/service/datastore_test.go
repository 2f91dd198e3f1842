package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gentlerpc "gentle/pkg/api/gentlerpc/v1"
	"gentle/pkg/core"
	"gentle/pkg/storage"
	"gentle/pkg/storage/mem"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func setupTestService(t *testing.T) *DataService {
	t.Helper()
	return NewDataService(mem.New(), nil)
}

func TestDataService_Scenario(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	// 1. 写入 hello / world
	h1, err := svc.PutContent(ctx, wrapperspb.Bytes([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, core.CalculateBlobHash([]byte("hello")).String(), h1.GetValue())
	h2, err := svc.PutContent(ctx, wrapperspb.Bytes([]byte("world")))
	require.NoError(t, err)

	// 2. latest -> hello
	prev, err := svc.PutPointer(ctx, gentlerpc.NewPointerRequest("latest", h1.GetValue()))
	require.NoError(t, err)
	assert.Empty(t, prev.GetValue())

	// 3. latest -> world，返回 hello
	prev, err = svc.PutPointer(ctx, gentlerpc.NewPointerRequest("latest", h2.GetValue()))
	require.NoError(t, err)
	assert.Equal(t, h1.GetValue(), prev.GetValue())

	// 4. 解引用
	target, err := svc.GetPointer(ctx, wrapperspb.String("latest"))
	require.NoError(t, err)
	data, err := svc.GetContent(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), data.GetValue())

	ok, err := svc.HasPointer(ctx, wrapperspb.String("latest"))
	require.NoError(t, err)
	assert.True(t, ok.GetValue())

	found, err := svc.FindContent(ctx, wrapperspb.String(""))
	require.NoError(t, err)
	assert.Len(t, gentlerpc.Strings(found), 2)

	ptrs, err := svc.FindPointers(ctx, wrapperspb.String("lat"))
	require.NoError(t, err)
	assert.Equal(t, []string{"latest"}, gentlerpc.Strings(ptrs))
}

func TestDataService_ErrorCodes(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	_, err := svc.GetContent(ctx, wrapperspb.String("not-a-hash"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.GetContent(ctx, wrapperspb.String(core.CalculateBlobHash([]byte("missing")).String()))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.GetPointer(ctx, wrapperspb.String("nobody"))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.PutPointer(ctx, gentlerpc.NewPointerRequest("bad name", core.CalculateBlobHash(nil).String()))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	// 缺字段：content 为空串，同样是非法标识符
	_, err = svc.PutPointer(ctx, gentlerpc.NewPointerRequest("latest", ""))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{storage.NotFound("content", "x"), codes.NotFound},
		{fmt.Errorf("wrap: %w", storage.ErrInvalidIdentifier), codes.InvalidArgument},
		{storage.ErrAmbiguousHash, codes.InvalidArgument},
		{&storage.IntegrityError{Hash: "h"}, codes.DataLoss},
		{storage.ErrConcurrentUpdate, codes.Aborted},
		{storage.ErrDeleteUnsupported, codes.Unimplemented},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("disk on fire"), codes.Internal},
		{status.Error(codes.Unavailable, "already a status"), codes.Unavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, status.Code(ToStatus(tc.err)), "%v", tc.err)
	}
	assert.NoError(t, ToStatus(nil))
}

// violatedField 取出 BadRequest 详情里的字段名
func violatedField(t *testing.T, err error) string {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok)
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			require.Len(t, br.GetFieldViolations(), 1)
			return br.GetFieldViolations()[0].GetField()
		}
	}
	return ""
}

func TestDataService_PutPointerNamesBadArgument(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	h := core.CalculateBlobHash([]byte("hello")).String()

	_, err := svc.PutPointer(ctx, gentlerpc.NewPointerRequest("bad name", h))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, gentlerpc.FieldPointer, violatedField(t, err))

	_, err = svc.PutPointer(ctx, gentlerpc.NewPointerRequest("latest", "not-hex"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, gentlerpc.FieldContent, violatedField(t, err))

	// 非校验错误不带详情
	_, err = svc.GetPointer(ctx, wrapperspb.String("missing"))
	assert.Equal(t, codes.NotFound, status.Code(err))
	assert.Empty(t, violatedField(t, err))
}

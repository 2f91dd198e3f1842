// Package gentlerpc 定义 gentle.v1.DataStore gRPC 服务
// 请求与响应全部使用 protobuf 内置的 wrapper / struct 消息，不需要额外的 .proto 生成步骤
package gentlerpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "gentle.v1.DataStore"

const (
	DataStore_PutContent_FullMethodName   = "/gentle.v1.DataStore/PutContent"
	DataStore_GetContent_FullMethodName   = "/gentle.v1.DataStore/GetContent"
	DataStore_HasContent_FullMethodName   = "/gentle.v1.DataStore/HasContent"
	DataStore_FindContent_FullMethodName  = "/gentle.v1.DataStore/FindContent"
	DataStore_PutPointer_FullMethodName   = "/gentle.v1.DataStore/PutPointer"
	DataStore_GetPointer_FullMethodName   = "/gentle.v1.DataStore/GetPointer"
	DataStore_HasPointer_FullMethodName   = "/gentle.v1.DataStore/HasPointer"
	DataStore_FindPointers_FullMethodName = "/gentle.v1.DataStore/FindPointers"
)

// PutPointer 请求体 (structpb.Struct) 的字段名
const (
	FieldPointer = "pointer"
	FieldContent = "content"
)

// DataStoreServer 是服务端需要实现的接口
type DataStoreServer interface {
	// PutContent: bytes -> content id
	PutContent(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	// GetContent: content id -> bytes
	GetContent(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	HasContent(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	// FindContent: prefix -> 有序的 content id 列表
	FindContent(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)

	// PutPointer: {pointer, content} -> previous content id ("" 表示新建)
	PutPointer(context.Context, *structpb.Struct) (*wrapperspb.StringValue, error)
	GetPointer(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	HasPointer(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	FindPointers(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
}

func RegisterDataStoreServer(s grpc.ServiceRegistrar, srv DataStoreServer) {
	s.RegisterService(&DataStore_ServiceDesc, srv)
}

// DataStore_ServiceDesc 手写的服务描述，结构与 protoc-gen-go-grpc 的输出一致
var DataStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DataStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PutContent", DataStore_PutContent_FullMethodName, DataStoreServer.PutContent),
		unary("GetContent", DataStore_GetContent_FullMethodName, DataStoreServer.GetContent),
		unary("HasContent", DataStore_HasContent_FullMethodName, DataStoreServer.HasContent),
		unary("FindContent", DataStore_FindContent_FullMethodName, DataStoreServer.FindContent),
		unary("PutPointer", DataStore_PutPointer_FullMethodName, DataStoreServer.PutPointer),
		unary("GetPointer", DataStore_GetPointer_FullMethodName, DataStoreServer.GetPointer),
		unary("HasPointer", DataStore_HasPointer_FullMethodName, DataStoreServer.HasPointer),
		unary("FindPointers", DataStore_FindPointers_FullMethodName, DataStoreServer.FindPointers),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gentle/v1/datastore.proto",
}

func unary[Req, Resp any](name, fullMethod string, call func(DataStoreServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DataStoreServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// DataStoreClient 是客户端桩
type DataStoreClient interface {
	PutContent(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	GetContent(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	HasContent(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	FindContent(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
	PutPointer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	GetPointer(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	HasPointer(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	FindPointers(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type dataStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewDataStoreClient(cc grpc.ClientConnInterface) DataStoreClient {
	return &dataStoreClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dataStoreClient) PutContent(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, DataStore_PutContent_FullMethodName, in, opts)
}

func (c *dataStoreClient) GetContent(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, DataStore_GetContent_FullMethodName, in, opts)
}

func (c *dataStoreClient) HasContent(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, DataStore_HasContent_FullMethodName, in, opts)
}

func (c *dataStoreClient) FindContent(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, DataStore_FindContent_FullMethodName, in, opts)
}

func (c *dataStoreClient) PutPointer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, DataStore_PutPointer_FullMethodName, in, opts)
}

func (c *dataStoreClient) GetPointer(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke[wrapperspb.StringValue](ctx, c.cc, DataStore_GetPointer_FullMethodName, in, opts)
}

func (c *dataStoreClient) HasPointer(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, DataStore_HasPointer_FullMethodName, in, opts)
}

func (c *dataStoreClient) FindPointers(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, DataStore_FindPointers_FullMethodName, in, opts)
}

// NewPointerRequest 构造 PutPointer 的请求体
func NewPointerRequest(pointer, content string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldPointer: structpb.NewStringValue(pointer),
		FieldContent: structpb.NewStringValue(content),
	}}
}

// Strings 把 ListValue 中的字符串取出来，非字符串元素被忽略
func Strings(l *structpb.ListValue) []string {
	out := make([]string, 0, len(l.GetValues()))
	for _, v := range l.GetValues() {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			out = append(out, s.StringValue)
		}
	}
	return out
}

// NewStringList 是 Strings 的逆操作
func NewStringList[S ~string](items []S) *structpb.ListValue {
	values := make([]*structpb.Value, len(items))
	for i, s := range items {
		values[i] = structpb.NewStringValue(string(s))
	}
	return &structpb.ListValue{Values: values}
}

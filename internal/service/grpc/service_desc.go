package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	methodConnect      = "/" + serviceName + "/Connect"
	methodDisconnect   = "/" + serviceName + "/Disconnect"
	methodStatus       = "/" + serviceName + "/Status"
	methodPrintReceipt = "/" + serviceName + "/PrintReceipt"
	methodTestPrint    = "/" + serviceName + "/TestPrint"
)

func emptyHandler(fullMethod string, call func(PrinterServiceServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(PrinterServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func printReceiptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	server := srv.(PrinterServiceServer)
	if interceptor == nil {
		return server.PrintReceipt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPrintReceipt}
	handler := func(ctx context.Context, req any) (any, error) {
		return server.PrintReceipt(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// PrinterServiceDesc — описание pos.v1.PrinterService для grpc.Server.
var PrinterServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PrinterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Connect", Handler: emptyHandler(methodConnect, PrinterServiceServer.Connect)},
		{MethodName: "Disconnect", Handler: emptyHandler(methodDisconnect, PrinterServiceServer.Disconnect)},
		{MethodName: "Status", Handler: emptyHandler(methodStatus, PrinterServiceServer.Status)},
		{MethodName: "PrintReceipt", Handler: printReceiptHandler},
		{MethodName: "TestPrint", Handler: emptyHandler(methodTestPrint, PrinterServiceServer.TestPrint)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoFile,
}

// PrinterClient — клиент pos.v1.PrinterService.
type PrinterClient struct {
	cc grpc.ClientConnInterface
}

// NewPrinterClient создаёт клиента поверх соединения.
func NewPrinterClient(cc grpc.ClientConnInterface) *PrinterClient {
	return &PrinterClient{cc: cc}
}

func (c *PrinterClient) invoke(ctx context.Context, method string, in any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PrinterClient) Connect(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodConnect, &emptypb.Empty{}, opts...)
}

func (c *PrinterClient) Disconnect(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodDisconnect, &emptypb.Empty{}, opts...)
}

func (c *PrinterClient) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodStatus, &emptypb.Empty{}, opts...)
}

func (c *PrinterClient) PrintReceipt(ctx context.Context, receiptID int64, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodPrintReceipt, wrapperspb.Int64(receiptID), opts...)
}

func (c *PrinterClient) TestPrint(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodTestPrint, &emptypb.Empty{}, opts...)
}

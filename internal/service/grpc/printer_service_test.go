package grpcsvc_test

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/printer"
	grpcsvc "github.com/vladislavdragonenkov/pos/internal/service/grpc"
	"github.com/vladislavdragonenkov/pos/internal/service/printing"
)

const bufSize = 1024 * 1024

type fakePrinting struct {
	mu        sync.Mutex
	connected bool
	printErr  error
	printed   []int64
}

func (f *fakePrinting) status() printer.Status {
	state := printer.StateDisconnected
	if f.connected {
		state = printer.StateConnected
	}
	return printer.Status{State: state, StateName: state.String(), Connected: f.connected, DeviceName: "lp0"}
}

func (f *fakePrinting) Connect(context.Context) (printer.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return f.status(), nil
}

func (f *fakePrinting) Disconnect() (printer.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return f.status(), nil
}

func (f *fakePrinting) Status() printer.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status()
}

func (f *fakePrinting) PrintReceipt(_ context.Context, r domain.Receipt) (printing.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.printErr != nil {
		return printing.Result{}, f.printErr
	}
	f.printed = append(f.printed, r.ID)
	return printing.Result{Bytes: 120, Fallback: true, Chunks: 12}, nil
}

func (f *fakePrinting) TestPrint(context.Context) (printing.Result, error) {
	return printing.Result{Bytes: 40}, nil
}

type receipts map[int64]domain.Receipt

func (r receipts) Receipt(id int64) (domain.Receipt, error) {
	rec, ok := r[id]
	if !ok {
		return domain.Receipt{}, domain.ErrReceiptNotFound
	}
	return rec, nil
}

func loggerForTests() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestClient(t *testing.T, p *fakePrinting, opts ...grpc.ServerOption) *grpcsvc.PrinterClient {
	t.Helper()
	listener := bufconn.Listen(bufSize)
	service := grpcsvc.NewPrinterService(p, receipts{42: {ID: 42, InvoiceNo: 3}}, loggerForTests())

	server := grpc.NewServer(opts...)
	require.NoError(t, grpcsvc.Register(server, service))
	go func() { _ = server.Serve(listener) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})
	return grpcsvc.NewPrinterClient(conn)
}

func TestPrinterService_ConnectStatusDisconnect(t *testing.T) {
	client := newTestClient(t, &fakePrinting{})
	ctx := context.Background()

	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.GetFields()["connected"].GetBoolValue())

	st, err = client.Connect(ctx)
	require.NoError(t, err)
	assert.True(t, st.GetFields()["connected"].GetBoolValue())
	assert.Equal(t, "connected", st.GetFields()["state"].GetStringValue())
	assert.Equal(t, "lp0", st.GetFields()["deviceName"].GetStringValue())

	st, err = client.Disconnect(ctx)
	require.NoError(t, err)
	assert.False(t, st.GetFields()["connected"].GetBoolValue())
}

func TestPrinterService_PrintReceipt(t *testing.T) {
	p := &fakePrinting{}
	client := newTestClient(t, p)
	ctx := context.Background()

	res, err := client.PrintReceipt(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, float64(120), res.GetFields()["bytes"].GetNumberValue())
	assert.True(t, res.GetFields()["fallback"].GetBoolValue())
	assert.Equal(t, []int64{42}, p.printed)

	_, err = client.PrintReceipt(ctx, 7)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.PrintReceipt(ctx, 0)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestPrinterService_ErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{domain.ErrBusy, codes.Aborted},
		{domain.ErrNotConnected, codes.FailedPrecondition},
		{domain.ErrWriteFailed, codes.Unavailable},
		{domain.ErrNoWritableChannel, codes.Unavailable},
		{domain.ErrNotSupported, codes.Unimplemented},
		{domain.ErrDeviceNotFound, codes.NotFound},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{io.ErrUnexpectedEOF, codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			client := newTestClient(t, &fakePrinting{printErr: tt.err})
			_, err := client.PrintReceipt(context.Background(), 42)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestPrinterService_TestPrintWithMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := promgrpc.NewServerMetrics()
	reg.MustRegister(metrics)

	client := newTestClient(t, &fakePrinting{}, grpc.ChainUnaryInterceptor(metrics.UnaryServerInterceptor()))

	res, err := client.TestPrint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(40), res.GetFields()["bytes"].GetNumberValue())

	count, err := testutil.GatherAndCount(reg, "grpc_server_handled_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDescriptorRegistered(t *testing.T) {
	require.NoError(t, grpcsvc.Register(grpc.NewServer(), grpcsvc.NewPrinterService(&fakePrinting{}, receipts{}, nil)))

	desc, err := protoregistry.GlobalFiles.FindDescriptorByName("pos.v1.PrinterService")
	require.NoError(t, err)
	svc, ok := desc.(protoreflect.ServiceDescriptor)
	require.True(t, ok)
	assert.Equal(t, 5, svc.Methods().Len())
	assert.Equal(t, protoreflect.FullName("google.protobuf.Int64Value"), svc.Methods().ByName("PrintReceipt").Input().FullName())
}

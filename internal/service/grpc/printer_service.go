// Package grpcsvc — gRPC API управления принтером.
package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/printer"
	"github.com/vladislavdragonenkov/pos/internal/service/printing"
)

const serviceName = "pos.v1.PrinterService"

// PrinterServiceServer — серверная часть pos.v1.PrinterService.
type PrinterServiceServer interface {
	Connect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Disconnect(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	PrintReceipt(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	TestPrint(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// Printing — сценарии печати, нужные серверу.
type Printing interface {
	Connect(ctx context.Context) (printer.Status, error)
	Disconnect() (printer.Status, error)
	Status() printer.Status
	PrintReceipt(ctx context.Context, r domain.Receipt) (printing.Result, error)
	TestPrint(ctx context.Context) (printing.Result, error)
}

// ReceiptSource находит сохранённый чек по id.
type ReceiptSource interface {
	Receipt(id int64) (domain.Receipt, error)
}

// PrinterService реализует PrinterServiceServer.
type PrinterService struct {
	printing Printing
	receipts ReceiptSource
	logger   *log.Entry
}

var _ PrinterServiceServer = (*PrinterService)(nil)

// NewPrinterService конструирует сервис с зависимостями.
func NewPrinterService(p Printing, receipts ReceiptSource, logger *log.Entry) *PrinterService {
	if logger == nil {
		logger = log.WithField("component", "grpc-printer")
	}
	return &PrinterService{printing: p, receipts: receipts, logger: logger}
}

// Register регистрирует сервис и его описание для reflection.
func Register(s grpc.ServiceRegistrar, srv PrinterServiceServer) error {
	if err := registerDescriptor(); err != nil {
		return fmt.Errorf("register %s descriptor: %w", serviceName, err)
	}
	s.RegisterService(&PrinterServiceDesc, srv)
	return nil
}

func (s *PrinterService) Connect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.printing.Connect(ctx)
	if err != nil {
		return nil, s.toStatus("connect", err)
	}
	return toStruct(st)
}

func (s *PrinterService) Disconnect(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.printing.Disconnect()
	if err != nil {
		return nil, s.toStatus("disconnect", err)
	}
	return toStruct(st)
}

func (s *PrinterService) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.printing.Status())
}

// PrintReceipt печатает сохранённый чек по id.
func (s *PrinterService) PrintReceipt(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req == nil || req.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "receipt id is required")
	}
	rec, err := s.receipts.Receipt(req.GetValue())
	if err != nil {
		return nil, s.toStatus("print receipt", err)
	}
	res, err := s.printing.PrintReceipt(ctx, rec)
	if err != nil {
		return nil, s.toStatus("print receipt", err)
	}
	return toStruct(res)
}

func (s *PrinterService) TestPrint(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res, err := s.printing.TestPrint(ctx)
	if err != nil {
		return nil, s.toStatus("test print", err)
	}
	return toStruct(res)
}

// toStatus переводит доменную ошибку в gRPC-код.
func (s *PrinterService) toStatus(op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, domain.ErrBusy):
		code = codes.Aborted
	case errors.Is(err, domain.ErrNotConnected):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrNotSupported):
		code = codes.Unimplemented
	case errors.Is(err, domain.ErrDeviceNotFound), domain.IsNotFound(err):
		code = codes.NotFound
	case errors.Is(err, domain.ErrNoWritableChannel), errors.Is(err, domain.ErrWriteFailed):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	}
	if code == codes.Internal {
		s.logger.WithError(err).WithField("op", op).Error("printer request failed")
	}
	return status.Error(code, err.Error())
}

// toStruct кодирует значение через его JSON-представление.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

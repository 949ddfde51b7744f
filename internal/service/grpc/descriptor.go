package grpcsvc

import (
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

// Описание сервиса собирается из well-known типов без генерации кода;
// регистрация в GlobalFiles нужна, чтобы reflection отдавал схему grpcurl.
const protoFile = "pos/v1/printer.proto"

var (
	registerOnce sync.Once
	registerErr  error
)

func registerDescriptor() error {
	registerOnce.Do(func() {
		if _, err := protoregistry.GlobalFiles.FindFileByPath(protoFile); err == nil {
			return
		}

		method := func(name, in, out string) *descriptorpb.MethodDescriptorProto {
			return &descriptorpb.MethodDescriptorProto{
				Name:       proto.String(name),
				InputType:  proto.String(in),
				OutputType: proto.String(out),
			}
		}
		const (
			empty  = ".google.protobuf.Empty"
			object = ".google.protobuf.Struct"
			int64v = ".google.protobuf.Int64Value"
		)

		fdp := &descriptorpb.FileDescriptorProto{
			Name:    proto.String(protoFile),
			Package: proto.String("pos.v1"),
			Syntax:  proto.String("proto3"),
			Dependency: []string{
				"google/protobuf/empty.proto",
				"google/protobuf/struct.proto",
				"google/protobuf/wrappers.proto",
			},
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name: proto.String("PrinterService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					method("Connect", empty, object),
					method("Disconnect", empty, object),
					method("Status", empty, object),
					method("PrintReceipt", int64v, object),
					method("TestPrint", empty, object),
				},
			}},
		}

		file, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			registerErr = err
			return
		}
		registerErr = protoregistry.GlobalFiles.RegisterFile(file)
	})
	return registerErr
}

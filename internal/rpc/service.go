// Package rpc describes the CloudService gRPC contract shared by the client
// and the server. Every method takes and returns a google.protobuf.Struct;
// the typed messages in messages.go are carried inside it as JSON objects.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "myhealthdata.cloud.CloudService"

const (
	MethodPing                 = "Ping"
	MethodRegister             = "Register"
	MethodGetSalt              = "GetSalt"
	MethodLogin                = "Login"
	MethodAccountStatus        = "AccountStatus"
	MethodFetchRecord          = "FetchRecord"
	MethodSaveRecord           = "SaveRecord"
	MethodDeleteRecord         = "DeleteRecord"
	MethodQueryRecords         = "QueryRecords"
	MethodSaveShare            = "SaveShare"
	MethodFetchShare           = "FetchShare"
	MethodAcceptShare          = "AcceptShare"
	MethodRequestSupportUpload = "RequestSupportUpload"
)

// FullMethod returns the gRPC method path, e.g. "/myhealthdata.cloud.CloudService/Ping".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// CloudServiceServer is implemented by the backend.
type CloudServiceServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSalt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AccountStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	QueryRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SaveShare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FetchShare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptShare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestSupportUpload(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedCloudServiceServer answers every method with
// codes.Unimplemented. Embed it to stay forward compatible.
type UnimplementedCloudServiceServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedCloudServiceServer) Ping(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodPing)
}
func (UnimplementedCloudServiceServer) Register(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodRegister)
}
func (UnimplementedCloudServiceServer) GetSalt(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetSalt)
}
func (UnimplementedCloudServiceServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodLogin)
}
func (UnimplementedCloudServiceServer) AccountStatus(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodAccountStatus)
}
func (UnimplementedCloudServiceServer) FetchRecord(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodFetchRecord)
}
func (UnimplementedCloudServiceServer) SaveRecord(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodSaveRecord)
}
func (UnimplementedCloudServiceServer) DeleteRecord(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodDeleteRecord)
}
func (UnimplementedCloudServiceServer) QueryRecords(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodQueryRecords)
}
func (UnimplementedCloudServiceServer) SaveShare(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodSaveShare)
}
func (UnimplementedCloudServiceServer) FetchShare(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodFetchShare)
}
func (UnimplementedCloudServiceServer) AcceptShare(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodAcceptShare)
}
func (UnimplementedCloudServiceServer) RequestSupportUpload(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodRequestSupportUpload)
}

type serverMethod func(CloudServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call serverMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CloudServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CloudServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// CloudServiceDesc is registered with grpc.Server.RegisterService.
var CloudServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CloudServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodPing, CloudServiceServer.Ping),
		unaryMethod(MethodRegister, CloudServiceServer.Register),
		unaryMethod(MethodGetSalt, CloudServiceServer.GetSalt),
		unaryMethod(MethodLogin, CloudServiceServer.Login),
		unaryMethod(MethodAccountStatus, CloudServiceServer.AccountStatus),
		unaryMethod(MethodFetchRecord, CloudServiceServer.FetchRecord),
		unaryMethod(MethodSaveRecord, CloudServiceServer.SaveRecord),
		unaryMethod(MethodDeleteRecord, CloudServiceServer.DeleteRecord),
		unaryMethod(MethodQueryRecords, CloudServiceServer.QueryRecords),
		unaryMethod(MethodSaveShare, CloudServiceServer.SaveShare),
		unaryMethod(MethodFetchShare, CloudServiceServer.FetchShare),
		unaryMethod(MethodAcceptShare, CloudServiceServer.AcceptShare),
		unaryMethod(MethodRequestSupportUpload, CloudServiceServer.RequestSupportUpload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "myhealthdata/cloud.proto",
}

// RegisterCloudServiceServer attaches srv to s.
func RegisterCloudServiceServer(s grpc.ServiceRegistrar, srv CloudServiceServer) {
	s.RegisterService(&CloudServiceDesc, srv)
}

// CloudServiceClient calls CloudService methods by name.
type CloudServiceClient interface {
	Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type cloudServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCloudServiceClient(cc grpc.ClientConnInterface) CloudServiceClient {
	return &cloudServiceClient{cc: cc}
}

func (c *cloudServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

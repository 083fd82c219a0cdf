// Package grpc exposes the cloud document store over gRPC. Messages travel
// as google.protobuf.Struct values; see package rpc for the contract.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/myhealthdata/internal/logging"
	"github.com/dmitrijs2005/myhealthdata/internal/rpc"
	"github.com/dmitrijs2005/myhealthdata/internal/server/auth"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
	"github.com/dmitrijs2005/myhealthdata/internal/server/services"
	"google.golang.org/grpc"
)

type UserService interface {
	Register(ctx context.Context, login string, salt, verifier []byte) (*models.User, error)
	GetSalt(ctx context.Context, login string) ([]byte, error)
	Login(ctx context.Context, login string, verifier []byte) (string, error)
}

type DocumentService interface {
	Fetch(ctx context.Context, id auth.Identity, scope services.Scope, zone, recordName string) (*models.Document, error)
	Save(ctx context.Context, id auth.Identity, doc *models.Document) (*models.Document, error)
	Delete(ctx context.Context, id auth.Identity, zone, recordName string) error
	Query(ctx context.Context, id auth.Identity, scope services.Scope, zone, recordType string) ([]*models.Document, error)
}

type ShareService interface {
	SaveWithRoot(ctx context.Context, id auth.Identity, root *models.Document, share *models.Share) (*models.Document, *services.ShareView, error)
	Fetch(ctx context.Context, id auth.Identity, zone, shareName string) (*services.ShareView, error)
	Accept(ctx context.Context, id auth.Identity, shareURL string) (*services.ShareView, error)
}

type SupportService interface {
	PresignUpload(ctx context.Context, contentType string) (key string, url string, err error)
}

type GRPCServer struct {
	rpc.UnimplementedCloudServiceServer
	address   string
	users     UserService
	documents DocumentService
	shares    ShareService
	support   SupportService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, us UserService, ds DocumentService, ss ShareService, sup SupportService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		documents: ds,
		shares:    ss,
		support:   sup,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	rpc.RegisterCloudServiceServer(srv, s)
	return srv
}

// Run listens on the configured address until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully once ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

package grpc

import (
	"context"

	"github.com/dmitrijs2005/myhealthdata/internal/rpc"
	"github.com/dmitrijs2005/myhealthdata/internal/server/auth"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
	"github.com/dmitrijs2005/myhealthdata/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func decode(in *structpb.Struct, v any) error {
	if err := rpc.Decode(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := rpc.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) identity(ctx context.Context) (auth.Identity, error) {
	id, ok := identityFromContext(ctx)
	if !ok {
		return auth.Identity{}, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return id, nil
}

func toWire(d *models.Document) *rpc.Document {
	if d == nil {
		return nil
	}
	return &rpc.Document{
		RecordName: d.RecordName,
		RecordType: d.RecordType,
		Zone:       d.Zone,
		Owner:      d.OwnerLogin,
		ChangeTag:  d.ChangeTag,
		ModifiedAt: d.ModifiedAt,
		Fields:     d.Fields,
	}
}

func fromWire(d *rpc.Document) *models.Document {
	if d == nil {
		return nil
	}
	return &models.Document{
		Zone:       d.Zone,
		RecordName: d.RecordName,
		RecordType: d.RecordType,
		ChangeTag:  d.ChangeTag,
		Fields:     d.Fields,
	}
}

func shareToWire(v *services.ShareView) *rpc.Share {
	if v == nil || v.Share == nil {
		return nil
	}
	out := &rpc.Share{
		ShareName:      v.Share.Name,
		RootRecordName: v.Share.RootRecordName,
		Zone:           v.Share.Zone,
		Title:          v.Share.Title,
		URL:            v.URL,
	}
	for _, p := range v.Participants {
		out.Participants = append(out.Participants, rpc.Participant{
			UserID:     p.UserID,
			Login:      p.Login,
			Role:       p.Role,
			Acceptance: p.Acceptance,
		})
	}
	return out
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(map[string]string{"status": "OK"})
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.RegisterRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registration request")

	user, err := s.users.Register(ctx, req.Login, req.Salt, req.Verifier)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodRegister, err)
	}

	s.logger.Info(ctx, "Registered", "username", user.UserName)
	return encode(rpc.Empty{})
}

func (s *GRPCServer) GetSalt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.GetSaltRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	salt, err := s.users.GetSalt(ctx, req.Login)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodGetSalt, err)
	}
	return encode(rpc.GetSaltResponse{Salt: salt})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req rpc.LoginRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	token, err := s.users.Login(ctx, req.Login, req.Verifier)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodLogin, err)
	}
	return encode(rpc.LoginResponse{AccessToken: token})
}

// AccountStatus is only reachable with a valid token, so reaching the
// handler means the account is usable.
func (s *GRPCServer) AccountStatus(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.identity(ctx); err != nil {
		return nil, err
	}
	return encode(rpc.AccountStatusResponse{Status: "available"})
}

func (s *GRPCServer) FetchRecord(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.FetchRecordRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	doc, err := s.documents.Fetch(ctx, id, services.Scope(req.Scope), req.Zone, req.RecordName)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodFetchRecord, err)
	}
	return encode(rpc.RecordResponse{Document: toWire(doc)})
}

func (s *GRPCServer) SaveRecord(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.SaveRecordRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	doc, err := s.documents.Save(ctx, id, fromWire(req.Document))
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodSaveRecord, err)
	}
	return encode(rpc.RecordResponse{Document: toWire(doc)})
}

func (s *GRPCServer) DeleteRecord(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.DeleteRecordRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	if err := s.documents.Delete(ctx, id, req.Zone, req.RecordName); err != nil {
		return nil, s.toStatus(ctx, rpc.MethodDeleteRecord, err)
	}
	return encode(rpc.Empty{})
}

func (s *GRPCServer) QueryRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.QueryRecordsRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	docs, err := s.documents.Query(ctx, id, services.Scope(req.Scope), req.Zone, req.RecordType)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodQueryRecords, err)
	}

	resp := rpc.QueryRecordsResponse{Results: make([]rpc.QueryResult, 0, len(docs))}
	for _, d := range docs {
		resp.Results = append(resp.Results, rpc.QueryResult{RecordName: d.RecordName, Document: toWire(d)})
	}
	return encode(resp)
}

func (s *GRPCServer) SaveShare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.SaveShareRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	var share *models.Share
	if req.Share != nil {
		share = &models.Share{Name: req.Share.ShareName, Title: req.Share.Title}
	}

	root, view, err := s.shares.SaveWithRoot(ctx, id, fromWire(req.Root), share)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodSaveShare, err)
	}

	s.logger.Info(ctx, "Share saved", "share", view.Share.Name, "root", root.RecordName)
	return encode(rpc.SaveShareResponse{Root: toWire(root), Share: shareToWire(view)})
}

func (s *GRPCServer) FetchShare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.FetchShareRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	view, err := s.shares.Fetch(ctx, id, req.Zone, req.ShareName)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodFetchShare, err)
	}
	return encode(rpc.ShareResponse{Share: shareToWire(view)})
}

func (s *GRPCServer) AcceptShare(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	var req rpc.AcceptShareRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	view, err := s.shares.Accept(ctx, id, req.Token)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodAcceptShare, err)
	}

	s.logger.Info(ctx, "Share accepted", "share", view.Share.Name, "login", id.Login)
	return encode(rpc.ShareResponse{Share: shareToWire(view)})
}

func (s *GRPCServer) RequestSupportUpload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := s.identity(ctx); err != nil {
		return nil, err
	}
	var req rpc.SupportUploadRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	key, url, err := s.support.PresignUpload(ctx, req.ContentType)
	if err != nil {
		return nil, s.toStatus(ctx, rpc.MethodRequestSupportUpload, err)
	}
	return encode(rpc.SupportUploadResponse{UploadURL: url, ObjectKey: key})
}

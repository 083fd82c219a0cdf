package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCRemote talks to the cloud backend over gRPC. Besides the Remote
// contract it carries the account calls the CLI needs.
type GRPCRemote struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.CloudServiceClient

	mu          sync.RWMutex
	accessToken string
}

var _ Remote = (*GRPCRemote)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCRemote) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	ctx = withAccessToken(ctx, s.token())
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewGRPCRemote(endpointURL string) (*GRPCRemote, error) {
	c := &GRPCRemote{endpointURL: endpointURL}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCRemote) InitGRPCClient() error {
	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor))
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = rpc.NewCloudServiceClient(conn)
	return nil
}

func (s *GRPCRemote) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// SetAccessToken installs a token restored from the local session.
func (s *GRPCRemote) SetAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

func (s *GRPCRemote) token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCRemote) call(ctx context.Context, method string, in, out any) error {
	req, err := rpc.Encode(in)
	if err != nil {
		return err
	}
	resp, err := s.client.Call(ctx, method, req)
	if err != nil {
		return s.mapError(err)
	}
	if out == nil {
		return nil
	}
	return rpc.Decode(resp, out)
}

func (s *GRPCRemote) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		if strings.HasPrefix(st.Message(), "zone not found") {
			return fmt.Errorf("%w: %s", ErrZoneNotFound, st.Message())
		}
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func (s *GRPCRemote) Register(ctx context.Context, login string, salt []byte, verifier []byte) error {
	return s.call(ctx, rpc.MethodRegister, rpc.RegisterRequest{Login: login, Salt: salt, Verifier: verifier}, nil)
}

func (s *GRPCRemote) GetSalt(ctx context.Context, login string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 12*time.Second)
	defer cancel()

	var resp rpc.GetSaltResponse
	if err := s.call(ctx, rpc.MethodGetSalt, rpc.GetSaltRequest{Login: login}, &resp); err != nil {
		return nil, err
	}
	return resp.Salt, nil
}

// Login authenticates and keeps the issued token for later calls. The token
// is returned so the caller can persist the session.
func (s *GRPCRemote) Login(ctx context.Context, login string, verifier []byte) (string, error) {
	var resp rpc.LoginResponse
	if err := s.call(ctx, rpc.MethodLogin, rpc.LoginRequest{Login: login, Verifier: verifier}, &resp); err != nil {
		return "", err
	}
	s.SetAccessToken(resp.AccessToken)
	return resp.AccessToken, nil
}

func (s *GRPCRemote) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := s.call(ctx, rpc.MethodPing, rpc.Empty{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

// RequestSupportUpload asks the backend for a presigned URL to upload a
// diagnostics bundle to.
func (s *GRPCRemote) RequestSupportUpload(ctx context.Context, contentType string) (string, string, error) {
	var resp rpc.SupportUploadResponse
	if err := s.call(ctx, rpc.MethodRequestSupportUpload, rpc.SupportUploadRequest{ContentType: contentType}, &resp); err != nil {
		return "", "", err
	}
	return resp.UploadURL, resp.ObjectKey, nil
}

func (s *GRPCRemote) AccountStatus(ctx context.Context) (AccountStatus, error) {
	var resp rpc.AccountStatusResponse
	if err := s.call(ctx, rpc.MethodAccountStatus, rpc.Empty{}, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return AccountNoAccount, nil
		}
		return AccountCouldNotDetermine, err
	}
	return AccountStatus(resp.Status), nil
}

func (s *GRPCRemote) Fetch(ctx context.Context, scope Scope, zone, recordName string) (*Document, error) {
	var resp rpc.RecordResponse
	req := rpc.FetchRecordRequest{Scope: rpc.Scope(scope), Zone: zone, RecordName: recordName}
	if err := s.call(ctx, rpc.MethodFetchRecord, req, &resp); err != nil {
		return nil, err
	}
	if resp.Document == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, recordName)
	}
	return fromWire(resp.Document), nil
}

func (s *GRPCRemote) Save(ctx context.Context, doc *Document) (*Document, error) {
	var resp rpc.RecordResponse
	if err := s.call(ctx, rpc.MethodSaveRecord, rpc.SaveRecordRequest{Document: toWire(doc)}, &resp); err != nil {
		return nil, err
	}
	return fromWire(resp.Document), nil
}

func (s *GRPCRemote) Delete(ctx context.Context, zone, recordName string) error {
	return s.call(ctx, rpc.MethodDeleteRecord, rpc.DeleteRecordRequest{Zone: zone, RecordName: recordName}, nil)
}

func (s *GRPCRemote) Query(ctx context.Context, scope Scope, zone, recordType string) ([]QueryResult, error) {
	var resp rpc.QueryRecordsResponse
	req := rpc.QueryRecordsRequest{Scope: rpc.Scope(scope), Zone: zone, RecordType: recordType}
	if err := s.call(ctx, rpc.MethodQueryRecords, req, &resp); err != nil {
		return nil, err
	}

	out := make([]QueryResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		res := QueryResult{RecordName: r.RecordName}
		switch {
		case r.Error != "":
			res.Err = errors.New(r.Error)
		case r.Document == nil:
			res.Err = fmt.Errorf("%w: empty result for %s", ErrMalformedDocument, r.RecordName)
		default:
			res.Document = fromWire(r.Document)
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *GRPCRemote) SaveWithShare(ctx context.Context, root *Document, share *Share) (*Document, *Share, error) {
	var resp rpc.SaveShareResponse
	req := rpc.SaveShareRequest{Root: toWire(root), Share: shareToWire(share)}
	if err := s.call(ctx, rpc.MethodSaveShare, req, &resp); err != nil {
		return nil, nil, err
	}
	return fromWire(resp.Root), shareFromWire(resp.Share), nil
}

func (s *GRPCRemote) FetchShare(ctx context.Context, zone, shareName string) (*Share, error) {
	var resp rpc.ShareResponse
	if err := s.call(ctx, rpc.MethodFetchShare, rpc.FetchShareRequest{Zone: zone, ShareName: shareName}, &resp); err != nil {
		return nil, err
	}
	if resp.Share == nil {
		return nil, fmt.Errorf("%w: share %s", ErrNotFound, shareName)
	}
	return shareFromWire(resp.Share), nil
}

func (s *GRPCRemote) AcceptShare(ctx context.Context, token string) (*Share, error) {
	var resp rpc.ShareResponse
	if err := s.call(ctx, rpc.MethodAcceptShare, rpc.AcceptShareRequest{Token: token}, &resp); err != nil {
		return nil, err
	}
	return shareFromWire(resp.Share), nil
}

func toWire(d *Document) *rpc.Document {
	if d == nil {
		return nil
	}
	return &rpc.Document{
		RecordName: d.RecordName,
		RecordType: d.RecordType,
		Zone:       d.Zone,
		Owner:      d.Owner,
		ChangeTag:  d.ChangeTag,
		ModifiedAt: d.ModifiedAt,
		Fields:     d.Fields,
	}
}

func fromWire(d *rpc.Document) *Document {
	if d == nil {
		return nil
	}
	fields := d.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return &Document{
		RecordName: d.RecordName,
		RecordType: d.RecordType,
		Zone:       d.Zone,
		Owner:      d.Owner,
		ChangeTag:  d.ChangeTag,
		ModifiedAt: d.ModifiedAt,
		Fields:     fields,
	}
}

func shareToWire(s *Share) *rpc.Share {
	if s == nil {
		return nil
	}
	out := &rpc.Share{
		ShareName:      s.Name,
		RootRecordName: s.RootRecordName,
		Zone:           s.Zone,
		Title:          s.Title,
		URL:            s.URL,
	}
	for _, p := range s.Participants {
		out.Participants = append(out.Participants, rpc.Participant(p))
	}
	return out
}

func shareFromWire(s *rpc.Share) *Share {
	if s == nil {
		return nil
	}
	out := &Share{
		Name:           s.ShareName,
		RootRecordName: s.RootRecordName,
		Zone:           s.Zone,
		Title:          s.Title,
		URL:            s.URL,
	}
	for _, p := range s.Participants {
		out.Participants = append(out.Participants, Participant(p))
	}
	return out
}

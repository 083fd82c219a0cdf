package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/common"
	"github.com/dmitrijs2005/myhealthdata/internal/logging"
	"github.com/dmitrijs2005/myhealthdata/internal/rpc"
	"github.com/dmitrijs2005/myhealthdata/internal/server/auth"
	"github.com/dmitrijs2005/myhealthdata/internal/server/models"
	"github.com/dmitrijs2005/myhealthdata/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const secret = "test-secret"

type harness struct {
	users  *fakeUsers
	docs   *fakeDocs
	shares *fakeShares
	client rpc.CloudServiceClient
}

func startServer(t *testing.T) *harness {
	t.Helper()
	h := &harness{users: &fakeUsers{token: "issued"}, docs: &fakeDocs{}, shares: &fakeShares{}}
	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, h.users, h.docs, h.shares, fakeSupport{}, secret)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	h.client = rpc.NewCloudServiceClient(conn)
	return h
}

func authed(t *testing.T, id auth.Identity) context.Context {
	t.Helper()
	token, err := auth.GenerateToken(id, []byte(secret), time.Hour)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, token)
}

func call(t *testing.T, h *harness, ctx context.Context, method string, in, out any) error {
	t.Helper()
	req, err := rpc.Encode(in)
	require.NoError(t, err)
	resp, err := h.client.Call(ctx, method, req)
	if err != nil {
		return err
	}
	if out != nil {
		require.NoError(t, rpc.Decode(resp, out))
	}
	return nil
}

var alice = auth.Identity{UserID: "u-1", Login: "alice"}

func TestPublicMethods(t *testing.T) {
	h := startServer(t)
	ctx := context.Background()

	var ping struct{ Status string }
	require.NoError(t, call(t, h, ctx, rpc.MethodPing, rpc.Empty{}, &ping))
	assert.Equal(t, "OK", ping.Status)

	require.NoError(t, call(t, h, ctx, rpc.MethodRegister, rpc.RegisterRequest{Login: "alice", Salt: []byte{1, 2, 3}, Verifier: []byte("ok")}, nil))

	var salt rpc.GetSaltResponse
	require.NoError(t, call(t, h, ctx, rpc.MethodGetSalt, rpc.GetSaltRequest{Login: "alice"}, &salt))
	assert.Equal(t, []byte{1, 2, 3}, salt.Salt)

	var login rpc.LoginResponse
	require.NoError(t, call(t, h, ctx, rpc.MethodLogin, rpc.LoginRequest{Login: "alice", Verifier: []byte("ok")}, &login))
	assert.Equal(t, "issued", login.AccessToken)

	err := call(t, h, ctx, rpc.MethodLogin, rpc.LoginRequest{Login: "alice", Verifier: []byte("bad")}, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRegister_Duplicate(t *testing.T) {
	h := startServer(t)
	h.users.err = common.ErrorAlreadyExists

	err := call(t, h, context.Background(), rpc.MethodRegister, rpc.RegisterRequest{Login: "alice"}, nil)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestProtectedMethods_RequireToken(t *testing.T) {
	h := startServer(t)

	err := call(t, h, context.Background(), rpc.MethodAccountStatus, rpc.Empty{}, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	bad := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "garbage")
	err = call(t, h, bad, rpc.MethodQueryRecords, rpc.QueryRecordsRequest{}, nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	expired, err := auth.GenerateToken(alice, []byte(secret), -time.Minute)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, expired)
	err = call(t, h, ctx, rpc.MethodAccountStatus, rpc.Empty{}, nil)
	require.Error(t, err)
	assert.Equal(t, "token expired", status.Convert(err).Message())
}

func TestAccountStatus(t *testing.T) {
	h := startServer(t)

	var resp rpc.AccountStatusResponse
	require.NoError(t, call(t, h, authed(t, alice), rpc.MethodAccountStatus, rpc.Empty{}, &resp))
	assert.Equal(t, "available", resp.Status)
}

func TestSaveAndFetchRecord(t *testing.T) {
	h := startServer(t)
	ctx := authed(t, alice)

	in := rpc.SaveRecordRequest{Document: &rpc.Document{
		RecordName: "rec-1", RecordType: common.RecordTypeMedicalRecord, Zone: "Zone",
		ChangeTag: "old", Fields: map[string]any{"name": "Rex", "weightKg": 12.5},
	}}
	var saved rpc.RecordResponse
	require.NoError(t, call(t, h, ctx, rpc.MethodSaveRecord, in, &saved))

	assert.Equal(t, alice, h.docs.lastID)
	assert.Equal(t, "tag-new", saved.Document.ChangeTag)
	assert.Equal(t, "alice", saved.Document.Owner)
	assert.Equal(t, 12.5, saved.Document.Fields["weightKg"])
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), saved.Document.ModifiedAt.UTC())

	h.docs.docs = []*models.Document{h.docs.saved}
	var fetched rpc.RecordResponse
	require.NoError(t, call(t, h, ctx, rpc.MethodFetchRecord, rpc.FetchRecordRequest{Scope: rpc.ScopeShared, Zone: "Zone", RecordName: "rec-1"}, &fetched))
	assert.Equal(t, services.ScopeShared, h.docs.lastScope)
	assert.Equal(t, "Rex", fetched.Document.Fields["name"])
}

func TestRecordErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    codes.Code
		message string
	}{
		{"zone missing", services.ErrZoneNotFound, codes.NotFound, "zone not found"},
		{"record missing", common.ErrorNotFound, codes.NotFound, "not found"},
		{"conflict", services.ErrConflict, codes.Aborted, "record changed on server"},
		{"schema", services.ErrUnknownRecordType, codes.FailedPrecondition, "Cannot create new type"},
		{"validation", common.ErrorValidation, codes.InvalidArgument, "validation error"},
		{"forbidden", common.ErrorForbidden, codes.PermissionDenied, "forbidden"},
		{"unexpected", assert.AnError, codes.Internal, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := startServer(t)
			h.docs.err = tt.err

			err := call(t, h, authed(t, alice), rpc.MethodFetchRecord, rpc.FetchRecordRequest{Zone: "Zone", RecordName: "x"}, nil)
			st := status.Convert(err)
			assert.Equal(t, tt.code, st.Code())
			assert.Equal(t, tt.message, st.Message())
		})
	}
}

func TestQueryAndDelete(t *testing.T) {
	h := startServer(t)
	ctx := authed(t, alice)
	h.docs.docs = []*models.Document{
		{RecordName: "a", RecordType: "MedicalRecord", Zone: "Zone", OwnerLogin: "alice", Fields: map[string]any{}},
		{RecordName: "b", RecordType: "MedicalRecord", Zone: "Zone", OwnerLogin: "alice", Fields: map[string]any{"x": true}},
	}

	var resp rpc.QueryRecordsResponse
	require.NoError(t, call(t, h, ctx, rpc.MethodQueryRecords, rpc.QueryRecordsRequest{Scope: rpc.ScopePrivate, Zone: "Zone", RecordType: "MedicalRecord"}, &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "b", resp.Results[1].RecordName)
	assert.Equal(t, true, resp.Results[1].Document.Fields["x"])

	require.NoError(t, call(t, h, ctx, rpc.MethodDeleteRecord, rpc.DeleteRecordRequest{Zone: "Zone", RecordName: "a"}, nil))
}

func TestShares(t *testing.T) {
	h := startServer(t)
	ctx := authed(t, alice)

	var saved rpc.SaveShareResponse
	req := rpc.SaveShareRequest{
		Root:  &rpc.Document{RecordName: "rec-1", RecordType: "MedicalRecord", Zone: "Zone", Fields: map[string]any{}},
		Share: &rpc.Share{ShareName: "share-1", Title: "Rex"},
	}
	require.NoError(t, call(t, h, ctx, rpc.MethodSaveShare, req, &saved))
	assert.Equal(t, "tag-share", saved.Root.ChangeTag)
	assert.Equal(t, "https://phr.example/share/tok", saved.Share.URL)
	assert.Equal(t, "rec-1", saved.Share.RootRecordName)
	require.Len(t, saved.Share.Participants, 1)

	bob := auth.Identity{UserID: "u-2", Login: "bob"}
	var accepted rpc.ShareResponse
	require.NoError(t, call(t, h, authed(t, bob), rpc.MethodAcceptShare, rpc.AcceptShareRequest{Token: saved.Share.URL}, &accepted))
	require.Len(t, accepted.Share.Participants, 2)
	assert.Equal(t, "bob", accepted.Share.Participants[1].Login)

	var fetched rpc.ShareResponse
	require.NoError(t, call(t, h, ctx, rpc.MethodFetchShare, rpc.FetchShareRequest{Zone: "Zone", ShareName: "share-1"}, &fetched))
	assert.Equal(t, "Rex", fetched.Share.Title)
}

func TestRequestSupportUpload(t *testing.T) {
	h := startServer(t)

	var resp rpc.SupportUploadResponse
	require.NoError(t, call(t, h, authed(t, alice), rpc.MethodRequestSupportUpload, rpc.SupportUploadRequest{ContentType: "text/plain"}, &resp))
	assert.Equal(t, "https://s3.example/put", resp.UploadURL)
	assert.Equal(t, "support/2025/01/01/x.txt", resp.ObjectKey)
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, &fakeUsers{}, &fakeDocs{}, &fakeShares{}, fakeSupport{}, secret)
	err := srv.Run(context.Background())
	require.Error(t, err)
}

package rpc

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Document is a remote record as it travels on the wire.
type Document struct {
	RecordName string         `json:"recordName"`
	RecordType string         `json:"recordType"`
	Zone       string         `json:"zone"`
	Owner      string         `json:"owner,omitempty"`
	ChangeTag  string         `json:"changeTag,omitempty"`
	ModifiedAt time.Time      `json:"modifiedAt"`
	Fields     map[string]any `json:"fields"`
}

type QueryResult struct {
	RecordName string    `json:"recordName"`
	Document   *Document `json:"document,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type Participant struct {
	UserID     string `json:"userId"`
	Login      string `json:"login"`
	Role       string `json:"role"`
	Acceptance string `json:"acceptance"`
}

type Share struct {
	ShareName      string        `json:"shareName"`
	RootRecordName string        `json:"rootRecordName"`
	Zone           string        `json:"zone"`
	Title          string        `json:"title"`
	URL            string        `json:"url"`
	Participants   []Participant `json:"participants,omitempty"`
}

type Empty struct{}

type RegisterRequest struct {
	Login    string `json:"login"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type GetSaltRequest struct {
	Login string `json:"login"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Login    string `json:"login"`
	Verifier []byte `json:"verifier"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

type AccountStatusResponse struct {
	Status string `json:"status"`
}

// Scope selects between the caller's own records and records shared with it.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeShared  Scope = "shared"
)

type FetchRecordRequest struct {
	Scope      Scope  `json:"scope"`
	Zone       string `json:"zone"`
	RecordName string `json:"recordName"`
}

type RecordResponse struct {
	Document *Document `json:"document"`
}

type SaveRecordRequest struct {
	Document *Document `json:"document"`
}

type DeleteRecordRequest struct {
	Zone       string `json:"zone"`
	RecordName string `json:"recordName"`
}

type QueryRecordsRequest struct {
	Scope      Scope  `json:"scope"`
	Zone       string `json:"zone"`
	RecordType string `json:"recordType"`
}

type QueryRecordsResponse struct {
	Results []QueryResult `json:"results"`
}

// SaveShareRequest stores Root and Share in one transaction.
type SaveShareRequest struct {
	Root  *Document `json:"root"`
	Share *Share    `json:"share"`
}

type SaveShareResponse struct {
	Root  *Document `json:"root"`
	Share *Share    `json:"share"`
}

type FetchShareRequest struct {
	Zone      string `json:"zone"`
	ShareName string `json:"shareName"`
}

type AcceptShareRequest struct {
	Token string `json:"token"`
}

type ShareResponse struct {
	Share *Share `json:"share"`
}

type SupportUploadRequest struct {
	ContentType string `json:"contentType"`
}

type SupportUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// Encode turns v into a Struct by way of its JSON representation.
func Encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc encode: %w", err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("rpc encode: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("rpc encode: %w", err)
	}
	return s, nil
}

// Decode fills v from s.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("rpc decode: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("rpc decode: %w", err)
	}
	return nil
}

package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/types"
)

type fakeClient struct {
	objects map[string][]byte
	getErr  error
	puts    int
	ctype   string
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.puts++
	if in.ContentType != nil {
		f.ctype = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func TestLoadMissingObject(t *testing.T) {
	s := NewWithClient(newFakeClient(), "roadmaps", "")
	if _, err := s.Load(context.Background()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	client := newFakeClient()
	s := NewWithClient(client, "roadmaps", "team/spec-status.json")
	ctx := context.Background()

	doc := types.NewRoadmap()
	doc.LastUpdated = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	doc.Specs["SPEC-A"] = &types.Spec{ID: "SPEC-A", Status: types.StatusPending}

	if err := s.Save(ctx, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if client.ctype != "application/json" {
		t.Errorf("content type = %q", client.ctype)
	}
	if _, ok := client.objects["roadmaps/team/spec-status.json"]; !ok {
		t.Fatal("object not written under configured key")
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := got.Specs["SPEC-A"]; !ok {
		t.Error("spec missing after round trip")
	}
}

func TestLoadCorruptObject(t *testing.T) {
	client := newFakeClient()
	client.objects["roadmaps/"+DefaultKey] = []byte("not json")
	s := NewWithClient(client, "roadmaps", "")

	if _, err := s.Load(context.Background()); !errors.Is(err, storage.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestLoadTransportError(t *testing.T) {
	client := newFakeClient()
	client.getErr = errors.New("connection refused")
	s := NewWithClient(client, "roadmaps", "")

	_, err := s.Load(context.Background())
	if err == nil || errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorrupt) {
		t.Fatalf("expected plain transport error, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

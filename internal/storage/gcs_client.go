package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"

	"github.com/codebuildervaibhav/meeting-stt/internal/apperr"
)

// CloudPlatformScope covers Speech-to-Text and Cloud Storage.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewGoogleHTTPClient builds an authorized client from a service account key
// file, or from application default credentials when the path is empty.
func NewGoogleHTTPClient(ctx context.Context, credentialsFile string, scopes ...string) (*http.Client, error) {
	if credentialsFile == "" {
		client, err := google.DefaultClient(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to find default credentials: %w", err)
		}
		return client, nil
	}
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, b, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// GCSStore keeps objects in one Cloud Storage bucket
type GCSStore struct {
	service *gcs.Service
	bucket  string
}

// NewGCSStore creates a store writing into bucket.
func NewGCSStore(ctx context.Context, client *http.Client, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	srv, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Storage service: %w", err)
	}
	return &GCSStore{service: srv, bucket: bucket}, nil
}

func (s *GCSStore) URI(key string) string {
	return Ref{Scheme: SchemeGCS, Bucket: s.bucket, Key: key}.String()
}

// Put uploads data as key and returns its gs:// ref.
func (s *GCSStore) Put(ctx context.Context, data []byte, key, contentType string) (string, error) {
	obj := &gcs.Object{
		Name:        key,
		ContentType: contentType,
	}
	_, err := s.service.Objects.Insert(s.bucket, obj).
		Media(bytes.NewReader(data)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.URI(key), nil
}

// Get downloads the object behind a gs:// ref. The ref may name any bucket.
func (s *GCSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	r, err := parseRefScheme(ref, SchemeGCS)
	if err != nil {
		return nil, err
	}

	resp, err := s.service.Objects.Get(r.Bucket, r.Key).Context(ctx).Download()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, &apperr.NotFoundError{Msg: "object " + ref, Err: err}
		}
		return nil, fmt.Errorf("failed to download %s: %w", ref, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return data, nil
}

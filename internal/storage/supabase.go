package storage

import (
	"bytes"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

// Store keeps call recordings in a Supabase storage bucket.
type Store struct {
	client *supabase.Client
	bucket string
}

// New builds a Store. Recording upload is optional, so a misconfigured
// client is an error for the caller to decide on rather than a crash.
func New(url, serviceRoleKey, bucket string) (*Store, error) {
	client, err := supabase.NewClient(url, serviceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Upload writes one object into the bucket.
func (s *Store) Upload(key, contentType string, data []byte) error {
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

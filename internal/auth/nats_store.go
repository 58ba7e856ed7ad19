package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fivetwenty-io/apirequests/internal/constants"
)

// NATSTokenStoreConfig configures a NATSTokenStore.
type NATSTokenStoreConfig struct {
	URL    string
	Bucket string
	// TTL expires entries in the bucket. Zero keeps them until overwritten.
	TTL time.Duration
}

// NATSTokenStore shares gateway tokens between processes through a NATS
// JetStream key-value bucket.
type NATSTokenStore struct {
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewNATSTokenStore connects to NATS and opens (or creates) the bucket.
func NewNATSTokenStore(ctx context.Context, cfg NATSTokenStoreConfig) (*NATSTokenStore, error) {
	if cfg.URL == "" {
		return nil, constants.ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("apireq-token-store"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	store, err := newNATSTokenStore(ctx, conn, cfg)
	if err != nil {
		conn.Close()

		return nil, err
	}

	return store, nil
}

func newNATSTokenStore(ctx context.Context, conn *nats.Conn, cfg NATSTokenStoreConfig) (*NATSTokenStore, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = constants.DefaultTokenStoreBucket
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "gateway access tokens",
		TTL:         cfg.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open key-value bucket %s: %w", bucket, err)
	}

	return &NATSTokenStore{conn: conn, kv: kv}, nil
}

// Get returns the token stored for key.
func (s *NATSTokenStore) Get(ctx context.Context, key string) (*Token, error) {
	entry, err := s.kv.Get(ctx, natsKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, fmt.Errorf("%w: %s", constants.ErrTokenNotFound, key)
		}

		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	token := &Token{}

	err = json.Unmarshal(entry.Value(), token)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	return token, nil
}

// Set stores token under key.
func (s *NATSTokenStore) Set(ctx context.Context, key string, token *Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	_, err = s.kv.Put(ctx, natsKey(key), data)
	if err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}

	return nil
}

// Delete removes the token stored under key.
func (s *NATSTokenStore) Delete(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, natsKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	return nil
}

// Close drains the NATS connection.
func (s *NATSTokenStore) Close() error {
	if s.conn == nil {
		return nil
	}

	err := s.conn.Drain()
	if err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}

	return nil
}

// natsKey maps arbitrary keys onto the KV key alphabet.
func natsKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

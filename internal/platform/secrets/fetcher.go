package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Fetcher resolves Secret Manager references of the form
// projects/<project>/secrets/<name>[/versions/<version>], caching the
// resolved payloads for the process lifetime.
type Fetcher struct {
	client *secretmanager.Client

	mu    sync.Mutex
	cache map[string]string
}

// NewFetcher dials the Secret Manager API.
func NewFetcher(ctx context.Context) (*Fetcher, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secrets: create client: %w", err)
	}
	return &Fetcher{client: client, cache: make(map[string]string)}, nil
}

// Resolve fetches the secret payload for the given reference.
func (f *Fetcher) Resolve(ctx context.Context, ref string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}
	name := normalizeRef(ref)
	if name == "" {
		return "", fmt.Errorf("secrets: invalid reference %q", ref)
	}

	f.mu.Lock()
	if cached, ok := f.cache[name]; ok {
		f.mu.Unlock()
		return cached, nil
	}
	f.mu.Unlock()

	resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("secrets: access %s: %w", name, err)
	}
	value := string(resp.GetPayload().GetData())

	f.mu.Lock()
	f.cache[name] = value
	f.mu.Unlock()
	return value, nil
}

// Close releases the underlying client.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil {
		return nil
	}
	return f.client.Close()
}

func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if !strings.HasPrefix(ref, "projects/") {
		return ""
	}
	if !strings.Contains(ref, "/versions/") {
		ref += "/versions/latest"
	}
	return ref
}

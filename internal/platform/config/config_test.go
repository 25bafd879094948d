package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "urbanwoods-test")

	cfg, err := Load(context.Background(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.SMS.CountryPrefix != "+91" {
		t.Errorf("CountryPrefix = %q", cfg.SMS.CountryPrefix)
	}
	if cfg.Events.Topic != "order-events" {
		t.Errorf("Topic = %q", cfg.Events.Topic)
	}
	if cfg.Events.ProjectID != "urbanwoods-test" {
		t.Errorf("Events.ProjectID = %q, want firestore project fallback", cfg.Events.ProjectID)
	}
}

func TestLoadRequiresProject(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")

	if _, err := Load(context.Background(), WithEnvFile("")); err == nil {
		t.Fatal("Load succeeded without a project id")
	}
}

func TestLoadEnvFileAndOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	body := "# local overrides\nFIRESTORE_PROJECT_ID=from-file\nPORT=\"9090\"\nSERVER_READ_TIMEOUT=2s\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	// The process environment wins over the file.
	t.Setenv("PORT", "7070")

	cfg, err := Load(context.Background(), WithEnvFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Firestore.ProjectID != "from-file" {
		t.Errorf("ProjectID = %q", cfg.Firestore.ProjectID)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Port = %q, want env override", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "urbanwoods-test")
	t.Setenv("RAZORPAY_KEY_SECRET", "sm://projects/p/secrets/razorpay/versions/latest")

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "projects/p/secrets/razorpay/versions/latest" {
			return "", errors.New("unexpected ref " + ref)
		}
		return "live-secret", nil
	})

	cfg, err := Load(context.Background(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Razorpay.KeySecret != "live-secret" {
		t.Errorf("KeySecret = %q", cfg.Razorpay.KeySecret)
	}
}

func TestLoadSecretReferenceWithoutResolver(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "urbanwoods-test")
	t.Setenv("RAZORPAY_KEY_SECRET", "sm://projects/p/secrets/razorpay/versions/latest")

	if _, err := Load(context.Background(), WithEnvFile("")); err == nil {
		t.Fatal("Load succeeded with an unresolvable secret reference")
	}
}

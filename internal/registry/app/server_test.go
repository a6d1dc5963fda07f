package app

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"path/filepath"
	"testing"
	"time"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	public, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey() error = %v", err)
	}
	t.Setenv("FORMLEDGER_IDENTITY_ISSUER", "https://identity.example.test")
	t.Setenv("FORMLEDGER_IDENTITY_AUDIENCE", "formledger")
	t.Setenv("FORMLEDGER_IDENTITY_PUBLIC_KEY", base64.StdEncoding.EncodeToString(public))
	t.Setenv("FORMLEDGER_REGISTRY_DB_PATH", filepath.Join(t.TempDir(), "registry.db"))
	t.Setenv("FORMLEDGER_BOOTSTRAP_ADMIN", "admin@example.test")
}

func TestServerServesHealthz(t *testing.T) {
	setTestEnv(t)

	server, err := NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewWithAddr() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()

	url := "http://" + server.Addr() + "/healthz"
	var resp *http.Response
	for attempt := 0; attempt < 50; attempt++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		cancel()
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		cancel()
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewWithAddrRequiresIdentityConfig(t *testing.T) {
	t.Setenv("FORMLEDGER_IDENTITY_ISSUER", "")
	t.Setenv("FORMLEDGER_IDENTITY_AUDIENCE", "")
	t.Setenv("FORMLEDGER_IDENTITY_PUBLIC_KEY", "")

	if _, err := NewWithAddr("127.0.0.1:0"); err == nil {
		t.Fatal("NewWithAddr() error = nil, want identity config error")
	}
}

package s3

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/spiral/spiral"
)

func TestClientConfigFromOptions(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials")
	if err := os.WriteFile(creds, []byte("[default]\naws_access_key_id=a\naws_secret_access_key=b\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := spiral.DefaultOptions()
	for id, v := range map[spiral.OptionID]string{
		spiral.OptionRegion:          "eu-west-1",
		spiral.OptionEndpoint:        "http://localhost:4566",
		spiral.OptionPathStyle:       "true",
		spiral.OptionAppID:           "spiral-tests",
		spiral.OptionCredentialsFile: creds,
	} {
		if err := opts.Set(id, v); err != nil {
			t.Fatalf("Set(%s) failed: %v", id, err)
		}
	}

	cfg := ClientConfigFromOptions(opts)
	if cfg.Region != "eu-west-1" || cfg.Endpoint != "http://localhost:4566" {
		t.Errorf("unexpected region/endpoint: %+v", cfg)
	}
	if !cfg.UsePathStyle {
		t.Error("expected path style")
	}
	if cfg.AppID != "spiral-tests" || cfg.CredentialsFile != creds {
		t.Errorf("unexpected app id/credentials file: %+v", cfg)
	}
}

func TestClientConfig_LoadOptions(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(bundle, []byte("-----BEGIN CERTIFICATE-----\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	opts, err := ClientConfig{CABundle: bundle, AppID: "x"}.loadOptions()
	if err != nil {
		t.Fatalf("loadOptions failed: %v", err)
	}
	// region, CA bundle, app id
	if len(opts) != 3 {
		t.Errorf("expected 3 load options, got %d", len(opts))
	}

	if _, err := (ClientConfig{CABundle: filepath.Join(t.TempDir(), "missing.pem")}).loadOptions(); err == nil {
		t.Error("expected error for missing CA bundle")
	}

	empty := filepath.Join(t.TempDir(), "empty.pem")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := (ClientConfig{CABundle: empty}).loadOptions(); err == nil {
		t.Error("expected error for empty CA bundle")
	}
}

func TestClientConfig_ServiceOptions(t *testing.T) {
	var o s3.Options
	for _, fn := range (ClientConfig{Endpoint: "http://minio:9000", UsePathStyle: true}).serviceOptions() {
		fn(&o)
	}
	if o.BaseEndpoint == nil || *o.BaseEndpoint != "http://minio:9000" {
		t.Errorf("expected base endpoint, got %v", o.BaseEndpoint)
	}
	if !o.UsePathStyle {
		t.Error("expected path style")
	}

	if got := (ClientConfig{}).serviceOptions(); len(got) != 0 {
		t.Errorf("expected no service options, got %d", len(got))
	}
}

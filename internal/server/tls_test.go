// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"path/filepath"
	"testing"

	"codeberg.org/oliverandrich/waitlist/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allPortsFree(int) bool { return true }

func noPortsFree(int) bool { return false }

func TestResolveTLSMode(t *testing.T) {
	tests := []struct {
		name     string
		tls      config.TLSConfig
		host     string
		portFree func(int) bool
		expected TLSMode
		wantErr  bool
	}{
		{"explicit off", config.TLSConfig{Mode: "off"}, "example.com", allPortsFree, TLSModeOff, false},
		{"explicit acme", config.TLSConfig{Mode: "ACME"}, "localhost", noPortsFree, TLSModeACME, false},
		{"explicit manual", config.TLSConfig{Mode: "manual"}, "example.com", allPortsFree, TLSModeManual, false},
		{"auto on localhost", config.TLSConfig{Mode: "auto"}, "localhost", allPortsFree, TLSModeOff, false},
		{"empty on loopback", config.TLSConfig{}, "127.0.0.1", allPortsFree, TLSModeOff, false},
		{"auto with cert files", config.TLSConfig{Mode: "auto", CertFile: "c.pem", KeyFile: "k.pem"}, "example.com", allPortsFree, TLSModeManual, false},
		{"auto with acme email", config.TLSConfig{Mode: "auto", Email: "ops@example.com"}, "example.com", allPortsFree, TLSModeACME, false},
		{"auto acme ports busy", config.TLSConfig{Mode: "auto", Email: "ops@example.com"}, "example.com", noPortsFree, "", true},
		{"auto acme on ip", config.TLSConfig{Mode: "auto", Email: "ops@example.com"}, "192.0.2.1", allPortsFree, "", true},
		{"auto without options", config.TLSConfig{Mode: "auto"}, "example.com", allPortsFree, "", true},
		{"unknown mode", config.TLSConfig{Mode: "selfsigned"}, "example.com", allPortsFree, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Server: config.ServerConfig{Host: tt.host, Port: 8443},
				TLS:    tt.tls,
			}
			mode, err := resolveTLSMode(cfg, tt.portFree)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestValidateACME(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Host: "example.com", Port: 443}}

	assert.ErrorContains(t, validateACME(cfg, allPortsFree), "TLS_EMAIL")

	cfg.TLS.Email = "ops@example.com"
	assert.ErrorContains(t, validateACME(cfg, noPortsFree), "port 80")
	assert.ErrorContains(t, validateACME(cfg, func(p int) bool { return p == 80 }), "port 443")
	assert.NoError(t, validateACME(cfg, allPortsFree))
}

func TestSetupManual_Errors(t *testing.T) {
	_, err := setupManual(&config.Config{})
	assert.ErrorContains(t, err, "requires both")

	dir := t.TempDir()
	_, err = setupManual(&config.Config{TLS: config.TLSConfig{
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
	}})
	assert.ErrorContains(t, err, "failed to load certificate")
}

func TestSetupACME(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "example.com"},
		TLS:    config.TLSConfig{CertDir: t.TempDir(), Email: "ops@example.com"},
	}

	result, err := setupACME(cfg)

	require.NoError(t, err)
	assert.Equal(t, TLSModeACME, result.Mode)
	assert.NotNil(t, result.CertManager)
	assert.NotNil(t, result.HTTPHandler)
	assert.DirExists(t, filepath.Join(cfg.TLS.CertDir, "acme"))
}

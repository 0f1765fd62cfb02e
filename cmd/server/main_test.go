package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/etensports/chat-server/internal/auth"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "eten-chat dev") {
		t.Errorf("expected output to contain 'eten-chat dev', got: %s", out)
	}
}

func TestHashPasswordCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"hash-password", "s3cret-pass"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("hash-password failed: %v", err)
	}
	hash := strings.TrimSpace(buf.String())
	if err := auth.ComparePassword(hash, "s3cret-pass"); err != nil {
		t.Fatalf("printed hash does not match password: %v", err)
	}
}

func TestHashPasswordRequiresArg(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"hash-password"})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without password argument")
	}
}

func TestServeFlagsRegistered(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "addr", "log-level", "storage", "db"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("root command missing --%s", name)
		}
	}
	serve, _, err := cmd.Find([]string{"serve"})
	if err != nil || serve.Use != "serve" {
		t.Fatalf("serve subcommand not found: %v", err)
	}
	if serve.Flags().Lookup("config") == nil {
		t.Errorf("serve missing --config")
	}
}

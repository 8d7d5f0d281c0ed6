package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	bridgeerrors "github.com/wippyai/engine-bridge/errors"
	"github.com/wippyai/engine-bridge/internal/enginetest"
	"github.com/wippyai/engine-bridge/loader"
)

func writeImage(t *testing.T, image []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.wasm")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { loader.Close(context.Background()) })
	args = append(args[:1:1], append([]string{"--env-file", filepath.Join(t.TempDir(), "none.env")}, args[1:]...)...)
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_NoCommand(t *testing.T) {
	var stderr bytes.Buffer
	err := run(nil, nil, &bytes.Buffer{}, &stderr)
	if exitCodeFor(err) != ExitUsage {
		t.Errorf("exit = %d, err = %v", exitCodeFor(err), err)
	}
	if !strings.Contains(stderr.String(), "Usage:") {
		t.Errorf("usage not printed: %q", stderr.String())
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	err := run([]string{"explode"}, nil, &bytes.Buffer{}, &bytes.Buffer{})
	if !errors.Is(err, ErrUsage) {
		t.Errorf("err = %v", err)
	}
}

func TestRun_Version(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"version"}, nil, &stdout, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout.String()) != Version {
		t.Errorf("version = %q", stdout.String())
	}
}

func TestExports(t *testing.T) {
	image := writeImage(t, enginetest.Image())
	stdout, _, err := runCLI(t, "", "exports", "--image", image)
	if err != nil {
		t.Fatalf("exports: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != len(enginetest.Exports) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(enginetest.Exports), stdout)
	}
	for i, name := range enginetest.Exports {
		if !strings.HasPrefix(lines[i], name+" ") {
			t.Errorf("line %d = %q, want %s", i, lines[i], name)
		}
	}
	if !strings.Contains(stdout, "(i32, i32)") {
		t.Errorf("signatures missing:\n%s", stdout)
	}
}

func TestInvoke_Scalar(t *testing.T) {
	image := writeImage(t, enginetest.Image())
	stdout, _, err := runCLI(t, "", "invoke", "add", "-i", image, "-a", "i32:2", "-a", "i32:40", "-r", "i32")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if strings.TrimSpace(stdout) != "42" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestInvoke_StdinToOutDir(t *testing.T) {
	image := writeImage(t, enginetest.Image())
	outDir := filepath.Join(t.TempDir(), "out")
	pdf := "%PDF-1.7\n%%EOF\n"

	stdout, _, err := runCLI(t, pdf, "invoke", "passthrough", "-i", image,
		"--stdin", "/in.pdf",
		"-a", "input:/in.pdf", "-a", "output:/out.pdf",
		"-r", "status", "-o", outDir, "--name", "copy.pdf")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if strings.TrimSpace(stdout) != "0" {
		t.Errorf("stdout = %q", stdout)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "copy.pdf"))
	if err != nil || string(got) != pdf {
		t.Errorf("output = %q, %v", got, err)
	}
}

func TestInvoke_InputFile(t *testing.T) {
	image := writeImage(t, enginetest.Image())
	in := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(in, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	outDir := t.TempDir()

	_, _, err := runCLI(t, "", "invoke", "passthrough", "-i", image,
		"--input", "/doc.pdf="+in,
		"-a", "input:/doc.pdf", "-a", "output:/result.pdf",
		"-r", "status", "-o", outDir)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(outDir, "result.pdf"))
	if err != nil || string(got) != "%PDF-1.4" {
		t.Errorf("output = %q, %v", got, err)
	}
}

func TestInvoke_ExitCodes(t *testing.T) {
	image := writeImage(t, enginetest.Image())
	missing := filepath.Join(t.TempDir(), "missing.pdf")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unsupported", []string{"invoke", "shred", "-i", image}, ExitUsage},
		{"no operation", []string{"invoke", "-i", image}, ExitUsage},
		{"bad arg", []string{"invoke", "add", "-i", image, "-a", "i32"}, ExitUsage},
		{"bad result", []string{"invoke", "add", "-i", image, "-r", "u8"}, ExitUsage},
		{"engine fault", []string{"invoke", "fail", "-i", image, "-r", "status"}, ExitEngine},
		{"namespace", []string{"invoke", "passthrough", "-i", image, "-a", "input:/nope", "-a", "output:/o", "-r", "status"}, ExitIO},
		{"host file", []string{"invoke", "noop", "-i", image, "--input", "/x=" + missing}, ExitIO},
		{"bad input flag", []string{"invoke", "noop", "-i", image, "--input", "nope"}, ExitUsage},
		{"no image", []string{"invoke", "noop"}, ExitUsage},
		{"unknown flag", []string{"invoke", "noop", "--bogus"}, ExitUsage},
		{"missing image file", []string{"exports", "-i", missing}, ExitEngine},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, "", tt.args...)
			if got := exitCodeFor(err); got != tt.want {
				t.Errorf("exit = %d, want %d (err = %v)", got, tt.want, err)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	image := writeImage(t, enginetest.Image())
	cfg := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(cfg, []byte("engine:\n  image: "+image+"\nlog_level: warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := runCLI(t, "", "invoke", "add", "-c", cfg, "-a", "i32:1", "-a", "i32:1", "-r", "i32")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if strings.TrimSpace(stdout) != "2" {
		t.Errorf("stdout = %q", stdout)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(bad, []byte("engine:\n  imagee: x\n"), 0o644)
	if _, _, err := runCLI(t, "", "exports", "-c", bad); exitCodeFor(err) != ExitUsage {
		t.Errorf("bad config exit = %d (%v)", exitCodeFor(err), err)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{errors.New("boom"), ExitGeneral},
		{fmt.Errorf("wrapped: %w", ErrUsage), ExitUsage},
		{bridgeerrors.UnsupportedOperation("x"), ExitUsage},
		{bridgeerrors.InvalidInput(bridgeerrors.PhaseConfig, "x"), ExitUsage},
		{bridgeerrors.NamespaceFailure("/x"), ExitIO},
		{bridgeerrors.HostSourceUnreadable("x", nil), ExitIO},
		{bridgeerrors.EngineFault("x", "", nil), ExitEngine},
		{bridgeerrors.BootstrapFailure("x", nil), ExitEngine},
		{fmt.Errorf("open: %w", os.ErrNotExist), ExitIO},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.err); got != tt.want {
			t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// FakeFFmpeg is a shell script standing in for ffmpeg. It records each
// invocation and writes a small output file to its last argument.
type FakeFFmpeg struct {
	Path string
	log  string
}

type fakeOptions struct {
	failOn string
	stderr string
	exit   int
}

// FakeOption customizes a FakeFFmpeg.
type FakeOption func(*fakeOptions)

// FailOn makes the fake exit non-zero when the output path contains substr.
// An empty stderr makes the fake fail silently.
func FailOn(substr, stderr string, exitCode int) FakeOption {
	return func(o *fakeOptions) {
		o.failOn = substr
		o.stderr = stderr
		o.exit = exitCode
	}
}

// NewFakeFFmpeg writes the fake into dir.
func NewFakeFFmpeg(t testing.TB, dir string, opts ...FakeOption) *FakeFFmpeg {
	t.Helper()

	var o fakeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir fake ffmpeg dir: %v", err)
	}

	f := &FakeFFmpeg{
		Path: filepath.Join(dir, "ffmpeg"),
		log:  filepath.Join(dir, "ffmpeg.calls"),
	}

	var script strings.Builder
	script.WriteString("#!/bin/sh\n")
	fmt.Fprintf(&script, "printf '%%s\\n' \"$*\" >> %s\n", shellQuote(f.log))
	script.WriteString("out=\"\"\nfor a in \"$@\"; do out=\"$a\"; done\n")
	if o.failOn != "" {
		fmt.Fprintf(&script, "case \"$out\" in\n  *%s*)\n", o.failOn)
		if o.stderr != "" {
			fmt.Fprintf(&script, "    printf '%%s\\n' %s >&2\n", shellQuote(o.stderr))
		}
		fmt.Fprintf(&script, "    exit %d\n    ;;\nesac\n", o.exit)
	}
	script.WriteString("printf 'remuxed' > \"$out\"\nexit 0\n")

	if err := os.WriteFile(f.Path, []byte(script.String()), 0o755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return f
}

// Calls returns the argument lists of every invocation, in order.
func (f *FakeFFmpeg) Calls(t testing.TB) []string {
	t.Helper()
	data, err := os.ReadFile(f.log)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read fake ffmpeg log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

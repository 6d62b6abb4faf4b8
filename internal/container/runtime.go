// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container detects a local container runtime and runs one-shot
// tool containers that read from stdin and write to stdout.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// probeTimeout bounds each availability or image check.
const probeTimeout = 10 * time.Second

// Runtime runs tool images under docker or podman.
type Runtime interface {
	// Name returns the runtime binary, "docker" or "podman".
	Name() string

	// ImageExists returns nil when image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes args inside a fresh, network-less container of image,
	// piping stdin and stdout. The container is removed on exit.
	Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error
}

// executor abstracts process execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Exec(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osExecutor) Exec(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// flavor is what differs between runtimes: the binary and the subcommand
// that checks for a local image.
type flavor struct {
	bin        string
	imageCheck []string
}

var (
	docker = flavor{bin: "docker", imageCheck: []string{"image", "inspect"}}
	podman = flavor{bin: "podman", imageCheck: []string{"image", "exists"}}

	// flavors in preference order.
	flavors = []flavor{docker, podman}
)

type runtime struct {
	flavor
	exec executor
}

func (r *runtime) Name() string { return r.bin }

// available reports whether the binary is on PATH and its daemon answers.
func (r *runtime) available(ctx context.Context) bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return r.exec.Exec(ctx, r.bin, []string{"info"}, nil, io.Discard, io.Discard) == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	args := append(append([]string(nil), r.imageCheck...), image)
	if err := r.exec.Exec(ctx, r.bin, args, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, image string, args []string, stdin io.Reader, stdout io.Writer) error {
	full := append([]string{"run", "--rm", "-i", "--network=none", image}, args...)

	var stderr bytes.Buffer
	err := r.exec.Exec(ctx, r.bin, full, stdin, stdout, &stderr)
	if err == nil {
		return nil
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return fmt.Errorf("running %s in %s: %w: %s", image, r.bin, err, msg)
	}
	return fmt.Errorf("running %s in %s: %w", image, r.bin, err)
}

// DetectRuntime returns docker when it is operational, else podman.
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detectRuntime(ctx, osExecutor{})
}

func detectRuntime(ctx context.Context, e executor) (Runtime, error) {
	for _, f := range flavors {
		rt := &runtime{flavor: f, exec: e}
		if rt.available(ctx) {
			return rt, nil
		}
	}
	return nil, fmt.Errorf("no container runtime available: neither %s nor %s is operational", docker.bin, podman.bin)
}

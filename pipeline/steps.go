// Package pipeline: standard steps for stage bodies.

package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dcshock/speechpipe/collab"
)

// Exec returns a step that runs inv with runner. Any failure, including a
// non-zero exit, is returned unchanged so callers can inspect *collab.ExitError.
func Exec(runner collab.Runner, inv collab.Invocation) Step {
	return func(ctx context.Context) error {
		return runner.Run(ctx, inv)
	}
}

// Mkdir returns a step that creates each directory and its parents.
func Mkdir(paths ...string) Step {
	return func(ctx context.Context) error {
		for _, p := range paths {
			if err := os.MkdirAll(p, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", p, err)
			}
		}
		return nil
	}
}

// Sequence returns a step that runs steps in order and stops at the first error.
func Sequence(steps ...Step) Step {
	return func(ctx context.Context) error {
		for _, s := range steps {
			if err := s(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Scratch returns a step that creates dir, runs steps in order and removes
// dir afterwards whether or not they succeed. Only directories a stage
// creates for itself should be passed here.
func Scratch(dir string, steps ...Step) Step {
	return func(ctx context.Context) (err error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("scratch %s: %w", dir, err)
		}
		defer func() {
			if rmErr := os.RemoveAll(dir); rmErr != nil && err == nil {
				err = fmt.Errorf("remove scratch %s: %w", dir, rmErr)
			}
		}()
		return Sequence(steps...)(ctx)
	}
}

// CopyFile returns a step that copies src to dst, creating dst's directory.
func CopyFile(src, dst string) Step {
	return func(ctx context.Context) error {
		in, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		defer in.Close()
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		out, err := os.Create(dst)
		if err != nil {
			return fmt.Errorf("copy: %w", err)
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
		}
		return out.Close()
	}
}

// Rename returns a step that moves src to dst.
func Rename(src, dst string) Step {
	return func(ctx context.Context) error {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("rename: %w", err)
		}
		return nil
	}
}

// ABOUTME: Directory pickers that stand in for an interactive folder grant
// ABOUTME: A grant lives in memory for the current process only
package dirfs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrPickerCanceled means the user dismissed the picker. It is not a failure.
	ErrPickerCanceled = errors.New("directory selection canceled")
	// ErrUnsupported means no picker is available in this runtime.
	ErrUnsupported = errors.New("directory access not supported")
)

// Picker asks the user for a directory.
type Picker interface {
	PickDirectory(ctx context.Context) (string, error)
}

// Handle is a granted directory. It cannot be persisted; a new process
// must be granted access again.
type Handle struct {
	Path string
	Name string
}

// Select runs the picker and validates the chosen directory.
func Select(ctx context.Context, p Picker) (Handle, error) {
	if p == nil {
		return Handle{}, ErrUnsupported
	}
	path, err := p.PickDirectory(ctx)
	if err != nil {
		return Handle{}, err
	}
	return Grant(path)
}

// Grant turns a path into a handle after checking it is a directory.
func Grant(path string) (Handle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to resolve directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Handle{}, fmt.Errorf("failed to open directory: %w", err)
	}
	if !info.IsDir() {
		return Handle{}, fmt.Errorf("%s is not a directory", abs)
	}
	return Handle{Path: abs, Name: filepath.Base(abs)}, nil
}

// StaticPicker returns a path granted up front, e.g. from a command-line flag.
type StaticPicker struct {
	Path string
}

func (p StaticPicker) PickDirectory(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Path == "" {
		return "", ErrPickerCanceled
	}
	return p.Path, nil
}

// PromptPicker asks for a path on a terminal. A blank answer or EOF cancels.
type PromptPicker struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptPicker) PickDirectory(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Out != nil {
		fmt.Fprint(p.Out, "Directory to store data in (blank to cancel): ")
	}
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrPickerCanceled
	}
	if strings.HasPrefix(line, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			line = filepath.Join(home, line[2:])
		}
	}
	return line, nil
}

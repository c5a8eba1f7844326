package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrToolMissing is returned when a command does not resolve to an executable.
var ErrToolMissing = errors.New("tool not found")

// Available reports whether command resolves to an executable file.
func Available(command string) bool {
	_, err := Resolve(command)
	return err == nil
}

// Resolve returns the executable a command name refers to. Bare names are
// looked up on PATH; names containing a separator are taken relative to the
// current directory.
func Resolve(command string) (string, error) {
	if command == "" {
		return "", fmt.Errorf("%w: empty command", ErrToolMissing)
	}

	if !filepath.IsAbs(command) && !strings.ContainsRune(command, os.PathSeparator) {
		p, err := exec.LookPath(command)
		if err != nil {
			return "", fmt.Errorf("%w: %s is not on PATH", ErrToolMissing, command)
		}
		return p, nil
	}

	p, err := filepath.Abs(command)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", command, err)
	}
	if err := executableFile(p); err != nil {
		return "", err
	}
	return p, nil
}

func executableFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %s does not exist", ErrToolMissing, path)
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case info.IsDir():
		return fmt.Errorf("%w: %s is a directory", ErrToolMissing, path)
	case info.Mode()&0o111 == 0:
		return fmt.Errorf("%w: %s is not executable", ErrToolMissing, path)
	}
	return nil
}

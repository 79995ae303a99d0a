// Package developer manages the per-repository developer identity file.
//
// The identity lives at <data_dir>/developer as two key-value lines:
//
//	name=<developer>
//	initialized_at=<RFC 3339 timestamp>
//
// Journals and default task assignment key off this identity.
package developer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
)

// FileName is the identity file name inside the data directory.
const FileName = "developer"

// Developer is the identity recorded in the data directory.
type Developer struct {
	Name          string
	InitializedAt time.Time
}

// nameRegex validates developer names. The name becomes a journal
// directory component, so it must be path-safe.
var nameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// maxNameLength bounds developer names to keep paths readable.
const maxNameLength = 50

// ValidateName checks that a developer name is usable as an identity
// and as a directory name.
func ValidateName(name string) error {
	if name == "" {
		return errors.NewValidationError("developer name cannot be empty").WithField("name")
	}
	if len(name) > maxNameLength {
		return errors.NewValidationError(fmt.Sprintf("developer name exceeds %d characters", maxNameLength)).
			WithField("name").WithValue(name)
	}
	if !nameRegex.MatchString(name) {
		return errors.NewValidationError("developer name must start with a letter and contain only alphanumeric characters, hyphens, or underscores").
			WithField("name").WithValue(name)
	}
	return nil
}

// Init records the developer identity. It fails if an identity file
// already exists; re-initialization requires removing the file first.
func Init(dataDir, name string) (*Developer, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}

	path := filepath.Join(dataDir, FileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.NewAlreadyExistsError("developer identity", path).WithCause(err)
		}
		return nil, errors.Wrap(err, "failed to create developer identity file")
	}

	dev := &Developer{
		Name:          name,
		InitializedAt: time.Now().UTC().Truncate(time.Second),
	}

	content := fmt.Sprintf("name=%s\ninitialized_at=%s\n",
		dev.Name, dev.InitializedAt.Format(time.RFC3339))
	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return nil, errors.Wrap(err, "failed to write developer identity file")
	}
	if err := file.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close developer identity file")
	}

	return dev, nil
}

// Load reads the developer identity. A missing file returns (nil, nil)
// so callers decide whether absence is an error; a malformed file
// returns a validation error that read paths should treat as absent
// after warning.
func Load(dataDir string) (*Developer, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read developer identity file")
	}
	return parse(string(data))
}

// Require returns the developer identity, or ErrNoDeveloper when the
// identity file is absent.
func Require(dataDir string) (*Developer, error) {
	dev, err := Load(dataDir)
	if err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, errors.ErrNoDeveloper
	}
	return dev, nil
}

// parse decodes the key-value identity format. Unknown keys are
// ignored for forward compatibility.
func parse(content string) (*Developer, error) {
	dev := &Developer{}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.NewValidationError("malformed developer identity line").
				WithField("developer").WithValue(line)
		}

		switch key {
		case "name":
			dev.Name = value
		case "initialized_at":
			ts, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, errors.NewValidationError("invalid initialized_at timestamp").
					WithField("initialized_at").WithValue(value).WithCause(err)
			}
			dev.InitializedAt = ts
		}
	}

	if dev.Name == "" {
		return nil, errors.NewValidationError("developer identity missing name").WithField("name")
	}

	return dev, nil
}

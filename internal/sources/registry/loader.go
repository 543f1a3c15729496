package registry

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/pimon/internal/domain"
)

var (
	ErrEmpty             = errors.New("services file lists no services")
	ErrInvalidEntry      = errors.New("invalid service entry")
	ErrDuplicateEntry    = errors.New("duplicate service entry")
	identifierPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9:_.@\\-]*$`)
	defaultServiceConfig = []domain.ServiceDescriptor{
		{Label: "3CX SBC", Identifier: "3cxsbc"},
		{Label: "SSH", Identifier: "ssh"},
		{Label: "Cockpit", Identifier: "cockpit"},
	}
)

// Defaults returns the built-in service list used when no file is configured.
func Defaults() []domain.ServiceDescriptor {
	return append([]domain.ServiceDescriptor(nil), defaultServiceConfig...)
}

// Loader reads the monitored service list from a yaml file.
type Loader struct {
	filePath string
}

// NewLoader creates a new services file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads, parses and validates the services file. Order is preserved.
func (l *Loader) Load() ([]domain.ServiceDescriptor, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse services yaml: %w", err)
	}

	return Validate(file.Services)
}

// Validate trims entries and rejects empty, malformed or duplicate ones.
// Identifiers end up as argv for the service manager, so they are limited
// to unit-name characters and may not start with a dash.
func Validate(entries []Entry) ([]domain.ServiceDescriptor, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}

	descriptors := make([]domain.ServiceDescriptor, 0, len(entries))
	labels := make(map[string]bool, len(entries))
	identifiers := make(map[string]bool, len(entries))

	for i, e := range entries {
		label := strings.TrimSpace(e.Label)
		identifier := strings.TrimSpace(e.Identifier)

		if label == "" || identifier == "" {
			return nil, fmt.Errorf("%w: entry %d needs both label and identifier", ErrInvalidEntry, i)
		}
		if !identifierPattern.MatchString(identifier) {
			return nil, fmt.Errorf("%w: entry %d identifier %q", ErrInvalidEntry, i, identifier)
		}
		if identifiers[identifier] {
			return nil, fmt.Errorf("%w: identifier %q", ErrDuplicateEntry, identifier)
		}
		if labels[label] {
			return nil, fmt.Errorf("%w: label %q", ErrDuplicateEntry, label)
		}

		identifiers[identifier] = true
		labels[label] = true
		descriptors = append(descriptors, domain.ServiceDescriptor{Label: label, Identifier: identifier})
	}

	return descriptors, nil
}

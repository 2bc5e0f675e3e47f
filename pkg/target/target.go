package target

import (
	"fmt"
	"strings"
)

// Kind determines which driver variant applies to a target. The set is closed.
type Kind string

const (
	KindService Kind = "service" // background service, restart confirmed by a bounded wait
	KindPool    Kind = "pool"    // web-server worker pool, restart is fire-and-forget
	KindControl Kind = "control" // governs process-wide log verbosity, never polled
)

var kindAliases = map[string]Kind{
	"service":        KindService,
	"managedservice": KindService,
	"pool":           KindPool,
	"managedpool":    KindPool,
	"control":        KindControl,
}

// ParseKind accepts the canonical names and the ManagedService/ManagedPool/Control
// spelling of configuration records, case-insensitively.
func ParseKind(s string) (Kind, error) {
	if kind, ok := kindAliases[strings.ToLower(s)]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("unsupported target kind: %q", s)
}

func (k Kind) Valid() bool {
	switch k {
	case KindService, KindPool, KindControl:
		return true
	}
	return false
}

// Monitored reports whether targets of this kind get a polling monitor.
func (k Kind) Monitored() bool {
	return k == KindService || k == KindPool
}

// ID is the kind-qualified target identity, written as "<kind>/<name>".
type ID struct {
	Kind Kind
	Name string
}

func NewID(kind Kind, name string) ID {
	return ID{Kind: kind, Name: name}
}

func (id ID) String() string {
	return string(id.Kind) + "/" + id.Name
}

func ParseID(s string) (ID, error) {
	kindPart, name, found := strings.Cut(s, "/")
	if !found {
		return ID{}, fmt.Errorf("target identity %q must have the form <kind>/<name>", s)
	}
	kind, err := ParseKind(kindPart)
	if err != nil {
		return ID{}, err
	}
	if err := ValidateName(name); err != nil {
		return ID{}, err
	}
	return ID{Kind: kind, Name: name}, nil
}

// ValidateName accepts letters, digits, '-', '_' and '.', up to 128 characters.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("target name cannot be empty")
	}
	if len(name) > 128 {
		return fmt.Errorf("target name cannot exceed 128 characters")
	}
	for _, char := range name {
		if !isValidNameChar(char) {
			return fmt.Errorf("target name %q contains invalid characters: only letters, numbers, '-', '_' and '.' are allowed", name)
		}
	}
	return nil
}

func isValidNameChar(char rune) bool {
	return (char >= 'a' && char <= 'z') ||
		(char >= 'A' && char <= 'Z') ||
		(char >= '0' && char <= '9') ||
		char == '-' || char == '_' || char == '.'
}

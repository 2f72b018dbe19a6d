package actions

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for resolution failures. Use errors.Is on a *ResolveError.
var (
	ErrUnknownID     = errors.New("actions: unknown action id")
	ErrUnknownName   = errors.New("actions: unknown action name")
	ErrAmbiguous     = errors.New("actions: ambiguous action")
	ErrInvalidGroup  = errors.New("actions: invalid group")
	ErrMissingTarget = errors.New("actions: no action id or name provided")
)

// Descriptor is a symbolic action request.
// Group may be empty; Name takes precedence over ID when both are set.
type Descriptor struct {
	Group Group  `json:"group,omitempty"`
	Name  string `json:"name,omitempty"`
	ID    *int   `json:"id,omitempty"`
}

// ByName builds a descriptor for a named action.
func ByName(g Group, name string) Descriptor {
	return Descriptor{Group: g, Name: name}
}

// ByID builds a descriptor for a numbered action.
func ByID(g Group, id int) Descriptor {
	return Descriptor{Group: g, ID: &id}
}

// String renders the descriptor for logs.
func (d Descriptor) String() string {
	var b strings.Builder
	if d.Group != "" {
		b.WriteString(string(d.Group))
		b.WriteByte('/')
	}
	switch {
	case d.Name != "":
		b.WriteString(d.Name)
	case d.ID != nil:
		fmt.Fprintf(&b, "#%d", *d.ID)
	default:
		b.WriteString("?")
	}
	return b.String()
}

// Resolved is a descriptor bound to exactly one table entry.
type Resolved struct {
	Group Group  `json:"group"`
	ID    int    `json:"id"`
	Name  string `json:"name"`
}

// ResolveError reports why a descriptor could not be resolved.
type ResolveError struct {
	Kind  error
	Group Group
	Name  string
	ID    *int
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	switch e.Kind {
	case ErrUnknownName:
		if e.Group != "" {
			return fmt.Sprintf("Unknown %s action name: %s", e.Group, e.Name)
		}
		return "Unknown action name: " + e.Name
	case ErrUnknownID:
		if e.ID != nil {
			return fmt.Sprintf("Unknown %s action id: %d", e.Group, *e.ID)
		}
	case ErrAmbiguous:
		return "Action is ambiguous; please specify group='arm' or group='loco'."
	case ErrInvalidGroup:
		return fmt.Sprintf("Invalid group %q; expected 'arm' or 'loco'.", e.Group)
	case ErrMissingTarget:
		return "No action id or name provided"
	}
	return e.Kind.Error()
}

// Unwrap returns the sentinel kind.
func (e *ResolveError) Unwrap() error {
	return e.Kind
}

// ParseGroup normalizes a wire group name. "locomotion" is accepted as an
// alias of "loco". The empty string is returned unchanged.
func ParseGroup(s string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "arm":
		return GroupArm, nil
	case "loco", "locomotion":
		return GroupLoco, nil
	}
	return "", &ResolveError{Kind: ErrInvalidGroup, Group: Group(s)}
}

// Resolve binds a descriptor to a table entry.
//
// Without an explicit group, a name or id must exist in exactly one group;
// presence in both is an ambiguity error rather than a silent default.
func Resolve(d Descriptor) (Resolved, error) {
	group := d.Group
	if group == "" {
		g, err := inferGroup(d)
		if err != nil {
			return Resolved{}, err
		}
		group = g
	}

	t, ok := tables[group]
	if !ok {
		return Resolved{}, &ResolveError{Kind: ErrInvalidGroup, Group: group}
	}

	if d.Name != "" {
		id, ok := t.byName[d.Name]
		if !ok {
			return Resolved{}, &ResolveError{Kind: ErrUnknownName, Group: group, Name: d.Name}
		}
		return Resolved{Group: group, ID: id, Name: d.Name}, nil
	}
	if d.ID == nil {
		return Resolved{}, &ResolveError{Kind: ErrMissingTarget, Group: group}
	}
	name, ok := t.byID[*d.ID]
	if !ok {
		return Resolved{}, &ResolveError{Kind: ErrUnknownID, Group: group, ID: d.ID}
	}
	return Resolved{Group: group, ID: *d.ID, Name: name}, nil
}

func inferGroup(d Descriptor) (Group, error) {
	var inArm, inLoco bool
	switch {
	case d.Name != "":
		_, inArm = tables[GroupArm].byName[d.Name]
		_, inLoco = tables[GroupLoco].byName[d.Name]
	case d.ID != nil:
		_, inArm = tables[GroupArm].byID[*d.ID]
		_, inLoco = tables[GroupLoco].byID[*d.ID]
	default:
		return "", &ResolveError{Kind: ErrMissingTarget}
	}

	switch {
	case inArm && inLoco:
		return "", &ResolveError{Kind: ErrAmbiguous, Name: d.Name, ID: d.ID}
	case inArm:
		return GroupArm, nil
	case inLoco:
		return GroupLoco, nil
	case d.Name != "":
		return "", &ResolveError{Kind: ErrUnknownName, Name: d.Name}
	default:
		return "", &ResolveError{Kind: ErrUnknownID, ID: d.ID}
	}
}

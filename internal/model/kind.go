package model

import "strings"

// Kind classifies a definition or state type name by the base object it belongs to
type Kind int

const (
	KindUnknown Kind = iota
	KindHost
	KindService
	KindContact
)

// Classify returns the kind of a type name. "service" is matched before
// "host" so that names containing both resolve to services.
func Classify(typeName string) Kind {
	switch {
	case strings.Contains(typeName, "service"):
		return KindService
	case strings.Contains(typeName, "host"):
		return KindHost
	case strings.Contains(typeName, "contact"):
		return KindContact
	default:
		return KindUnknown
	}
}

// BaseType returns the definition type the kind refers to
func (k Kind) BaseType() string {
	switch k {
	case KindHost:
		return "host"
	case KindService:
		return "service"
	case KindContact:
		return "contact"
	default:
		return ""
	}
}

func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return k.BaseType()
}

// Relation describes how a related type is wired onto its base records
type Relation int

const (
	// RelationNone: the type is a base type itself or unrelated
	RelationNone Relation = iota
	// RelationGroup: members listed in a comma separated "members" attribute
	RelationGroup
	// RelationAttached: a single owner named by the owner's identifier attributes
	RelationAttached
)

// Property strips the base type out of a related type name:
// hostgroup -> group, serviceescalation -> escalation.
func Property(typeName string, k Kind) string {
	base := k.BaseType()
	if base == "" {
		return ""
	}
	idx := strings.Index(typeName, base)
	if idx < 0 {
		return ""
	}
	return typeName[:idx] + typeName[idx+len(base):]
}

// RelationOf returns the kind, relation and property of a definition type
func RelationOf(typeName string) (Kind, Relation, string) {
	k := Classify(typeName)
	if k == KindUnknown || typeName == k.BaseType() {
		return k, RelationNone, ""
	}
	prop := Property(typeName, k)
	if prop == "" {
		return k, RelationNone, ""
	}
	if strings.Contains(prop, "group") {
		return k, RelationGroup, prop
	}
	return k, RelationAttached, prop
}

// Identifier computes the identifier of a definition of the given type.
// Services are keyed by "host_name;service_description", every other type
// by its "<type>_name" attribute.
func Identifier(typeName string, attrs func(string) (string, bool)) (string, bool) {
	if typeName == "service" {
		host, ok := attrs("host_name")
		if !ok {
			return "", false
		}
		desc, ok := attrs("service_description")
		if !ok {
			return "", false
		}
		return ServiceIdentifier(host, desc), true
	}
	return attrs(typeName + "_name")
}

// ServiceIdentifier joins a host name and service description
func ServiceIdentifier(host, description string) string {
	return host + ";" + description
}

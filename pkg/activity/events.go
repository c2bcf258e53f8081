package activity

import (
	"strings"
	"time"
)

// Registry event verbs.
const (
	VerbValueSet        = "registry.value.set"
	VerbReset           = "registry.reset"
	VerbImported        = "registry.imported"
	VerbOverrideApplied = "registry.override.applied"
)

// Registry object types.
const (
	ObjectEntry    = "registry.entry"
	ObjectRegistry = "registry"
	ObjectImport   = "registry.import"
	ObjectOverride = "registry.override"
)

// RegistryEventInput describes the common fields of registry lifecycle events.
type RegistryEventInput struct {
	ActorID  string
	TenantID string
	ObjectID string
	Channel  string
	Metadata map[string]any
	// Path is the dotted registry path the event concerns.
	Path     string
	OldValue any
	NewValue any
	// Keys lists override keys in application order.
	Keys []string
	// Sources lists import locators, strongest first.
	Sources    []string
	Purge      bool
	Suppressed bool
	OccurredAt time.Time
}

// BuildValueSetEvent describes a cache write through Registry.Set.
func BuildValueSetEvent(input RegistryEventInput) Event {
	return buildRegistryEvent(VerbValueSet, ObjectEntry, input)
}

// BuildResetEvent describes a reset request. Metadata carries suppressed=true
// when the reset was ignored.
func BuildResetEvent(input RegistryEventInput) Event {
	event := buildRegistryEvent(VerbReset, ObjectRegistry, input)
	event.Metadata = ensureMetadata(event.Metadata)
	event.Metadata["suppressed"] = input.Suppressed
	return event
}

// BuildImportedEvent describes a completed import.
func BuildImportedEvent(input RegistryEventInput) Event {
	event := buildRegistryEvent(VerbImported, ObjectImport, input)
	event.Metadata = ensureMetadata(event.Metadata)
	event.Metadata["purge"] = input.Purge
	if len(input.Sources) > 0 {
		event.Metadata["sources"] = append([]string{}, input.Sources...)
		if event.ObjectID == ObjectImport {
			event.ObjectID = input.Sources[0]
		}
	}
	return event
}

// BuildOverrideAppliedEvent describes an override scope about to run.
func BuildOverrideAppliedEvent(input RegistryEventInput) Event {
	event := buildRegistryEvent(VerbOverrideApplied, ObjectOverride, input)
	if len(input.Keys) > 0 {
		event.Metadata = ensureMetadata(event.Metadata)
		event.Metadata["keys"] = append([]string{}, input.Keys...)
	}
	return event
}

func buildRegistryEvent(verb, objectType string, input RegistryEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Path != "" {
		metadata = ensureMetadata(metadata)
		metadata["path"] = input.Path
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Path)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

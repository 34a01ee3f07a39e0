// Package model contains core data types for the project.
package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Now returns the current time in milliseconds since the Unix epoch.
// Builders read the clock through it.
var Now = func() int64 { return time.Now().UnixMilli() }

// Entry is one hierarchical, timestamped metric observation.
// It is immutable once built; use EntryBuilder to create one.
type Entry struct {
	path      []string
	timestamp int64
	value     float64
	hasValue  bool
	url       string
	unit      string
	status    Status
	hasStatus bool
}

// Path returns a copy of the entry path, outermost segment first.
func (e Entry) Path() []string { return slices.Clone(e.path) }

// Timestamp returns the entry time in milliseconds since the Unix epoch.
func (e Entry) Timestamp() int64 { return e.timestamp }

// Value returns the numeric value and whether it is set.
func (e Entry) Value() (float64, bool) { return e.value, e.hasValue }

// URL returns the optional URL attached to the entry.
func (e Entry) URL() string { return e.url }

// Unit returns the optional unit of the value.
func (e Entry) Unit() string { return e.unit }

// Status returns the optional status and whether it is set.
func (e Entry) Status() (Status, bool) { return e.status, e.hasStatus }

// Equal reports whether both entries carry the same data.
func (e Entry) Equal(o Entry) bool {
	return slices.Equal(e.path, o.path) &&
		e.timestamp == o.timestamp &&
		e.hasValue == o.hasValue &&
		(!e.hasValue || e.value == o.value) &&
		e.url == o.url &&
		e.unit == o.unit &&
		e.hasStatus == o.hasStatus &&
		(!e.hasStatus || e.status == o.status)
}

func (e Entry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entry{path=%s timestamp=%d", strings.Join(e.path, "/"), e.timestamp)
	if e.hasValue {
		fmt.Fprintf(&sb, " value=%v", e.value)
	}
	if e.unit != "" {
		fmt.Fprintf(&sb, " unit=%s", e.unit)
	}
	if e.url != "" {
		fmt.Fprintf(&sb, " url=%s", e.url)
	}
	if e.hasStatus {
		fmt.Fprintf(&sb, " status=%s", e.status)
	}
	sb.WriteString("}")
	return sb.String()
}

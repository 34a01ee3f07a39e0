// Package rest converts model values to and from the JSON property sets
// exchanged with the collector server.
package rest

// Resource names on the collector server.
const (
	MetadataResource   = "$metadata"
	SessionResource    = "Session"
	EntryResource      = "Entry"
	EntriesResource    = "Entries"
	XMLEntriesResource = "XMLEntries"
)

// PathSeparator joins path segments on the wire.
const PathSeparator = '|'

// DisplaySeparator joins path segments for humans.
const DisplaySeparator = '/'

// EntryProperties is the wire form of one entry.
type EntryProperties struct {
	SessionID string            `json:"SessionId,omitempty"`
	Path      string            `json:"Path"`
	Value     *float64          `json:"Value,omitempty"`
	Timestamp *int64            `json:"Timestamp,omitempty"`
	URL       string            `json:"Url,omitempty"`
	Unit      string            `json:"Unit,omitempty"`
	Status    *StatusProperties `json:"Status,omitempty"`
}

// EntriesProperties carries a batch of entries for one session.
type EntriesProperties struct {
	SessionID string            `json:"SessionId"`
	Entries   []EntryProperties `json:"Entries"`
}

type StatusProperties struct {
	Code    string `json:"Code,omitempty"`
	Message string `json:"Message,omitempty"`
	State   string `json:"State,omitempty"`
}

type ContextProperties struct {
	Hardware   string `json:"Hardware,omitempty"`
	OS         string `json:"Os,omitempty"`
	Software   string `json:"Software,omitempty"`
	Location   string `json:"Location,omitempty"`
	Script     string `json:"Script,omitempty"`
	InstanceID string `json:"InstanceId,omitempty"`
}

// SessionProperties opens a session.
type SessionProperties struct {
	Context *ContextProperties `json:"Context,omitempty"`
	APIKey  string             `json:"ApiKey"`
}

// SessionIDProperties answers a session request.
type SessionIDProperties struct {
	SessionID string `json:"SessionId"`
}

// XMLEntriesProperties carries a raw document for server side flattening.
type XMLEntriesProperties struct {
	SessionID string `json:"SessionId,omitempty"`
	XML       string `json:"Xml"`
	Path      string `json:"Path,omitempty"`
	Timestamp *int64 `json:"Timestamp,omitempty"`
	Charset   string `json:"Charset,omitempty"`
}

// Metadata lists the resources a server accepts.
type Metadata struct {
	Version   string   `json:"Version,omitempty"`
	Resources []string `json:"Resources"`
}

// Supports reports whether the server advertises resource.
func (m Metadata) Supports(resource string) bool {
	for _, r := range m.Resources {
		if r == resource {
			return true
		}
	}
	return false
}

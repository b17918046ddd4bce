// Package aggregate folds fetch outcomes into a single keyed document.
package aggregate

import (
	"slices"
	"time"

	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
)

// Entry is one successful response in a document.
type Entry struct {
	Descriptor params.Descriptor
	Body       []byte
}

// Document is the frozen result of a run. It is keyed by descriptor; the
// string key is derived only when the document is serialized.
type Document struct {
	// Timestamp is captured once, when the document is frozen.
	Timestamp time.Time

	entries map[params.Descriptor][]byte
}

// NewDocument builds a frozen document from entries. Later entries win on
// duplicate descriptors.
func NewDocument(ts time.Time, entries ...Entry) *Document {
	m := make(map[params.Descriptor][]byte, len(entries))
	for _, e := range entries {
		m[e.Descriptor] = e.Body
	}
	return &Document{Timestamp: ts, entries: m}
}

// Len returns the number of entries.
func (d *Document) Len() int {
	return len(d.entries)
}

// Get returns the body stored for desc.
func (d *Document) Get(desc params.Descriptor) ([]byte, bool) {
	body, ok := d.entries[desc]
	return body, ok
}

// Entries returns all entries ordered like params.All.
func (d *Document) Entries() []Entry {
	out := make([]Entry, 0, len(d.entries))
	for desc, body := range d.entries {
		out = append(out, Entry{Descriptor: desc, Body: body})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return compareDescriptors(a.Descriptor, b.Descriptor)
	})
	return out
}

// Data returns the serialized view: archive key to response text.
func (d *Document) Data() map[string]string {
	out := make(map[string]string, len(d.entries))
	for desc, body := range d.entries {
		out[desc.Key()] = string(body)
	}
	return out
}

func compareDescriptors(a, b params.Descriptor) int {
	if a.DisplayType != b.DisplayType {
		return a.DisplayType - b.DisplayType
	}
	if a.ControlType != b.ControlType {
		return a.ControlType - b.ControlType
	}
	return a.PBType - b.PBType
}

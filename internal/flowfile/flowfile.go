package flowfile

import (
	"bytes"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Well-known attribute keys.
const (
	AttrUUID     = "uuid"
	AttrFilename = "filename"
	AttrPath     = "path"
	AttrMimeType = "mime.type"
)

// FlowFile is a unit of data moving through a flow: opaque content plus
// string attributes.
type FlowFile struct {
	ID         string
	Content    []byte
	Attributes map[string]string
	Created    time.Time
}

// New returns a record with a fresh ID holding a copy of attrs.
func New(content []byte, attrs map[string]string) *FlowFile {
	id := uuid.NewString()
	a := make(map[string]string, len(attrs)+1)
	maps.Copy(a, attrs)
	a[AttrUUID] = id
	return &FlowFile{
		ID:         id,
		Content:    content,
		Attributes: a,
		Created:    time.Now().UTC(),
	}
}

// Derive creates a child of parent: new ID, parent's attributes, no content.
func Derive(parent *FlowFile) *FlowFile {
	attrs := make(map[string]string, len(parent.Attributes))
	maps.Copy(attrs, parent.Attributes)
	delete(attrs, AttrUUID)
	return New(nil, attrs)
}

// Clone returns a deep copy, keeping the ID.
func (f *FlowFile) Clone() *FlowFile {
	c := &FlowFile{
		ID:         f.ID,
		Attributes: maps.Clone(f.Attributes),
		Created:    f.Created,
	}
	if f.Content != nil {
		c.Content = bytes.Clone(f.Content)
	}
	if c.Attributes == nil {
		c.Attributes = map[string]string{}
	}
	return c
}

func (f *FlowFile) Attribute(key string) (string, bool) {
	v, ok := f.Attributes[key]
	return v, ok
}

func (f *FlowFile) Size() int { return len(f.Content) }

// Equal reports whether a and b carry identical content and attributes.
func Equal(a, b *FlowFile) bool {
	if a == nil || b == nil {
		return a == b
	}
	return bytes.Equal(a.Content, b.Content) && maps.Equal(a.Attributes, b.Attributes)
}

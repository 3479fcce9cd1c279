package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/chtzvt/tablemapper/internal/flowfile"
	"github.com/chtzvt/tablemapper/internal/processor"
)

var (
	ErrNotTransferred    = errors.New("flowfile was not transferred")
	ErrTransferredTwice  = errors.New("flowfile transferred more than once")
	ErrUnknownFlowFile   = errors.New("flowfile does not belong to this session")
	ErrUnknownRoute      = errors.New("unknown relationship")
	ErrRemoveInput       = errors.New("input flowfiles cannot be removed")
	ErrAlreadyCommitted  = errors.New("session already committed")
	errTransferAfterDrop = errors.New("flowfile was removed")
)

type entry struct {
	ff      *flowfile.FlowFile
	created bool
	removed bool
	routes  []string
}

// Memory is an in-process Session over a queue of input records. Every record
// it hands out or creates must end up with exactly one disposition by Commit.
type Memory struct {
	mu        sync.Mutex
	queue     []*flowfile.FlowFile
	allowed   map[string]bool
	tracked   map[string]*entry
	order     []string
	errs      []error
	committed bool
	transfers map[string][]*flowfile.FlowFile
	created   int
}

var _ processor.Session = (*Memory)(nil)

// New builds a session accepting transfers to rels. A nil rels accepts any
// relationship name.
func New(rels []processor.Relationship, input ...*flowfile.FlowFile) *Memory {
	m := &Memory{
		tracked:   make(map[string]*entry),
		transfers: make(map[string][]*flowfile.FlowFile),
	}
	if rels != nil {
		m.allowed = make(map[string]bool, len(rels))
		for _, r := range rels {
			m.allowed[r.Name] = true
		}
	}
	m.queue = append(m.queue, input...)
	return m
}

func (m *Memory) Enqueue(ff ...*flowfile.FlowFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, ff...)
}

func (m *Memory) Get() *flowfile.FlowFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	ff := m.queue[0]
	m.queue = m.queue[1:]
	m.track(ff, false)
	return ff
}

func (m *Memory) Create(parent *flowfile.FlowFile) *flowfile.FlowFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	child := flowfile.Derive(parent)
	m.track(child, true)
	m.created++
	return child
}

func (m *Memory) Write(ff *flowfile.FlowFile, fn func(w io.Writer) error) (*flowfile.FlowFile, error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return ff, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(ff)
	if err != nil {
		return ff, err
	}
	next := ff.Clone()
	next.Content = buf.Bytes()
	e.ff = next
	return next, nil
}

func (m *Memory) PutAttribute(ff *flowfile.FlowFile, key, value string) *flowfile.FlowFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(ff)
	if err != nil {
		m.errs = append(m.errs, err)
		return ff
	}
	next := ff.Clone()
	next.Attributes[key] = value
	e.ff = next
	return next
}

func (m *Memory) Remove(ff *flowfile.FlowFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(ff)
	if err != nil {
		m.errs = append(m.errs, err)
		return
	}
	if !e.created {
		m.errs = append(m.errs, fmt.Errorf("%w: %s", ErrRemoveInput, ff.ID))
		return
	}
	e.removed = true
}

func (m *Memory) Transfer(ff *flowfile.FlowFile, rel processor.Relationship) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(ff)
	if err != nil {
		m.errs = append(m.errs, err)
		return
	}
	if m.allowed != nil && !m.allowed[rel.Name] {
		m.errs = append(m.errs, fmt.Errorf("%w: %q", ErrUnknownRoute, rel.Name))
		return
	}
	if e.removed {
		m.errs = append(m.errs, fmt.Errorf("%w: %s", errTransferAfterDrop, ff.ID))
		return
	}
	e.ff = ff
	e.routes = append(e.routes, rel.Name)
}

// Commit checks every touched record has exactly one disposition and, if so,
// publishes the transfers.
func (m *Memory) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.committed {
		return ErrAlreadyCommitted
	}
	errs := append([]error(nil), m.errs...)
	for _, id := range m.order {
		e := m.tracked[id]
		switch {
		case e.removed:
		case len(e.routes) == 0:
			errs = append(errs, fmt.Errorf("%w: %s", ErrNotTransferred, id))
		case len(e.routes) > 1:
			errs = append(errs, fmt.Errorf("%w: %s -> %v", ErrTransferredTwice, id, e.routes))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for _, id := range m.order {
		e := m.tracked[id]
		if e.removed {
			continue
		}
		m.transfers[e.routes[0]] = append(m.transfers[e.routes[0]], e.ff)
	}
	m.committed = true
	return nil
}

// Transferred returns the records committed to route.
func (m *Memory) Transferred(route string) []*flowfile.FlowFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transfers[route]
}

// Routes lists the relationships that received at least one record.
func (m *Memory) Routes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	routes := make([]string, 0, len(m.transfers))
	for r := range m.transfers {
		routes = append(routes, r)
	}
	sort.Strings(routes)
	return routes
}

// Created is the number of records derived during the session.
func (m *Memory) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

// Pending is the number of queued input records not yet handed out.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Memory) track(ff *flowfile.FlowFile, created bool) {
	m.tracked[ff.ID] = &entry{ff: ff, created: created}
	m.order = append(m.order, ff.ID)
}

func (m *Memory) lookup(ff *flowfile.FlowFile) (*entry, error) {
	if ff == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnknownFlowFile)
	}
	e, ok := m.tracked[ff.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlowFile, ff.ID)
	}
	return e, nil
}

// Package ledger keeps a flat JSON mirror of device entries next to the
// relational device table. It is a secondary copy: authorization decisions
// never read it.
//
// The whole document is rewritten on every mutation. All load-mutate-store
// sequences run under one mutex, so writers within a process cannot lose each
// other's updates. Writers in other processes sharing the same backend still
// race (last writer wins).
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"devicemail/internal/observability/metrics"
)

// Entry mirrors one device. It carries no timestamps and no notion of expiry.
type Entry struct {
	DeviceID        string `json:"device_id"`
	DeviceName      string `json:"device_name"`
	UserID          string `json:"user_id"`
	ReadPermission  bool   `json:"read_permission"`
	WritePermission bool   `json:"write_permission"`
	IsActive        bool   `json:"is_active"`
}

// Document is the persisted layout: two named partitions.
type Document struct {
	AdminDevices []Entry `json:"admin_devices"`
	UserDevices  []Entry `json:"user_devices"`
}

func emptyDocument() Document {
	return Document{AdminDevices: []Entry{}, UserDevices: []Entry{}}
}

func (d Document) clone() Document {
	return Document{
		AdminDevices: append([]Entry{}, d.AdminDevices...),
		UserDevices:  append([]Entry{}, d.UserDevices...),
	}
}

// Backend is the medium the document is persisted to.
type Backend interface {
	// Load returns the stored bytes, or nil if nothing has been stored yet.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored bytes wholesale.
	Save(ctx context.Context, data []byte) error
}

type Ledger struct {
	mu      sync.Mutex
	backend Backend
	doc     Document
	logger  *slog.Logger
}

// Open loads the ledger from backend. An absent, empty or unparseable document
// is replaced by an empty one, which is persisted immediately; that condition
// is logged and never returned. Only backend I/O failures are errors.
func Open(ctx context.Context, backend Backend, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{backend: backend, logger: logger}

	raw, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	raw = bytes.TrimSpace(raw)

	var doc Document
	switch {
	case len(raw) == 0:
		doc = emptyDocument()
		if err := l.persist(ctx, "init", doc); err != nil {
			return nil, err
		}
	case json.Unmarshal(raw, &doc) != nil:
		logger.Warn("ledger state unreadable, resetting")
		doc = emptyDocument()
		if err := l.persist(ctx, "reset", doc); err != nil {
			return nil, err
		}
	}
	if doc.AdminDevices == nil {
		doc.AdminDevices = []Entry{}
	}
	if doc.UserDevices == nil {
		doc.UserDevices = []Entry{}
	}
	l.doc = doc
	return l, nil
}

// Add appends a new entry with read granted and write granted only for admins.
// It reports false, without writing, if an admin entry with the same device id
// already exists. The user partition is not checked for duplicates.
func (l *Ledger) Add(ctx context.Context, userID, deviceID, deviceName string, isAdmin bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		DeviceID:        deviceID,
		DeviceName:      deviceName,
		UserID:          userID,
		ReadPermission:  true,
		WritePermission: isAdmin,
		IsActive:        true,
	}

	next := l.doc.clone()
	if isAdmin {
		for _, e := range next.AdminDevices {
			if e.DeviceID == deviceID {
				return false, nil
			}
		}
		next.AdminDevices = append(next.AdminDevices, entry)
	} else {
		next.UserDevices = append(next.UserDevices, entry)
	}
	if err := l.commit(ctx, "add", next); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the first entry with deviceID, admin partition first.
func (l *Ledger) Remove(ctx context.Context, deviceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.doc.clone()
	for _, part := range []*[]Entry{&next.AdminDevices, &next.UserDevices} {
		for i, e := range *part {
			if e.DeviceID != deviceID {
				continue
			}
			*part = append((*part)[:i:i], (*part)[i+1:]...)
			if err := l.commit(ctx, "remove", next); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// UpdatePermission sets whichever flags are non-nil on the entry for deviceID.
func (l *Ledger) UpdatePermission(ctx context.Context, deviceID string, read, write *bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.doc.clone()
	e := find(&next, deviceID)
	if e == nil {
		return false, nil
	}
	if read != nil {
		e.ReadPermission = *read
	}
	if write != nil {
		e.WritePermission = *write
	}
	if err := l.commit(ctx, "update", next); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) Get(deviceID string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e := find(&l.doc, deviceID); e != nil {
		return *e, true
	}
	return Entry{}, false
}

// List returns a copy of all entries, admin entries first.
func (l *Ledger) List() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.doc.AdminDevices)+len(l.doc.UserDevices))
	out = append(out, l.doc.AdminDevices...)
	return append(out, l.doc.UserDevices...)
}

// CanRead returns the stored read flag; unknown devices cannot read.
func (l *Ledger) CanRead(deviceID string) bool {
	e, ok := l.Get(deviceID)
	return ok && e.ReadPermission
}

// CanWrite returns the stored write flag as-is; unknown devices cannot write.
func (l *Ledger) CanWrite(deviceID string) bool {
	e, ok := l.Get(deviceID)
	return ok && e.WritePermission
}

func find(doc *Document, deviceID string) *Entry {
	for _, part := range [][]Entry{doc.AdminDevices, doc.UserDevices} {
		for i := range part {
			if part[i].DeviceID == deviceID {
				return &part[i]
			}
		}
	}
	return nil
}

// commit persists next and only then makes it the in-memory state.
// Caller holds l.mu.
func (l *Ledger) commit(ctx context.Context, op string, next Document) error {
	if err := l.persist(ctx, op, next); err != nil {
		return err
	}
	l.doc = next
	return nil
}

func (l *Ledger) persist(ctx context.Context, op string, doc Document) error {
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		metrics.LedgerWritesTotal.WithLabelValues(op, "failure").Inc()
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := l.backend.Save(ctx, buf); err != nil {
		metrics.LedgerWritesTotal.WithLabelValues(op, "failure").Inc()
		return fmt.Errorf("save ledger: %w", err)
	}
	metrics.LedgerWritesTotal.WithLabelValues(op, "success").Inc()
	return nil
}

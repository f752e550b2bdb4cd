package workflow

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/garyjia/site-qms/internal/application/dispatcher"
	"github.com/garyjia/site-qms/internal/application/port"
	"github.com/garyjia/site-qms/internal/domain/entity"
	"github.com/garyjia/site-qms/internal/domain/event"
	domainwf "github.com/garyjia/site-qms/internal/domain/workflow"
)

// memState backs the fake repositories. WithTransaction restores it when the
// callback fails, like a rolled back sqlite transaction.
type memState struct {
	mu        sync.Mutex
	records   map[string]*entity.Record
	history   []*entity.HistoryEntry
	counters  map[string]int
	personnel map[string]*entity.Personnel
	// attachments are keyed by URL
	attachments map[string]*entity.Attachment

	storeCalls     int
	personnelCalls int

	historyErr error
	// beforeUpdate runs inside Update before the status comparison
	beforeUpdate func(records map[string]*entity.Record)
}

func newMemState() *memState {
	return &memState{
		records:     make(map[string]*entity.Record),
		counters:    make(map[string]int),
		personnel:   make(map[string]*entity.Personnel),
		attachments: make(map[string]*entity.Attachment),
	}
}

func (s *memState) addUpload(url, uploadedBy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[url] = &entity.Attachment{URL: url, UploadedBy: uploadedBy}
}

func (s *memState) uploadOwner(url string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attachments[url]; ok {
		return a.RecordID
	}
	return ""
}

func (s *memState) put(rec *entity.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
}

func (s *memState) get(id string) *entity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		return rec.Clone()
	}
	return nil
}

func (s *memState) historyFor(id string) []*entity.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.HistoryEntry
	for _, h := range s.history {
		if h.RecordID == id {
			out = append(out, h)
		}
	}
	return out
}

func (s *memState) addPersonnel(p *entity.Personnel) {
	s.personnel[p.UserID+"/"+p.ProjectID] = p
}

type snapshot struct {
	records     map[string]*entity.Record
	history     []*entity.HistoryEntry
	counters    map[string]int
	attachments map[string]*entity.Attachment
}

func (s *memState) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		records:  make(map[string]*entity.Record, len(s.records)),
		history:  append([]*entity.HistoryEntry(nil), s.history...),
		counters:    make(map[string]int, len(s.counters)),
		attachments: make(map[string]*entity.Attachment, len(s.attachments)),
	}
	for k, v := range s.attachments {
		copied := *v
		snap.attachments[k] = &copied
	}
	for k, v := range s.records {
		snap.records[k] = v.Clone()
	}
	for k, v := range s.counters {
		snap.counters[k] = v
	}
	return snap
}

func (s *memState) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = snap.records
	s.history = snap.history
	s.counters = snap.counters
	s.attachments = snap.attachments
}

type memRecords struct{ s *memState }

func (m memRecords) Create(ctx context.Context, rec *entity.Record) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.storeCalls++
	for _, existing := range m.s.records {
		if existing.ProjectID == rec.ProjectID && existing.Module == rec.Module && existing.SequenceNumber == rec.SequenceNumber {
			return fmt.Errorf("UNIQUE constraint failed: sequence_number %s", rec.SequenceNumber)
		}
	}
	m.s.records[rec.ID] = rec.Clone()
	return nil
}

func (m memRecords) GetByID(ctx context.Context, id string) (*entity.Record, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.storeCalls++
	rec, ok := m.s.records[id]
	if !ok {
		return nil, domainwf.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m memRecords) List(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.storeCalls++

	in := func(s domainwf.Status, set []domainwf.Status) bool {
		for _, v := range set {
			if v == s {
				return true
			}
		}
		return false
	}

	var out []*entity.Record
	for _, rec := range m.s.records {
		if rec.ProjectID != filter.ProjectID || rec.Module != filter.Module {
			continue
		}
		if len(filter.Statuses) > 0 && !in(rec.Status, filter.Statuses) {
			continue
		}
		if in(rec.Status, filter.ExcludeStatuses) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

func (m memRecords) Update(ctx context.Context, rec *entity.Record, expected domainwf.Status) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.storeCalls++
	if m.s.beforeUpdate != nil {
		m.s.beforeUpdate(m.s.records)
	}
	current, ok := m.s.records[rec.ID]
	if !ok {
		return domainwf.ErrNotFound
	}
	if current.Status != expected {
		return domainwf.ErrConflict
	}
	m.s.records[rec.ID] = rec.Clone()
	return nil
}

func (m memRecords) Delete(ctx context.Context, id string, expected domainwf.Status) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.storeCalls++
	current, ok := m.s.records[id]
	if !ok {
		return domainwf.ErrNotFound
	}
	if current.Status != expected {
		return domainwf.ErrConflict
	}
	delete(m.s.records, id)
	return nil
}

type memHistory struct{ s *memState }

func (m memHistory) Create(ctx context.Context, entry *entity.HistoryEntry) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.storeCalls++
	if m.s.historyErr != nil {
		return m.s.historyErr
	}
	copied := *entry
	m.s.history = append(m.s.history, &copied)
	return nil
}

func (m memHistory) GetByRecordID(ctx context.Context, recordID string) ([]*entity.HistoryEntry, error) {
	return m.s.historyFor(recordID), nil
}

type memCounter struct{ s *memState }

func (m memCounter) Next(ctx context.Context, projectID string, module domainwf.Module) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.storeCalls++
	key := projectID + "/" + string(module)
	m.s.counters[key]++
	return m.s.counters[key], nil
}

type memAttachments struct{ s *memState }

func (m memAttachments) Create(ctx context.Context, a *entity.Attachment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	copied := *a
	m.s.attachments[a.URL] = &copied
	return nil
}

func (m memAttachments) Claim(ctx context.Context, recordID, uploadedBy string, urls []string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	n := 0
	for _, url := range urls {
		a, ok := m.s.attachments[url]
		if ok && a.UploadedBy == uploadedBy && a.RecordID == "" {
			a.RecordID = recordID
			n++
		}
	}
	return n, nil
}

func (m memAttachments) ListByRecord(ctx context.Context, recordID string) ([]*entity.Attachment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.Attachment
	for _, a := range m.s.attachments {
		if a.RecordID == recordID {
			copied := *a
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

func (m memAttachments) Delete(ctx context.Context, url string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.attachments, url)
	return nil
}

type memTx struct{ s *memState }

func (m memTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := m.s.snapshot()
	if err := fn(ctx); err != nil {
		m.s.restore(snap)
		return err
	}
	return nil
}

type memPersonnel struct{ s *memState }

func (m memPersonnel) GetByUserAndProject(ctx context.Context, userID, projectID string) (*entity.Personnel, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.personnelCalls++
	return m.s.personnel[userID+"/"+projectID], nil
}

func (m memPersonnel) ListByProject(ctx context.Context, projectID string) ([]*entity.Personnel, error) {
	return nil, nil
}

func (m memPersonnel) Upsert(ctx context.Context, p *entity.Personnel) error {
	m.s.addPersonnel(p)
	return nil
}

// recordingDispatcher collects events synchronously
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (d *recordingDispatcher) Subscribe(name string, handler dispatcher.Handler, types ...event.Type) {}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	d.DispatchAsync(ctx, evt)
	return nil
}

func (d *recordingDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) Handlers(eventType event.Type) []string { return nil }

func (d *recordingDispatcher) Close() error { return nil }

func (d *recordingDispatcher) types() []event.Type {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Type, len(d.events))
	for i, e := range d.events {
		out[i] = e.Type
	}
	return out
}

type fakeUploads struct {
	deleted []string
	failOn  string
}

func (f *fakeUploads) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	return "https://cdn.example.com/" + filename, nil
}

func (f *fakeUploads) Delete(ctx context.Context, url string) error {
	if url == f.failOn {
		return fmt.Errorf("delete %s: access denied", url)
	}
	f.deleted = append(f.deleted, url)
	return nil
}

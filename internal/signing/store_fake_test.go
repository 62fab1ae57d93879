package signing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trainhub/platform/signing-backend/internal/documents"
	"trainhub/platform/signing-backend/internal/evidence"
)

// memState holds every table by value so a transaction can snapshot it.
type memState struct {
	sigReqs     map[uuid.UUID]SignatureRequest
	attReqs     map[uuid.UUID]AttendanceRequest
	sessions    map[uuid.UUID]AttendanceSession
	attendances []Attendance
	processes   map[uuid.UUID]SigningProcess
	signatories map[uuid.UUID]Signatory
	users       []User
	docs        map[uuid.UUID]documents.Document
	templates   []documents.Template
	signatures  []documents.Signature
	evidence    []evidence.Record
}

func newMemState() memState {
	return memState{
		sigReqs:     map[uuid.UUID]SignatureRequest{},
		attReqs:     map[uuid.UUID]AttendanceRequest{},
		sessions:    map[uuid.UUID]AttendanceSession{},
		processes:   map[uuid.UUID]SigningProcess{},
		signatories: map[uuid.UUID]Signatory{},
		docs:        map[uuid.UUID]documents.Document{},
	}
}

func (m memState) clone() memState {
	c := newMemState()
	for k, v := range m.sigReqs {
		c.sigReqs[k] = v
	}
	for k, v := range m.attReqs {
		c.attReqs[k] = v
	}
	for k, v := range m.sessions {
		c.sessions[k] = v
	}
	for k, v := range m.processes {
		c.processes[k] = v
	}
	for k, v := range m.signatories {
		c.signatories[k] = v
	}
	for k, v := range m.docs {
		c.docs[k] = v
	}
	c.attendances = append([]Attendance(nil), m.attendances...)
	c.users = append([]User(nil), m.users...)
	c.templates = append([]documents.Template(nil), m.templates...)
	c.signatures = append([]documents.Signature(nil), m.signatures...)
	c.evidence = append([]evidence.Record(nil), m.evidence...)
	return c
}

// fakeStore implements Store and the three repositories over memState.
type fakeStore struct {
	mu    sync.Mutex
	state memState
	fail  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: newMemState(), fail: map[string]error{}}
}

func (f *fakeStore) failOn(op string, err error) { f.fail[op] = err }

func (f *fakeStore) Signing() Repository             { return f }
func (f *fakeStore) Documents() documents.Repository { return f }
func (f *fakeStore) Evidence() evidence.Repository   { return f }

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	f.mu.Lock()
	snapshot := f.state.clone()
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.state = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) FindSignatureRequest(_ context.Context, column TokenColumn, token string) (*SignatureRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["FindSignatureRequest"]; err != nil {
		return nil, err
	}
	for _, r := range f.state.sigReqs {
		if matchToken(column, r.AccessToken, r.SignatureToken, token) {
			out := r
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindAttendanceRequest(_ context.Context, column TokenColumn, token string) (*AttendanceRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.state.attReqs {
		if matchToken(column, r.AccessToken, r.SignatureToken, token) {
			out := r
			if s, ok := f.state.sessions[r.AttendanceSessionID]; ok {
				out.Session = &s
			}
			return &out, nil
		}
	}
	return nil, nil
}

func matchToken(column TokenColumn, access, legacy *string, token string) bool {
	v := access
	if column == ColumnLegacyToken {
		v = legacy
	}
	return v != nil && *v == token
}

func (f *fakeStore) FindSignatoryByToken(_ context.Context, token string) (*Signatory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.state.signatories {
		if s.Token == token {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetProcess(_ context.Context, id uuid.UUID) (*SigningProcess, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.state.processes[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeStore) ListSignatories(_ context.Context, processID uuid.UUID) ([]Signatory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Signatory
	for _, s := range f.state.signatories {
		if s.ProcessID == processID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (f *fakeStore) MarkSignatureRequestSigned(_ context.Context, id, signatureID uuid.UUID, signedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["MarkSignatureRequestSigned"]; err != nil {
		return err
	}
	r, ok := f.state.sigReqs[id]
	if !ok || r.Status != StatusPending {
		return ErrAlreadySigned
	}
	r.Status = StatusSigned
	r.SignatureID = &signatureID
	r.SignedAt = &signedAt
	f.state.sigReqs[id] = r
	return nil
}

func (f *fakeStore) CreateAttendance(_ context.Context, a *Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["CreateAttendance"]; err != nil {
		return err
	}
	f.state.attendances = append(f.state.attendances, *a)
	return nil
}

func (f *fakeStore) MarkAttendanceRequestSigned(_ context.Context, c AttendanceCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.state.attReqs[c.RequestID]
	if !ok || r.Status != StatusPending {
		return ErrAlreadySigned
	}
	r.Status = StatusSigned
	r.AttendanceID = &c.AttendanceID
	r.SignedAt = &c.SignedAt
	r.Latitude, r.Longitude, r.LocationAccuracy = c.Latitude, c.Longitude, c.Accuracy
	r.LocationVerified = c.LocationVerified
	r.IPAddress = nullable(c.IPAddress)
	f.state.attReqs[c.RequestID] = r
	return nil
}

func (f *fakeStore) MarkSignatorySigned(_ context.Context, id uuid.UUID, data string, signedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.state.signatories[id]
	if !ok || s.SignedAt != nil {
		return ErrAlreadySigned
	}
	s.SignedAt = &signedAt
	s.SignatureData = &data
	f.state.signatories[id] = s
	return nil
}

func (f *fakeStore) AdvanceProcess(_ context.Context, t Transition, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["AdvanceProcess"]; err != nil {
		return err
	}
	p, ok := f.state.processes[t.ProcessID]
	if !ok || p.CurrentIndex != t.FromIndex || p.Status == processCompleted {
		return ErrConflict
	}
	p.Status = t.Status
	p.CurrentIndex = t.ToIndex
	p.IntermediatePDFPath = t.IntermediatePath
	p.IntermediatePDFURL = t.IntermediateURL
	p.UpdatedAt = at
	f.state.processes[t.ProcessID] = p
	return nil
}

func (f *fakeStore) FindOrganizationContact(_ context.Context, organizationID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.state.users {
		if u.OrganizationID == organizationID && (u.Role == "admin" || u.Role == "secretary") {
			return u.Email, nil
		}
	}
	return "", nil
}

func (f *fakeStore) FindUserEmail(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.state.users {
		if u.ID == id {
			return u.Email, nil
		}
	}
	return "", nil
}

func (f *fakeStore) ListPendingReminders(_ context.Context, idleSince time.Time, limit int) ([]Signatory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Signatory
	for _, s := range f.state.signatories {
		p, ok := f.state.processes[s.ProcessID]
		if !ok || p.Status == processCompleted || s.SignedAt != nil || s.OrderIndex != p.CurrentIndex {
			continue
		}
		last := p.UpdatedAt
		if s.LastRemindedAt != nil {
			last = *s.LastRemindedAt
		}
		if last.Before(idleSince) {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) MarkReminded(_ context.Context, signatoryID uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.state.signatories[signatoryID]
	if !ok {
		return errors.New("signatory not found")
	}
	s.LastRemindedAt = &at
	f.state.signatories[signatoryID] = s
	return nil
}

func (f *fakeStore) GetDocumentByID(_ context.Context, id uuid.UUID) (*documents.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.state.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeStore) GetDefaultTemplate(_ context.Context, organizationID uuid.UUID, docType string) (*documents.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *documents.Template
	for i := range f.state.templates {
		t := f.state.templates[i]
		if t.OrganizationID != organizationID || t.Type != docType {
			continue
		}
		if found == nil || (t.IsDefault && !found.IsDefault) {
			found = &t
		}
	}
	return found, nil
}

func (f *fakeStore) MarkSigned(_ context.Context, organizationID, documentID uuid.UUID, path, url string, signedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.state.docs[documentID]
	if !ok || d.OrganizationID != organizationID {
		return errors.New("document not found")
	}
	d.SignedFilePath, d.SignedFileURL = &path, &url
	d.Status = documents.StatusSigned
	d.SignedAt = &signedAt
	f.state.docs[documentID] = d
	return nil
}

func (f *fakeStore) CreateSignature(_ context.Context, sig *documents.Signature) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.signatures = append(f.state.signatures, *sig)
	return nil
}

func (f *fakeStore) Insert(_ context.Context, rec *evidence.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["Insert"]; err != nil {
		return err
	}
	f.state.evidence = append(f.state.evidence, *rec)
	return nil
}

func (f *fakeStore) ListByRequest(_ context.Context, organizationID, requestID uuid.UUID) ([]evidence.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []evidence.Record
	for _, r := range f.state.evidence {
		if r.OrganizationID == organizationID && r.RequestID == requestID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) snapshot() memState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

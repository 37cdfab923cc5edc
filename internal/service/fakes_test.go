package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"collector/internal/model"
	"collector/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memDB is an in-memory stand-in for the database. RunInTx snapshots the
// tables and restores them when fn fails, so tests can assert all-or-nothing.
type memDB struct {
	admins      map[uuid.UUID]model.Administration
	users       map[uuid.UUID]model.User
	forms       map[uuid.UUID]model.Form
	grants      []model.FormAccess
	subs        map[uuid.UUID]model.Submission
	answers     []model.Answer
	history     []model.AnswerHistory
	batches     map[uuid.UUID]model.Batch
	members     []model.BatchSubmission
	slots       []model.ApprovalSlot
	comments    []model.BatchComment
	attachments []model.BatchAttachment
	audit       []model.AuditLog

	clock time.Time
}

func newMemDB() *memDB {
	return &memDB{
		admins:  make(map[uuid.UUID]model.Administration),
		users:   make(map[uuid.UUID]model.User),
		forms:   make(map[uuid.UUID]model.Form),
		subs:    make(map[uuid.UUID]model.Submission),
		batches: make(map[uuid.UUID]model.Batch),
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memDB) now() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func copySlice[V any](src []V) []V {
	return append([]V(nil), src...)
}

func (m *memDB) snapshot() memDB {
	return memDB{
		admins:      copyMap(m.admins),
		users:       copyMap(m.users),
		forms:       copyMap(m.forms),
		grants:      copySlice(m.grants),
		subs:        copyMap(m.subs),
		answers:     copySlice(m.answers),
		history:     copySlice(m.history),
		batches:     copyMap(m.batches),
		members:     copySlice(m.members),
		slots:       copySlice(m.slots),
		comments:    copySlice(m.comments),
		attachments: copySlice(m.attachments),
		audit:       copySlice(m.audit),
		clock:       m.clock,
	}
}

type txKey struct{}

func (m *memDB) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	snap := m.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		*m = snap
		return err
	}
	return nil
}

// hierarchy

type fakeHierarchy struct{ db *memDB }

func (r fakeHierarchy) FindByID(ctx context.Context, id uuid.UUID) (*model.Administration, error) {
	adm, ok := r.db.admins[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &adm, nil
}

func (r fakeHierarchy) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Administration, error) {
	out := make([]model.Administration, 0, len(ids))
	for _, id := range ids {
		if adm, ok := r.db.admins[id]; ok {
			out = append(out, adm)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (r fakeHierarchy) Ancestors(ctx context.Context, id uuid.UUID) ([]model.Administration, error) {
	adm, ok := r.db.admins[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	ids, err := adm.AncestorIDs()
	if err != nil {
		return nil, err
	}
	out := make([]model.Administration, 0, len(ids))
	for _, aid := range ids {
		a, ok := r.db.admins[aid]
		if !ok {
			return nil, repository.ErrBrokenHierarchy
		}
		out = append(out, a)
	}
	return out, nil
}

// access

type fakeAccess struct {
	db  *memDB
	err error
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (r fakeAccess) ApproversFor(ctx context.Context, formIDs []uuid.UUID, administrationID uuid.UUID) ([]model.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	seen := make(map[uuid.UUID]bool)
	var out []model.User
	for _, g := range r.db.grants {
		if g.Capability != model.CapabilityApprove || g.AdministrationID != administrationID || !containsID(formIDs, g.FormID) {
			continue
		}
		if !seen[g.UserID] {
			seen[g.UserID] = true
			out = append(out, r.db.users[g.UserID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r fakeAccess) HasAccess(ctx context.Context, userID uuid.UUID, formIDs []uuid.UUID, administrationIDs []uuid.UUID, capability model.Capability) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	for _, g := range r.db.grants {
		if g.UserID == userID && g.Capability == capability && containsID(formIDs, g.FormID) && containsID(administrationIDs, g.AdministrationID) {
			return true, nil
		}
	}
	return false, nil
}

// forms and users

type fakeForms struct{ db *memDB }

func (r fakeForms) FindByID(ctx context.Context, id uuid.UUID) (*model.Form, error) {
	f, ok := r.db.forms[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &f, nil
}

type fakeUsers struct{ db *memDB }

func (r fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.db.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if adm, ok := r.db.admins[u.AdministrationID]; ok {
		u.Administration = &adm
	}
	return &u, nil
}

func (r fakeUsers) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.User, error) {
	var out []model.User
	for _, id := range ids {
		if u, ok := r.db.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// audit

type fakeAudit struct{ db *memDB }

func (r fakeAudit) Log(ctx context.Context, entry *model.AuditLog) error {
	entry.ID = uuid.New()
	entry.CreatedAt = r.db.now()
	r.db.audit = append(r.db.audit, *entry)
	return nil
}

func (r fakeAudit) List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, int64, error) {
	var out []model.AuditLog
	for i := len(r.db.audit) - 1; i >= 0; i-- {
		l := r.db.audit[i]
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		if filter.EntityID != "" && l.EntityID != filter.EntityID {
			continue
		}
		out = append(out, l)
	}
	return out, int64(len(out)), nil
}

// submissions

type fakeSubmissions struct{ db *memDB }

func (r fakeSubmissions) load(s model.Submission) model.Submission {
	if f, ok := r.db.forms[s.FormID]; ok {
		s.Form = &f
	}
	if a, ok := r.db.admins[s.AdministrationID]; ok {
		s.Administration = &a
	}
	return s
}

func (r fakeSubmissions) put(s model.Submission) {
	s.Form, s.Administration, s.Creator = nil, nil, nil
	r.db.subs[s.ID] = s
}

func (r fakeSubmissions) Create(ctx context.Context, sub *model.Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.CreatedAt = r.db.now()
	sub.UpdatedAt = sub.CreatedAt
	r.put(*sub)
	return nil
}

func (r fakeSubmissions) FindByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	s, ok := r.db.subs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	s = r.load(s)
	return &s, nil
}

func (r fakeSubmissions) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Submission, error) {
	var out []model.Submission
	for _, id := range ids {
		if s, ok := r.db.subs[id]; ok {
			out = append(out, r.load(s))
		}
	}
	return out, nil
}

func (r fakeSubmissions) Update(ctx context.Context, sub *model.Submission) error {
	sub.UpdatedAt = r.db.now()
	r.put(*sub)
	return nil
}

func (r fakeSubmissions) UpdateStatus(ctx context.Context, ids []uuid.UUID, status model.SubmissionStatus) error {
	for _, id := range ids {
		s := r.db.subs[id]
		s.Status = status
		r.db.subs[id] = s
	}
	return nil
}

func (r fakeSubmissions) MarkSeeded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s, ok := r.db.subs[id]
	if !ok || s.Status != model.SubmissionFinal || s.SeededAt != nil {
		return false, nil
	}
	s.SeededAt = &at
	r.db.subs[id] = s
	return true, nil
}

func (r fakeSubmissions) List(ctx context.Context, filter repository.SubmissionFilter) ([]model.Submission, int64, error) {
	var out []model.Submission
	for _, s := range r.db.subs {
		if filter.FormID != nil && s.FormID != *filter.FormID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.CreatedBy != nil && s.CreatedBy != *filter.CreatedBy {
			continue
		}
		out = append(out, r.load(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r fakeSubmissions) ListUnbatched(ctx context.Context, ownerID uuid.UUID, formID *uuid.UUID) ([]model.Submission, error) {
	batched := make(map[uuid.UUID]bool)
	for _, m := range r.db.members {
		batched[m.SubmissionID] = true
	}
	var out []model.Submission
	for _, s := range r.db.subs {
		if s.CreatedBy != ownerID || s.Status != model.SubmissionPending || batched[s.ID] {
			continue
		}
		if formID != nil && s.FormID != *formID {
			continue
		}
		out = append(out, r.load(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// answers

type fakeAnswers struct{ db *memDB }

func (r fakeAnswers) Find(ctx context.Context, submissionID, questionID uuid.UUID, index int) (*model.Answer, error) {
	for _, a := range r.db.answers {
		if a.SubmissionID == submissionID && a.QuestionID == questionID && a.Index == index {
			return &a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeAnswers) Create(ctx context.Context, answer *model.Answer) error {
	answer.ID = uuid.New()
	answer.CreatedAt = r.db.now()
	answer.UpdatedAt = answer.CreatedAt
	r.db.answers = append(r.db.answers, *answer)
	return nil
}

func (r fakeAnswers) Update(ctx context.Context, answer *model.Answer) error {
	answer.UpdatedAt = r.db.now()
	for i := range r.db.answers {
		if r.db.answers[i].ID == answer.ID {
			r.db.answers[i] = *answer
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r fakeAnswers) CreateHistory(ctx context.Context, entry *model.AnswerHistory) error {
	entry.ID = uuid.New()
	entry.CreatedAt = r.db.now()
	r.db.history = append(r.db.history, *entry)
	return nil
}

func (r fakeAnswers) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]model.Answer, error) {
	var out []model.Answer
	for _, a := range r.db.answers {
		if a.SubmissionID == submissionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r fakeAnswers) ListHistory(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerHistory, error) {
	var out []model.AnswerHistory
	for i := len(r.db.history) - 1; i >= 0; i-- {
		if r.db.history[i].SubmissionID == submissionID {
			out = append(out, r.db.history[i])
		}
	}
	return out, nil
}

// batches

type fakeBatches struct{ db *memDB }

func (r fakeBatches) assemble(b model.Batch) model.Batch {
	b.Slots, b.Members = nil, nil
	for _, s := range r.db.slots {
		if s.BatchID == b.ID {
			b.Slots = append(b.Slots, s)
		}
	}
	sort.SliceStable(b.Slots, func(i, j int) bool { return b.Slots[i].Level > b.Slots[j].Level })
	for _, m := range r.db.members {
		if m.BatchID == b.ID {
			b.Members = append(b.Members, m)
		}
	}
	if u, ok := r.db.users[b.OwnerID]; ok {
		b.Owner = &u
	}
	return b
}

func (r fakeBatches) Create(ctx context.Context, batch *model.Batch) error {
	for _, b := range r.db.batches {
		if b.Name == batch.Name {
			return repository.ErrDuplicateBatchName
		}
	}
	batch.CreatedAt = r.db.now()
	batch.UpdatedAt = batch.CreatedAt
	row := *batch
	row.Slots, row.Members, row.Owner = nil, nil, nil
	r.db.batches[batch.ID] = row
	return nil
}

func (r fakeBatches) AddMembers(ctx context.Context, members []model.BatchSubmission) error {
	r.db.members = append(r.db.members, members...)
	return nil
}

func (r fakeBatches) AddSlots(ctx context.Context, slots []model.ApprovalSlot) error {
	for _, s := range slots {
		s.CreatedAt = r.db.now()
		s.UpdatedAt = s.CreatedAt
		r.db.slots = append(r.db.slots, s)
	}
	return nil
}

func (r fakeBatches) AddComment(ctx context.Context, comment *model.BatchComment) error {
	comment.ID = uuid.New()
	comment.CreatedAt = r.db.now()
	r.db.comments = append(r.db.comments, *comment)
	return nil
}

func (r fakeBatches) AddAttachments(ctx context.Context, items []model.BatchAttachment) error {
	r.db.attachments = append(r.db.attachments, items...)
	return nil
}

func (r fakeBatches) NameExists(ctx context.Context, name string) (bool, error) {
	for _, b := range r.db.batches {
		if b.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeBatches) BatchedSubmissionIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, m := range r.db.members {
		if containsID(ids, m.SubmissionID) {
			out = append(out, m.SubmissionID)
		}
	}
	return out, nil
}

func (r fakeBatches) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	b, ok := r.db.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	b = r.assemble(b)
	return &b, nil
}

func (r fakeBatches) FindSlot(ctx context.Context, slotID uuid.UUID) (*model.ApprovalSlot, error) {
	for _, s := range r.db.slots {
		if s.ID == slotID {
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeBatches) LockByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	b, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Owner = nil
	return b, nil
}

func (r fakeBatches) FindOpenBatchID(ctx context.Context, submissionID uuid.UUID) (*uuid.UUID, error) {
	for _, m := range r.db.members {
		if m.SubmissionID == submissionID && !r.db.batches[m.BatchID].Finalized {
			id := m.BatchID
			return &id, nil
		}
	}
	return nil, nil
}

func (r fakeBatches) SaveSlots(ctx context.Context, slots []*model.ApprovalSlot) error {
	for _, s := range slots {
		found := false
		for i := range r.db.slots {
			if r.db.slots[i].ID == s.ID {
				s.UpdatedAt = r.db.now()
				r.db.slots[i].Status = s.Status
				r.db.slots[i].Comment = s.Comment
				r.db.slots[i].UpdatedAt = s.UpdatedAt
				found = true
			}
		}
		if !found {
			return errors.New("slot not found")
		}
	}
	return nil
}

func (r fakeBatches) MarkFinalized(ctx context.Context, id uuid.UUID) error {
	b := r.db.batches[id]
	b.Finalized = true
	r.db.batches[id] = b
	return nil
}

func (r fakeBatches) ListByApprover(ctx context.Context, approverID uuid.UUID) ([]model.Batch, error) {
	var out []model.Batch
	for _, b := range r.db.batches {
		full := r.assemble(b)
		if len(full.SlotsFor(approverID)) > 0 {
			out = append(out, full)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r fakeBatches) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.Batch, int64, error) {
	var out []model.Batch
	for _, b := range r.db.batches {
		if b.OwnerID == ownerID {
			out = append(out, r.assemble(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r fakeBatches) ListComments(ctx context.Context, batchID uuid.UUID) ([]model.BatchComment, error) {
	var out []model.BatchComment
	for _, c := range r.db.comments {
		if c.BatchID == batchID {
			if u, ok := r.db.users[c.UserID]; ok {
				c.User = &u
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// collaborators

type sentNotice struct {
	users []uuid.UUID
	kind  string
}

type fakeNotifier struct {
	sent []sentNotice
	err  error
}

func (n *fakeNotifier) Notify(ctx context.Context, users []uuid.UUID, kind string, data map[string]any) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentNotice{users: users, kind: kind})
	return nil
}

func (n *fakeNotifier) kinds() []string {
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.kind)
	}
	return out
}

type fakeSink struct {
	seeded []uuid.UUID
	err    error
}

func (s *fakeSink) Seed(ctx context.Context, submissionID uuid.UUID) error {
	if s.err != nil {
		return s.err
	}
	s.seeded = append(s.seeded, submissionID)
	return nil
}

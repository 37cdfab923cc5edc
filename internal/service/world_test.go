package service

import (
	"context"
	"encoding/json"
	"testing"

	"collector/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// world is a small administrative tree with one approver chain:
//
//	national (0) -> province (1) -> district (2) -> village (3)
//	             -> otherProvince (1) -> otherDistrict (2)
//
// Approvers sit at district, province (two of them) and national for the
// registration form. The submitter works at district level.
type world struct {
	db       *memDB
	notifier *fakeNotifier
	sink     *fakeSink
	access   *fakeAccess
	resolver *ApproverResolver

	submissions SubmissionService
	batches     BatchService
	answers     AnswerService
	seeds       SeedService

	national, province, district, village, sibling, otherProvince, otherDistrict model.Administration

	form, monitoring model.Form
	lockedQuestion   uuid.UUID

	submitter, districtApprover, provinceApprover, provinceBackup, nationalApprover, admin, editor model.User
}

func newWorld(t *testing.T) *world {
	t.Helper()
	db := newMemDB()
	w := &world{db: db, notifier: &fakeNotifier{}, sink: &fakeSink{}, access: &fakeAccess{db: db}}

	w.national = w.addAdmin("National", nil)
	w.province = w.addAdmin("Province", &w.national)
	w.district = w.addAdmin("District", &w.province)
	w.village = w.addAdmin("Village", &w.district)
	w.sibling = w.addAdmin("Sibling Village", &w.district)
	w.otherProvince = w.addAdmin("Other Province", &w.national)
	w.otherDistrict = w.addAdmin("Other District", &w.otherProvince)

	w.lockedQuestion = uuid.New()
	locked, _ := json.Marshal([]uuid.UUID{w.lockedQuestion})
	w.form = model.Form{ID: uuid.New(), Name: "Registration", LockedQuestions: datatypes.JSON(locked)}
	db.forms[w.form.ID] = w.form
	w.monitoring = model.Form{ID: uuid.New(), Name: "Monitoring", ParentID: &w.form.ID}
	db.forms[w.monitoring.ID] = w.monitoring

	w.submitter = w.addUser("sam", model.RoleSubmitter, w.district)
	w.districtApprover = w.addUser("dina", model.RoleApprover, w.district)
	w.provinceApprover = w.addUser("paul", model.RoleApprover, w.province)
	w.provinceBackup = w.addUser("pia", model.RoleApprover, w.province)
	w.nationalApprover = w.addUser("nora", model.RoleApprover, w.national)
	w.admin = w.addUser("ada", model.RoleAdmin, w.national)
	w.editor = w.addUser("eli", model.RoleSubmitter, w.province)

	w.grant(w.submitter, w.form, w.district, model.CapabilitySubmit)
	w.grant(w.submitter, w.form, w.otherDistrict, model.CapabilitySubmit)
	w.grant(w.districtApprover, w.form, w.district, model.CapabilityApprove)
	w.grant(w.provinceApprover, w.form, w.province, model.CapabilityApprove)
	w.grant(w.provinceBackup, w.form, w.province, model.CapabilityApprove)
	w.grant(w.nationalApprover, w.form, w.national, model.CapabilityApprove)
	w.grant(w.editor, w.form, w.province, model.CapabilityEdit)

	w.resolver = NewApproverResolver(fakeHierarchy{db}, w.access, fakeForms{db})
	w.submissions = NewSubmissionService(SubmissionDeps{
		TxManager:   db,
		Submissions: fakeSubmissions{db},
		Answers:     fakeAnswers{db},
		Forms:       fakeForms{db},
		Users:       fakeUsers{db},
		Hierarchy:   fakeHierarchy{db},
		Access:      w.access,
		Audit:       fakeAudit{db},
		Resolver:    w.resolver,
		Sink:        w.sink,
		Notifier:    w.notifier,
	})
	w.batches = NewBatchService(BatchDeps{
		TxManager:   db,
		Batches:     fakeBatches{db},
		Submissions: fakeSubmissions{db},
		Users:       fakeUsers{db},
		Hierarchy:   fakeHierarchy{db},
		Access:      w.access,
		Audit:       fakeAudit{db},
		Resolver:    w.resolver,
		Notifier:    w.notifier,
		Sink:        w.sink,
	})
	w.answers = NewAnswerService(AnswerDeps{
		TxManager:   db,
		Submissions: fakeSubmissions{db},
		Answers:     fakeAnswers{db},
		Forms:       fakeForms{db},
		Batches:     fakeBatches{db},
		Hierarchy:   fakeHierarchy{db},
		Access:      w.access,
		Audit:       fakeAudit{db},
		Sink:        w.sink,
		Notifier:    w.notifier,
	})
	w.seeds = NewSeedService(db, fakeSubmissions{db}, fakeAudit{db}, w.notifier)
	return w
}

func (w *world) addAdmin(name string, parent *model.Administration) model.Administration {
	adm := model.Administration{ID: uuid.New(), Name: name}
	if parent != nil {
		adm.ParentID = &parent.ID
		adm.Level = parent.Level.Next()
		adm.Path = parent.FullPath()
	}
	w.db.admins[adm.ID] = adm
	return adm
}

func (w *world) addUser(name, role string, adm model.Administration) model.User {
	u := model.User{ID: uuid.New(), Username: name, Email: name + "@example.org", Role: role, AdministrationID: adm.ID}
	w.db.users[u.ID] = u
	return u
}

func (w *world) grant(u model.User, f model.Form, adm model.Administration, c model.Capability) {
	w.db.grants = append(w.db.grants, model.FormAccess{ID: uuid.New(), UserID: u.ID, FormID: f.ID, AdministrationID: adm.ID, Capability: c})
}

func (w *world) submit(t *testing.T, adm model.Administration, draft bool) SubmissionResponse {
	t.Helper()
	return w.submitAs(t, w.submitter, adm, draft)
}

func (w *world) submitAs(t *testing.T, u model.User, adm model.Administration, draft bool) SubmissionResponse {
	t.Helper()
	text := "initial"
	res, err := w.submissions.CreateSubmission(context.Background(), u.ID.String(), CreateSubmissionRequest{
		FormID:           w.form.ID.String(),
		AdministrationID: adm.ID.String(),
		Name:             "household " + adm.Name,
		Draft:            draft,
		Answers: []AnswerInput{
			{QuestionID: w.lockedQuestion.String(), Text: &text},
		},
	})
	if err != nil {
		t.Fatalf("CreateSubmission failed: %v", err)
	}
	return res
}

func (w *world) openBatch(t *testing.T, name string, subs ...SubmissionResponse) BatchResponse {
	t.Helper()
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}
	res, err := w.batches.CreateBatch(context.Background(), w.submitter.ID.String(), CreateBatchRequest{Name: name, SubmissionIDs: ids})
	if err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}
	return res
}

// slotOf returns the id of approver's slot on the batch.
func (w *world) slotOf(t *testing.T, batch BatchResponse, approver model.User) string {
	t.Helper()
	for _, s := range batch.Slots {
		if s.ApproverID == approver.ID.String() {
			return s.ID
		}
	}
	t.Fatalf("approver %s has no slot on batch %s", approver.Username, batch.Name)
	return ""
}

func (w *world) decide(t *testing.T, batch BatchResponse, approver model.User, outcome model.SlotStatus) DecisionResult {
	t.Helper()
	res, err := w.batches.Decide(context.Background(), approver.ID.String(), w.slotOf(t, batch, approver), outcome, "")
	if err != nil {
		t.Fatalf("Decide(%s, %s) failed: %v", approver.Username, outcome, err)
	}
	return res
}

func (w *world) slotStatus(t *testing.T, batch BatchResponse, approver model.User) model.SlotStatus {
	t.Helper()
	id := uuid.MustParse(w.slotOf(t, batch, approver))
	for _, s := range w.db.slots {
		if s.ID == id {
			return s.Status
		}
	}
	t.Fatalf("slot %s not stored", id)
	return ""
}

func (w *world) status(sub SubmissionResponse) model.SubmissionStatus {
	return w.db.subs[uuid.MustParse(sub.ID)].Status
}

func (w *world) auditCount(action string) int {
	n := 0
	for _, l := range w.db.audit {
		if l.Action == action {
			n++
		}
	}
	return n
}

func mustKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Batch groups pending submissions that climb the approval chain together.
// Its slots are loaded and mutated as one unit inside a transaction.
type Batch struct {
	ID               uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name             string            `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	OwnerID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner            *User             `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	AdministrationID uuid.UUID         `gorm:"type:uuid;not null;index" json:"administration_id"`
	FormID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"form_id"`
	Finalized        bool              `gorm:"not null;default:false;index" json:"finalized"`
	Slots            []ApprovalSlot    `gorm:"foreignKey:BatchID" json:"slots,omitempty"`
	Members          []BatchSubmission `gorm:"foreignKey:BatchID" json:"members,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// BatchSubmission is a membership row. A submission belongs to at most one batch.
type BatchSubmission struct {
	BatchID      uuid.UUID   `gorm:"type:uuid;primaryKey" json:"batch_id"`
	SubmissionID uuid.UUID   `gorm:"type:uuid;primaryKey;uniqueIndex" json:"submission_id"`
	Submission   *Submission `gorm:"foreignKey:SubmissionID" json:"submission,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type BatchComment struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchID   uuid.UUID `gorm:"type:uuid;not null;index" json:"batch_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Comment   string    `gorm:"type:text;not null" json:"comment"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BatchAttachment references a file kept in external storage.
type BatchAttachment struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BatchID   uuid.UUID `gorm:"type:uuid;not null;index" json:"batch_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	ObjectKey string    `gorm:"type:varchar(512);not null" json:"object_key"`
	CreatedBy uuid.UUID `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Levels returns the distinct levels present in the slate, most local first.
func (b *Batch) Levels() []Level {
	seen := make(map[Level]bool)
	levels := make([]Level, 0)
	for _, s := range b.Slots {
		if !seen[s.Level] {
			seen[s.Level] = true
			levels = append(levels, s.Level)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] > levels[j] })
	return levels
}

// LevelApproved reports whether at least one slot at l is approved.
func (b *Batch) LevelApproved(l Level) bool {
	for _, s := range b.Slots {
		if s.Level == l && s.Status == SlotApproved {
			return true
		}
	}
	return false
}

// QuorumReached is true when every level present has at least one approved
// slot: one yes is enough within a level, every level must say yes.
func (b *Batch) QuorumReached() bool {
	for _, l := range b.Levels() {
		if !b.LevelApproved(l) {
			return false
		}
	}
	return true
}

// SlotByID returns a pointer into b.Slots so callers mutate the loaded aggregate.
func (b *Batch) SlotByID(id uuid.UUID) *ApprovalSlot {
	for i := range b.Slots {
		if b.Slots[i].ID == id {
			return &b.Slots[i]
		}
	}
	return nil
}

// RollbackFrom resets approved slots exactly one level more local than the
// rejecting level back to pending and returns them. Deeper levels keep their decision.
func (b *Batch) RollbackFrom(rejected Level) []*ApprovalSlot {
	target := rejected.Next()
	reset := make([]*ApprovalSlot, 0)
	for i := range b.Slots {
		s := &b.Slots[i]
		if s.Level == target && s.Status == SlotApproved {
			s.Status = SlotPending
			reset = append(reset, s)
		}
	}
	return reset
}

// ClosestSlotAdministration returns the most local of ancestors (root first)
// that holds a slot on the batch.
func (b *Batch) ClosestSlotAdministration(ancestors []Administration) (uuid.UUID, bool) {
	for i := len(ancestors) - 1; i >= 0; i-- {
		for _, s := range b.Slots {
			if s.AdministrationID == ancestors[i].ID {
				return s.AdministrationID, true
			}
		}
	}
	return uuid.Nil, false
}

// ReopenAfterEdit handles an answer edit on a member submission. Rejected
// slots go back to pending. When the editor holds the rejected slot of the
// submission's closest approving administration, that slot is approved in
// place instead. Returns the slots that changed.
func (b *Batch) ReopenAfterEdit(editor, closest uuid.UUID) []*ApprovalSlot {
	changed := make([]*ApprovalSlot, 0)
	for i := range b.Slots {
		s := &b.Slots[i]
		if s.Status != SlotRejected {
			continue
		}
		if s.ApproverID == editor && closest != uuid.Nil && s.AdministrationID == closest {
			s.Status = SlotApproved
		} else {
			s.Status = SlotPending
		}
		changed = append(changed, s)
	}
	return changed
}

// ActionableAt reports whether an approver at level l may act: every more
// local level present in the slate has reached its quorum.
func (b *Batch) ActionableAt(l Level) bool {
	for _, other := range b.Levels() {
		if other.MoreLocalThan(l) && !b.LevelApproved(other) {
			return false
		}
	}
	return true
}

// HeldBelow reports whether the nearest more local level present in the slate
// has not approved yet, i.e. the batch is still waiting downstream of l.
func (b *Batch) HeldBelow(l Level) bool {
	levels := b.Levels()
	// levels are ordered most local first, so walk backwards from the root side
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].MoreLocalThan(l) {
			return !b.LevelApproved(levels[i])
		}
	}
	return false
}

// SlotsFor returns the slots held by approver.
func (b *Batch) SlotsFor(approver uuid.UUID) []ApprovalSlot {
	out := make([]ApprovalSlot, 0, 1)
	for _, s := range b.Slots {
		if s.ApproverID == approver {
			out = append(out, s)
		}
	}
	return out
}

// ApproverIDs returns the distinct approvers of the slate in slot order.
func (b *Batch) ApproverIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(b.Slots))
	for _, s := range b.Slots {
		if !seen[s.ApproverID] {
			seen[s.ApproverID] = true
			ids = append(ids, s.ApproverID)
		}
	}
	return ids
}

func (b *Batch) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.Members))
	for _, m := range b.Members {
		ids = append(ids, m.SubmissionID)
	}
	return ids
}

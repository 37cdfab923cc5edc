package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"collector/internal/model"
	"collector/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, validationError("invalid %s: %q", field, value)
	}
	return id, nil
}

// parseIDs parses a list of ids and rejects duplicates.
func parseIDs(field string, values []string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(values))
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := parseID(field, v)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			return nil, validationError("duplicate %s: %s", field, id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// lookupError turns a missing row into a not_found error and anything else
// into a dependency failure.
func lookupError(err error, what string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError("%s %s not found", what, id)
	}
	return dependencyError(err, "failed to load %s %s", what, id)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func writeAudit(ctx context.Context, repo repository.AuditRepository, userID *uuid.UUID, action, entityID, entityName string, details map[string]interface{}) error {
	payload, _ := json.Marshal(details)
	entry := model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(payload),
	}
	if err := repo.Log(ctx, &entry); err != nil {
		return dependencyError(err, "failed to write audit log")
	}
	return nil
}

type notice struct {
	users []uuid.UUID
	kind  string
	data  map[string]any
}

// afterCommit collects the asynchronous effects of a transaction. They run
// only once the transaction committed and their failures never undo it.
type afterCommit struct {
	seeds   []uuid.UUID
	notices []notice
}

func (a *afterCommit) seed(ids ...uuid.UUID) {
	a.seeds = append(a.seeds, ids...)
}

func (a *afterCommit) notify(users []uuid.UUID, kind string, data map[string]any) {
	if len(users) == 0 {
		return
	}
	a.notices = append(a.notices, notice{users: users, kind: kind, data: data})
}

func (a *afterCommit) run(ctx context.Context, sink FinalizationSink, notifier Notifier) {
	for _, id := range a.seeds {
		if err := sink.Seed(ctx, id); err != nil {
			log.Printf("seed scheduling failed for submission %s: %v", id, err)
		}
	}
	for _, n := range a.notices {
		if err := notifier.Notify(ctx, n.users, n.kind, n.data); err != nil {
			log.Printf("notification %s failed: %v", n.kind, err)
		}
	}
}

// capabilityChain returns the administration plus all its ancestors, the set
// of places where a grant for that administration may live.
func capabilityChain(ctx context.Context, hierarchy repository.HierarchyRepository, administrationID uuid.UUID) ([]uuid.UUID, error) {
	ancestors, err := hierarchy.Ancestors(ctx, administrationID)
	if err != nil {
		return nil, lookupError(err, "administration", administrationID)
	}
	ids := make([]uuid.UUID, 0, len(ancestors)+1)
	for _, a := range ancestors {
		ids = append(ids, a.ID)
	}
	return append(ids, administrationID), nil
}

func hasCapability(ctx context.Context, access repository.AccessRepository, hierarchy repository.HierarchyRepository, userID uuid.UUID, form model.Form, administrationID uuid.UUID, capability model.Capability) (bool, error) {
	chain, err := capabilityChain(ctx, hierarchy, administrationID)
	if err != nil {
		return false, err
	}
	ok, err := access.HasAccess(ctx, userID, form.LineageIDs(), chain, capability)
	if err != nil {
		return false, dependencyError(err, "failed to check %s access", capability)
	}
	return ok, nil
}

// Package agent runs the adverse event workflow: classify a case, derive
// follow-up actions from its severity, and advance its status. Processing
// is fire-and-forget; failures are logged, never propagated.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hurttlocker/vigil/internal/store"
)

// Classifier is the slice of the classification engine the agent needs.
type Classifier interface {
	Classify(ctx context.Context, c *store.Case) (causality, risk *store.Analysis, err error)
}

// Agent executes the per-case workflow.
type Agent struct {
	store      store.Store
	classifier Classifier
	log        *zap.SugaredLogger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a workflow agent.
func New(st store.Store, classifier Classifier, log *zap.SugaredLogger) *Agent {
	return &Agent{
		store:      st,
		classifier: classifier,
		log:        log,
		locks:      map[int64]*sync.Mutex{},
	}
}

// caseLock returns the mutex for a case id, creating it on first use.
// Locks are never removed; the map grows with the set of processed cases.
func (a *Agent) caseLock(id int64) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[id]
	if !ok {
		l = &sync.Mutex{}
		a.locks[id] = l
	}
	return l
}

// Process runs the full workflow for one case. It always completes:
// a missing case is a logged no-op, classification failures are absorbed
// by the classifier, and store failures are logged and swallowed.
// Concurrent triggers for the same case id serialize on a per-case lock.
func (a *Agent) Process(ctx context.Context, id int64) {
	l := a.caseLock(id)
	l.Lock()
	defer l.Unlock()

	c, err := a.store.GetCase(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.log.Warnw("case not found, skipping workflow", "case_id", id)
		} else {
			a.log.Errorw("loading case failed", "case_id", id, "error", err)
		}
		return
	}

	a.log.Infow("processing adverse event", "case_id", id, "case_number", c.CaseNumber, "severity", c.Severity)

	if _, _, err := a.classifier.Classify(ctx, c); err != nil {
		a.log.Errorw("classification failed", "case_id", id, "error", err)
	}

	for _, action := range DeriveActions(c) {
		if _, err := a.store.SaveAction(ctx, action); err != nil {
			a.log.Errorw("saving follow-up action failed",
				"case_id", id, "action_type", action.Type, "error", err)
		}
	}

	c.Status = NextStatus(c.Severity)
	if _, err := a.store.SaveCase(ctx, c); err != nil {
		a.log.Errorw("updating case status failed", "case_id", id, "error", err)
		return
	}

	a.log.Infow("workflow completed", "case_id", id, "status", c.Status)
}

// DeriveActions computes follow-up actions from a case's severity. Pure
// function; actions are always re-derived, never deduplicated against
// prior runs.
func DeriveActions(c *store.Case) []*store.FollowUpAction {
	due := time.Now().UTC().Add(7 * 24 * time.Hour)
	var actions []*store.FollowUpAction

	add := func(actionType, description, assignee string) {
		actions = append(actions, &store.FollowUpAction{
			CaseID:      c.ID,
			Type:        actionType,
			Description: description,
			AssignedTo:  assignee,
			Status:      store.ActionPending,
			DueDate:     due,
		})
	}

	switch c.Severity {
	case store.SeveritySevere, store.SeverityLifeThreatening:
		add(store.ActionInvestigation,
			fmt.Sprintf("Investigate severe adverse event for case %s", c.CaseNumber), "Safety Team")
		add(store.ActionRegulatorySubmission,
			fmt.Sprintf("Prepare regulatory submission for case %s", c.CaseNumber), "Regulatory Team")
	case store.SeverityModerate:
		add(store.ActionPatientFollowUp,
			fmt.Sprintf("Follow up with patient for case %s", c.CaseNumber), "Clinical Team")
	}

	add(store.ActionDrugSafetyReview,
		fmt.Sprintf("Review drug safety profile for %s", c.DrugName), "Drug Safety Team")

	return actions
}

// NextStatus maps severity to the post-workflow case status.
func NextStatus(severity string) string {
	switch severity {
	case store.SeveritySevere, store.SeverityLifeThreatening:
		return store.StatusUnderInvestigation
	default:
		return store.StatusConfirmed
	}
}

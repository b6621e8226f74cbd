package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/observability"
	"github.com/spec-kit/incident-service/internal/repository"
)

// In-memory repository fakes backing the service tests. They implement the
// same contracts as the pgx repositories, including ErrStaleStatus and
// ErrAlreadyActed semantics.

type fakeIncidentRepo struct {
	mu        sync.Mutex
	seq       int
	incidents map[string]*domain.Incident
	// assignments is consulted for ListByStatusWithoutActiveAssignment.
	assignments *fakeAssignmentRepo
	// onceBeforeUpdate simulates a competing writer sneaking in between a
	// read and a conditional write. Cleared after one invocation.
	onceBeforeUpdate func()
}

func newFakeIncidentRepo() *fakeIncidentRepo {
	return &fakeIncidentRepo{incidents: make(map[string]*domain.Incident)}
}

func (r *fakeIncidentRepo) Create(_ context.Context, incident *domain.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	incident.ID = fmt.Sprintf("inc-%d", r.seq)
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now()
	}
	incident.UpdatedAt = incident.CreatedAt
	cp := *incident
	r.incidents[incident.ID] = &cp
	return nil
}

func (r *fakeIncidentRepo) GetByID(_ context.Context, id string) (*domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *incident
	return &cp, nil
}

func (r *fakeIncidentRepo) UpdateStatus(_ context.Context, id string, expectedCurrent, newStatus domain.IncidentStatus, resolvedAt *time.Time) error {
	if hook := r.onceBeforeUpdate; hook != nil {
		r.onceBeforeUpdate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if incident.Status != expectedCurrent {
		return repository.ErrStaleStatus
	}
	incident.Status = newStatus
	incident.ResolvedAt = resolvedAt
	incident.UpdatedAt = time.Now()
	return nil
}

func (r *fakeIncidentRepo) UpdateTriage(_ context.Context, id string, priority domain.IncidentPriority, categoryID, zoneID *string, slaDue *time.Time) error {
	if hook := r.onceBeforeUpdate; hook != nil {
		r.onceBeforeUpdate = nil
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return pgx.ErrNoRows
	}
	switch incident.Status {
	case domain.IncidentStatusClosed, domain.IncidentStatusRejected:
		return repository.ErrStaleStatus
	}
	incident.Priority = priority
	if categoryID != nil {
		incident.CategoryID = categoryID
	}
	if zoneID != nil {
		incident.ZoneID = zoneID
	}
	incident.SlaDue = slaDue
	return nil
}

func (r *fakeIncidentRepo) SetArchived(_ context.Context, id string, archived bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return pgx.ErrNoRows
	}
	incident.Archived = archived
	return nil
}

func (r *fakeIncidentRepo) SetDuplicateOf(_ context.Context, id string, duplicateOf *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return pgx.ErrNoRows
	}
	incident.DuplicateOf = duplicateOf
	return nil
}

func (r *fakeIncidentRepo) IncrementUpvotes(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	incident, ok := r.incidents[id]
	if !ok {
		return pgx.ErrNoRows
	}
	incident.Upvotes++
	return nil
}

func (r *fakeIncidentRepo) ListOverdue(_ context.Context, now time.Time) ([]domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	excluded := map[domain.IncidentStatus]bool{
		domain.IncidentStatusResolved:  true,
		domain.IncidentStatusClosed:    true,
		domain.IncidentStatusRejected:  true,
		domain.IncidentStatusEscalated: true,
	}
	var out []domain.Incident
	for _, incident := range r.incidents {
		if incident.SlaDue != nil && incident.SlaDue.Before(now) && !excluded[incident.Status] {
			out = append(out, *incident)
		}
	}
	sortIncidents(out)
	return out, nil
}

func (r *fakeIncidentRepo) ListByStatusWithoutActiveAssignment(_ context.Context, status domain.IncidentStatus) ([]domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Incident
	for _, incident := range r.incidents {
		if incident.Status != status {
			continue
		}
		if r.assignments != nil && r.assignments.hasActive(incident.ID) {
			continue
		}
		out = append(out, *incident)
	}
	sortIncidents(out)
	return out, nil
}

func (r *fakeIncidentRepo) ListWithFilter(_ context.Context, filter repository.IncidentFilter) ([]domain.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Incident
	for _, incident := range r.incidents {
		if incident.Archived {
			continue
		}
		if filter.PublicOnly && !incident.IsPublic {
			continue
		}
		if filter.ReporterID != nil && (incident.ReporterID == nil || *incident.ReporterID != *filter.ReporterID) {
			continue
		}
		out = append(out, *incident)
	}
	sortIncidents(out)
	return out, nil
}

func sortIncidents(incidents []domain.Incident) {
	sort.Slice(incidents, func(i, j int) bool { return incidents[i].ID < incidents[j].ID })
}

type fakeAssignmentRepo struct {
	mu          sync.Mutex
	seq         int
	assignments []*domain.Assignment
	incidents   *fakeIncidentRepo
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{}
}

func (r *fakeAssignmentRepo) Create(_ context.Context, assignment *domain.Assignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	assignment.ID = fmt.Sprintf("asg-%d", r.seq)
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now()
	}
	cp := *assignment
	r.assignments = append(r.assignments, &cp)
	return nil
}

func (r *fakeAssignmentRepo) GetByID(_ context.Context, id string) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, assignment := range r.assignments {
		if assignment.ID == id {
			cp := *assignment
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAssignmentRepo) GetActive(_ context.Context, incidentID string) (*domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.assignments) - 1; i >= 0; i-- {
		assignment := r.assignments[i]
		if assignment.IncidentID == incidentID && assignment.SupersededAt == nil {
			cp := *assignment
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAssignmentRepo) RecordAcceptance(_ context.Context, id string, accepted bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, assignment := range r.assignments {
		if assignment.ID != id {
			continue
		}
		if assignment.AcceptedAt != nil {
			return repository.ErrAlreadyActed
		}
		assignment.Accepted = accepted
		assignment.AcceptedAt = &at
		return nil
	}
	return pgx.ErrNoRows
}

func (r *fakeAssignmentRepo) SupersedeActive(_ context.Context, incidentID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, assignment := range r.assignments {
		if assignment.IncidentID == incidentID && assignment.SupersededAt == nil {
			supersededAt := at
			assignment.SupersededAt = &supersededAt
		}
	}
	return nil
}

func (r *fakeAssignmentRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Assignment
	for _, assignment := range r.assignments {
		if assignment.IncidentID == incidentID {
			out = append(out, *assignment)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) ListActiveByUnit(_ context.Context, unitID string) ([]domain.Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Assignment
	for _, assignment := range r.assignments {
		if assignment.AuthorityUnitID == unitID && assignment.SupersededAt == nil {
			out = append(out, *assignment)
		}
	}
	return out, nil
}

func (r *fakeAssignmentRepo) OpenCountsByUnit(_ context.Context, unitIDs []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[string]bool, len(unitIDs))
	for _, id := range unitIDs {
		wanted[id] = true
	}
	counts := make(map[string]int)
	for _, assignment := range r.assignments {
		if assignment.SupersededAt != nil || !wanted[assignment.AuthorityUnitID] {
			continue
		}
		if r.incidents != nil {
			if incident, ok := r.incidents.incidents[assignment.IncidentID]; ok {
				switch incident.Status {
				case domain.IncidentStatusResolved, domain.IncidentStatusClosed, domain.IncidentStatusRejected:
					continue
				}
			}
		}
		counts[assignment.AuthorityUnitID]++
	}
	return counts, nil
}

func (r *fakeAssignmentRepo) hasActive(incidentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, assignment := range r.assignments {
		if assignment.IncidentID == incidentID && assignment.SupersededAt == nil {
			return true
		}
	}
	return false
}

type fakeStatusLogRepo struct {
	mu      sync.Mutex
	seq     int
	entries []domain.StatusLogEntry
}

func newFakeStatusLogRepo() *fakeStatusLogRepo {
	return &fakeStatusLogRepo{}
}

func (r *fakeStatusLogRepo) Append(_ context.Context, entry *domain.StatusLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	entry.ID = fmt.Sprintf("log-%d", r.seq)
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeStatusLogRepo) ListByIncident(_ context.Context, incidentID string) ([]domain.StatusLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StatusLogEntry
	for _, entry := range r.entries {
		if entry.IncidentID == incidentID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeUnitRepo struct {
	mu    sync.Mutex
	units []domain.AuthorityUnit
}

func newFakeUnitRepo(units ...domain.AuthorityUnit) *fakeUnitRepo {
	return &fakeUnitRepo{units: units}
}

func (r *fakeUnitRepo) Create(_ context.Context, unit *domain.AuthorityUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = append(r.units, *unit)
	return nil
}

func (r *fakeUnitRepo) Update(_ context.Context, unit *domain.AuthorityUnit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.units {
		if r.units[i].ID == unit.ID {
			r.units[i] = *unit
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeUnitRepo) GetByID(_ context.Context, id string) (*domain.AuthorityUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.units {
		if r.units[i].ID == id {
			cp := r.units[i]
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUnitRepo) GetByProfile(_ context.Context, profileID string) (*domain.AuthorityUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.units {
		if r.units[i].ProfileID != nil && *r.units[i].ProfileID == profileID {
			cp := r.units[i]
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUnitRepo) ListActive(_ context.Context, zoneID *string) ([]domain.AuthorityUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AuthorityUnit
	for i := range r.units {
		unit := r.units[i]
		if !unit.Active {
			continue
		}
		if zoneID != nil && (unit.ZoneID == nil || *unit.ZoneID != *zoneID) {
			continue
		}
		out = append(out, unit)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeTxManager hands the shared fakes to the closure; the fakes themselves
// are the "database", so there is no rollback. Tests that need rollback
// semantics assert on observable state instead.
type fakeTxManager struct {
	stores repository.Stores
}

func (m *fakeTxManager) InTx(_ context.Context, fn func(repository.Stores) error) error {
	return fn(m.stores)
}

type capturedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturedEvents) Publish(_ context.Context, event events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) Subscribe(events.EventType, events.EventHandler) {}

func (c *capturedEvents) byType(eventType events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, event := range c.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// testEnv bundles a lifecycle service wired to fakes.
type testEnv struct {
	incidents   *fakeIncidentRepo
	assignments *fakeAssignmentRepo
	statusLog   *fakeStatusLogRepo
	units       *fakeUnitRepo
	dispatcher  *capturedEvents
	lifecycle   *LifecycleService
	acceptance  *AcceptanceService
}

func newTestEnv(units ...domain.AuthorityUnit) *testEnv {
	incidents := newFakeIncidentRepo()
	assignments := newFakeAssignmentRepo()
	incidents.assignments = assignments
	assignments.incidents = incidents
	statusLog := newFakeStatusLogRepo()
	unitRepo := newFakeUnitRepo(units...)
	dispatcher := &capturedEvents{}

	stores := repository.Stores{
		Incidents:   incidents,
		Assignments: assignments,
		StatusLog:   statusLog,
		Units:       unitRepo,
	}
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	lifecycle := NewLifecycleService(LifecycleDependencies{
		TxManager:     &fakeTxManager{stores: stores},
		IncidentRepo:  incidents,
		StatusLogRepo: statusLog,
		Matcher:       NewAssignmentMatcher(logger, metrics),
		Calendar:      NewWeekendCalendar(nil),
		Dispatcher:    dispatcher,
		Logger:        logger,
		Metrics:       metrics,
	})
	acceptance := NewAcceptanceService(assignments, unitRepo, lifecycle, dispatcher, logger)

	return &testEnv{
		incidents:   incidents,
		assignments: assignments,
		statusLog:   statusLog,
		units:       unitRepo,
		dispatcher:  dispatcher,
		lifecycle:   lifecycle,
		acceptance:  acceptance,
	}
}

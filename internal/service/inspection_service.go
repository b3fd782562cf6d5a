package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/goatkit/pesflow/internal/apierrors"
	"github.com/goatkit/pesflow/internal/history"
	"github.com/goatkit/pesflow/internal/models"
	"github.com/goatkit/pesflow/internal/notifications"
	"github.com/goatkit/pesflow/internal/repository"
	"github.com/goatkit/pesflow/internal/service/inspection_number"
	"github.com/goatkit/pesflow/internal/services/acl"
	"github.com/goatkit/pesflow/internal/services/reprogram"
	"github.com/goatkit/pesflow/internal/services/support"
	"github.com/goatkit/pesflow/internal/services/workflow"
	"github.com/goatkit/pesflow/internal/shared"
)

// ErrInvalidChannel is returned when a record is created through a channel
// reserved for the reprogramming engine.
var ErrInvalidChannel = errors.New("channel cannot be used to create inspections")

// supportFields are written through the support validation sub-workflow.
var supportFields = []models.Field{
	models.FieldConnectionDate,
	models.FieldDataConfirmed,
	models.FieldSupportObservations,
	models.FieldRejectionType,
	models.FieldRejectionReasonDetail,
}

// InspectionService drives the inspection lifecycle: it loads the stored
// snapshot, consults the policy and the transition validator, writes through
// the store and records history.
type InspectionService struct {
	store    repository.InspectionStore
	recorder *history.Recorder
	policy   *acl.Policy
	ids      inspection_number.Generator
	engine   *reprogram.Engine
	hub      notifications.Hub
	clock    shared.Clock
	logger   *zap.Logger
	metrics  *serviceMetrics
}

// Option configures an InspectionService.
type Option func(*InspectionService)

// WithPolicy sets the field access policy.
func WithPolicy(p *acl.Policy) Option {
	return func(s *InspectionService) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClock sets the clock used for time-gated rules and stamps.
func WithClock(c shared.Clock) Option {
	return func(s *InspectionService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithHub sets the notification hub. Without it the service keeps its own
// MemoryHub.
func WithHub(h notifications.Hub) Option {
	return func(s *InspectionService) {
		if h != nil {
			s.hub = h
		}
	}
}

// WithIDGenerator sets the record id generator.
func WithIDGenerator(g inspection_number.Generator) Option {
	return func(s *InspectionService) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *InspectionService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewInspectionService wires the service over its stores.
func NewInspectionService(store repository.InspectionStore, historyStore repository.HistoryStore, opts ...Option) *InspectionService {
	s := &InspectionService{
		store:   store,
		policy:  acl.NewPolicy(),
		ids:     inspection_number.NewUUIDGenerator(),
		hub:     notifications.NewMemoryHub(),
		clock:   shared.SystemClock,
		logger:  zap.NewNop(),
		metrics: globalServiceMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.recorder = history.NewRecorder(historyStore, history.WithClock(s.clock), history.WithLogger(s.logger))
	s.engine = reprogram.NewEngine(s.ids)
	return s
}

// Get loads one record.
func (s *InspectionService) Get(ctx context.Context, id string) (*models.InspectionRecord, error) {
	return s.store.Get(ctx, id)
}

// List returns the records matching q.
func (s *InspectionService) List(ctx context.Context, q models.InspectionQuery) ([]*models.InspectionRecord, error) {
	return s.store.List(ctx, q)
}

// Subscribe streams the records matching q until ctx is done.
func (s *InspectionService) Subscribe(ctx context.Context, q models.InspectionQuery) (<-chan *models.InspectionRecord, error) {
	return s.store.Subscribe(ctx, q)
}

// Create registers a new inspection from draft. Every filled field must be
// editable by the actor in NEW mode. A requested status must be one the role
// may pick on creation; otherwise the role's initial status applies.
func (s *InspectionService) Create(ctx context.Context, actor models.User, draft *models.InspectionRecord, channel models.Channel) (rec *models.InspectionRecord, err error) {
	defer func() { s.metrics.observe("create", err) }()

	if draft == nil {
		return nil, errors.New("draft is required")
	}
	if channel == "" {
		channel = models.ChannelIndividual
	}
	if channel == models.ChannelReprogrammed {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChannel, channel)
	}

	now := s.clock.Now()
	rec = draft.Clone()
	if rec.Zone == "" {
		rec.Zone = actor.Zone
	}
	requested := rec.Status
	rec.Status = ""
	rec.LastModifiedBy, rec.LastModifiedAt = "", nil

	if err := s.checkFields(actor, models.ModeNew, nil, history.Diff(nil, rec), now); err != nil {
		return nil, err
	}

	status := workflow.InitialStatus(actor.Role)
	if requested != "" {
		if !requested.In(workflow.AllowedStatuses(actor.Role, models.ModeNew, "")...) {
			s.metrics.transitions.WithLabelValues(string(requested), "rejected").Inc()
			return nil, apierrors.IllegalTransition("", requested, actor.Role)
		}
		status = requested
	}

	if err := ValidateDraft(rec); err != nil {
		return nil, err
	}

	id, err := s.ids.Generate(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to generate inspection id: %w", err)
	}
	rec.ID = id
	rec.Origin = channel
	rec.Status = status
	rec.CreatedAt = now.UTC()
	rec.CreatedBy = actor.DisplayName()

	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create inspection: %w", err)
	}
	if _, err := s.recorder.RecordDiff(ctx, rec.ID, actor, nil, rec); err != nil {
		return nil, err
	}

	s.logger.Info("inspection created",
		zap.String("inspection_id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.String("actor", actor.ID),
		zap.String("channel", string(channel)))
	s.notify(ctx, notifications.KindCreated, rec, notifications.Extra{})
	return rec, nil
}

// Update applies an edited copy of a stored record. The whole edit is
// rejected if any changed field is not editable, the status change is
// illegal, or the support fields do not resolve.
func (s *InspectionService) Update(ctx context.Context, actor models.User, id string, edited *models.InspectionRecord) (rec *models.InspectionRecord, err error) {
	defer func() { s.metrics.observe("update", err) }()

	if edited == nil {
		return nil, errors.New("edited record is required")
	}
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	changes := history.Diff(current, edited)
	if len(changes) == 0 {
		return current, nil
	}

	// Only the diffed values are carried over, in their compared form, so a
	// difference the diff does not see never reaches the store.
	next := current.Clone()
	for _, c := range changes {
		if err := models.SetFieldValue(next, c.Field, c.NewValue); err != nil {
			return nil, apierrors.InvalidValue(c.Field, err.Error())
		}
	}

	var resolution *support.Resolution
	for _, c := range changes {
		if c.Field.In(supportFields...) {
			res, err := support.Resolve(actor.Role, current, support.InputFromRecord(next))
			if err != nil {
				return nil, err
			}
			resolution = &res
			break
		}
	}

	checked := make([]models.FieldChange, 0, len(changes))
	for _, c := range changes {
		if c.Field.In(supportFields...) {
			continue
		}
		if c.Field == models.FieldStatus && resolution != nil && next.Status == resolution.Status {
			continue
		}
		checked = append(checked, c)
	}
	if err := s.checkFields(actor, models.ModeEdit, current, checked, now); err != nil {
		return nil, err
	}

	switch {
	case resolution != nil:
		if next.Status != current.Status && next.Status != resolution.Status {
			return nil, apierrors.IllegalTransition(current.Status, next.Status, actor.Role)
		}
		next = resolution.Patch.Apply(next)
	case next.Status != current.Status:
		to, err := s.transition(actor, current.Status, next.Status, next)
		if err != nil {
			return nil, err
		}
		next.Status = to
	}

	at := now.UTC()
	next.LastModifiedBy = actor.DisplayName()
	next.LastModifiedAt = &at

	if err := s.store.Put(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to update inspection %s: %w", id, err)
	}
	if _, err := s.recorder.RecordDiff(ctx, id, actor, current, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Cancel moves a record to CANCELADA. It is the path collaborators use to
// withdraw a request.
func (s *InspectionService) Cancel(ctx context.Context, actor models.User, id string) (rec *models.InspectionRecord, err error) {
	defer func() { s.metrics.observe("cancel", err) }()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.StatusCancelada {
		return current, nil
	}
	to, err := s.transition(actor, current.Status, models.StatusCancelada, current)
	if err != nil {
		return nil, err
	}

	patch := s.stamp(models.InspectionPatch{Status: &to}, actor)
	return s.applyPatch(ctx, actor, current, patch)
}

// ResolveSupportValidation records the support team's verdict on a record.
func (s *InspectionService) ResolveSupportValidation(ctx context.Context, actor models.User, id string, in support.Input) (rec *models.InspectionRecord, err error) {
	defer func() { s.metrics.observe("support_validation", err) }()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := support.Resolve(actor.Role, current, in)
	if err != nil {
		return nil, err
	}
	s.metrics.transitions.WithLabelValues(string(res.Status), "accepted").Inc()
	return s.applyPatch(ctx, actor, current, s.stamp(res.Patch, actor))
}

// Reprogram closes the record and opens its successor. The successor is
// written before the original is marked, unless the store applies both in
// one transaction.
func (s *InspectionService) Reprogram(ctx context.Context, actor models.User, id string) (successor *models.InspectionRecord, err error) {
	defer func() { s.metrics.observe("reprogram", err) }()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	closed, successor, err := s.engine.Reprogram(current, actor, s.clock.Now())
	if err != nil {
		s.logger.Info("reprogram rejected", zap.String("inspection_id", id), zap.Error(err))
		return nil, err
	}

	if writer, ok := s.store.(repository.ReprogramWriter); ok {
		if err := writer.ApplyReprogram(ctx, successor, closed.ID, closed.Patch); err != nil {
			return nil, fmt.Errorf("failed to reprogram %s: %w", id, err)
		}
	} else {
		if err := s.store.Put(ctx, successor); err != nil {
			return nil, fmt.Errorf("failed to write successor of %s: %w", id, err)
		}
		if err := s.store.Patch(ctx, closed.ID, closed.Patch); err != nil {
			s.logger.Error("successor written but original not closed",
				zap.String("inspection_id", id),
				zap.String("successor_id", successor.ID),
				zap.Error(err))
			return nil, fmt.Errorf("failed to close %s: %w", id, err)
		}
	}

	if _, err := s.recorder.RecordDiff(ctx, successor.ID, actor, nil, successor); err != nil {
		return nil, err
	}
	if _, err := s.recorder.RecordDiff(ctx, id, actor, current, closed.Patch.Apply(current)); err != nil {
		return nil, err
	}

	s.logger.Info("inspection reprogrammed",
		zap.String("inspection_id", id),
		zap.String("successor_id", successor.ID),
		zap.String("actor", actor.ID))
	s.notify(ctx, notifications.KindReprogrammed, closed.Patch.Apply(current), notifications.Extra{SuccessorID: successor.ID})
	return successor, nil
}

// History returns the change history of a record, newest first.
func (s *InspectionService) History(ctx context.Context, id string) ([]models.ChangeHistoryEntry, error) {
	return s.recorder.List(ctx, id)
}

// HistoryView returns the history rendered for display.
func (s *InspectionService) HistoryView(ctx context.Context, id string) ([]history.EntryView, error) {
	entries, err := s.recorder.List(ctx, id)
	if err != nil {
		return nil, err
	}
	return history.FormatEntries(entries, s.clock.Now()), nil
}

// EditableFields evaluates the policy for every field of a record. In NEW
// mode id is ignored.
func (s *InspectionService) EditableFields(ctx context.Context, actor models.User, mode models.Mode, id string) (map[models.Field]bool, error) {
	var rec *models.InspectionRecord
	if mode != models.ModeNew {
		var err error
		if rec, err = s.store.Get(ctx, id); err != nil {
			return nil, err
		}
	}
	return s.policy.EditableFields(actor.Role, mode, rec, s.clock.Now()), nil
}

// StatusOptions lists the statuses offered to the actor for a record. In NEW
// mode id is ignored.
func (s *InspectionService) StatusOptions(ctx context.Context, actor models.User, mode models.Mode, id string) ([]models.InspectionStatus, error) {
	var current models.InspectionStatus
	if mode != models.ModeNew {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		current = rec.Status
	}
	return workflow.AllowedStatuses(actor.Role, mode, current), nil
}

func (s *InspectionService) checkFields(actor models.User, mode models.Mode, current *models.InspectionRecord, changes []models.FieldChange, now time.Time) error {
	for _, c := range changes {
		d := s.policy.Decide(c.Field, actor.Role, mode, current, now)
		if d.Allowed {
			continue
		}
		var status models.InspectionStatus
		if current != nil {
			status = current.Status
		}
		s.metrics.denials.WithLabelValues(string(actor.Role), string(c.Field)).Inc()
		s.logger.Info("edit denied",
			zap.String("field", string(c.Field)),
			zap.String("rule", d.Rule),
			zap.String("role", string(actor.Role)),
			zap.String("status", string(status)),
			zap.String("actor", actor.ID))
		return apierrors.FieldNotEditable(c.Field, actor.Role, status)
	}
	return nil
}

func (s *InspectionService) transition(actor models.User, from, to models.InspectionStatus, rec *models.InspectionRecord) (models.InspectionStatus, error) {
	got, err := workflow.ValidateTransition(actor.Role, from, to, rec)
	if err != nil {
		s.metrics.transitions.WithLabelValues(string(to), "rejected").Inc()
		s.logger.Info("transition rejected",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("role", string(actor.Role)),
			zap.Error(err))
		return from, err
	}
	s.metrics.transitions.WithLabelValues(string(got), "accepted").Inc()
	return got, nil
}

func (s *InspectionService) stamp(p models.InspectionPatch, actor models.User) models.InspectionPatch {
	by := actor.DisplayName()
	at := s.clock.Now().UTC()
	p.LastModifiedBy = &by
	p.LastModifiedAt = &at
	return p
}

func (s *InspectionService) applyPatch(ctx context.Context, actor models.User, current *models.InspectionRecord, patch models.InspectionPatch) (*models.InspectionRecord, error) {
	if err := s.store.Patch(ctx, current.ID, patch); err != nil {
		return nil, fmt.Errorf("failed to update inspection %s: %w", current.ID, err)
	}
	updated := patch.Apply(current)
	if _, err := s.recorder.RecordDiff(ctx, current.ID, actor, current, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *InspectionService) notify(ctx context.Context, kind notifications.Kind, rec *models.InspectionRecord, extra notifications.Extra) {
	recipients := notifications.RecordRecipients(rec)
	if len(recipients) == 0 || s.hub == nil {
		return
	}
	n := notifications.Compose(kind, rec, extra, s.clock.Now())
	if err := s.hub.Dispatch(ctx, recipients, n); err != nil {
		s.metrics.notifyFails.Inc()
		s.logger.Warn("notification not dispatched",
			zap.String("inspection_id", rec.ID),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}
}

package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"mmp-tracker/internal/cache"
	"mmp-tracker/internal/event"
	"mmp-tracker/internal/export"
	"mmp-tracker/internal/metrics"
	"mmp-tracker/internal/model"
	"mmp-tracker/internal/workflow"
	"mmp-tracker/pkg/apierror"
)

// MMPService owns MMP files: uploads, edits and every workflow transition.
//
// Writes follow one path: load the current record, apply the change to a clone, then
// persist. A failed database write is not rolled back; the record is mirrored to the
// local fallback store and the mutation is returned with Persisted=false.
type MMPService struct {
	store   MMPStore
	cache   *cache.MMPCache
	mirror  FallbackStore
	audit   *AuditService
	bus     event.Bus
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewMMPService(store MMPStore, c *cache.MMPCache, mirror FallbackStore, audit *AuditService, bus event.Bus, m *metrics.Metrics) *MMPService {
	if c == nil {
		c = cache.NewMMPCache()
	}
	return &MMPService{
		store:   store,
		cache:   c,
		mirror:  mirror,
		audit:   audit,
		bus:     bus,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MMPService) Create(ctx context.Context, actor model.AuditActor, req model.CreateMMPRequest) (model.MMPMutation, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.MMPMutation{}, apierror.ValidationFailed("name is required", "")
	}
	if req.Entries < 0 {
		return model.MMPMutation{}, apierror.ValidationFailed("entries must not be negative", "")
	}

	now := s.now()
	f := model.MMPFile{
		ID:          uuid.NewString(),
		Name:        name,
		ProjectID:   strings.TrimSpace(req.ProjectID),
		Hub:         strings.TrimSpace(req.Hub),
		Region:      strings.TrimSpace(req.Region),
		Status:      model.MMPStatusPending,
		Entries:     req.Entries,
		Version:     model.Version{Major: 1, Minor: 0},
		UploadedBy:  actorLabel(actor),
		UploadedAt:  now,
		SiteEntries: []model.SiteEntry{},
		Financial:   req.Financial,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.MMPID = mmpCode(now, f.Version, f.Hub)

	for i, in := range req.SiteEntries {
		if strings.TrimSpace(in.SiteCode) == "" && strings.TrimSpace(in.SiteName) == "" {
			return model.MMPMutation{}, apierror.ValidationFailed("site entry needs a site code or site name", fmt.Sprintf("site_entries[%d]", i))
		}
		f.SiteEntries = append(f.SiteEntries, workflow.NewSiteEntry(f.ID, i, in))
	}
	if f.Entries < len(f.SiteEntries) {
		f.Entries = len(f.SiteEntries)
	}
	workflow.Refresh(&f, actorLabel(actor), now)

	persisted := s.persist(ctx, f, true)
	s.finish(ctx, actor, transition{action: "upload", event: event.TypeMMPUploaded}, nil, f, persisted)

	return s.mutation(f, persisted), nil
}

func (s *MMPService) Get(ctx context.Context, id string) (model.MMPFile, error) {
	return s.load(ctx, id)
}

// Find is Get for a request made on behalf of viewer. A plan outside the viewer's hub is
// reported as missing.
func (s *MMPService) Find(ctx context.Context, viewer model.Viewer, id string) (model.MMPFile, error) {
	f, err := s.load(ctx, id)
	if err != nil {
		return model.MMPFile{}, err
	}
	if !viewer.CanSee(f.Hub) {
		return model.MMPFile{}, model.ErrMMPNotFound
	}
	return f, nil
}

// Update edits plan metadata, bumps the minor version and appends to the modification history.
func (s *MMPService) Update(ctx context.Context, actor model.AuditActor, id string, req model.UpdateMMPRequest) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action: "update",
		event:  event.TypeMMPUpdated,
		apply: func(f *model.MMPFile, now time.Time) error {
			if err := workflow.CheckEditable(f); err != nil {
				return err
			}

			var changes []string
			if req.Name != nil {
				name := strings.TrimSpace(*req.Name)
				if name == "" {
					return fmt.Errorf("%w: name cannot be empty", workflow.ErrValidation)
				}
				if name != f.Name {
					changes = append(changes, "name")
					f.Name = name
				}
			}
			if req.Hub != nil && strings.TrimSpace(*req.Hub) != f.Hub {
				changes = append(changes, "hub")
				f.Hub = strings.TrimSpace(*req.Hub)
			}
			if req.Region != nil && strings.TrimSpace(*req.Region) != f.Region {
				changes = append(changes, "region")
				f.Region = strings.TrimSpace(*req.Region)
			}
			if req.Entries != nil {
				if *req.Entries < len(f.SiteEntries) {
					return fmt.Errorf("%w: entries cannot be below the %d site entries on file", workflow.ErrValidation, len(f.SiteEntries))
				}
				if *req.Entries != f.Entries {
					changes = append(changes, "entries")
					f.Entries = *req.Entries
				}
			}
			if req.ProcessedEntries != nil {
				if *req.ProcessedEntries < 0 || *req.ProcessedEntries > f.Entries {
					return fmt.Errorf("%w: processed entries must be between 0 and %d", workflow.ErrValidation, f.Entries)
				}
				if *req.ProcessedEntries != f.ProcessedEntries {
					changes = append(changes, "processed_entries")
					f.ProcessedEntries = *req.ProcessedEntries
				}
			}
			if len(changes) == 0 {
				return fmt.Errorf("%w: no changes", workflow.ErrValidation)
			}

			summary := strings.TrimSpace(req.Changes)
			if summary == "" {
				summary = "Updated " + strings.Join(changes, ", ")
			}
			bumpVersion(f, actorLabel(actor), summary, now)
			workflow.Refresh(f, actorLabel(actor), now)
			return nil
		},
	})
}

func (s *MMPService) AddSites(ctx context.Context, actor model.AuditActor, id string, req model.AddSitesRequest) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action: "add_sites",
		event:  event.TypeMMPUpdated,
		apply: func(f *model.MMPFile, now time.Time) error {
			added, err := workflow.AddSites(f, req.SiteEntries, actorLabel(actor), now)
			if err != nil {
				return err
			}
			bumpVersion(f, actorLabel(actor), fmt.Sprintf("Added %d site entries", len(added)), now)
			return nil
		},
	})
}

func (s *MMPService) Review(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action:   "review",
		category: CategoryVerification,
		event:    event.TypeMMPReviewed,
		apply: func(f *model.MMPFile, now time.Time) error {
			return workflow.MarkReviewed(f, actorLabel(actor), now)
		},
	})
}

func (s *MMPService) Verify(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action:   "verify",
		category: CategoryVerification,
		event:    event.TypeMMPVerified,
		apply: func(f *model.MMPFile, now time.Time) error {
			return workflow.Verify(f, actorLabel(actor), now)
		},
	})
}

// Approve grants the first approval, or the final approval when the first is already in place.
func (s *MMPService) Approve(ctx context.Context, actor model.AuditActor, id string, comments string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action: "approve",
		event:  event.TypeMMPApproved,
		apply: func(f *model.MMPFile, now time.Time) error {
			return workflow.Approve(f, actorLabel(actor), comments, now)
		},
		details: strings.TrimSpace(comments),
	})
}

func (s *MMPService) Reject(ctx context.Context, actor model.AuditActor, id string, reason string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action: "reject",
		event:  event.TypeMMPRejected,
		apply: func(f *model.MMPFile, now time.Time) error {
			return workflow.Reject(f, actorLabel(actor), reason, now)
		},
		details: strings.TrimSpace(reason),
	})
}

func (s *MMPService) Archive(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action: "archive",
		event:  event.TypeMMPArchived,
		apply: func(f *model.MMPFile, now time.Time) error {
			return workflow.Archive(f, actorLabel(actor), now)
		},
	})
}

func (s *MMPService) Reset(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action: "reset",
		event:  event.TypeMMPReset,
		apply: func(f *model.MMPFile, now time.Time) error {
			if err := workflow.Reset(f); err != nil {
				return err
			}
			workflow.Refresh(f, actorLabel(actor), now)
			return nil
		},
	})
}

// Delete is a soft delete; the record stays in storage with status deleted.
func (s *MMPService) Delete(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action: "delete",
		event:  event.TypeMMPDeleted,
		apply: func(f *model.MMPFile, now time.Time) error {
			return workflow.SoftDelete(f, actorLabel(actor), now)
		},
	})
}

func (s *MMPService) Restore(ctx context.Context, actor model.AuditActor, id string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action: "restore",
		event:  event.TypeMMPRestored,
		apply: func(f *model.MMPFile, now time.Time) error {
			if err := workflow.Restore(f); err != nil {
				return err
			}
			workflow.Refresh(f, actorLabel(actor), now)
			return nil
		},
	})
}

// ExportSites renders the site entries of one plan as CSV.
func (s *MMPService) ExportSites(ctx context.Context, viewer model.Viewer, id string) (ExportResult, error) {
	f, err := s.Find(ctx, viewer, id)
	if err != nil {
		return ExportResult{}, err
	}

	var buf bytes.Buffer
	count, err := export.SiteEntriesCSV(&buf, f.SiteEntries)
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{
		Data:        buf.Bytes(),
		Filename:    export.Filename(strings.ToLower(f.MMPID)+"-sites", "csv", s.now()),
		ContentType: "text/csv; charset=utf-8",
		Count:       count,
	}, nil
}

type transition struct {
	action   string
	category string
	event    event.Type
	details  string
	apply    func(f *model.MMPFile, now time.Time) error
}

func (s *MMPService) transition(ctx context.Context, actor model.AuditActor, id string, t transition) (model.MMPMutation, error) {
	current, err := s.Find(ctx, actor.Viewer(), id)
	if err != nil {
		return model.MMPMutation{}, err
	}

	next := current.Clone()
	now := s.now()
	if err := t.apply(&next, now); err != nil {
		s.metrics.Transition(t.action, metrics.OutcomeRejected)
		s.audit.Record(ctx, model.AuditEntry{
			Action:      t.action,
			Category:    categoryOr(t.category, CategoryMMP),
			Description: fmt.Sprintf("%s refused for %s", t.action, current.MMPID),
			Details:     t.details,
			Actor:       actor,
			Status:      model.AuditStatusFailed,
			Resource:    current.ID,
			Error:       err.Error(),
		})
		return model.MMPMutation{}, workflowError(err)
	}
	next.UpdatedAt = now

	persisted := s.persist(ctx, next, false)
	s.finish(ctx, actor, t, &current, next, persisted)
	return s.mutation(next, persisted), nil
}

// persist writes f to the store and always updates the cache. On failure the record is
// mirrored locally and false is returned.
func (s *MMPService) persist(ctx context.Context, f model.MMPFile, create bool) bool {
	s.cache.Put(f)

	var err error
	if create {
		err = s.store.Create(ctx, f)
	} else {
		err = s.store.Save(ctx, f)
		if errors.Is(err, model.ErrMMPNotFound) {
			// Created while the database was unreachable; only the mirror knew about it.
			err = s.store.Create(ctx, f)
		}
	}
	if err == nil {
		return true
	}

	slog.Warn("mmp file not persisted; mirrored locally", "id", f.ID, "mmp_id", f.MMPID, "error", err)
	s.metrics.Fallback("write")
	if s.mirror != nil {
		if mirrorErr := s.mirror.Upsert(f); mirrorErr != nil {
			slog.Error("fallback mirror write failed", "id", f.ID, "error", mirrorErr)
		}
	}
	return false
}

// load reads from the store, falling back to the cache and then the local mirror.
// A locally held copy newer than the stored one wins.
func (s *MMPService) load(ctx context.Context, id string) (model.MMPFile, error) {
	f, err := s.store.Get(ctx, id)
	if err == nil {
		if cached, ok := s.cache.Get(id); ok && cached.UpdatedAt.After(f.UpdatedAt) {
			return cached, nil
		}
		s.cache.Put(f)
		return f, nil
	}

	if !errors.Is(err, model.ErrMMPNotFound) {
		slog.Warn("mmp store read failed; using local copy", "id", id, "error", err)
		s.metrics.Fallback("read")
	}
	if cached, ok := s.cache.Get(id); ok {
		return cached, nil
	}
	if s.mirror != nil {
		if mirrored, ok, mirrorErr := s.mirror.Get(id); mirrorErr == nil && ok {
			s.cache.Put(mirrored)
			return mirrored, nil
		}
	}

	if errors.Is(err, model.ErrMMPNotFound) {
		return model.MMPFile{}, err
	}
	return model.MMPFile{}, apierror.New("UNAVAILABLE", "mmp store unavailable", err.Error(), http.StatusServiceUnavailable)
}

func (s *MMPService) finish(ctx context.Context, actor model.AuditActor, t transition, before *model.MMPFile, after model.MMPFile, persisted bool) {
	outcome, status := metrics.OutcomeOK, model.AuditStatusSuccess
	if !persisted {
		outcome, status = metrics.OutcomeDegraded, model.AuditStatusDegraded
	}
	s.metrics.Transition(t.action, outcome)

	entry := model.AuditEntry{
		Action:      t.action,
		Category:    categoryOr(t.category, CategoryMMP),
		Description: describe(t.action, after),
		Details:     t.details,
		Actor:       actor,
		Status:      status,
		Resource:    after.ID,
		After:       auditSnapshot(after),
		Metadata: map[string]any{
			"mmp_id":    after.MMPID,
			"stage":     string(workflow.StageOf(&after)),
			"persisted": persisted,
		},
	}
	if before != nil {
		entry.Before = auditSnapshot(*before)
	}
	s.audit.Record(ctx, entry)

	if s.bus != nil {
		s.bus.Publish(event.New(t.event, actor.UserID, after.Hub, s.mutation(after, persisted)))
	}
}

func (s *MMPService) mutation(f model.MMPFile, persisted bool) model.MMPMutation {
	return model.MMPMutation{File: f, Stage: string(workflow.StageOf(&f)), Persisted: persisted}
}

// auditSnapshot keeps the audit before/after columns small: status fields only.
func auditSnapshot(f model.MMPFile) map[string]any {
	snap := map[string]any{
		"status":  f.Status,
		"stage":   workflow.StageOf(&f),
		"version": f.Version.String(),
		"entries": f.TotalSiteCount(),
	}
	if f.RejectionReason != "" {
		snap["rejection_reason"] = f.RejectionReason
	}
	return snap
}

func describe(action string, f model.MMPFile) string {
	switch action {
	case "upload":
		return fmt.Sprintf("Uploaded %s with %d site entries", f.MMPID, f.TotalSiteCount())
	case "approve":
		if f.Status == model.MMPStatusApproved {
			return fmt.Sprintf("Final approval granted for %s", f.MMPID)
		}
		return fmt.Sprintf("First approval granted for %s", f.MMPID)
	case "reject":
		return fmt.Sprintf("Rejected %s", f.MMPID)
	default:
		return fmt.Sprintf("%s %s", strings.ReplaceAll(action, "_", " "), f.MMPID)
	}
}

func categoryOr(category, fallback string) string {
	if category == "" {
		return fallback
	}
	return category
}

// workflowError maps state machine errors onto API errors.
func workflowError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrValidation):
		return apierror.ValidationFailed(err.Error(), "")
	case errors.Is(err, workflow.ErrTransition):
		return apierror.InvalidTransition(err.Error(), "")
	default:
		return err
	}
}

func actorLabel(actor model.AuditActor) string {
	if actor.Username != "" {
		return actor.Username
	}
	return actor.UserID
}

// mmpCode builds the human code, e.g. M-032026-V1.0-KRT.
func mmpCode(now time.Time, v model.Version, hub string) string {
	code := strings.ToUpper(strings.Join(strings.Fields(hub), ""))
	if runes := []rune(code); len(runes) > 3 {
		code = string(runes[:3])
	}
	if code == "" {
		code = "GEN"
	}
	return fmt.Sprintf("M-%s-V%s-%s", now.Format("012006"), v.String(), code)
}

func bumpVersion(f *model.MMPFile, by, changes string, now time.Time) {
	previous := f.Version.String()
	f.Version.Minor++
	f.ModificationHistory = append(f.ModificationHistory, model.Modification{
		Timestamp:       now,
		ModifiedBy:      by,
		Changes:         changes,
		PreviousVersion: previous,
		NewVersion:      f.Version.String(),
	})
}

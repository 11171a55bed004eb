package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"mmp-tracker/internal/model"
	"mmp-tracker/pkg/apierror"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// List returns the files visible to the viewer that match the query. Summary reads
// "<shown> of <total>", where total counts the visible files before search filters apply.
func (s *MMPService) List(ctx context.Context, viewer model.Viewer, query model.MMPQuery) (model.MMPList, model.Meta, error) {
	from, to, err := parseUploadRange(query)
	if err != nil {
		return model.MMPList{}, model.Meta{}, err
	}
	if query.Status != "" && !model.MMPStatus(strings.ToLower(query.Status)).Valid() {
		return model.MMPList{}, model.Meta{}, apierror.BadRequest("invalid status filter", query.Status)
	}

	files, degraded, err := s.all(ctx)
	if err != nil {
		return model.MMPList{}, model.Meta{}, err
	}
	visible := visibleFiles(files, viewer, query.Status)
	matched := filterFiles(visible, query, from, to)

	page, limit := normalizePage(query.Page, query.Limit)
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	totalPages := 0
	if len(matched) > 0 {
		totalPages = (len(matched) + limit - 1) / limit
	}
	meta := model.Meta{Page: page, Limit: limit, Total: len(matched), TotalPages: totalPages}
	if degraded {
		meta.Warning = "database unavailable; showing locally cached records"
	}

	return model.MMPList{
		Items:    matched[start:end],
		Shown:    len(matched),
		Total:    len(visible),
		Summary:  fmt.Sprintf("%d of %d", len(matched), len(visible)),
		Degraded: degraded,
	}, meta, nil
}

// all loads every file from the store and refreshes the cache and mirror. When the store
// is unreachable it serves the warm cache, or the mirror snapshot, and reports degraded.
// A cancelled or expired caller context is returned as an error instead.
func (s *MMPService) all(ctx context.Context) ([]model.MMPFile, bool, error) {
	files, err := s.store.List(ctx)
	if err == nil {
		files = s.overlayLocal(files)
		s.cache.ReplaceAll(files)
		if s.mirror != nil {
			if snapErr := s.mirror.Snapshot(files); snapErr != nil {
				slog.Warn("fallback snapshot not refreshed", "error", snapErr)
			}
		}
		return files, false, nil
	}
	if ctx.Err() != nil {
		return nil, false, fmt.Errorf("list mmp files: %w", ctx.Err())
	}

	slog.Warn("mmp store list failed; serving local copy", "error", err)
	s.metrics.Fallback("read")

	if s.cache.Warmed() {
		return s.cache.All(), true, nil
	}
	if s.mirror != nil {
		mirrored, mirrorErr := s.mirror.All()
		if mirrorErr == nil {
			s.cache.ReplaceAll(mirrored)
			return mirrored, true, nil
		}
		slog.Error("fallback snapshot unreadable", "error", mirrorErr)
	}
	return s.cache.All(), true, nil
}

// overlayLocal keeps writes that only reached the mirror or cache because the database
// rejected them; they are newer than what the store returned.
func (s *MMPService) overlayLocal(stored []model.MMPFile) []model.MMPFile {
	local := make(map[string]model.MMPFile)
	if s.mirror != nil {
		if mirrored, err := s.mirror.All(); err == nil {
			for _, f := range mirrored {
				local[f.ID] = f
			}
		}
	}
	for _, f := range s.cache.All() {
		if existing, ok := local[f.ID]; !ok || f.UpdatedAt.After(existing.UpdatedAt) {
			local[f.ID] = f
		}
	}

	out := make([]model.MMPFile, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))
	for _, f := range stored {
		seen[f.ID] = struct{}{}
		if l, ok := local[f.ID]; ok && l.UpdatedAt.After(f.UpdatedAt) {
			out = append(out, l)
			continue
		}
		out = append(out, f)
	}
	for id, f := range local {
		if _, ok := seen[id]; !ok {
			out = append(out, f)
		}
	}
	sortNewestFirst(out)
	return out
}

// visibleFiles applies hub restriction and hides deleted files unless they are asked for.
func visibleFiles(files []model.MMPFile, viewer model.Viewer, status string) []model.MMPFile {
	wantDeleted := strings.EqualFold(status, string(model.MMPStatusDeleted))
	out := make([]model.MMPFile, 0, len(files))
	for _, f := range files {
		if !viewer.CanSee(f.Hub) {
			continue
		}
		if f.Status == model.MMPStatusDeleted && !wantDeleted {
			continue
		}
		out = append(out, f)
	}
	return out
}

func filterFiles(files []model.MMPFile, query model.MMPQuery, from, to time.Time) []model.MMPFile {
	search := strings.ToLower(strings.TrimSpace(query.Search))
	status := strings.ToLower(strings.TrimSpace(query.Status))
	hub := strings.TrimSpace(query.Hub)
	project := strings.TrimSpace(query.ProjectID)

	out := make([]model.MMPFile, 0, len(files))
	for _, f := range files {
		if status != "" && string(f.Status) != status {
			continue
		}
		if hub != "" && !strings.EqualFold(f.Hub, hub) {
			continue
		}
		if project != "" && f.ProjectID != project {
			continue
		}
		if !from.IsZero() && f.UploadedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !f.UploadedAt.Before(to) {
			continue
		}
		if search != "" && !matchesSearch(f, search) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func matchesSearch(f model.MMPFile, needle string) bool {
	for _, haystack := range []string{f.Name, f.MMPID, f.UploadedBy, f.Hub} {
		if strings.Contains(strings.ToLower(haystack), needle) {
			return true
		}
	}
	return false
}

// parseUploadRange accepts dates (2006-01-02) or RFC 3339 timestamps. A date-only upper
// bound includes the whole day.
func parseUploadRange(query model.MMPQuery) (time.Time, time.Time, error) {
	var from, to time.Time
	if raw := strings.TrimSpace(query.UploadedFrom); raw != "" {
		t, _, err := parseDateOrTime(raw)
		if err != nil {
			return from, to, apierror.BadRequest("invalid 'uploaded_from' date", raw)
		}
		from = t
	}
	if raw := strings.TrimSpace(query.UploadedTo); raw != "" {
		t, dateOnly, err := parseDateOrTime(raw)
		if err != nil {
			return from, to, apierror.BadRequest("invalid 'uploaded_to' date", raw)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		} else {
			t = t.Add(time.Nanosecond)
		}
		to = t
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, apierror.BadRequest("'uploaded_from' must be before 'uploaded_to'", "")
	}
	return from, to, nil
}

func parseDateOrTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	return t.UTC(), false, err
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func sortNewestFirst(files []model.MMPFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
}

package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/workflow"
)

const recentActivityLimit = 10

type DashboardService struct {
	mmps    *MMPService
	budgets *BudgetService
	audit   *AuditService
}

func NewDashboardService(mmps *MMPService, budgets *BudgetService, audit *AuditService) *DashboardService {
	return &DashboardService{mmps: mmps, budgets: budgets, audit: audit}
}

// Build assembles the dashboard. Files, budgets and recent activity load concurrently;
// budgets and activity are optional, but failing to load the files fails the build and
// cancels the other loads. Hub-restricted viewers only see their own hub and get no budget
// figures.
func (s *DashboardService) Build(ctx context.Context, viewer model.Viewer) (model.Dashboard, error) {
	var (
		files    []model.MMPFile
		degraded bool
		summary  *model.BudgetSummary
		recent   []model.AuditEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		files, degraded, err = s.mmps.all(gctx)
		return err
	})
	if !viewer.HubRestricted() && s.budgets != nil {
		g.Go(func() error {
			sum, err := s.budgets.Summary(gctx)
			if err != nil {
				slog.Warn("dashboard budget summary unavailable", "error", err)
				return nil
			}
			summary = &sum
			return nil
		})
	}
	if !viewer.HubRestricted() && s.audit != nil {
		g.Go(func() error {
			entries, _, err := s.audit.Query(gctx, model.AuditQuery{Page: 1, Limit: recentActivityLimit})
			if err != nil {
				slog.Warn("dashboard recent activity unavailable", "error", err)
				return nil
			}
			recent = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Dashboard{}, err
	}

	d := model.Dashboard{
		AwaitingFirstApproval: []model.MMPFile{},
		AwaitingFinalApproval: []model.MMPFile{},
		Budget:                summary,
		RecentActivity:        recent,
		Degraded:              degraded,
	}
	if d.RecentActivity == nil {
		d.RecentActivity = []model.AuditEntry{}
	}
	if viewer.HubRestricted() {
		d.Hub = viewer.Hub
	}

	for _, f := range visibleFiles(files, viewer, string(model.MMPStatusDeleted)) {
		d.TotalFiles++
		switch f.Status {
		case model.MMPStatusPending:
			d.Statuses.Pending++
		case model.MMPStatusApproved:
			d.Statuses.Approved++
		case model.MMPStatusRejected:
			d.Statuses.Rejected++
		case model.MMPStatusArchived:
			d.Statuses.Archived++
		case model.MMPStatusDeleted:
			d.Statuses.Deleted++
			continue
		}
		d.TotalSites += f.TotalSiteCount()

		switch workflow.StageOf(&f) {
		case workflow.StageNeedsFirstApproval:
			d.AwaitingFirstApproval = append(d.AwaitingFirstApproval, f)
		case workflow.StageNeedsSecondApproval:
			d.AwaitingFinalApproval = append(d.AwaitingFinalApproval, f)
		}
	}
	return d, nil
}

package service

import (
	"context"
	"time"

	"mmp-tracker/internal/event"
	"mmp-tracker/internal/model"
	"mmp-tracker/internal/workflow"
)

// Verification summarizes where a file stands in comprehensive verification.
func (s *MMPService) Verification(ctx context.Context, viewer model.Viewer, id string) (model.VerificationView, error) {
	f, err := s.Find(ctx, viewer, id)
	if err != nil {
		return model.VerificationView{}, err
	}

	cv := f.ComprehensiveVerification
	if cv == nil {
		cv = workflow.NewComprehensiveVerification()
	}
	view := model.VerificationView{
		MMPFileID:      f.ID,
		MMPID:          f.MMPID,
		Status:         f.Status,
		Stage:          string(workflow.StageOf(&f)),
		Actions:        workflow.Actions(&f),
		Verification:   cv,
		SitesTotal:     len(f.SiteEntries),
		PermitProgress: workflow.PermitProgress(f.Permits),
		Permits:        f.Permits,
	}
	for _, site := range f.SiteEntries {
		switch site.VerificationStatus {
		case model.DecisionVerified:
			view.SitesVerified++
		case model.DecisionRejected:
			view.SitesRejected++
		}
		if site.IsFlagged {
			view.SitesFlagged++
		}
	}
	view.SiteProgress = workflow.Percent(view.SitesVerified+view.SitesRejected, view.SitesTotal)
	return view, nil
}

func (s *MMPService) CompleteContent(ctx context.Context, actor model.AuditActor, id string, notes string) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action:   "content_verify",
		category: CategoryVerification,
		event:    event.TypeMMPUpdated,
		details:  notes,
		apply: func(f *model.MMPFile, now time.Time) error {
			return workflow.CompleteContentVerification(f, actorLabel(actor), notes, now)
		},
	})
}

// DecideSite records the CP verification decision for one site entry.
func (s *MMPService) DecideSite(ctx context.Context, actor model.AuditActor, id, siteID string, req model.DecisionRequest) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action:   "site_verify",
		category: CategoryVerification,
		event:    event.TypeSiteDecided,
		details:  req.Notes,
		apply: func(f *model.MMPFile, now time.Time) error {
			decision, err := workflow.ParseDecision(req.Status)
			if err != nil {
				return err
			}
			_, err = workflow.DecideSite(f, siteID, decision, req.Notes, actorLabel(actor), now)
			return err
		},
	})
}

func (s *MMPService) FlagSite(ctx context.Context, actor model.AuditActor, id, siteID string, req model.FlagSiteRequest) (model.MMPMutation, error) {
	action := "site_flag"
	if !req.Flagged {
		action = "site_unflag"
	}
	return s.transition(ctx, actor, id, transition{
		action:   action,
		category: CategoryVerification,
		event:    event.TypeMMPUpdated,
		details:  req.Reason,
		apply: func(f *model.MMPFile, now time.Time) error {
			_, err := workflow.FlagSite(f, siteID, req.Flagged, req.Reason, actorLabel(actor), now)
			return err
		},
	})
}

// AddPermit attaches permit metadata. The document itself is stored elsewhere; only its
// name and URL are kept.
func (s *MMPService) AddPermit(ctx context.Context, actor model.AuditActor, id string, req model.PermitUploadRequest) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action:   "permit_upload",
		category: CategoryVerification,
		event:    event.TypePermitAdded,
		details:  req.FileName,
		apply: func(f *model.MMPFile, now time.Time) error {
			_, err := workflow.AddPermit(f, req, actorLabel(actor), now)
			return err
		},
	})
}

func (s *MMPService) DecidePermit(ctx context.Context, actor model.AuditActor, id, permitID string, req model.DecisionRequest) (model.MMPMutation, error) {
	return s.transition(ctx, actor, id, transition{
		action:   "permit_verify",
		category: CategoryVerification,
		event:    event.TypePermitDecided,
		details:  req.Notes,
		apply: func(f *model.MMPFile, now time.Time) error {
			decision, err := workflow.ParseDecision(req.Status)
			if err != nil {
				return err
			}
			_, err = workflow.DecidePermit(f, permitID, decision, req.Notes, actorLabel(actor), now)
			return err
		},
	})
}

package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mmp-tracker/internal/model"
)

var (
	ErrNoSites        = fmt.Errorf("%w: at least one site entry is required", ErrValidation)
	ErrFlagReason     = fmt.Errorf("%w: a reason is required when flagging a site", ErrValidation)
	ErrSiteIdentifier = fmt.Errorf("%w: site entry needs a site code or site name", ErrValidation)
)

// NewSiteEntry builds a site entry positioned at the end of the file.
func NewSiteEntry(fileID string, position int, in model.SiteEntryInput) model.SiteEntry {
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = "planned"
	}
	return model.SiteEntry{
		ID:           uuid.NewString(),
		MMPFileID:    fileID,
		Position:     position,
		SiteCode:     strings.TrimSpace(in.SiteCode),
		SiteName:     strings.TrimSpace(in.SiteName),
		HubOffice:    strings.TrimSpace(in.HubOffice),
		State:        strings.TrimSpace(in.State),
		Locality:     strings.TrimSpace(in.Locality),
		CPName:       strings.TrimSpace(in.CPName),
		MainActivity: strings.TrimSpace(in.MainActivity),
		SiteActivity: strings.TrimSpace(in.SiteActivity),
		VisitType:    strings.TrimSpace(in.VisitType),
		VisitDate:    strings.TrimSpace(in.VisitDate),
		VisitedBy:    strings.TrimSpace(in.VisitedBy),
		InMoDa:       in.InMoDa,
		Status:       status,
		Comments:     strings.TrimSpace(in.Comments),
	}
}

// AddSites appends site entries to an editable file and keeps the declared entry count
// in step with the list.
func AddSites(f *model.MMPFile, inputs []model.SiteEntryInput, actor string, now time.Time) ([]model.SiteEntry, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := CheckEditable(f); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, ErrNoSites
	}
	for _, in := range inputs {
		if strings.TrimSpace(in.SiteCode) == "" && strings.TrimSpace(in.SiteName) == "" {
			return nil, ErrSiteIdentifier
		}
	}

	added := make([]model.SiteEntry, 0, len(inputs))
	next := len(f.SiteEntries)
	for i, in := range inputs {
		site := NewSiteEntry(f.ID, next+i, in)
		added = append(added, site)
	}
	f.SiteEntries = append(f.SiteEntries, added...)
	if f.Entries < len(f.SiteEntries) {
		f.Entries = len(f.SiteEntries)
	}
	Refresh(f, actor, now)
	return added, nil
}

// DecideSite records the CP verification decision for one site. A site may be re-decided.
func DecideSite(f *model.MMPFile, siteID string, decision model.Decision, notes, actor string, now time.Time) (model.SiteEntry, error) {
	if err := requireActor(actor); err != nil {
		return model.SiteEntry{}, err
	}
	if !decision.Decided() {
		return model.SiteEntry{}, ErrInvalidDecision
	}
	if err := CheckEditable(f); err != nil {
		return model.SiteEntry{}, err
	}

	site, err := findSite(f, siteID)
	if err != nil {
		return model.SiteEntry{}, err
	}
	site.VerificationStatus = decision
	site.VerificationNotes = strings.TrimSpace(notes)
	site.VerifiedBy = actor
	site.VerifiedAt = timePtr(now)

	Refresh(f, actor, now)
	return *site, nil
}

func FlagSite(f *model.MMPFile, siteID string, flagged bool, reason, actor string, now time.Time) (model.SiteEntry, error) {
	if err := requireActor(actor); err != nil {
		return model.SiteEntry{}, err
	}
	if err := CheckEditable(f); err != nil {
		return model.SiteEntry{}, err
	}
	reason = strings.TrimSpace(reason)
	if flagged && reason == "" {
		return model.SiteEntry{}, ErrFlagReason
	}

	site, err := findSite(f, siteID)
	if err != nil {
		return model.SiteEntry{}, err
	}
	if flagged {
		site.IsFlagged = true
		site.FlagReason = reason
		site.FlaggedBy = actor
		site.FlaggedAt = timePtr(now)
	} else {
		site.IsFlagged = false
		site.FlagReason = ""
		site.FlaggedBy = ""
		site.FlaggedAt = nil
	}
	return *site, nil
}

func findSite(f *model.MMPFile, siteID string) (*model.SiteEntry, error) {
	for i := range f.SiteEntries {
		if f.SiteEntries[i].ID == siteID {
			return &f.SiteEntries[i], nil
		}
	}
	return nil, model.ErrSiteNotFound
}

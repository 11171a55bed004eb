package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mmp-tracker/internal/model"
	"mmp-tracker/internal/util"
)

var (
	ErrPermitDecided   = fmt.Errorf("%w: permit already decided", ErrTransition)
	ErrInvalidDecision = fmt.Errorf("%w: decision must be verified or rejected", ErrValidation)
	ErrPermitType      = fmt.Errorf("%w: permit type must be federal or state", ErrValidation)
	ErrPermitFileName  = fmt.Errorf("%w: permit file name is required", ErrValidation)
	ErrRejectionNotes  = fmt.Errorf("%w: notes are required when rejecting", ErrValidation)
)

// ParseDecision accepts "verified" or "rejected" in any case.
func ParseDecision(raw string) (model.Decision, error) {
	d := model.Decision(strings.ToLower(strings.TrimSpace(raw)))
	if !d.Decided() {
		return model.DecisionNone, ErrInvalidDecision
	}
	return d, nil
}

// AddPermit attaches permit metadata to an editable file and returns the stored document.
func AddPermit(f *model.MMPFile, req model.PermitUploadRequest, actor string, now time.Time) (model.PermitDocument, error) {
	if err := requireActor(actor); err != nil {
		return model.PermitDocument{}, err
	}
	if err := CheckEditable(f); err != nil {
		return model.PermitDocument{}, err
	}
	fileName, err := util.CleanFileName(req.FileName)
	if err != nil {
		return model.PermitDocument{}, ErrPermitFileName
	}
	permitType := model.PermitType(strings.ToLower(strings.TrimSpace(req.PermitType)))
	if permitType != model.PermitTypeFederal && permitType != model.PermitTypeState {
		return model.PermitDocument{}, ErrPermitType
	}

	doc := model.PermitDocument{
		ID:          uuid.NewString(),
		FileName:    fileName,
		FileURL:     strings.TrimSpace(req.FileURL),
		PermitType:  permitType,
		State:       strings.TrimSpace(req.State),
		Description: strings.TrimSpace(req.Description),
		IssueDate:   strings.TrimSpace(req.IssueDate),
		ExpiryDate:  strings.TrimSpace(req.ExpiryDate),
		UploadedBy:  actor,
		UploadedAt:  now,
	}
	f.Permits.Documents = append(f.Permits.Documents, doc)
	syncPermitFlags(&f.Permits)
	Refresh(f, actor, now)
	return doc, nil
}

// DecidePermit records a verify or reject decision on an undecided permit.
func DecidePermit(f *model.MMPFile, permitID string, decision model.Decision, notes, actor string, now time.Time) (model.PermitDocument, error) {
	if err := requireActor(actor); err != nil {
		return model.PermitDocument{}, err
	}
	if !decision.Decided() {
		return model.PermitDocument{}, ErrInvalidDecision
	}
	notes = strings.TrimSpace(notes)
	if decision == model.DecisionRejected && notes == "" {
		return model.PermitDocument{}, ErrRejectionNotes
	}
	if f.Status == model.MMPStatusArchived || f.Status == model.MMPStatusDeleted {
		return model.PermitDocument{}, ErrNotEditable
	}

	for i := range f.Permits.Documents {
		doc := &f.Permits.Documents[i]
		if doc.ID != permitID {
			continue
		}
		if doc.Status.Decided() {
			return model.PermitDocument{}, ErrPermitDecided
		}

		doc.Status = decision
		doc.VerificationNotes = notes
		doc.VerifiedBy = actor
		doc.VerifiedAt = timePtr(now)

		f.Permits.LastVerified = timePtr(now)
		f.Permits.VerifiedBy = actor
		Refresh(f, actor, now)
		return *doc, nil
	}
	return model.PermitDocument{}, model.ErrPermitNotFound
}

// PermitProgress is the rounded share of decided permits.
func PermitProgress(p model.PermitsData) int {
	decided := 0
	for _, d := range p.Documents {
		if d.Status.Decided() {
			decided++
		}
	}
	return Percent(decided, len(p.Documents))
}

func syncPermitFlags(p *model.PermitsData) {
	p.Federal, p.State = false, false
	for _, d := range p.Documents {
		switch d.PermitType {
		case model.PermitTypeFederal:
			p.Federal = true
		case model.PermitTypeState:
			p.State = true
		}
	}
}

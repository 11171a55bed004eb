// Package workflow holds the MMP approval state machine, the comprehensive
// verification aggregator and the per-permit and per-site decision rules.
//
// Every function mutates the *model.MMPFile it is given and never performs I/O.
// Callers persist the result.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mmp-tracker/internal/model"
)

// Stage is derived from a file's status and approval workflow; it is never stored.
type Stage string

const (
	StageNeedsFirstApproval  Stage = "needs_first_approval"
	StageNeedsSecondApproval Stage = "needs_second_approval"
	StageApproved            Stage = "approved"
	StageRejected            Stage = "rejected"
	StageArchived            Stage = "archived"
	StageDeleted             Stage = "deleted"
)

var (
	// ErrTransition is wrapped by every error caused by the record's current state.
	ErrTransition = errors.New("invalid transition")
	// ErrValidation is wrapped by every error caused by bad caller input.
	ErrValidation = errors.New("validation failed")

	ErrNotPending            = fmt.Errorf("%w: mmp file is not pending", ErrTransition)
	ErrReviewRequired        = fmt.Errorf("%w: file review required before verification", ErrTransition)
	ErrAlreadyVerified       = fmt.Errorf("%w: file already verified", ErrTransition)
	ErrVerificationRequired  = fmt.Errorf("%w: verification required before first approval", ErrTransition)
	ErrFirstApprovalRequired = fmt.Errorf("%w: first approval required before final approval", ErrTransition)
	ErrAlreadyFirstApproved  = fmt.Errorf("%w: first approval already granted", ErrTransition)
	ErrAlreadyFinalApproved  = fmt.Errorf("%w: final approval already granted", ErrTransition)
	ErrLocked                = fmt.Errorf("%w: mmp file is locked for editing", ErrTransition)
	ErrNotEditable           = fmt.Errorf("%w: mmp file is archived or deleted", ErrTransition)
	ErrAlreadyArchived       = fmt.Errorf("%w: mmp file already archived", ErrTransition)
	ErrAlreadyDeleted        = fmt.Errorf("%w: mmp file already deleted", ErrTransition)
	ErrNotRestorable         = fmt.Errorf("%w: only archived or deleted files can be restored", ErrTransition)
	ErrResetNotAllowed       = fmt.Errorf("%w: archived or deleted files cannot be reset", ErrTransition)
	ErrReasonRequired        = fmt.Errorf("%w: rejection reason is required", ErrValidation)
	ErrActorRequired         = fmt.Errorf("%w: actor is required", ErrValidation)
)

func StageOf(f *model.MMPFile) Stage {
	switch f.Status {
	case model.MMPStatusApproved:
		return StageApproved
	case model.MMPStatusRejected:
		return StageRejected
	case model.MMPStatusArchived:
		return StageArchived
	case model.MMPStatusDeleted:
		return StageDeleted
	}

	if f.ApprovalWorkflow != nil && f.ApprovalWorkflow.FirstApproval != nil && f.ApprovalWorkflow.FinalApproval == nil {
		return StageNeedsSecondApproval
	}
	return StageNeedsFirstApproval
}

// IsLocked reports whether the file is fully approved. The lock applies to content
// edits made through this package; it is not a storage-level lock.
func IsLocked(f *model.MMPFile) bool {
	return f.Status == model.MMPStatusApproved
}

// CheckEditable returns nil when site entries, permits and metadata may be changed.
func CheckEditable(f *model.MMPFile) error {
	switch f.Status {
	case model.MMPStatusApproved:
		return ErrLocked
	case model.MMPStatusArchived, model.MMPStatusDeleted:
		return ErrNotEditable
	}
	return nil
}

// MarkReviewed records that the actor opened the file for review.
func MarkReviewed(f *model.MMPFile, actor string, now time.Time) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if f.Status != model.MMPStatusPending {
		return ErrNotPending
	}

	f.ReviewedBy = actor
	f.ReviewedAt = timePtr(now)
	return nil
}

func Verify(f *model.MMPFile, actor string, now time.Time) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if f.Status != model.MMPStatusPending {
		return ErrNotPending
	}
	if f.ReviewedAt == nil {
		return ErrReviewRequired
	}
	if f.VerifiedAt != nil {
		return ErrAlreadyVerified
	}

	f.VerifiedBy = actor
	f.VerifiedAt = timePtr(now)
	return nil
}

// Approve grants the first approval when none exists, otherwise the final approval.
func Approve(f *model.MMPFile, actor string, comments string, now time.Time) error {
	if f.ApprovalWorkflow == nil || f.ApprovalWorkflow.FirstApproval == nil {
		return FirstApprove(f, actor, comments, now)
	}
	return FinalApprove(f, actor, comments, now)
}

func FirstApprove(f *model.MMPFile, actor string, comments string, now time.Time) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if f.Status != model.MMPStatusPending {
		return ErrNotPending
	}
	if f.VerifiedAt == nil {
		return ErrVerificationRequired
	}
	if f.ApprovalWorkflow != nil && f.ApprovalWorkflow.FirstApproval != nil {
		return ErrAlreadyFirstApproved
	}

	if strings.TrimSpace(comments) == "" {
		comments = "First approval granted"
	}
	if f.ApprovalWorkflow == nil {
		f.ApprovalWorkflow = &model.ApprovalWorkflow{}
	}
	f.ApprovalWorkflow.FirstApproval = &model.ApprovalRecord{
		ApprovedBy: actor,
		ApprovedAt: now,
		Comments:   strings.TrimSpace(comments),
	}
	return nil
}

func FinalApprove(f *model.MMPFile, actor string, comments string, now time.Time) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if f.Status != model.MMPStatusPending {
		return ErrNotPending
	}
	if f.ApprovalWorkflow == nil || f.ApprovalWorkflow.FirstApproval == nil {
		return ErrFirstApprovalRequired
	}
	if f.ApprovalWorkflow.FinalApproval != nil {
		return ErrAlreadyFinalApproved
	}

	if strings.TrimSpace(comments) == "" {
		comments = "Final approval granted"
	}
	f.ApprovalWorkflow.FinalApproval = &model.ApprovalRecord{
		ApprovedBy: actor,
		ApprovedAt: now,
		Comments:   strings.TrimSpace(comments),
	}
	f.Status = model.MMPStatusApproved
	f.ApprovedBy = actor
	f.ApprovedAt = timePtr(now)
	return nil
}

// Reject is available from either pending stage.
func Reject(f *model.MMPFile, actor string, reason string, now time.Time) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if f.Status != model.MMPStatusPending {
		return ErrNotPending
	}

	f.Status = model.MMPStatusRejected
	f.RejectedBy = actor
	f.RejectionReason = reason
	f.RejectedAt = timePtr(now)
	return nil
}

// Reset returns the file and all of its sites to the pending, unreviewed state.
func Reset(f *model.MMPFile) error {
	if f.Status == model.MMPStatusArchived || f.Status == model.MMPStatusDeleted {
		return ErrResetNotAllowed
	}

	f.Status = model.MMPStatusPending
	f.ApprovalWorkflow = nil
	f.RejectedBy = ""
	f.RejectionReason = ""
	f.RejectedAt = nil
	f.ApprovedBy = ""
	f.ApprovedAt = nil
	f.VerifiedBy = ""
	f.VerifiedAt = nil
	f.ReviewedBy = ""
	f.ReviewedAt = nil

	for i := range f.SiteEntries {
		f.SiteEntries[i].VerificationStatus = model.DecisionNone
		f.SiteEntries[i].VerificationNotes = ""
		f.SiteEntries[i].VerifiedBy = ""
		f.SiteEntries[i].VerifiedAt = nil
	}

	if f.ComprehensiveVerification != nil && f.ComprehensiveVerification.ContentVerification != nil {
		f.ComprehensiveVerification.ContentVerification = &model.ContentVerification{Status: model.VerificationPending}
	}
	return nil
}

func Archive(f *model.MMPFile, actor string, now time.Time) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	switch f.Status {
	case model.MMPStatusArchived:
		return ErrAlreadyArchived
	case model.MMPStatusDeleted:
		return ErrAlreadyDeleted
	}

	f.Status = model.MMPStatusArchived
	f.ArchivedBy = actor
	f.ArchivedAt = timePtr(now)
	return nil
}

// SoftDelete flags the file as deleted; records are never removed from storage.
func SoftDelete(f *model.MMPFile, actor string, now time.Time) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if f.Status == model.MMPStatusDeleted {
		return ErrAlreadyDeleted
	}

	f.Status = model.MMPStatusDeleted
	f.DeletedBy = actor
	f.DeletedAt = timePtr(now)
	return nil
}

// Restore brings an archived or deleted file back as pending. Approval progress is
// discarded because the file re-enters review.
func Restore(f *model.MMPFile) error {
	if f.Status != model.MMPStatusArchived && f.Status != model.MMPStatusDeleted {
		return ErrNotRestorable
	}

	f.Status = model.MMPStatusPending
	f.ArchivedBy = ""
	f.ArchivedAt = nil
	f.DeletedBy = ""
	f.DeletedAt = nil
	return Reset(f)
}

// Actions lists the workflow actions currently available on the file.
func Actions(f *model.MMPFile) []string {
	actions := make([]string, 0, 6)

	switch StageOf(f) {
	case StageNeedsFirstApproval:
		if f.ReviewedAt == nil {
			actions = append(actions, "review")
		} else if f.VerifiedAt == nil {
			actions = append(actions, "verify")
		} else {
			actions = append(actions, "approve")
		}
		actions = append(actions, "reject")
	case StageNeedsSecondApproval:
		actions = append(actions, "approve", "reject")
	case StageApproved, StageRejected:
		actions = append(actions, "reset")
	case StageArchived, StageDeleted:
		return append(actions, "restore")
	}

	if f.Status != model.MMPStatusArchived {
		actions = append(actions, "archive")
	}
	return append(actions, "delete")
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return ErrActorRequired
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

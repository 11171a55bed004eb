package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/model"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		statuses [4]model.VerificationStatus
		overall  model.VerificationStatus
		proceed  bool
	}{
		{"all pending", [4]model.VerificationStatus{"pending", "pending", "pending", "pending"}, model.VerificationInProgress, false},
		{"mixed", [4]model.VerificationStatus{"complete", "pending", "in-progress", "pending"}, model.VerificationInProgress, false},
		{"three complete", [4]model.VerificationStatus{"complete", "complete", "complete", "in-progress"}, model.VerificationInProgress, false},
		{"all complete", [4]model.VerificationStatus{"complete", "complete", "complete", "complete"}, model.VerificationComplete, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := NewComprehensiveVerification()
			cv.SystemValidation.Status = tt.statuses[0]
			cv.ContentVerification.Status = tt.statuses[1]
			cv.CPVerification.Status = tt.statuses[2]
			cv.PermitVerification.Status = tt.statuses[3]

			Aggregate(cv)
			assert.Equal(t, tt.overall, cv.OverallStatus)
			assert.Equal(t, tt.proceed, cv.CanProceedToApproval)
		})
	}

	t.Run("missing sub-record is not complete", func(t *testing.T) {
		cv := &model.ComprehensiveVerification{}
		Aggregate(cv)
		assert.Equal(t, model.VerificationInProgress, cv.OverallStatus)
		assert.False(t, cv.CanProceedToApproval)
	})
}

func TestDecisionStatusAndPercent(t *testing.T) {
	assert.Equal(t, model.VerificationPending, DecisionStatus(0, 0))
	assert.Equal(t, model.VerificationPending, DecisionStatus(0, 3))
	assert.Equal(t, model.VerificationInProgress, DecisionStatus(1, 3))
	assert.Equal(t, model.VerificationComplete, DecisionStatus(3, 3))

	assert.Equal(t, 0, Percent(0, 0))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 100, Percent(4, 4))
}

func TestCheckSystem(t *testing.T) {
	f := pendingFile()
	sv := CheckSystem(f)
	assert.Equal(t, model.VerificationComplete, sv.Status)

	f.ProcessedEntries = 1
	f.SiteEntries = append(f.SiteEntries, model.SiteEntry{ID: "s-3", SiteCode: "krt-001"})
	sv = CheckSystem(f)
	assert.False(t, sv.NoDuplicates)
	assert.False(t, sv.EntryProcessingComplete)
	assert.Equal(t, model.VerificationInProgress, sv.Status)

	t.Run("declared entries beyond the site list", func(t *testing.T) {
		f := pendingFile()
		f.Entries = 5
		f.ProcessedEntries = 2
		assert.False(t, CheckSystem(f).EntryProcessingComplete)

		f.ProcessedEntries = 5
		assert.True(t, CheckSystem(f).EntryProcessingComplete)
	})

	t.Run("no declared entries", func(t *testing.T) {
		f := pendingFile()
		f.Entries, f.ProcessedEntries = 0, 0
		assert.False(t, CheckSystem(f).EntryProcessingComplete)
	})
}

func TestFullVerificationUnlocksApproval(t *testing.T) {
	f := pendingFile()
	require.NoError(t, MarkReviewed(f, "alice", testNow))

	_, err := AddPermit(f, model.PermitUploadRequest{FileName: "federal.pdf", PermitType: "federal"}, "alice", testNow)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationPending, f.ComprehensiveVerification.PermitVerification.Status)

	require.NoError(t, CompleteContentVerification(f, "alice", "content ok", testNow))
	assert.Equal(t, model.VerificationInProgress, f.ComprehensiveVerification.OverallStatus)

	for _, id := range []string{"s-1", "s-2"} {
		_, err := DecideSite(f, id, model.DecisionVerified, "", "bob", testNow)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, f.ComprehensiveVerification.CPVerification.CompletionPercentage)

	_, err = DecidePermit(f, f.Permits.Documents[0].ID, model.DecisionVerified, "", "bob", testNow)
	require.NoError(t, err)

	cv := f.ComprehensiveVerification
	assert.Equal(t, model.VerificationComplete, cv.OverallStatus)
	assert.True(t, cv.CanProceedToApproval)
	assert.Equal(t, "bob", cv.UpdatedBy)
}

func TestContentVerificationRequiresReview(t *testing.T) {
	f := pendingFile()
	assert.ErrorIs(t, CompleteContentVerification(f, "alice", "", testNow), ErrContentReviewRequired)
}

func TestCPVerificationCanRegress(t *testing.T) {
	f := pendingFile()
	for _, id := range []string{"s-1", "s-2"} {
		_, err := DecideSite(f, id, model.DecisionVerified, "", "bob", testNow)
		require.NoError(t, err)
	}
	assert.Equal(t, model.VerificationComplete, f.ComprehensiveVerification.CPVerification.Status)

	_, err := AddSites(f, []model.SiteEntryInput{{SiteCode: "KRT-003"}}, "alice", testNow)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationInProgress, f.ComprehensiveVerification.CPVerification.Status)
	assert.Equal(t, 3, f.Entries)
}

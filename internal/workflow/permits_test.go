package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmp-tracker/internal/model"
)

func TestAddPermit(t *testing.T) {
	t.Run("derives federal and state flags", func(t *testing.T) {
		f := pendingFile()
		_, err := AddPermit(f, model.PermitUploadRequest{FileName: "state.pdf", PermitType: "State", State: "Khartoum"}, "alice", testNow)
		require.NoError(t, err)

		assert.True(t, f.Permits.State)
		assert.False(t, f.Permits.Federal)
		require.Len(t, f.Permits.Documents, 1)
		assert.Equal(t, model.PermitTypeState, f.Permits.Documents[0].PermitType)
		assert.NotEmpty(t, f.Permits.Documents[0].ID)
	})

	t.Run("rejects unknown permit type", func(t *testing.T) {
		f := pendingFile()
		_, err := AddPermit(f, model.PermitUploadRequest{FileName: "x.pdf", PermitType: "county"}, "alice", testNow)
		assert.ErrorIs(t, err, ErrPermitType)
	})

	t.Run("refused on locked file", func(t *testing.T) {
		f := verifiedFile(t)
		require.NoError(t, Approve(f, "a", "", testNow))
		require.NoError(t, Approve(f, "b", "", testNow))

		_, err := AddPermit(f, model.PermitUploadRequest{FileName: "late.pdf", PermitType: "federal"}, "alice", testNow)
		assert.ErrorIs(t, err, ErrLocked)
		assert.Empty(t, f.Permits.Documents)
	})
}

func TestDecidePermit(t *testing.T) {
	f := pendingFile()
	doc, err := AddPermit(f, model.PermitUploadRequest{FileName: "federal.pdf", PermitType: "federal"}, "alice", testNow)
	require.NoError(t, err)
	_, err = AddPermit(f, model.PermitUploadRequest{FileName: "state.pdf", PermitType: "state"}, "alice", testNow)
	require.NoError(t, err)
	assert.Equal(t, 0, PermitProgress(f.Permits))

	t.Run("rejection needs notes", func(t *testing.T) {
		_, err := DecidePermit(f, doc.ID, model.DecisionRejected, "", "bob", testNow)
		assert.ErrorIs(t, err, ErrRejectionNotes)
	})

	t.Run("records decision and progress", func(t *testing.T) {
		decided, err := DecidePermit(f, doc.ID, model.DecisionVerified, "stamped", "bob", testNow)
		require.NoError(t, err)
		assert.Equal(t, model.DecisionVerified, decided.Status)
		assert.Equal(t, "bob", f.Permits.VerifiedBy)
		assert.Equal(t, 50, PermitProgress(f.Permits))
		assert.Equal(t, model.VerificationInProgress, f.ComprehensiveVerification.PermitVerification.Status)
	})

	t.Run("re-deciding is a conflict", func(t *testing.T) {
		_, err := DecidePermit(f, doc.ID, model.DecisionRejected, "changed mind", "bob", testNow)
		assert.ErrorIs(t, err, ErrPermitDecided)
	})

	t.Run("unknown permit", func(t *testing.T) {
		_, err := DecidePermit(f, "missing", model.DecisionVerified, "", "bob", testNow)
		assert.ErrorIs(t, err, model.ErrPermitNotFound)
	})
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(" Verified ")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionVerified, d)

	_, err = ParseDecision("maybe")
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

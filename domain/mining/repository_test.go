package mining

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/domain/contact"
)

func TestMergeEmails(t *testing.T) {
	t.Run("union preserves order", func(t *testing.T) {
		got := mergeEmails([]string{"a@x.io", "b@x.io"}, []string{"c@x.io"})
		assert.Equal(t, []string{"a@x.io", "b@x.io", "c@x.io"}, got)
	})

	t.Run("case and whitespace folded", func(t *testing.T) {
		got := mergeEmails([]string{"a@x.io"}, []string{" A@X.IO ", "b@x.io"})
		assert.Equal(t, []string{"a@x.io", "b@x.io"}, got)
	})

	t.Run("blanks dropped", func(t *testing.T) {
		got := mergeEmails(nil, []string{"", "  ", "a@x.io"})
		assert.Equal(t, []string{"a@x.io"}, got)
	})
}

func TestClampProfileConfidence(t *testing.T) {
	assert.Equal(t, contact.ProfileOnlyCap, clampProfileConfidence(90))
	assert.Equal(t, 10, clampProfileConfidence(10))
	assert.Equal(t, 0, clampProfileConfidence(-5))
}

func TestResultRowFromContact(t *testing.T) {
	jobID, tenantID := uuid.New(), uuid.New()
	c := contact.UnifiedContact{
		CompanyName: "Acme",
		ContactName: "Anna Larsen",
		SourceURL:   "https://acme.io/team",
		Source:      "httpBasic",
		EmailType:   "personal",
		Confidence:  130,
	}

	row := resultRowFromContact(jobID, tenantID, c)
	require.NotNil(t, row)

	assert.Equal(t, jobID, row.JobID)
	assert.Equal(t, tenantID, row.TenantID)
	assert.Equal(t, "Acme", row.CompanyName)
	assert.Equal(t, ResultStatusNew, row.Status)
	assert.Equal(t, contact.MaxConfidence, row.Confidence, "confidence clamped to cap")
	assert.Equal(t, "httpBasic", row.Raw["source"])
	assert.Equal(t, "personal", row.Raw["email_type"])

	row = resultRowFromContact(jobID, tenantID, contact.UnifiedContact{Confidence: -1})
	assert.Equal(t, 0, row.Confidence)
}

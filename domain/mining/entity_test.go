package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiningJobIsTerminal(t *testing.T) {
	for status, terminal := range map[string]bool{
		StatusPending:   false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
	} {
		job := &MiningJob{Status: status}
		assert.Equal(t, terminal, job.IsTerminal(), "status %q", status)
	}
}

func TestMiningJobMode(t *testing.T) {
	job := &MiningJob{}
	assert.Equal(t, "full", job.Mode())

	job.Config.MiningMode = "free"
	assert.Equal(t, "free", job.Mode())
}

func TestPrimaryEmail(t *testing.T) {
	t.Run("first address wins", func(t *testing.T) {
		r := &MiningResult{Emails: []string{"anna@acme.io", "bob@acme.io"}}
		assert.Equal(t, "anna@acme.io", r.PrimaryEmail())
	})

	t.Run("skips entries without at sign", func(t *testing.T) {
		r := &MiningResult{Emails: []string{"linkedin.com/in/anna", "anna@acme.io"}}
		assert.Equal(t, "anna@acme.io", r.PrimaryEmail())
	})

	t.Run("empty when nothing qualifies", func(t *testing.T) {
		r := &MiningResult{Emails: []string{"not-an-email"}}
		assert.Empty(t, r.PrimaryEmail())

		assert.Empty(t, (&MiningResult{}).PrimaryEmail())
	})
}

func TestPatchResultRequestEmpty(t *testing.T) {
	assert.True(t, (&PatchResultRequest{}).Empty())

	name := "Acme"
	assert.False(t, (&PatchResultRequest{CompanyName: &name}).Empty())

	blank := ""
	assert.False(t, (&PatchResultRequest{Phone: &blank}).Empty(), "explicit empty string is still a patch")
}

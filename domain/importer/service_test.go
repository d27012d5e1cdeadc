package importer

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prospectlab/prospector/domain/mining"
)

func row(emails ...string) *mining.MiningResult {
	return &mining.MiningResult{ID: uuid.New(), Emails: emails}
}

func TestPlanBatch(t *testing.T) {
	t.Run("partitions by email presence and uniqueness", func(t *testing.T) {
		first := row("anna@acme.de")
		dup := row("ANNA@acme.de")
		other := row("bert@acme.de")
		empty := row()
		junk := row("not-an-email")

		plan := planBatch([]*mining.MiningResult{first, dup, other, empty, junk})

		require.Len(t, plan.keep, 2)
		require.Len(t, plan.duplicates, 1)
		require.Len(t, plan.noEmail, 2)

		assert.Equal(t, dup.ID, plan.duplicates[0].ID)
	})

	t.Run("first occurrence in id order wins", func(t *testing.T) {
		a := row("x@y.com")
		b := row("x@y.com")
		plan := planBatch([]*mining.MiningResult{a, b})

		require.Len(t, plan.keep, 1)
		assert.Equal(t, a.ID, plan.keep[0].ID)
	})

	t.Run("keep is sorted by email for lock ordering", func(t *testing.T) {
		plan := planBatch([]*mining.MiningResult{
			row("zoe@x.com"),
			row("Adam@x.com"),
			row("mia@x.com"),
		})

		require.Len(t, plan.keep, 3)
		assert.Equal(t, "Adam@x.com", plan.keep[0].PrimaryEmail())
		assert.Equal(t, "mia@x.com", plan.keep[1].PrimaryEmail())
		assert.Equal(t, "zoe@x.com", plan.keep[2].PrimaryEmail())
	})

	t.Run("accounting covers every row", func(t *testing.T) {
		rows := []*mining.MiningResult{
			row("a@x.com"), row("a@x.com"), row("b@x.com"), row(), row("c@x.com"),
		}
		plan := planBatch(rows)
		assert.Equal(t, len(rows), len(plan.keep)+len(plan.duplicates)+len(plan.noEmail))
	})

	t.Run("empty batch", func(t *testing.T) {
		plan := planBatch(nil)
		assert.Empty(t, plan.keep)
		assert.Empty(t, plan.duplicates)
		assert.Empty(t, plan.noEmail)
	})
}

func TestPendingTotal(t *testing.T) {
	t.Run("first run walks every row", func(t *testing.T) {
		total := pendingTotal(&mining.ImportPreview{
			TotalResults: 10, WithEmail: 7, Importable: 7, WithoutEmail: 3,
		})
		assert.Equal(t, 10, total)
	})

	t.Run("re-run only counts rows left over", func(t *testing.T) {
		// After a completed run every processed row is imported, the
		// email-less ones included; only rows added since remain.
		total := pendingTotal(&mining.ImportPreview{
			TotalResults: 12, WithEmail: 9, Importable: 2,
			AlreadyImported: 10, WithoutEmail: 3,
		})
		assert.Equal(t, 2, total)
	})

	t.Run("fully imported job has nothing pending", func(t *testing.T) {
		total := pendingTotal(&mining.ImportPreview{
			TotalResults: 5, WithEmail: 5, AlreadyImported: 5,
		})
		assert.Zero(t, total)
	})
}

func TestRowContact(t *testing.T) {
	r := &mining.MiningResult{
		Emails:      []string{"anna@acme.de", "extra@acme.de"},
		ContactName: "Anna Schmidt",
		CompanyName: "Acme GmbH",
		JobTitle:    "CTO",
		Website:     "https://acme.de",
		Country:     "DE",
		Confidence:  80,
	}
	c := rowContact(r)

	assert.Equal(t, "anna@acme.de", c.Email)
	assert.Equal(t, "Anna Schmidt", c.ContactName)
	assert.Equal(t, "Acme GmbH", c.CompanyName)
	assert.Equal(t, 80, c.Confidence)
}

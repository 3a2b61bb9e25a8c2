package points

import (
	"context"
	"testing"

	"reputation-bot/config"
	"reputation-bot/models"
	"reputation-bot/platform/platformtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseBadge covers empty, placeholder, numeric and free-text badges.
func TestParseBadge(t *testing.T) {
	cases := []struct {
		text  string
		score int64
		ok    bool
	}{
		{"", 0, true},
		{"-", 0, true},
		{"0", 0, true},
		{"42", 42, true},
		{"007", 7, true},
		{"Helpful", 0, false},
		{"12 points", 0, false},
		{"-5", 0, false},
		{" 3", 0, false},
		{"99999999999999999999999", 0, false},
	}
	for _, tc := range cases {
		score, ok := ParseBadge(tc.text)
		assert.Equal(t, tc.ok, ok, "text %q", tc.text)
		assert.Equal(t, tc.score, score, "text %q", tc.text)
	}
}

// TestReconcile covers both precedence policies.
func TestReconcile(t *testing.T) {
	cases := []struct {
		name        string
		store       int64
		badge       string
		preferBadge bool
		want        ScoreResult
	}{
		{"store higher", 10, "4", false, ScoreResult{Score: 10}},
		{"badge higher", 4, "10", false, ScoreResult{Score: 10}},
		{"prefer badge even when lower", 10, "4", true, ScoreResult{Score: 4}},
		{"empty badge", 3, "", false, ScoreResult{Score: 3}},
		{"dash badge preferred", 3, "-", true, ScoreResult{Score: 0}},
		{"ambiguous badge", 3, "Expert", false, ScoreResult{Score: 3, BadgeAmbiguous: true}},
		{"ambiguous badge ignores preference", 3, "Expert", true, ScoreResult{Score: 3, BadgeAmbiguous: true}},
		{"nothing anywhere", 0, "", false, ScoreResult{Score: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Reconcile(tc.store, tc.badge, tc.preferBadge))
		})
	}
}

// TestReconciler_ResolveIdempotent verifies repeated resolves agree without writes in between.
func TestReconciler_ResolveIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := platformtest.NewRankedStore()
	identity := platformtest.NewIdentity("reputation-bot", "testers")
	identity.Badges["alice"] = "Expert"
	require.NoError(t, ledger.Upsert(ctx, models.PointsStoreKey, models.ScoreEntry{User: "alice", Score: 7}))

	r := &Reconciler{Ledger: ledger, Identity: identity}
	settings := config.DefaultSettings()

	first, err := r.Resolve(ctx, settings, "testers", "alice")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, settings, "testers", "alice")
	require.NoError(t, err)

	assert.Equal(t, ScoreResult{Score: 7, BadgeAmbiguous: true}, first)
	assert.Equal(t, first, second)
}

// TestReconciler_LedgerErrorPropagates verifies a failed ledger read is not treated as zero.
func TestReconciler_LedgerErrorPropagates(t *testing.T) {
	ledger := platformtest.NewRankedStore()
	ledger.Err = assert.AnError
	r := &Reconciler{Ledger: ledger, Identity: platformtest.NewIdentity("reputation-bot", "testers")}

	_, err := r.Resolve(context.Background(), config.DefaultSettings(), "testers", "alice")
	assert.ErrorIs(t, err, assert.AnError)
}

// TestRenderTemplate verifies every placeholder and name escaping.
func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("{{authorname}} gave {{awardeeusername}} a point ({{score}}/{{threshold}}) {{permalink}} {{pointscommand}}", TemplateFields{
		AuthorName:      "bob_smith",
		AwardeeUsername: "*alice*",
		Permalink:       "https://example.test/c1",
		Score:           3,
		Threshold:       10,
		PointsCommand:   "!modthanks",
	})
	assert.Equal(t, `bob\_smith gave \*alice\* a point (3/10) https://example.test/c1 !modthanks`, out)
}

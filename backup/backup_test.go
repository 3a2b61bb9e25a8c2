package backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"reputation-bot/config"
	"reputation-bot/maintenance"
	"reputation-bot/metrics"
	"reputation-bot/models"
	"reputation-bot/platform/platformtest"

	"github.com/klauspost/compress/zlib"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compress(t *testing.T, raw string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

type fixture struct {
	svc      *Service
	clock    *platformtest.Clock
	ledger   *platformtest.RankedStore
	docs     *platformtest.DocumentStore
	kv       *platformtest.KeyValueStore
	jobs     *platformtest.Scheduler
	settings *config.Settings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := platformtest.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	f := &fixture{
		clock:    clock,
		ledger:   platformtest.NewRankedStore(),
		docs:     platformtest.NewDocumentStore(clock),
		kv:       platformtest.NewKeyValueStore(clock),
		jobs:     platformtest.NewScheduler(clock),
		settings: config.DefaultSettings(),
	}
	checks := maintenance.New(f.ledger, f.kv, platformtest.NewIdentity("reputation-bot", "testers"), f.jobs, nil)
	checks.Now = clock.Now
	checks.Jitter = func() time.Duration { return time.Hour }

	f.svc = NewService(f.ledger, f.docs, f.kv, f.jobs, checks)
	f.svc.Now = clock.Now
	f.settings.EnableBackup = true
	f.settings.EnableRestore = true
	return f
}

// TestRoundTrip verifies a serialized ledger decodes to the same entries.
func TestRoundTrip(t *testing.T) {
	entries := []models.ScoreEntry{
		{User: "fsv", Score: 142},
		{User: "pflurklurk", Score: 9999},
		{User: "zero", Score: 0},
		{User: "ünïcode_name", Score: 7},
	}
	blob, err := Serialize(entries)
	require.NoError(t, err)

	decoded, err := Deserialize(blob)
	require.NoError(t, err)
	assert.Equal(t, entries, decoded)

	blob, err = Serialize(nil)
	require.NoError(t, err)
	decoded, err = Deserialize(blob)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

// TestDeserialize_ReadsCompactForm verifies the wire format is base64 zlib JSON of {u, s} objects.
func TestDeserialize_ReadsCompactForm(t *testing.T) {
	decoded, err := Deserialize(compress(t, `[{"u":"fsv","s":142},{"u":"pflurklurk","s":9999}]`))
	require.NoError(t, err)
	assert.Equal(t, []models.ScoreEntry{{User: "fsv", Score: 142}, {User: "pflurklurk", Score: 9999}}, decoded)
}

// TestDeserialize_RejectsMalformed verifies malformed blobs fail as a whole.
func TestDeserialize_RejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not base64":      "!!!not base64!!!",
		"not compressed":  base64.StdEncoding.EncodeToString([]byte(`[{"u":"a","s":1}]`)),
		"not json":        compress(t, `scores`),
		"object":          compress(t, `{"u":"a","s":1}`),
		"null":            compress(t, `null`),
		"extra field":     compress(t, `[{"u":"a","s":1,"x":true}]`),
		"missing score":   compress(t, `[{"u":"a"}]`),
		"missing user":    compress(t, `[{"s":1}]`),
		"null score":      compress(t, `[{"u":"a","s":null}]`),
		"fractional":      compress(t, `[{"u":"a","s":1.5}]`),
		"numeric user":    compress(t, `[{"u":5,"s":1}]`),
		"null entry":      compress(t, `[{"u":"a","s":1},null]`),
		"trailing values": compress(t, `[{"u":"a","s":1}][]`),
	}
	for name, blob := range cases {
		t.Run(name, func(t *testing.T) {
			decoded, err := Deserialize(blob)
			assert.ErrorIs(t, err, ErrInvalidBackup)
			assert.Nil(t, decoded)
		})
	}
}

// TestMerge_Policies verifies skip never changes an existing score and overwrite only raises one.
func TestMerge_Policies(t *testing.T) {
	existing := []models.ScoreEntry{{User: "alice", Score: 10}, {User: "bob", Score: 50}}
	backup := []models.ScoreEntry{
		{User: "alice", Score: 20},
		{User: "bob", Score: 5},
		{User: "carol", Score: 3},
		{User: "", Score: 4},
		{User: "dave", Score: 0},
		{User: "erin", Score: -2},
	}

	assert.Equal(t, []models.ScoreEntry{{User: "carol", Score: 3}}, Merge(existing, backup, models.RestoreSkip))
	assert.Equal(t, []models.ScoreEntry{{User: "alice", Score: 20}, {User: "carol", Score: 3}}, Merge(existing, backup, models.RestoreOverwrite))
}

// TestMerge_DuplicateUsers verifies a user repeated in a backup is imported once with its highest score.
func TestMerge_DuplicateUsers(t *testing.T) {
	backup := []models.ScoreEntry{{User: "carol", Score: 3}, {User: "carol", Score: 8}, {User: "carol", Score: 2}}
	assert.Equal(t, []models.ScoreEntry{{User: "carol", Score: 8}}, Merge(nil, backup, models.RestoreSkip))
}

// TestRestore_IntoEmptyLedger restores two users with overwrite into an empty ledger.
func TestRestore_IntoEmptyLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.docs.Write(ctx, Document, compress(t, `[{"u":"fsv","s":142},{"u":"pflurklurk","s":9999}]`), "seed"))
	require.NoError(t, f.kv.Set(ctx, models.InstallDateKey, strconv.FormatInt(f.clock.Now().UnixMilli(), 10), 0))

	restored := metrics.AwardsTotal.WithLabelValues("restore")
	before := testutil.ToFloat64(restored)

	imported, err := f.svc.Restore(ctx, f.settings, models.RestoreOverwrite)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, before+2, testutil.ToFloat64(restored))

	assert.ElementsMatch(t, []models.ScoreEntry{{User: "fsv", Score: 142}, {User: "pflurklurk", Score: 9999}}, f.ledger.All(models.PointsStoreKey))

	queue := f.ledger.All(models.CleanupStoreKey)
	require.Len(t, queue, 2)
	for _, e := range queue {
		assert.Equal(t, f.clock.Now().Add(time.Hour).UnixMilli(), e.Score)
	}

	refresh := f.jobs.Named(models.JobUpdateLeaderboard)
	require.Len(t, refresh, 1)
	assert.Equal(t, "Imported data from backup", refresh[0].Data["reason"])
	assert.Len(t, f.jobs.Named(models.JobAdhocCleanup), 1)

	_, ok, err := f.kv.Get(ctx, models.InstallDateKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestBackupThenRestore verifies a backup of the ledger restores into another ledger.
func TestBackupThenRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ledger.Upsert(ctx, models.PointsStoreKey,
		models.ScoreEntry{User: "alice", Score: 3},
		models.ScoreEntry{User: "bob", Score: 11},
	))

	saved, err := f.svc.Backup(ctx, f.settings)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	doc, err := f.docs.Read(ctx, Document)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityModsOnly, doc.Visibility)

	require.NoError(t, f.ledger.Delete(ctx, models.PointsStoreKey, "alice"))
	require.NoError(t, f.ledger.Upsert(ctx, models.PointsStoreKey, models.ScoreEntry{User: "bob", Score: 20}))

	imported, err := f.svc.Restore(ctx, f.settings, models.RestoreOverwrite)
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.ElementsMatch(t, []models.ScoreEntry{{User: "alice", Score: 3}, {User: "bob", Score: 20}}, f.ledger.All(models.PointsStoreKey))
}

// TestRestore_Failures verifies operator-facing failures leave the ledger untouched.
func TestRestore_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("restore disabled", func(t *testing.T) {
		f := newFixture(t)
		f.settings.EnableRestore = false
		_, err := f.svc.Restore(ctx, f.settings, models.RestoreOverwrite)
		assert.ErrorIs(t, err, ErrRestoreDisabled)
	})

	t.Run("backup disabled", func(t *testing.T) {
		f := newFixture(t)
		f.settings.EnableBackup = false
		_, err := f.svc.Backup(ctx, f.settings)
		assert.ErrorIs(t, err, ErrBackupDisabled)
		assert.Equal(t, 0, f.docs.Writes)
	})

	t.Run("no backup", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Restore(ctx, f.settings, models.RestoreOverwrite)
		assert.ErrorIs(t, err, ErrNothingToRestore)
	})

	t.Run("invalid backup", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.docs.Write(ctx, Document, compress(t, `[{"u":"a","s":"1"}]`), "seed"))
		_, err := f.svc.Restore(ctx, f.settings, models.RestoreOverwrite)
		assert.ErrorIs(t, err, ErrInvalidBackup)
		assert.Empty(t, f.ledger.All(models.PointsStoreKey))
		assert.Empty(t, f.jobs.Named(models.JobUpdateLeaderboard))
	})

	t.Run("nothing imported", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.ledger.Upsert(ctx, models.PointsStoreKey, models.ScoreEntry{User: "a", Score: 5}))
		require.NoError(t, f.docs.Write(ctx, Document, compress(t, `[{"u":"a","s":9}]`), "seed"))
		_, err := f.svc.Restore(ctx, f.settings, models.RestoreSkip)
		assert.ErrorIs(t, err, ErrNothingImported)

		score, _, err := f.ledger.Get(ctx, models.PointsStoreKey, "a")
		require.NoError(t, err)
		assert.Equal(t, int64(5), score)
	})
}

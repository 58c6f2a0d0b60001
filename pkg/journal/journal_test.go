package journal

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopJournalAcceptsEverything(t *testing.T) {
	ctx := context.Background()
	j := NopJournal{}

	id, err := j.Begin(ctx, "topo", "compile")
	require.NoError(t, err)
	assert.NoError(t, j.UpdateState(ctx, id, "snapshotted"))
	assert.NoError(t, j.Finish(ctx, id, errors.New("boom")))

	runs, err := j.ListRuns(ctx, "topo")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// TestPGJournalRoundTrip needs a live database; set MHBENCH_TEST_DATABASE_URL
// to run it.
func TestPGJournalRoundTrip(t *testing.T) {
	url := os.Getenv("MHBENCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MHBENCH_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	j, err := NewPGJournal(ctx, url)
	require.NoError(t, err)
	defer j.Close()

	runID, err := j.Begin(ctx, "journal-test", "compile")
	require.NoError(t, err)

	require.NoError(t, j.UpdateState(ctx, runID, "hosts_provisioned"))
	require.NoError(t, j.Finish(ctx, runID, nil))

	run, err := j.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "journal-test", run.Topology)
	assert.Equal(t, "compile", run.Operation)
	assert.Equal(t, "hosts_provisioned", run.State)
	assert.Empty(t, run.Error)
	assert.NotNil(t, run.FinishedAt)

	runs, err := j.ListRuns(ctx, "journal-test")
	require.NoError(t, err)
	assert.NotEmpty(t, runs)

	_, err = j.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

package playbook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsinger98/MHBench/pkg/playbook"
	"github.com/bsinger98/MHBench/pkg/playbook/playbooktest"
)

func TestPlaybookParams(t *testing.T) {
	pb := playbook.New("common/createUser/createUser.yml", "192.168.200.10").
		WithParam("user", "alice").
		WithParams(map[string]string{"password": "pw", "group": "alice"})

	assert.Equal(t, "192.168.200.10", pb.Params["host"])
	assert.Equal(t, "alice", pb.Params["user"])
	assert.Equal(t, "pw", pb.Params["password"])
}

func TestRunBatchRunsEverything(t *testing.T) {
	fake := playbooktest.NewFake()

	var playbooks []*playbook.Playbook
	for i := 0; i < 23; i++ {
		playbooks = append(playbooks, playbook.New("vulnerabilities/NetcatShell.yml", "10.0.0.1"))
	}

	require.NoError(t, playbook.RunBatch(context.Background(), fake, playbooks))
	assert.Len(t, fake.Runs(), 23)
}

func TestRunBatchAbortsOnFailure(t *testing.T) {
	fake := playbooktest.NewFake()
	boom := errors.New("unreachable")
	fake.FailOn["goals/data/addData.yml"] = boom

	playbooks := []*playbook.Playbook{
		playbook.New("common/createUser/createUser.yml", "10.0.0.1"),
		playbook.New("goals/data/addData.yml", "10.0.0.2"),
		playbook.New("common/createUser/createUser.yml", "10.0.0.3"),
	}

	err := playbook.RunBatch(context.Background(), fake, playbooks)
	assert.ErrorIs(t, err, boom)
	// The failing run's siblings in the same group still joined.
	assert.Len(t, fake.Runs(), 3)
}

package advisorclient_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchcore/fleetengine/internal/adapters/advisorclient"
)

func TestStubClient_ApprovesArrowLinesUpToFraction(t *testing.T) {
	client := &advisorclient.StubClient{ApproveFraction: 0.5}
	user := "candidates:\nveh-1 -> load-1\nveh-2 -> load-2\nveh-3 -> load-3\nveh-4 -> load-4\n"

	text, err := client.Complete(context.Background(), "system", user)
	require.NoError(t, err)

	approvedLines := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "->") {
			approvedLines++
		}
	}
	assert.Equal(t, 2, approvedLines)
}

func TestStubClient_DefaultFractionApprovesExactlyOne(t *testing.T) {
	client := &advisorclient.StubClient{}
	user := "veh-1 -> load-1\nveh-2 -> load-2\n"

	text, err := client.Complete(context.Background(), "system", user)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(text, "->"))
}

func TestStubClient_DecisionMenuReturnsContinue(t *testing.T) {
	client := &advisorclient.StubClient{}
	user := "Choose exactly one action: CONTINUE, ADJUST_ROUTE, FOLLOW_UP_LOAD."

	text, err := client.Complete(context.Background(), "system", user)
	require.NoError(t, err)
	assert.Contains(t, text, "DECISION: CONTINUE")
}

func TestStubClient_UnstructuredPromptReturnsPlaceholderText(t *testing.T) {
	client := &advisorclient.StubClient{}
	text, err := client.Complete(context.Background(), "my-system", "nothing structured here")
	require.NoError(t, err)
	assert.Contains(t, text, "my-system")
}

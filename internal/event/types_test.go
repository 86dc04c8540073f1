package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EncodesPayload(t *testing.T) {
	evt, err := New("goal_1", TypeGoalAdded, 1, map[string]string{"objective": "ship it"})
	require.NoError(t, err)

	assert.Equal(t, "goal_1", evt.StreamID)
	assert.Equal(t, TypeGoalAdded, evt.Type)
	assert.Equal(t, int64(1), evt.Version)
	assert.True(t, evt.Timestamp.IsZero())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(evt.Payload, &decoded))
	assert.Equal(t, "ship it", decoded["objective"])
}

func TestNew_UnencodablePayload(t *testing.T) {
	_, err := New("goal_1", TypeGoalAdded, 1, make(chan int))
	assert.Error(t, err)
}

func TestType_Domain(t *testing.T) {
	assert.Equal(t, "goal", TypeGoalAdded.Domain())
	assert.Equal(t, "goal", TypeGoalUpdated.Domain())
	assert.Equal(t, "plain", Type("plain").Domain())
}

func TestEvent_String(t *testing.T) {
	evt := Event{StreamID: "goal_1", Type: TypeGoalUpdated, Version: 3}
	assert.Equal(t, "goal_1@3(goal.updated)", evt.String())
}

package eventsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/ratiba/core"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	assert.NoError(t, rec.Publish(ctx, core.SubjectSlotBooked, map[string]string{"slot_id": "s1"}))
	assert.NoError(t, rec.Publish(ctx, core.SubjectGroupJoined, map[string]string{"group_id": "g1"}))

	assert.Len(t, rec.Events(), 2)
	booked := rec.Events(core.SubjectSlotBooked)
	if assert.Len(t, booked, 1) {
		assert.Equal(t, map[string]string{"slot_id": "s1"}, booked[0].Payload)
	}

	rec.Reset()
	assert.Empty(t, rec.Events())
}

func TestSubjectPrefix(t *testing.T) {
	conf := core.NewTestConfig()
	assert.Equal(t, "ratiba.", subjectPrefix(conf))
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobSuccess.Terminal())
	assert.True(t, JobPartial.Terminal())
	assert.True(t, JobFailed.Terminal())
}

func TestCounters_Add(t *testing.T) {
	c := Counters{Found: 10, Inserted: 5, Skipped: 3}
	c.Add(Counters{Found: 7, Inserted: 2, Updated: 4, Failed: 1})

	assert.Equal(t, int64(17), c.Found)
	assert.Equal(t, int64(7), c.Inserted)
	assert.Equal(t, int64(4), c.Updated)
	assert.Equal(t, int64(3), c.Skipped)
	assert.Equal(t, int64(1), c.Failed)
}

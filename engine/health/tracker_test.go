package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/engine/models"
)

func TestRecordFailureAutoDisablesAtThreshold(t *testing.T) {
	// S4: three consecutive failures trip auto-disable.
	tr := NewTracker()
	var obs Observation
	for i := 0; i < 3; i++ {
		obs = tr.RecordFailure("cam1")
	}
	assert.Equal(t, models.CameraError, obs.Status)
	assert.True(t, obs.AutoDisabled)
	assert.Equal(t, 3, obs.FailureCount)
}

func TestRecordFailureBelowThresholdStaysActive(t *testing.T) {
	tr := NewTracker()
	obs := tr.RecordFailure("cam1")
	obs = tr.RecordFailure("cam1")
	assert.Equal(t, models.CameraActive, obs.Status)
	assert.False(t, obs.AutoDisabled)
	assert.Equal(t, 2, obs.FailureCount)
}

func TestRecordFailureTransitionIsIdempotent(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 3; i++ {
		tr.RecordFailure("cam1")
	}
	first := tr.Snapshot("cam1")

	// a fourth failure keeps counting but must not re-fire AutoDisabled.
	fourth := tr.RecordFailure("cam1")
	assert.False(t, fourth.AutoDisabled)
	assert.Equal(t, 4, fourth.FailureCount)
	assert.Equal(t, first.Status, fourth.Status)
}

func TestRecordSuccessCannotClearAutoDisable(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 3; i++ {
		tr.RecordFailure("cam1")
	}
	obs := tr.RecordSuccess("cam1")
	assert.Equal(t, models.CameraError, obs.Status, "only Reset may clear an error-disabled camera")
}

func TestRecordSuccessResetsStreakForActiveCamera(t *testing.T) {
	tr := NewTracker()
	tr.RecordFailure("cam1")
	tr.RecordFailure("cam1")
	obs := tr.RecordSuccess("cam1")
	assert.Equal(t, models.CameraActive, obs.Status)
	assert.Equal(t, 0, obs.FailureCount)

	next := tr.RecordFailure("cam1")
	next = tr.RecordFailure("cam1")
	assert.Equal(t, 2, next.FailureCount, "the streak must start fresh after a success, not resume from 2")
}

func TestResetClearsErrorState(t *testing.T) {
	tr := NewTracker()
	for i := 0; i < 3; i++ {
		tr.RecordFailure("cam1")
	}
	require.Equal(t, models.CameraError, tr.Snapshot("cam1").Status)

	obs := tr.Reset("cam1", "alice")
	assert.Equal(t, models.CameraActive, obs.Status)
	assert.Equal(t, 0, obs.FailureCount)
}

func TestFailureThresholdIsConfigurable(t *testing.T) {
	tr := NewTracker()
	tr.FailureThreshold = 1
	obs := tr.RecordFailure("cam1")
	assert.Equal(t, models.CameraError, obs.Status)
	assert.True(t, obs.AutoDisabled)
}

func TestSnapshotDoesNotMutateState(t *testing.T) {
	tr := NewTracker()
	tr.RecordFailure("cam1")
	before := tr.Snapshot("cam1")
	after := tr.Snapshot("cam1")
	assert.Equal(t, before, after)
}

func TestClockIsInjectable(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker()
	tr.now = func() time.Time { return fixed }
	obs := tr.RecordFailure("cam1")
	assert.Equal(t, fixed, obs.LastFailure)
}

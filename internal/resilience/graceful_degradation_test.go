package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegradationLevelTransitions(t *testing.T) {
	dm := NewDegradationManager(DefaultDegradationConfig())
	dm.RegisterService("evidence-store", nil)

	for i := 0; i < 8; i++ {
		dm.RecordRequest("evidence-store", true)
	}
	health, found := dm.GetServiceHealth("evidence-store")
	require.True(t, found)
	assert.Equal(t, LevelNormal, health.Level)

	// 1 failure in 9 pushes the rate past the 10% degraded threshold.
	dm.RecordRequest("evidence-store", false)
	health, _ = dm.GetServiceHealth("evidence-store")
	assert.Equal(t, LevelDegraded, health.Level)
	require.NotNil(t, health.DegradedSince)

	// 3 failures in 11 crosses the 25% critical threshold.
	dm.RecordRequest("evidence-store", false)
	dm.RecordRequest("evidence-store", false)
	health, _ = dm.GetServiceHealth("evidence-store")
	assert.Equal(t, LevelCritical, health.Level)
	assert.Nil(t, health.DegradedSince)

	for i := 0; i < 8; i++ {
		dm.RecordRequest("evidence-store", false)
	}
	health, _ = dm.GetServiceHealth("evidence-store")
	assert.Equal(t, LevelEmergency, health.Level)
	assert.Greater(t, health.ErrorRate, 0.5)
}

func TestDegradationRecoversWithTraffic(t *testing.T) {
	dm := NewDegradationManager(DefaultDegradationConfig())
	dm.RegisterService("redis", nil)

	dm.RecordRequest("redis", false)
	health, _ := dm.GetServiceHealth("redis")
	require.Equal(t, LevelEmergency, health.Level)

	// Successes dilute the error rate back under every threshold.
	for i := 0; i < 20; i++ {
		dm.RecordRequest("redis", true)
	}
	health, _ = dm.GetServiceHealth("redis")
	assert.Equal(t, LevelNormal, health.Level)
	assert.Equal(t, int64(21), health.TotalRequests)
}

func TestDegradationEscalatesAfterMaxDegradedDuration(t *testing.T) {
	config := DefaultDegradationConfig()
	config.MaxDegradedDuration = 0
	dm := NewDegradationManager(config)
	dm.RegisterService("evidence-store", nil)

	for i := 0; i < 8; i++ {
		dm.RecordRequest("evidence-store", true)
	}
	dm.RecordRequest("evidence-store", false)
	health, _ := dm.GetServiceHealth("evidence-store")
	require.Equal(t, LevelDegraded, health.Level)

	// The rate stays in the degraded band, but the grace period is spent.
	time.Sleep(time.Millisecond)
	dm.RecordRequest("evidence-store", true)
	health, _ = dm.GetServiceHealth("evidence-store")
	assert.Equal(t, LevelEmergency, health.Level)
}

func TestDegradationHealthSnapshotsAreCopies(t *testing.T) {
	dm := NewDegradationManager(DefaultDegradationConfig())
	dm.RegisterService("evidence-store", nil)

	health, found := dm.GetServiceHealth("evidence-store")
	require.True(t, found)
	health.Level = LevelEmergency
	health.ErrorCount = 99

	fresh, _ := dm.GetServiceHealth("evidence-store")
	assert.Equal(t, LevelNormal, fresh.Level)
	assert.Equal(t, int64(0), fresh.ErrorCount)

	all := dm.GetAllServiceHealth()
	require.Contains(t, all, "evidence-store")
	assert.Equal(t, LevelNormal, all["evidence-store"].Level)
}

func TestDegradationIgnoresUnknownService(t *testing.T) {
	dm := NewDegradationManager(DefaultDegradationConfig())

	dm.RecordRequest("unregistered", false)
	dm.RecordError("unregistered", assert.AnError)

	_, found := dm.GetServiceHealth("unregistered")
	assert.False(t, found)
	assert.Empty(t, dm.GetAllServiceHealth())
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSchedulerRegistersJobs(t *testing.T) {
	db, _, _, rewards := newTestEconomy(t)
	analytics := NewAnalyticsService(db)

	sched, err := StartScheduler(rewards, analytics)
	require.NoError(t, err)
	defer func() { _ = sched.Shutdown() }()

	assert.Len(t, sched.Jobs(), 2, "batch resumer and daily snapshot share one scheduler")
}

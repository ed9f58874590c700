package schedule

import (
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRegistersCronEntry(t *testing.T) {
	svc := NewService(nil, []string{"pack-a"}, "0 4 * * *")
	cronEngine := cron.New()

	err := svc.Schedule(t.Context(), cronEngine)
	require.NoError(t, err)
	assert.Len(t, cronEngine.Entries(), 1)
}

func TestScheduleRejectsInvalidExpr(t *testing.T) {
	svc := NewService(nil, []string{"pack-a"}, "not a cron expr")
	cronEngine := cron.New()

	err := svc.Schedule(t.Context(), cronEngine)
	assert.Error(t, err)
}

package convert

import (
	"testing"

	"github.com/mechevo/simulator/internal/model"
	"github.com/mechevo/simulator/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// Round-trip: Core → GORM → Core
func TestEventRoundTrip(t *testing.T) {
	original := core.NewEvent(core.TitleStartAttacking).Int("id", 1).Str("slot", "RIGHT").Str("weapon", "cannon")
	original.Seq = 5
	original.Time = 0.3

	rec, err := CoreToEventRecord(original)
	require.NoError(t, err)
	result := EventRecordToCore(rec)

	assert.Equal(t, original, result)
}

func TestEventRecordToCore_MalformedAttributes(t *testing.T) {
	e := EventRecordToCore(model.EventRecord{Title: core.TitleErasePlayer, Attributes: datatypes.JSON("{")})

	assert.Equal(t, core.TitleErasePlayer, e.Title)
	assert.Empty(t, e.Attributes)
}

func TestEventRecordsToReport(t *testing.T) {
	records := []model.EventRecord{
		mustRecord(t, core.NewEvent(core.TitleCreateObstacle).Int("id", 1)),
		mustRecord(t, core.NewEvent(core.TitleErasePlayer).Int("id", 2)),
	}

	report := EventRecordsToReport(records, 12.5)

	assert.Equal(t, 12.5, report.TotalTime)
	assert.Len(t, report.Events, 2)
	assert.Equal(t, 1, report.Count(core.TitleErasePlayer))
}

func TestEventRecordsToReport_Empty(t *testing.T) {
	report := EventRecordsToReport(nil, 0)
	assert.NotNil(t, report.Events)
	assert.Empty(t, report.Events)
}

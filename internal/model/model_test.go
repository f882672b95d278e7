package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"SessionInfo", &SessionInfo{}, "session_infos"},
		{"MarchingStateRecord", &MarchingStateRecord{}, "marching_states"},
		{"PathPointRecord", &PathPointRecord{}, "path_points"},
		{"PlaybackRunRecord", &PlaybackRunRecord{}, "playback_runs"},
		{"WarningRecord", &WarningRecord{}, "warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModelsCoversAllTables(t *testing.T) {
	assert.Len(t, DatabaseModels, 5)
	for _, m := range DatabaseModels {
		_, ok := m.(interface{ TableName() string })
		assert.True(t, ok, "model %T must declare its table name", m)
	}
}

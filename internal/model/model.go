package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SessionInfo{},
	&MarchingStateRecord{},
	&PathPointRecord{},
	&PlaybackRunRecord{},
	&WarningRecord{},
}

// SessionInfo is one connected host scene. All other records hang off it.
type SessionInfo struct {
	gorm.Model
	SceneID   string  `json:"sceneId" gorm:"size:64;index:idx_session_scene"`
	SceneName string  `json:"sceneName" gorm:"size:127"`
	CellSize  float64 `json:"cellSize"`
	Extension string  `json:"extensionVersion" gorm:"size:32"`
}

func (*SessionInfo) TableName() string {
	return "session_infos"
}

// MarchingStateRecord is a snapshot of the marching mode toggle and the
// designated leader. One row per state change, newest row wins on restore.
type MarchingStateRecord struct {
	gorm.Model
	SessionID uint        `json:"sessionId" gorm:"index:idx_marchingstate_session_id"`
	Session   SessionInfo `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Enabled   bool        `json:"enabled"`
	LeaderID  string      `json:"leaderId" gorm:"size:64"`
}

func (*MarchingStateRecord) TableName() string {
	return "marching_states"
}

// PathPointRecord is one audited leader path cell.
type PathPointRecord struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	Time      time.Time `json:"time" gorm:"index:idx_pathpoint_time"`
	SessionID uint      `json:"sessionId" gorm:"index:idx_pathpoint_session_id"`
	LeaderID  string    `json:"leaderId" gorm:"size:64"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	GridKey   string    `json:"gridKey" gorm:"size:48"`
}

func (*PathPointRecord) TableName() string {
	return "path_points"
}

// PlaybackRunRecord summarizes one playback run. Assignments holds the
// marching order the run executed, serialized as JSON.
type PlaybackRunRecord struct {
	gorm.Model
	SessionID   uint           `json:"sessionId" gorm:"index:idx_playbackrun_session_id"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt"`
	Ticks       int            `json:"ticks"`
	Moves       int            `json:"moves"`
	Failures    int            `json:"failures"`
	Completed   bool           `json:"completed"`
	Assignments datatypes.JSON `json:"assignments"`
}

func (*PlaybackRunRecord) TableName() string {
	return "playback_runs"
}

// WarningRecord is a user-facing constraint message that was sent to the
// host, kept for audit.
type WarningRecord struct {
	gorm.Model
	SessionID uint   `json:"sessionId" gorm:"index:idx_warning_session_id"`
	Code      string `json:"code" gorm:"size:64"`
	Message   string `json:"message" gorm:"size:512"`
	ActorID   string `json:"actorId" gorm:"size:64"`
}

func (*WarningRecord) TableName() string {
	return "warnings"
}

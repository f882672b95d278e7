// Package scene holds the active scene's identity and grid geometry as
// reported by the host.
package scene

import "sync"

// Context is the current scene state. The grid cell size drives the
// discretizer, so a scene change can alter path granularity.
type Context struct {
	mu        sync.RWMutex
	sceneID   string
	sceneName string
	cellSize  float64
}

// NewContext creates a Context with a placeholder scene.
func NewContext(defaultCellSize float64) *Context {
	if defaultCellSize <= 0 {
		defaultCellSize = 100
	}
	return &Context{
		sceneName: "No scene loaded",
		cellSize:  defaultCellSize,
	}
}

// Set replaces the active scene.
func (c *Context) Set(sceneID, sceneName string, cellSize float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sceneID = sceneID
	c.sceneName = sceneName
	if cellSize > 0 {
		c.cellSize = cellSize
	}
}

// SceneID returns the active scene id.
func (c *Context) SceneID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sceneID
}

// SceneName returns the active scene name.
func (c *Context) SceneName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sceneName
}

// CellSize returns the active grid cell size.
func (c *Context) CellSize() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cellSize
}

package bridge

import "github.com/gin-gonic/gin"

// Pipeline is the part of pipeline.Pipeline the bridge drives.
type Pipeline interface {
	ComposeEmbeddedEvent(raw []byte)
	SetDataCollectionEnabled(enabled bool)
	DataCollectionEnabled() bool
	OnForeground()
	OnBackground()
}

type Service struct {
	pipeline         Pipeline
	maxBodySizeBytes int
}

// NewService caps request bodies at maxBodySizeKB kilobytes (default 64).
func NewService(p Pipeline, maxBodySizeKB int) *Service {
	if p == nil {
		panic("bridge: pipeline must not be nil")
	}
	if maxBodySizeKB <= 0 {
		maxBodySizeKB = 64
	}
	return &Service{
		pipeline:         p,
		maxBodySizeBytes: maxBodySizeKB * 1024,
	}
}

func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/webview/events", s.EventsHandler)
	r.POST("/v1/consent", s.ConsentHandler)
	r.POST("/v1/lifecycle", s.LifecycleHandler)
}

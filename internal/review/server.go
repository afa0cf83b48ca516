// Package review serves converted recordings to the operator for visual
// inspection: paged signal segments, current findings, manually drawn
// annotations, and bad-channel confirmation. It is the human-in-the-loop
// step between automatic detection and the apply run. Single operator; no
// concurrent-writer discipline is needed beyond the store mutex.
package review

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JVHannila/MoBI-project/internal/bids"
	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/registry"
)

// Server is the review HTTP service.
type Server struct {
	bidsRoot  string
	derivRoot string
	reg       *registry.Registry
	router    *gin.Engine
	log       *zap.Logger
	annStore  *annotationStore

	mu     sync.Mutex
	cached *cachedEntry
}

type cachedEntry struct {
	key string
	rec *eeg.Recording
}

// NewServer wires the routes.
func NewServer(bidsRoot, derivRoot string, reg *registry.Registry, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		bidsRoot:  bidsRoot,
		derivRoot: derivRoot,
		reg:       reg,
		router:    gin.New(),
		log:       log,
		annStore:  &annotationStore{derivRoot: derivRoot},
	}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/api/entries", s.listEntries)

	entry := s.router.Group("/api/entries/:subject/:session/:task")
	entry.GET("/segment", s.getSegment)
	entry.GET("/findings", s.getFindings)
	entry.GET("/annotations", s.listAnnotations)
	entry.POST("/annotations", s.createAnnotation)
	entry.DELETE("/annotations/:id", s.deleteAnnotation)
	entry.PUT("/badchannels", s.confirmBadChannels)
}

// ServeHTTP lets the server be mounted in tests without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start blocks serving on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.log.Info("review server listening",
		zap.String("addr", addr),
		zap.String("bids_root", s.bidsRoot))
	return s.router.Run(addr)
}

// loadEntry returns the recording for an entry, reusing the last loaded
// one: the operator pages through a single recording at a time.
func (s *Server) loadEntry(subject, session, task string) (*eeg.Recording, error) {
	key := subject + "/" + session + "/" + task
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cached.key == key {
		return s.cached.rec, nil
	}
	rec, err := bids.LoadEntry(s.bidsRoot, subject, session, task)
	if err != nil {
		return nil, err
	}
	s.cached = &cachedEntry{key: key, rec: rec}
	return rec, nil
}

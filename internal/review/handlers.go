package review

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JVHannila/MoBI-project/internal/bids"
	"github.com/JVHannila/MoBI-project/internal/eeg"
	"github.com/JVHannila/MoBI-project/internal/preprocess"
)

// defaultWindowS is the page length served when the client gives no bounds.
const defaultWindowS = 10.0

// maxPointsPerChannel caps a segment response; longer windows are
// decimated by striding, which is enough for on-screen review.
const maxPointsPerChannel = 4000

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listEntries(c *gin.Context) {
	entries, err := s.reg.List()
	if err != nil {
		s.log.Error("listing entries failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// segmentResponse is one page of signal for the viewer.
type segmentResponse struct {
	Channels   []string    `json:"channels"`
	SampleRate float64     `json:"sample_rate"`
	FromS      float64     `json:"from_s"`
	ToS        float64     `json:"to_s"`
	Stride     int         `json:"stride"`
	Data       [][]float64 `json:"data"`
}

func (s *Server) getSegment(c *gin.Context) {
	rec, ok := s.entryFromPath(c)
	if !ok {
		return
	}

	from := queryFloat(c, "from", 0)
	to := queryFloat(c, "to", from+defaultWindowS)
	if to <= from {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be greater than from"})
		return
	}

	fromIdx := rec.SampleAt(from)
	toIdx := rec.SampleAt(to)
	seg := rec.Segment(fromIdx, toIdx)

	stride := 1
	if n := len(seg); n > 0 && len(seg[0]) > maxPointsPerChannel {
		stride = (len(seg[0]) + maxPointsPerChannel - 1) / maxPointsPerChannel
	}
	if stride > 1 {
		for i, row := range seg {
			dec := make([]float64, 0, len(row)/stride+1)
			for j := 0; j < len(row); j += stride {
				dec = append(dec, row[j])
			}
			seg[i] = dec
		}
	}

	c.JSON(http.StatusOK, segmentResponse{
		Channels:   rec.ChannelNames,
		SampleRate: rec.SampleRate,
		FromS:      from,
		ToS:        to,
		Stride:     stride,
		Data:       seg,
	})
}

func (s *Server) getFindings(c *gin.Context) {
	subject, session, task := entryParams(c)
	path := preprocess.FindingsPath(s.derivRoot, subject, session, task)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no findings yet; run the findings pass first"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// annotationRequest is a manually drawn interval.
type annotationRequest struct {
	Onset    float64 `json:"onset" binding:"min=0"`
	Duration float64 `json:"duration" binding:"required,gt=0"`
	Label    string  `json:"label" binding:"required"`
}

func (s *Server) listAnnotations(c *gin.Context) {
	subject, session, task := entryParams(c)
	anns, err := s.annStore.load(subject, session, task)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"annotations": anns})
}

func (s *Server) createAnnotation(c *gin.Context) {
	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validLabel(req.Label) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "label must be one of BAD_movement, BAD_blink, BAD_muscle, BAD_other",
		})
		return
	}

	subject, session, task := entryParams(c)
	ann, err := s.annStore.add(subject, session, task, eeg.Annotation{
		Onset:    req.Onset,
		Duration: req.Duration,
		Label:    req.Label,
		Source:   "manual",
	})
	if err != nil {
		s.log.Error("saving annotation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.log.Info("annotation drawn",
		zap.String("label", ann.Label), zap.Float64("onset", ann.Onset))
	c.JSON(http.StatusCreated, ann)
}

func (s *Server) deleteAnnotation(c *gin.Context) {
	subject, session, task := entryParams(c)
	removed, err := s.annStore.remove(subject, session, task, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such annotation"})
		return
	}
	c.Status(http.StatusNoContent)
}

// confirmRequest is the operator's bad-channel decision. An empty list is a
// valid confirmation: it means every candidate was rejected.
type confirmRequest struct {
	Channels []string `json:"channels"`
}

func (s *Server) confirmBadChannels(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, ok := s.entryFromPath(c)
	if !ok {
		return
	}
	for _, name := range req.Channels {
		if _, found := rec.ChannelIndex(name); !found {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel " + name})
			return
		}
	}

	subject, session, task := entryParams(c)
	if err := s.annStore.confirm(subject, session, task, req.Channels); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.log.Info("bad channels confirmed",
		zap.String("subject", subject), zap.Strings("channels", req.Channels))
	c.JSON(http.StatusOK, gin.H{"confirmed": req.Channels})
}

func (s *Server) entryFromPath(c *gin.Context) (*eeg.Recording, bool) {
	subject, session, task := entryParams(c)
	rec, err := s.loadEntry(subject, session, task)
	if err != nil {
		if errors.Is(err, bids.ErrEntryMissing) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		} else {
			s.log.Error("loading entry failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return rec, true
}

func entryParams(c *gin.Context) (subject, session, task string) {
	return c.Param("subject"), c.Param("session"), c.Param("task")
}

func queryFloat(c *gin.Context, key string, fallback float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func validLabel(label string) bool {
	switch label {
	case eeg.LabelMovement, eeg.LabelBlink, eeg.LabelMuscle, eeg.LabelOther:
		return true
	}
	return false
}

// internal/api/server.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/hv-supervisor/internal/supervisor"
)

// Supervisor is the exact contract the HTTP surface uses. The presentation
// layer only ever sees published snapshots and submits commands; it never
// touches a device channel.
type Supervisor interface {
	Snapshots() []supervisor.Snapshot
	Snapshot(id string) (supervisor.Snapshot, bool)
	SetVoltage(id string, volts float64) error
	SetCurrentLimit(id string, limit float64) error
	SetPower(id string, on bool) error
}

type server struct {
	sup Supervisor
}

// Routes builds the control/status router.
func Routes(sup Supervisor) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	s := &server{sup: sup}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/devices", s.getDevices)
	router.GET("/devices/:id", s.getDevice)
	router.PUT("/devices/:id/voltage", s.setVoltage)
	router.PUT("/devices/:id/current-limit", s.setCurrentLimit)
	router.PUT("/devices/:id/power", s.setPower)

	return router
}

func (s *server) getDevices(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.sup.Snapshots())
}

func (s *server) getDevice(c *gin.Context) {
	snap, ok := s.sup.Snapshot(c.Param("id"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}
	c.IndentedJSON(http.StatusOK, snap)
}

func (s *server) setVoltage(c *gin.Context) {
	var volts float64
	if err := c.BindJSON(&volts); err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	s.submit(c, s.sup.SetVoltage(c.Param("id"), volts))
}

func (s *server) setCurrentLimit(c *gin.Context) {
	var limit float64
	if err := c.BindJSON(&limit); err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	s.submit(c, s.sup.SetCurrentLimit(c.Param("id"), limit))
}

func (s *server) setPower(c *gin.Context) {
	var on bool
	if err := c.BindJSON(&on); err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	s.submit(c, s.sup.SetPower(c.Param("id"), on))
}

func (s *server) submit(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.IndentedJSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case errors.Is(err, supervisor.ErrUnknownDevice):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, supervisor.ErrValueOutOfRange):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}

func ginLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("http request")
	}
}

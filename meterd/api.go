package main

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/outlandnish/FlowMeter/pkg/flowmeter"
	"github.com/outlandnish/FlowMeter/pkg/telemetry"
)

func (d *daemon) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))

	v1 := router.Group("/api/v1")
	v1.GET("/status", d.getStatus)
	v1.POST("/reset", d.reset)
	v1.GET("/calibration", d.getCalibration)
	v1.PUT("/calibration", d.setCalibration)

	router.GET("/healthz", d.healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// ginLogger routes gin request logs through logrus.
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// other handlers can change c.Path so:
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		stop := time.Since(start)
		latency := int(math.Ceil(float64(stop.Nanoseconds()) / 1000000.0))
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"statusCode": statusCode,
			"latency":    latency, // time to process
			"method":     c.Request.Method,
			"path":       path,
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
		} else {
			msg := fmt.Sprintf("%s %s %d (%dms)", c.Request.Method, path, statusCode, latency)
			if statusCode >= http.StatusInternalServerError {
				entry.Error(msg)
			} else if statusCode >= http.StatusBadRequest {
				entry.Warn(msg)
			} else {
				entry.Debug(msg)
			}
		}
	}
}

func (d *daemon) getStatus(c *gin.Context) {
	d.mu.RLock()
	pulses := d.lastPulses
	d.mu.RUnlock()

	c.IndentedJSON(http.StatusOK, telemetry.Snapshot(d.meter, d.id, pulses))
}

func (d *daemon) reset(c *gin.Context) {
	d.meter.Reset()

	// Reset the device counter too so the next window starts clean
	if d.device != nil && d.device.IsConnected() {
		if err := d.device.Reset(); err != nil {
			logrus.Errorf("failed to reset device: %v", err)
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
	}

	c.IndentedJSON(http.StatusOK, "meter reset")
	logrus.Info("meter reset")
}

// calibrationPayload mirrors the sensor section of the config file.
type calibrationPayload struct {
	Capacity float64   `json:"capacity"`
	KFactor  float64   `json:"k_factor"`
	MFactor  []float64 `json:"m_factor"`
}

func (p calibrationPayload) validate() error {
	if p.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %g", p.Capacity)
	}
	if p.KFactor <= 0 {
		return fmt.Errorf("k_factor must be positive, got %g", p.KFactor)
	}
	if len(p.MFactor) != len(flowmeter.FlowSensorProperties{}.MFactor) {
		return fmt.Errorf("m_factor must have %d entries, got %d", len(flowmeter.FlowSensorProperties{}.MFactor), len(p.MFactor))
	}
	for i, m := range p.MFactor {
		if m <= 0 {
			return fmt.Errorf("m_factor[%d] must be positive, got %g", i, m)
		}
	}
	return nil
}

func (d *daemon) getCalibration(c *gin.Context) {
	props := d.meter.Properties()
	c.IndentedJSON(http.StatusOK, calibrationPayload{
		Capacity: props.Capacity,
		KFactor:  props.KFactor,
		MFactor:  props.MFactor[:],
	})
}

func (d *daemon) setCalibration(c *gin.Context) {
	var payload calibrationPayload
	if err := c.BindJSON(&payload); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if err := payload.validate(); err != nil {
		c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	props := flowmeter.FlowSensorProperties{
		Capacity: payload.Capacity,
		KFactor:  payload.KFactor,
	}
	copy(props.MFactor[:], payload.MFactor)
	d.meter.SetProperties(props)

	d.mu.Lock()
	d.cfg.Sensor.Capacity = payload.Capacity
	d.cfg.Sensor.KFactor = payload.KFactor
	d.cfg.Sensor.MFactor = append([]float64(nil), payload.MFactor...)
	err := d.cfg.Save(configPath)
	d.mu.Unlock()
	if err != nil {
		logrus.Errorf("failed to save config: %v", err)
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, payload)
	logrus.Info("calibration updated")
}

func (d *daemon) healthz(c *gin.Context) {
	type status struct {
		Status          string  `json:"status"`
		DeviceConnected bool    `json:"device_connected"`
		MQTTConnected   bool    `json:"mqtt_connected"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	}

	st := status{
		DeviceConnected: d.device != nil && d.device.IsConnected(),
		// Disabled outputs count as healthy
		MQTTConnected:   d.publisher == nil || d.publisher.IsConnected(),
		LastWriteErrorS: d.recorder.LastErrorAge().Seconds(),
	}
	writeOK := d.recorder.LastErrorAge() > 30*time.Second

	// ok only when the source is up and no output has recent failures
	switch {
	case st.DeviceConnected && st.MQTTConnected && writeOK:
		st.Status = "ok"
	case st.DeviceConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	code := http.StatusOK
	if st.Status == "down" {
		code = http.StatusServiceUnavailable
	}
	c.IndentedJSON(code, st)
}

package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bikeshare-dashboard/internal/networks/analytics"
	"github.com/bikeshare-dashboard/internal/networks/pipeline"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

const (
	defaultTopN = 10
	maxTopN     = 500
	maxPageSize = 500
)

// current writes 503 and returns nil when nothing has been loaded yet.
func (s *Server) current(c *gin.Context) *pipeline.Dashboard {
	d := s.source.Current()
	if d == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dataset not loaded yet"})
		return nil
	}
	return d
}

// handleStatus answers before the first load too.
func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{"loaded": false}

	if d := s.source.Current(); d != nil {
		status["loaded"] = true
		status["run_id"] = d.RunID
		status["loaded_at"] = d.LoadedAt
		status["from_snapshot"] = d.FromSnapshot
		status["networks"] = len(d.Rows)
		if d.Warning != "" {
			status["warning"] = d.Warning
		}
	}

	if s.runs != nil {
		run, err := s.runs.LatestRun(c.Request.Context())
		if err != nil {
			s.logger.Warn("Failed to read run history", "error", err)
			status["latest_run_error"] = "run history unavailable"
		} else if run != nil {
			status["latest_run"] = run
		}
	}

	if s.cleanup != nil {
		status["cleanup"] = s.cleanup.GetStatus()
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) handleDashboard(c *gin.Context) {
	d := s.current(c)
	if d == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": d, "networks": len(d.Rows)})
}

func (s *Server) handleNetworks(c *gin.Context) {
	page, ok := queryInt(c, "page", 1, 1, 1<<30)
	if !ok {
		return
	}
	size, ok := queryInt(c, "page_size", analytics.DefaultPageSize, 1, maxPageSize)
	if !ok {
		return
	}

	d := s.current(c)
	if d == nil {
		return
	}
	c.JSON(http.StatusOK, analytics.Paginate(d.Rows, page, size))
}

func (s *Server) handleTopNetworks(c *gin.Context) {
	metric, ok := queryMetric(c)
	if !ok {
		return
	}
	n, ok := queryInt(c, "n", defaultTopN, 1, maxTopN)
	if !ok {
		return
	}

	d := s.current(c)
	if d == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metric":   metric,
		"networks": analytics.TopNBy(d.Rows, metric, n),
	})
}

func (s *Server) handleCountries(c *gin.Context) {
	d := s.current(c)
	if d == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"countries": d.Countries})
}

func (s *Server) handleTopCountries(c *gin.Context) {
	metric, ok := queryMetric(c)
	if !ok {
		return
	}
	n, ok := queryInt(c, "n", analytics.DefaultTopCountries, 1, maxTopN)
	if !ok {
		return
	}

	d := s.current(c)
	if d == nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"metric":    metric,
		"countries": analytics.TopCountries(d.Rows, metric, n),
	})
}

func (s *Server) handleRefresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.timeout)
	defer cancel()

	d := s.source.Load(ctx)
	status := http.StatusOK
	if d.Warning != "" {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"dashboard": d, "networks": len(d.Rows)})
}

func queryMetric(c *gin.Context) (models.Metric, bool) {
	raw := c.DefaultQuery("metric", string(models.MetricStationCount))
	metric, err := models.ParseMetric(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return metric, true
}

func queryInt(c *gin.Context, key string, def, lo, hi int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return n, true
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readstack/internal/analytics"
)

// StatsController serves reading statistics.
type StatsController struct {
	analytics *analytics.Service
}

func NewStatsController(svc *analytics.Service) *StatsController {
	return &StatsController{analytics: svc}
}

// Summary handles GET /api/stats
func (sc *StatsController) Summary(c *gin.Context) {
	summary, err := sc.analytics.Summary(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "reading summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Stream handles GET /api/stats/stream, sending the summary whenever the
// underlying data changes.
func (sc *StatsController) Stream(c *gin.Context) {
	streamEvents(c, "stats", sc.analytics.Watch(c.Request.Context()))
}

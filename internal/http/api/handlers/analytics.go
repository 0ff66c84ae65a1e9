package handlers

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/linkhubapp/linkhub/internal/links"
)

// AnalyticsHandler serves the per-user daily click/scan series.
type AnalyticsHandler struct {
	store *links.Store
}

// NewAnalyticsHandler constructs an AnalyticsHandler.
func NewAnalyticsHandler(store *links.Store) *AnalyticsHandler {
	return &AnalyticsHandler{store: store}
}

// Series merges the click and scan series into one date-keyed array.
// Dates with no activity on either axis are omitted.
func (h *AnalyticsHandler) Series(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		unauthorized(c, "")
		return
	}

	days, _ := strconv.Atoi(c.Query("days"))
	days = links.ClampSeriesDays(days)

	ctx := c.Request.Context()
	clicks, errClicks := h.store.ClickSeries(ctx, user.ID, days)
	if errClicks != nil {
		internalError(c, errClicks)
		return
	}
	scans, errScans := h.store.ScanSeries(ctx, user.ID, days)
	if errScans != nil {
		internalError(c, errScans)
		return
	}

	type point struct {
		clicks int64
		scans  int64
	}
	merged := make(map[string]*point, len(clicks)+len(scans))
	for _, b := range clicks {
		merged[b.Date] = &point{clicks: b.Count}
	}
	for _, b := range scans {
		if p, found := merged[b.Date]; found {
			p.scans = b.Count
			continue
		}
		merged[b.Date] = &point{scans: b.Count}
	}

	dates := make([]string, 0, len(merged))
	for date := range merged {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]gin.H, 0, len(dates))
	for _, date := range dates {
		p := merged[date]
		out = append(out, gin.H{"date": date, "clicks": p.clicks, "scans": p.scans})
	}
	c.JSON(http.StatusOK, out)
}

package http

import "github.com/gin-gonic/gin"

// Health handles GET /health. It runs every registered HealthCheck and
// reports "ok" or the probe's error string per dependency; the overall
// status is "ok" only when every dependency is.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	allOK := true

	for _, check := range s.healthChecks {
		if err := check.Probe(c.Request.Context()); err != nil {
			body[check.Name] = err.Error()
			allOK = false
			continue
		}
		body[check.Name] = "ok"
	}

	if !allOK {
		body["status"] = "degraded"
	}
	c.JSON(200, body)
}

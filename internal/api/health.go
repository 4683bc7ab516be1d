package api

import "net/http"

type healthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
}

// HealthHandler reports liveness with process uptime in seconds
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) error {
	respondJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Uptime:    a.uptime().Seconds(),
		Timestamp: a.clock.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
	return nil
}

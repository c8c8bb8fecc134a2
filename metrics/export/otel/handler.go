package otel

import (
	"encoding/json"
	"net/http"
	"sort"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Point is one collected int64 data point.
type Point struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind"`
	Value       int64  `json:"value"`
}

// Handler collects reader on every request and serves the int64 sums and gauges
// as a JSON array sorted by name.
func Handler(reader sdkmetric.Reader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(r.Context(), &rm); err != nil {
			http.Error(w, "collect failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Points(rm))
	})
}

// Points flattens rm into one entry per instrument, keeping the first data point.
func Points(rm metricdata.ResourceMetrics) []Point {
	var out []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			p := Point{Name: m.Name, Description: m.Description}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) == 0 {
					continue
				}
				p.Kind, p.Value = "counter", data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) == 0 {
					continue
				}
				p.Kind, p.Value = "gauge", data.DataPoints[0].Value
			default:
				continue
			}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// internal/workers/catalog/search-catalog/models.go
package searchcatalog

type Input struct {
	Query       string   `json:"query,omitempty"`
	Application string   `json:"application,omitempty"`
	Family      string   `json:"family,omitempty"`
	MinFlowM3H  *float64 `json:"minFlowM3h,omitempty"`
	MinHeadM    *float64 `json:"minHeadM,omitempty"`
	Size        int      `json:"size,omitempty"`
}

type Output struct {
	Pumps     []map[string]interface{} `json:"pumps"`
	TotalHits int                      `json:"totalHits"`
	Took      int                      `json:"took"` // milliseconds
}

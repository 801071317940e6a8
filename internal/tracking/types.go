// Package tracking defines the runboard tracking API resource model and the
// client surface used to create and list runs and metric time series.
//
// Resource names are opaque, server-assigned identifiers; display names are
// the human-chosen business keys, unique per parent container and enforced
// by the service.
package tracking

import "time"

// ValueType identifies the category of values a time series records.
type ValueType string

const (
	ValueTypeScalar       ValueType = "SCALAR"
	ValueTypeTensor       ValueType = "TENSOR"
	ValueTypeBlobSequence ValueType = "BLOB_SEQUENCE"
)

// Run is one logical execution of an experiment. The service assigns Name on
// creation; DisplayName is chosen by the caller and unique within the parent
// experiment.
type Run struct {
	Name        string            `json:"name,omitempty"`
	DisplayName string            `json:"displayName,omitempty"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	CreateTime  time.Time         `json:"createTime,omitzero"`
}

// TimeSeries is one metric stream (a "tag") recorded under a run. DisplayName
// is unique within the parent run.
type TimeSeries struct {
	Name        string    `json:"name,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Description string    `json:"description,omitempty"`
	ValueType   ValueType `json:"valueType,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	PluginName  string    `json:"pluginName,omitempty"`
	PluginData  []byte    `json:"pluginData,omitempty"`
	CreateTime  time.Time `json:"createTime,omitzero"`
}

// ScalarPoint is one scalar observation at a step.
type ScalarPoint struct {
	Step     int64     `json:"step"`
	WallTime time.Time `json:"wallTime,omitzero"`
	Value    float64   `json:"value"`
}

// TimeSeriesData carries points destined for one time series, addressed by
// its resource name.
type TimeSeriesData struct {
	TimeSeries string        `json:"timeSeries"`
	Points     []ScalarPoint `json:"points,omitempty"`
}

// WriteRunDataRequest appends metric points to one run. Run is the run's
// resource name.
type WriteRunDataRequest struct {
	Run  string           `json:"run"`
	Data []TimeSeriesData `json:"data,omitempty"`
}

// PointCount returns the number of points carried by the request.
func (r *WriteRunDataRequest) PointCount() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, d := range r.Data {
		total += len(d.Points)
	}
	return total
}

package metrics

import (
	"github.com/montanaflynn/stats"
)

// LapseStats are descriptive statistics over closed lapse lengths. They are
// for reports only; the classifier never reads floating-point values.
type LapseStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	StdDev float64 `json:"stddev"`
}

// DescribeLapses summarizes closed lapses. An empty input yields zero stats.
func DescribeLapses(lapses []Lapse) (LapseStats, error) {
	var data stats.Float64Data
	for _, l := range lapses {
		if l.Closed {
			data = append(data, float64(l.Length))
		}
	}
	out := LapseStats{Count: len(data)}
	if len(data) == 0 {
		return out, nil
	}
	var err error
	if out.Mean, err = stats.Mean(data); err != nil {
		return out, err
	}
	if out.Median, err = stats.Median(data); err != nil {
		return out, err
	}
	if out.P95, err = stats.Percentile(data, 95); err != nil {
		return out, err
	}
	if out.StdDev, err = stats.StandardDeviation(data); err != nil {
		return out, err
	}
	return out, nil
}

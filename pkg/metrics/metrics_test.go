package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCartMetricsCountsByOpAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCartMetrics(reg)
	metrics.Observe("add", "ok")
	metrics.Observe("add", "ok")
	metrics.Observe("checkout", "EMPTY_SELECTION")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "storefront_cart_operations_total", map[string]string{"op": "add", "result": "ok"}); err != nil {
		t.Fatalf("fetch add: %v", err)
	} else if got != 2 {
		t.Fatalf("expected add=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "storefront_cart_operations_total", map[string]string{"op": "checkout", "result": "EMPTY_SELECTION"}); err != nil {
		t.Fatalf("fetch checkout: %v", err)
	} else if got != 1 {
		t.Fatalf("expected checkout=1, got %f", got)
	}
}

func TestRemoteMetricsRecordsStatusLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRemoteMetrics(reg)
	metrics.ObserveRequest("products", 200, 120*time.Millisecond)
	metrics.ObserveRequest("login", 0, 10*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "storefront_remote_request_duration_seconds", map[string]string{"endpoint": "products", "status": "200"}); err != nil {
		t.Fatalf("fetch products: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
	if _, err := fetchHistogramSum(mfs, "storefront_remote_request_duration_seconds", map[string]string{"endpoint": "login", "status": "error"}); err != nil {
		t.Fatalf("transport failures should be labelled error: %v", err)
	}
}

func TestJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewJobMetrics(reg)
	metrics.ObserveDuration("selection-sweep", 250*time.Millisecond)
	metrics.IncSuccess("selection-sweep")
	metrics.IncFailure("storage-retention")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_job_success_total", map[string]string{"job": "selection-sweep"}); err != nil || got != 1 {
		t.Fatalf("expected one success, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_job_failure_total", map[string]string{"job": "storage-retention"}); err != nil || got != 1 {
		t.Fatalf("expected one failure, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "storefront_job_duration_seconds", map[string]string{"job": "selection-sweep"}); err != nil || got < 0.25 {
		t.Fatalf("expected duration sum >= 0.25, got %f (%v)", got, err)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var cart *CartMetrics
	cart.Observe("add", "ok")
	NewCartMetrics(nil).Observe("add", "ok")

	var remote *RemoteMetrics
	remote.ObserveRequest("products", 200, time.Second)
	NewRemoteMetrics(nil).ObserveRequest("products", 200, time.Second)

	var jobs *JobMetrics
	jobs.IncSuccess("x")
	NewJobMetrics(nil).ObserveDuration("x", time.Second)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}

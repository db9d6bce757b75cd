package index

// Option applies a configuration option to the FlatIndex.
type Option func(*FlatIndex)

// WithMetric fixes the distance metric. It must be consistent between
// insert and query, so it can only be set at construction.
func WithMetric(m Metric) Option {
	return func(x *FlatIndex) {
		x.metric = m
	}
}

// ParseMetric maps a config-file metric name to a Metric.
// Unknown names fall back to Euclidean.
func ParseMetric(s string) Metric {
	if s == "cosine" {
		return Cosine
	}
	return Euclidean
}

package metrics

// InitializeMetrics pre-populates expected label combinations so every series
// is exported from the first scrape. Call once at daemon startup.
func InitializeMetrics() {
	for _, outcome := range []string{"completed", "failed", "skipped"} {
		ConversionsTotal.WithLabelValues(outcome)
		ConversionDuration.WithLabelValues(outcome)
	}
	for _, class := range []string{"timeout", "capability", "ineligible", "not_found", "configuration", "transcode", "other"} {
		ConversionFailures.WithLabelValues(class)
	}
	for _, source := range []string{"single", "bulk"} {
		for _, result := range []string{"queued", "skipped", "error"} {
			DispatchTotal.WithLabelValues(source, result)
		}
	}
	for _, status := range []string{"queued", "running", "done", "failed", "skipped"} {
		QueueJobs.WithLabelValues(status)
	}
	for _, source := range []string{"cache", "probe"} {
		CapabilityChecksTotal.WithLabelValues(source)
	}
}

package roomcast

// Metrics is the monitoring interface the core reports into. The default is
// NoopMetrics; prommetrics provides a Prometheus implementation.
type Metrics interface {
	// Connection metrics.
	IncrementConnections()
	DecrementConnections()

	// Frame metrics, keyed by verb.
	IncrementFrames(verb string)
	IncrementFrameErrors(verb string)

	// Room metrics.
	SetRoomCount(count int)

	// Delivery metrics.
	IncrementBroadcasts()
	IncrementDroppedSends()
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) IncrementConnections()            {}
func (NoopMetrics) DecrementConnections()            {}
func (NoopMetrics) IncrementFrames(verb string)      {}
func (NoopMetrics) IncrementFrameErrors(verb string) {}
func (NoopMetrics) SetRoomCount(count int)           {}
func (NoopMetrics) IncrementBroadcasts()             {}
func (NoopMetrics) IncrementDroppedSends()           {}

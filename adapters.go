package msredis

import (
	"time"
)

// serverLogger adapts Logger to server.Logger
type serverLogger struct {
	logger Logger
}

func (sl *serverLogger) Debug(msg string, fields ...interface{}) {
	sl.logger.Debug(msg, convertFields(fields...)...)
}

func (sl *serverLogger) Info(msg string, fields ...interface{}) {
	sl.logger.Info(msg, convertFields(fields...)...)
}

func (sl *serverLogger) Error(msg string, fields ...interface{}) {
	sl.logger.Error(msg, convertFields(fields...)...)
}

func convertFields(fields ...interface{}) []Field {
	result := make([]Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result = append(result, Field{
				Key:   key,
				Value: fields[i+1],
			})
		}
	}
	return result
}

// metricsAdapter adapts MetricsCollector to server.MetricsCollector
type metricsAdapter struct {
	metrics MetricsCollector
}

func (ma *metricsAdapter) RecordCommandProcessed(cmd string, duration time.Duration) {
	ma.metrics.RecordCommandProcessed(cmd, duration)
}

func (ma *metricsAdapter) RecordError(errorType string) {
	ma.metrics.RecordError(errorType)
}

// storageObserver reports keyspace events to the logger and metrics. It
// runs under shard locks, so it only logs and counts.
type storageObserver struct {
	logger  Logger
	metrics MetricsCollector
}

func (o *storageObserver) OnKeySet(string)     {}
func (o *storageObserver) OnKeyDeleted(string) {}

func (o *storageObserver) OnKeyExpired(key string) {
	o.logger.Debug("Key expired", Field{Key: "key", Value: key})
}

func (o *storageObserver) OnKeyEvicted(key string) {
	o.logger.Debug("Key evicted", Field{Key: "key", Value: key})
	if o.metrics != nil {
		o.metrics.RecordEviction()
	}
}

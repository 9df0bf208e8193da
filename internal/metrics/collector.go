package metrics

import (
	"sync"
	"time"

	"video-converter/internal/logging"
)

// StorageStats summarises the storage root.
type StorageStats struct {
	Sessions       int
	ConvertedFiles int
	TotalBytes     int64
}

// StatsProvider reports storage usage. session.Store implements it.
type StatsProvider interface {
	Stats() (StorageStats, error)
}

// Collector periodically collects storage usage into gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats, err := c.statsProvider.Stats()
	if err != nil {
		logging.Warn("Failed to collect storage stats: %v", err)
		return
	}

	StorageSessions.Set(float64(stats.Sessions))
	StorageConvertedFiles.Set(float64(stats.ConvertedFiles))
	StorageBytes.Set(float64(stats.TotalBytes))

	logging.Debug("Metrics collected: sessions=%d, converted=%d, bytes=%d",
		stats.Sessions, stats.ConvertedFiles, stats.TotalBytes)
}

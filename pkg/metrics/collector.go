package metrics

import (
	"context"
	"time"
)

// relationStates mirrors the adapter's state space so the gauge always
// exports every label.
var relationStates = []string{"no-relation", "joined-incomplete", "integrated", "broken"}

// Collector polls the host and unit state into gauges.
type Collector struct {
	units         []string
	probe         func(ctx context.Context, unit string) (bool, error)
	relationState func() string
	stopCh        chan struct{}
}

// NewCollector creates a collector over the managed units. probe
// reports whether a unit is running; relationState returns the current
// database relation state.
func NewCollector(units []string, probe func(ctx context.Context, unit string) (bool, error), relationState func() string) *Collector {
	return &Collector{
		units:         units,
		probe:         probe,
		relationState: relationState,
		stopCh:        make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.Collect(context.Background())

		for {
			select {
			case <-ticker.C:
				c.Collect(context.Background())
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect runs one poll of every gauge.
func (c *Collector) Collect(ctx context.Context) {
	c.collectServiceMetrics(ctx)
	c.collectRelationMetrics()
}

func (c *Collector) collectServiceMetrics(ctx context.Context) {
	for _, unit := range c.units {
		running, err := c.probe(ctx, unit)
		if err != nil {
			continue
		}
		v := 0.0
		if running {
			v = 1.0
		}
		ServiceUp.WithLabelValues(unit).Set(v)
	}
}

func (c *Collector) collectRelationMetrics() {
	current := c.relationState()
	for _, state := range relationStates {
		v := 0.0
		if state == current {
			v = 1.0
		}
		RelationState.WithLabelValues(state).Set(v)
	}
}

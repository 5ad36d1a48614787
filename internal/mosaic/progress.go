package mosaic

import (
	"time"

	"github.com/banshee-data/mosaic/internal/monitoring"
	"github.com/banshee-data/mosaic/internal/timeutil"
)

// ProgressLogger logs matching progress every Every records, throttled to at
// most one line per Interval.
type ProgressLogger struct {
	Every    int
	Total    int // expected records, 0 when unknown
	Interval time.Duration
	Clock    timeutil.Clock

	start    time.Time
	throttle *timeutil.Throttle
}

// OnRecord implements Observer.
func (p *ProgressLogger) OnRecord(processed int, store *RankStore) {
	if p.throttle == nil {
		if p.Clock == nil {
			p.Clock = timeutil.RealClock{}
		}
		p.start = p.Clock.Now()
		p.throttle = timeutil.NewThrottle(p.Clock, p.Interval)
	}
	if p.Every <= 0 || processed%p.Every != 0 || !p.throttle.Ready() {
		return
	}

	rate := 0.0
	if elapsed := p.Clock.Since(p.start).Seconds(); elapsed > 0 {
		rate = float64(processed) / elapsed
	}
	if p.Total > 0 {
		monitoring.Logf("[Matcher] %d/%d library tiles (%.1f%%) at %.0f tiles/s, window[0]=%d",
			processed, p.Total, 100*float64(processed)/float64(p.Total), rate, store.Window(0))
		return
	}
	monitoring.Logf("[Matcher] %d library tiles at %.0f tiles/s, window[0]=%d", processed, rate, store.Window(0))
}

// Observers fans one record notification out to several observers in order.
type Observers []Observer

// OnRecord implements Observer.
func (o Observers) OnRecord(processed int, store *RankStore) {
	for _, obs := range o {
		if obs != nil {
			obs.OnRecord(processed, store)
		}
	}
}

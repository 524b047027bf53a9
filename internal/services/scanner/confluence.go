package scanner

import (
	"EdgeScan/internal/domain/models"
	"EdgeScan/internal/services/features"
)

func confluenceReady(s *Scanner, f *frame, t int) (bool, int) {
	need := reversalMinBars(s)
	if t+1 < need {
		return false, need
	}
	weekly := f.weeklyUpTo(t)
	return weekly.Len() >= need, need
}

// evalConfluence fires when a daily reversal within RecentBars agrees in
// direction with a weekly reversal within ConfluenceWeeklyRecent weeks.
func evalConfluence(s *Scanner, f *frame, t int) (models.Direction, float64, bool) {
	daily := recentReversal(s, f, t, s.cfg.RecentBars)
	if daily == models.Neutral {
		return models.Neutral, 0, false
	}
	weekly := f.weeklyUpTo(t)
	set, err := s.engine.Compute(weekly)
	if err != nil {
		return models.Neutral, 0, false
	}
	wf := newFrame(weekly, set)
	if recentReversal(s, wf, weekly.Len()-1, s.cfg.ConfluenceWeeklyRecent) != daily {
		return models.Neutral, 0, false
	}
	return daily, 1, true
}

// recentReversal returns the direction of the latest reversal among the
// n bars ending at t.
func recentReversal(s *Scanner, f *frame, t, n int) models.Direction {
	for i := t; i > t-n && i >= 0; i-- {
		if dir, _, ok := reversalAt(s, f, i); ok {
			return dir
		}
	}
	return models.Neutral
}

// weeklyUpTo resamples the bars up to and including t, so a scan of an
// older bar never sees later days of the same week.
func (f *frame) weeklyUpTo(t int) models.PriceSeries {
	if f.weekly == nil {
		f.weekly = map[int]models.PriceSeries{}
	}
	if w, ok := f.weekly[t]; ok {
		return w
	}
	w := features.Resample(f.series.Head(t+1), models.TFWeekly)
	f.weekly[t] = w
	return w
}

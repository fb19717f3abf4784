package scratch

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the sweep every ten minutes.
const DefaultSchedule = "@every 10m"

// Sweeper removes scratch files left behind by crashed requests.
type Sweeper struct {
	area   *Area
	maxAge time.Duration
	cron   *cron.Cron
	log    *slog.Logger
}

func NewSweeper(area *Area, maxAge time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{area: area, maxAge: maxAge, cron: cron.New(), log: log}
}

// Start schedules periodic sweeps.
func (s *Sweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(time.Now()) }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scratch sweeper started", "dir", s.area.Dir(), "schedule", schedule, "max_age", s.maxAge)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep deletes owned files older than maxAge and returns how many it
// removed.
func (s *Sweeper) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.area.Dir())
	if err != nil {
		s.log.Warn("scratch sweep: read dir", "error", err)
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < s.maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(s.area.Dir(), e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("scratch sweep", "removed", removed)
	}
	return removed
}

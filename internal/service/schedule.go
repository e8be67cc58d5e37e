package service

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/video-note/pkg/icron"
	"github.com/MimeLyc/video-note/pkg/log"
)

// ScheduleSweep registers the age-based upload sweep on c.
func (s *Service) ScheduleSweep(c *cron.Cron, cronExpr string) (cron.EntryID, error) {
	if err := icron.Validate(cronExpr); err != nil {
		return 0, err
	}

	run := func() {
		_, _, _ = listing.Do("sweep", func() (any, error) {
			if _, err := s.Sweep(); err != nil {
				log.Error("Scheduled sweep failed: %v", err)
			}
			return nil, nil
		})
	}
	id, err := c.AddFunc(cronExpr, run)
	if err != nil {
		return 0, err
	}

	if info, err := icron.GetTriggerInfo(cronExpr, time.Now()); err == nil {
		log.Info("Sweep scheduled (%s), next run at %s, max age %s",
			cronExpr, info.Next.Format(time.DateTime), s.sweepAge)
	}
	return id, nil
}

package indices

import (
	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartIndicesCron schedules a nightly full sync as a safety net for
// index writes lost between change log and recovery runs.
func StartIndicesCron() {
	crontab := cron.New(cron.WithSeconds())
	crontab.AddFunc("0 0 23 * * ?", func() {
		if err := IndicesFullSyncFunc(); err != nil {
			logrus.Errorf("nightly indices full sync: %v", err)
		}
	})
	crontab.Start()
}

package lib

import (
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

var (
	scheduler   gocron.Scheduler
	schedulerMu sync.Mutex
)

func NewScheduler(s gocron.Scheduler) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("Error initializing Scheduler: %s\n", err.Error())
		return nil, err
	}
	scheduler = sched
	sched.Start()
	return sched, nil
}

// CreateCronJob runs handler with args every duration. The scheduler is
// created and started on first use.
func CreateCronJob(name string, handler any, duration time.Duration, args ...any) (*string, error) {
	sched, err := GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return nil, err
	}
	j, err := sched.NewJob(
		gocron.DurationJob(duration),
		gocron.NewTask(handler, args...),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Error creating job %s: %s\n", name, err.Error())
		return nil, err
	}
	id := j.ID().String()
	log.Printf("Job: %s %s\n", id, j.Name())
	return &id, nil
}

func StopScheduler() {
	schedulerMu.Lock()
	defer schedulerMu.Unlock()
	if scheduler == nil {
		return
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Error stopping Scheduler: %s\n", err.Error())
	}
	scheduler = nil
}

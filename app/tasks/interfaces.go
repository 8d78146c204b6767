package tasks

// TaskSchedulerInterface is what the HTTP layer needs to queue work in the background.
//
//	scheduler := NewScheduler(Options{Triggers: triggers})
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewIngestTask(orchestrator))
type TaskSchedulerInterface interface {
	EnqueueTask(task TaskInterface) error
}

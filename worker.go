package signoff

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

// ReminderWorker periodically re-notifies approvers whose step has been
// actionable for longer than the reminder age. Reminders are best effort:
// a failed delivery is logged and retried on the next tick.
type ReminderWorker struct {
	store    Store
	notifier Notifier
	workerID string
	age      time.Duration
	interval time.Duration
	stopCh   chan struct{}
}

func NewReminderWorker(store Store, notifier Notifier, age, interval time.Duration) *ReminderWorker {
	return &ReminderWorker{
		store:    store,
		notifier: notifier,
		workerID: uuid.New().String(),
		age:      age,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("Reminder worker %s started", w.workerID)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Reminder worker %s stopping: context cancelled", w.workerID)

			return
		case <-w.stopCh:
			log.Printf("Reminder worker %s stopping: stop signal received", w.workerID)

			return
		case <-ticker.C:
			if err := w.remind(ctx); err != nil {
				log.Printf("Reminder worker %s error: %v", w.workerID, err)
			}
		}
	}
}

func (w *ReminderWorker) Stop() {
	close(w.stopCh)
}

func (w *ReminderWorker) remind(ctx context.Context) error {
	cutoff := time.Now().Add(-w.age)

	steps, err := w.store.ListStalePendingSteps(ctx, cutoff)
	if err != nil {
		return err
	}

	workflows := make(map[string]*Workflow)

	for _, step := range steps {
		workflow, ok := workflows[step.WorkflowID]
		if !ok {
			workflow, err = w.store.GetWorkflow(ctx, step.WorkflowID)
			if err != nil {
				log.Printf("Reminder worker %s: load workflow %s: %v", w.workerID, step.WorkflowID, err)

				continue
			}
			workflows[step.WorkflowID] = workflow
		}

		// A serial step whose turn has not come yet gets no reminder.
		if !StepActionable(workflow, step) {
			continue
		}

		notification := Notification{
			UserID:     step.ApproverUserID,
			Type:       NotifyReminder,
			WorkflowID: workflow.ID,
			FileID:     workflow.FileID,
			StepID:     &step.ID,
		}
		if err := w.notifier.Notify(ctx, notification); err != nil {
			log.Printf("Reminder worker %s: notify %s: %v", w.workerID, step.ApproverUserID, err)
		}
	}

	return nil
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coursekit/evalserver/internal/models"
)

func TestTaskTypeQueueEmails_Constant(t *testing.T) {
	if TaskTypeQueueEmails != "email:queue" {
		t.Errorf("TaskTypeQueueEmails = %q, expected %q", TaskTypeQueueEmails, "email:queue")
	}
}

func TestEmailQueueTask_Structure(t *testing.T) {
	task := EmailQueueTask{
		EvaluationID: 7,
		EmailType:    models.EmailTypeReminder,
	}

	if task.EvaluationID != 7 {
		t.Errorf("EvaluationID = %d, expected 7", task.EvaluationID)
	}
	if task.EmailType != models.EmailTypeReminder {
		t.Errorf("EmailType = %q, expected reminder", task.EmailType)
	}
}

func TestSyncQueue_New(t *testing.T) {
	queue := NewSyncQueue()
	if queue == nil {
		t.Error("NewSyncQueue should not return nil")
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
}

func TestSyncQueue_Close(t *testing.T) {
	queue := NewSyncQueue()
	err := queue.Close()
	if err != nil {
		t.Errorf("SyncQueue.Close() should return nil, got %v", err)
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue()
	task := &EmailQueueTask{
		EvaluationID: 1,
		EmailType:    models.EmailTypeAvailable,
	}

	err := queue.Enqueue(task)
	if err != nil {
		t.Errorf("Enqueue without processor should not error, got %v", err)
	}
}

func TestSyncQueue_EnqueueInvokesProcessor(t *testing.T) {
	queue := NewSyncQueue()

	var mu sync.Mutex
	var got *EmailQueueTask
	done := make(chan struct{})
	queue.SetProcessor(func(ctx context.Context, task *EmailQueueTask) error {
		mu.Lock()
		got = task
		mu.Unlock()
		close(done)
		return nil
	})

	if err := queue.Enqueue(&EmailQueueTask{EvaluationID: 3, EmailType: models.EmailTypeAvailable}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.EvaluationID != 3 {
		t.Errorf("processor got evaluation %d, expected 3", got.EvaluationID)
	}
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fincoach/internal/config"
)

func newTestDispatcher(queueSize int) *Dispatcher {
	cfg := &config.Config{
		Dispatch: config.DispatchConfig{
			TaskTimeout:  time.Second,
			QueueSize:    queueSize,
			IdleQueueTTL: 50 * time.Millisecond,
		},
	}
	return New(cfg, zap.NewNop())
}

func TestTasksForOneUserRunInOrder(t *testing.T) {
	d := newTestDispatcher(16)
	defer d.Stop()

	userID := uuid.Must(uuid.NewV7())
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		d.Enqueue(userID, "ordered", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			if len(order) == 5 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not finish")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestUsersRunConcurrently(t *testing.T) {
	d := newTestDispatcher(16)
	defer d.Stop()

	// each user's task blocks until the other user's task has started;
	// serial execution would deadlock
	aStarted := make(chan struct{})
	bStarted := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	d.Enqueue(uuid.Must(uuid.NewV7()), "a", func(ctx context.Context) error {
		defer wg.Done()
		close(aStarted)
		select {
		case <-bStarted:
			return nil
		case <-time.After(2 * time.Second):
			t.Error("user B never started")
			return nil
		}
	})
	d.Enqueue(uuid.Must(uuid.NewV7()), "b", func(ctx context.Context) error {
		defer wg.Done()
		close(bStarted)
		select {
		case <-aStarted:
			return nil
		case <-time.After(2 * time.Second):
			t.Error("user A never started")
			return nil
		}
	})

	wg.Wait()
}

func TestFullQueueDropsTask(t *testing.T) {
	d := newTestDispatcher(1)
	defer d.Stop()

	userID := uuid.Must(uuid.NewV7())
	release := make(chan struct{})
	ran := make(chan string, 8)

	// occupy the consumer so follow-up tasks pile into the channel
	d.Enqueue(userID, "blocker", func(ctx context.Context) error {
		<-release
		ran <- "blocker"
		return nil
	})
	time.Sleep(20 * time.Millisecond)

	d.Enqueue(userID, "queued", func(ctx context.Context) error {
		ran <- "queued"
		return nil
	})
	d.Enqueue(userID, "dropped", func(ctx context.Context) error {
		ran <- "dropped"
		return nil
	})
	close(release)

	got := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case name := <-ran:
			got[name] = true
		case <-timeout:
			t.Fatal("tasks did not finish")
		}
	}
	assert.True(t, got["blocker"])
	assert.True(t, got["queued"])

	select {
	case name := <-ran:
		t.Fatalf("unexpected extra task ran: %s", name)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestIdleQueueIsReaped(t *testing.T) {
	d := newTestDispatcher(4)
	defer d.Stop()

	userID := uuid.Must(uuid.NewV7())
	done := make(chan struct{})
	d.Enqueue(userID, "once", func(ctx context.Context) error {
		close(done)
		return nil
	})
	<-done

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.queues) == 0
	}, 2*time.Second, 20*time.Millisecond, "idle queue should be retired")

	// a retired queue comes back transparently
	again := make(chan struct{})
	d.Enqueue(userID, "again", func(ctx context.Context) error {
		close(again)
		return nil
	})
	select {
	case <-again:
	case <-time.After(2 * time.Second):
		t.Fatal("task after reap never ran")
	}
}

func TestStopDropsNewTasks(t *testing.T) {
	d := newTestDispatcher(4)
	d.Stop()

	ran := make(chan struct{}, 1)
	d.Enqueue(uuid.Must(uuid.NewV7()), "late", func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})

	select {
	case <-ran:
		t.Fatal("task ran after Stop")
	case <-time.After(100 * time.Millisecond):
	}
}

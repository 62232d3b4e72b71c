package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestExecutor(t *testing.T) (*RedisExecutor, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisExecutor(client, 10*time.Millisecond, 2, zap.NewNop()), mr
}

func TestRedisExecutor_RunsEnqueuedTask(t *testing.T) {
	exec, _ := newTestExecutor(t)

	done := make(chan Task, 1)
	exec.Register("tasks.test", func(ctx context.Context, task Task) Result {
		done <- task
		return Success()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exec.Run(ctx)

	require.NoError(t, exec.Enqueue(ctx, "tasks.test", map[string]interface{}{"videoId": 42}))

	select {
	case task := <-done:
		assert.Equal(t, "tasks.test", task.Name)
		assert.Equal(t, 0, task.Attempts)
		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(task.Payload, &payload))
		assert.Equal(t, float64(42), payload["videoId"])
	case <-time.After(2 * time.Second):
		t.Fatal("la tarea nunca se ejecutó")
	}
}

func TestRedisExecutor_RetryIncrementsAttempts(t *testing.T) {
	exec, _ := newTestExecutor(t)

	attempts := make(chan int, 2)
	exec.Register("tasks.flaky", func(ctx context.Context, task Task) Result {
		attempts <- task.Attempts
		if task.Attempts == 0 {
			return RetryIn(20*time.Millisecond, errors.New("transient"))
		}
		return Success()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exec.Run(ctx)

	require.NoError(t, exec.Enqueue(ctx, "tasks.flaky", map[string]interface{}{}))

	expectAttempt := func(want int) {
		select {
		case got := <-attempts:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("no llegó el intento %d", want)
		}
	}
	expectAttempt(0)
	// La tarea se reprograma con el contador incrementado.
	expectAttempt(1)
}

func TestRedisExecutor_EnqueueInGoesToScheduled(t *testing.T) {
	exec, mr := newTestExecutor(t)

	ctx := context.Background()
	require.NoError(t, exec.EnqueueIn(ctx, "tasks.later", map[string]interface{}{}, time.Hour))

	// La tarea diferida espera en el zset, no en la cola lista.
	assert.False(t, mr.Exists("executor:ready"))
	members, err := mr.ZMembers("executor:scheduled")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRedisExecutor_PromotesDueTasks(t *testing.T) {
	exec, _ := newTestExecutor(t)

	done := make(chan struct{}, 1)
	exec.Register("tasks.soon", func(ctx context.Context, task Task) Result {
		done <- struct{}{}
		return Success()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Diferida a muy corto plazo: el bucle debe promoverla y ejecutarla.
	require.NoError(t, exec.EnqueueIn(ctx, "tasks.soon", map[string]interface{}{}, 30*time.Millisecond))
	go exec.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("la tarea diferida nunca se promovió")
	}
}

func TestRedisExecutor_TerminalIsNotRescheduled(t *testing.T) {
	exec, mr := newTestExecutor(t)

	var calls int32
	exec.Register("tasks.doomed", func(ctx context.Context, task Task) Result {
		atomic.AddInt32(&calls, 1)
		return Terminal(errors.New("payload roto"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go exec.Run(ctx)

	require.NoError(t, exec.Enqueue(ctx, "tasks.doomed", map[string]interface{}{}))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Nada pendiente: ni en la cola lista ni en la diferida.
	time.Sleep(50 * time.Millisecond)
	assert.False(t, mr.Exists("executor:ready"))
	assert.False(t, mr.Exists("executor:scheduled"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

package queue

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/agricoop/pkg/config"
	"github.com/hugh/agricoop/pkg/util"
)

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	}
}

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(redisOpt(cfg))
}

func NewServer(cfg *config.RedisConfig, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)
}

// NewScheduler enqueues periodic tasks. Schedules are evaluated in UTC.
func NewScheduler(cfg *config.RedisConfig) *asynq.Scheduler {
	return asynq.NewScheduler(redisOpt(cfg), &asynq.SchedulerOpts{Location: time.UTC})
}

// Periodic is satisfied by *asynq.Scheduler.
type Periodic interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// RegisterPeriodic validates cronExpr before handing task to the scheduler.
// At most one copy of the task is pending at a time.
func RegisterPeriodic(s Periodic, cronExpr string, task *asynq.Task) (string, error) {
	if err := util.ValidateCronExpr(cronExpr); err != nil {
		return "", err
	}
	id, err := s.Register(cronExpr, task, asynq.Unique(time.Minute), asynq.Queue("critical"))
	if err != nil {
		return "", fmt.Errorf("registering %s: %w", task.Type(), err)
	}
	return id, nil
}

package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/models"
	"task-tracker/backend/internal/policy"
)

const (
	dashboardKeyPrefix = "dashboard:"
	myTasksKeyPrefix   = "my_tasks:"
	epochKey           = "tasks:epoch"
)

// CachedTaskService caches the per-actor dashboard and my-tasks projections.
// Keys carry the current task epoch; any successful mutation bumps the epoch,
// retiring the projections of every actor at once. A load that races with a
// mutation stores its result under the old epoch, where nobody reads it.
type CachedTaskService struct {
	TaskService
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedTaskService(inner TaskService, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *CachedTaskService {
	return &CachedTaskService{
		TaskService: inner,
		cache:       c,
		ttl:         ttl,
		logger:      logger.With().Str("component", "task_cache").Logger(),
	}
}

func (s *CachedTaskService) DashboardStats(ctx context.Context, actor models.User) (policy.DashboardStats, error) {
	key, ok := s.key(dashboardKeyPrefix, actor)
	if !ok {
		return s.TaskService.DashboardStats(ctx, actor)
	}

	var stats policy.DashboardStats
	if err := s.cache.Get(key, &stats); err == nil {
		return stats, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	stats, err := s.TaskService.DashboardStats(ctx, actor)
	if err != nil {
		return stats, err
	}
	s.store(key, stats)
	return stats, nil
}

func (s *CachedTaskService) MyTasks(ctx context.Context, actor models.User) ([]models.Task, error) {
	key, ok := s.key(myTasksKeyPrefix, actor)
	if !ok {
		return s.TaskService.MyTasks(ctx, actor)
	}

	var tasks []models.Task
	if err := s.cache.Get(key, &tasks); err == nil {
		return tasks, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	tasks, err := s.TaskService.MyTasks(ctx, actor)
	if err != nil {
		return nil, err
	}
	s.store(key, tasks)
	return tasks, nil
}

func (s *CachedTaskService) CreateTask(ctx context.Context, actor models.User, input TaskInput) (models.Task, error) {
	task, err := s.TaskService.CreateTask(ctx, actor, input)
	if err == nil {
		s.invalidate()
	}
	return task, err
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, actor models.User, id uuid.UUID, input TaskInput) (models.Task, error) {
	task, err := s.TaskService.UpdateTask(ctx, actor, id, input)
	if err == nil {
		s.invalidate()
	}
	return task, err
}

func (s *CachedTaskService) UpdateStatus(ctx context.Context, actor models.User, id uuid.UUID, status models.TaskStatus) (models.Task, error) {
	task, err := s.TaskService.UpdateStatus(ctx, actor, id, status)
	if err == nil {
		s.invalidate()
	}
	return task, err
}

func (s *CachedTaskService) UpdateCompletion(ctx context.Context, actor models.User, id uuid.UUID, percentage int) (models.Task, error) {
	task, err := s.TaskService.UpdateCompletion(ctx, actor, id, percentage)
	if err == nil {
		s.invalidate()
	}
	return task, err
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, actor models.User, id uuid.UUID) error {
	err := s.TaskService.DeleteTask(ctx, actor, id)
	if err == nil {
		s.invalidate()
	}
	return err
}

// key builds the projection key for the current epoch. It reports false when
// the epoch cannot be read, in which case the cache is skipped.
func (s *CachedTaskService) key(prefix string, actor models.User) (string, bool) {
	epoch, err := s.cache.Counter(epochKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache epoch unavailable, reading through")
		return "", false
	}
	return prefix + strconv.FormatInt(epoch, 10) + ":" + actor.ID.String(), true
}

func (s *CachedTaskService) store(key string, value interface{}) {
	if err := s.cache.Set(key, value, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// invalidate bumps the epoch, then removes the retired entries. The removal
// only saves memory; a failed one leaves unreachable keys to their TTL.
func (s *CachedTaskService) invalidate() {
	if _, err := s.cache.Incr(epochKey); err != nil {
		s.logger.Error().Err(err).Msg("cache epoch bump failed")
	}
	for _, prefix := range []string{dashboardKeyPrefix, myTasksKeyPrefix} {
		if err := s.cache.DeletePattern(prefix + "*"); err != nil {
			s.logger.Warn().Err(err).Str("pattern", prefix+"*").Msg("cache cleanup failed")
		}
	}
}

var _ TaskService = (*CachedTaskService)(nil)

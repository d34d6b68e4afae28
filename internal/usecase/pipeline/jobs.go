package pipeline

import (
	"sync"
	"time"

	"contract-check-bot/internal/domain"
)

// JobStore — ограниченный кэш активных задач, ключ — Telegram user id.
// Политика перезаписи — last-write-wins: новая загрузка того же
// пользователя молча вытесняет незавершённую. Записи истекают по TTL;
// просроченные вычищаются лениво при обращениях, поэтому отдельного
// фонового процесса не требуется.
type JobStore struct {
	mu      sync.Mutex
	jobs    map[int64]*storedJob
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type storedJob struct {
	job      *domain.DocumentJob
	touched  time.Time
	deadline time.Time
}

// NewJobStore создаёт кэш с заданным TTL и верхней границей размера.
func NewJobStore(ttl time.Duration, maxSize int) *JobStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &JobStore{
		jobs:    make(map[int64]*storedJob),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Put сохраняет задачу пользователя, перезаписывая предыдущую.
func (s *JobStore) Put(job *domain.DocumentJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictExpiredLocked(now)
	if _, exists := s.jobs[job.TGUserID]; !exists && len(s.jobs) >= s.maxSize {
		s.evictOldestLocked()
	}
	s.jobs[job.TGUserID] = &storedJob{
		job:      job,
		touched:  now,
		deadline: now.Add(s.ttl),
	}
}

// Get возвращает активную задачу пользователя либо nil.
func (s *JobStore) Get(tgUserID int64) *domain.DocumentJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.jobs[tgUserID]
	if !ok {
		return nil
	}
	if s.now().After(entry.deadline) {
		delete(s.jobs, tgUserID)
		return nil
	}
	return entry.job
}

// Delete удаляет задачу пользователя.
func (s *JobStore) Delete(tgUserID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, tgUserID)
}

// Len возвращает число живых записей.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(s.now())
	return len(s.jobs)
}

func (s *JobStore) evictExpiredLocked(now time.Time) {
	for id, entry := range s.jobs {
		if now.After(entry.deadline) {
			delete(s.jobs, id)
		}
	}
}

func (s *JobStore) evictOldestLocked() {
	var oldestID int64
	var oldest time.Time
	first := true
	for id, entry := range s.jobs {
		if first || entry.touched.Before(oldest) {
			oldestID, oldest = id, entry.touched
			first = false
		}
	}
	if !first {
		delete(s.jobs, oldestID)
	}
}

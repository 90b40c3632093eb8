package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuizCache caches quizzes with TTL in front of an app.QuizStore to avoid repeated DB hits.
// Every mutation goes to the backing store and bumps a per-quiz version before and after the write;
// a loaded copy is only cached if the version did not move while it was read.
// A ttl <= 0 disables caching.
type QuizCache struct {
	app.QuizStore
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu       sync.RWMutex
	cache    map[string]cachedQuiz
	versions map[string]uint64
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizCache(store app.QuizStore, ttl time.Duration) *QuizCache {
	return &QuizCache{
		QuizStore: store,
		ttl:       ttl,
		clock:     time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:     make(map[string]cachedQuiz),
		versions:  make(map[string]uint64),
	}
}

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if c.ttl <= 0 {
		return c.QuizStore.GetQuiz(ctx, quizID)
	}
	now := c.clock()

	c.mu.RLock()
	entry, ok := c.cache[quizID]
	version := c.versions[quizID]
	c.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		return cloneQuiz(entry.quiz), nil
	}

	// reads that start after a write never share a flight with reads from before it
	key := quizID + "@" + strconv.FormatUint(version, 10)
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		quiz, err := c.QuizStore.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.putIfCurrent(quiz, version, now)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return cloneQuiz(result.(domain.Quiz)), nil
}

func (c *QuizCache) MarkLive(ctx context.Context, quizID string, at time.Time) (domain.Quiz, error) {
	c.invalidate(quizID)
	defer c.invalidate(quizID)
	return c.QuizStore.MarkLive(ctx, quizID, at)
}

func (c *QuizCache) MarkEnded(ctx context.Context, quizID string, at time.Time) (domain.Quiz, bool, error) {
	c.invalidate(quizID)
	defer c.invalidate(quizID)
	return c.QuizStore.MarkEnded(ctx, quizID, at)
}

func (c *QuizCache) SetWinner(ctx context.Context, quizID string, winner *string) error {
	c.invalidate(quizID)
	defer c.invalidate(quizID)
	return c.QuizStore.SetWinner(ctx, quizID, winner)
}

func (c *QuizCache) AppendParticipant(ctx context.Context, quizID string, p domain.Participant) (domain.Quiz, error) {
	c.invalidate(quizID)
	defer c.invalidate(quizID)
	return c.QuizStore.AppendParticipant(ctx, quizID, p)
}

func (c *QuizCache) putIfCurrent(quiz domain.Quiz, version uint64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[quiz.ID] != version {
		return
	}
	c.cache[quiz.ID] = cachedQuiz{
		quiz:      cloneQuiz(quiz),
		expiresAt: now.Add(c.ttlWithJitter()),
	}
}

func (c *QuizCache) invalidate(quizID string) {
	c.mu.Lock()
	delete(c.cache, quizID)
	c.versions[quizID]++
	c.mu.Unlock()
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

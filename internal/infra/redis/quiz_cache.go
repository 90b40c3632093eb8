package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/domain"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// QuizCache caches quiz documents in Redis and falls back to the backing store on a miss.
// Documents are stored as JSON under quiz:{quizID}:doc. Every mutation bumps quiz:{quizID}:ver
// before and after the write, and a loaded document is only stored if the version is unchanged.
// A ttl <= 0 disables caching.
type QuizCache struct {
	app.QuizStore
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizCache(client *redis.Client, store app.QuizStore, ttl time.Duration) *QuizCache {
	return &QuizCache{
		QuizStore: store,
		client:    client,
		ttl:       ttl,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// cachedQuiz keeps participant keys, which domain.Quiz hides from JSON.
type cachedQuiz struct {
	Quiz         domain.Quiz `json:"quiz"`
	Participants []string    `json:"participantKeys"`
}

var errStaleLoad = errors.New("quiz changed while loading")

func (c *QuizCache) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if c.ttl <= 0 {
		return c.QuizStore.GetQuiz(ctx, quizID)
	}
	if quiz, ok := c.lookup(ctx, quizID); ok {
		return quiz, nil
	}
	version, err := c.version(ctx, quizID)
	if err != nil {
		log.WithError(err).WithField("quiz_id", quizID).Warn("quiz cache version")
		return c.QuizStore.GetQuiz(ctx, quizID)
	}

	result, err, _ := c.sf.Do(quizID+"@"+version, func() (interface{}, error) {
		quiz, err := c.QuizStore.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		c.store(ctx, quiz, version)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (c *QuizCache) MarkLive(ctx context.Context, quizID string, at time.Time) (domain.Quiz, error) {
	c.invalidate(ctx, quizID)
	defer c.invalidate(ctx, quizID)
	return c.QuizStore.MarkLive(ctx, quizID, at)
}

func (c *QuizCache) MarkEnded(ctx context.Context, quizID string, at time.Time) (domain.Quiz, bool, error) {
	c.invalidate(ctx, quizID)
	defer c.invalidate(ctx, quizID)
	return c.QuizStore.MarkEnded(ctx, quizID, at)
}

func (c *QuizCache) SetWinner(ctx context.Context, quizID string, winner *string) error {
	c.invalidate(ctx, quizID)
	defer c.invalidate(ctx, quizID)
	return c.QuizStore.SetWinner(ctx, quizID, winner)
}

func (c *QuizCache) AppendParticipant(ctx context.Context, quizID string, p domain.Participant) (domain.Quiz, error) {
	c.invalidate(ctx, quizID)
	defer c.invalidate(ctx, quizID)
	return c.QuizStore.AppendParticipant(ctx, quizID, p)
}

func (c *QuizCache) version(ctx context.Context, quizID string) (string, error) {
	v, err := c.client.Get(ctx, verKey(quizID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

func (c *QuizCache) lookup(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := c.client.Get(ctx, docKey(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("quiz_id", quizID).Warn("quiz cache read")
		}
		return domain.Quiz{}, false
	}
	var cached cachedQuiz
	if err := json.Unmarshal(raw, &cached); err != nil {
		return domain.Quiz{}, false
	}
	quiz := cached.Quiz
	for i := range quiz.Participants {
		if i < len(cached.Participants) {
			quiz.Participants[i].Key = cached.Participants[i]
		}
	}
	return quiz, true
}

func (c *QuizCache) store(ctx context.Context, quiz domain.Quiz, version string) {
	keys := make([]string, len(quiz.Participants))
	for i, p := range quiz.Participants {
		keys[i] = p.Key
	}
	raw, err := json.Marshal(cachedQuiz{Quiz: quiz, Participants: keys})
	if err != nil {
		return
	}
	// a failed or aborted write only costs the next read a store round trip
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey(quiz.ID)).Result()
		if errors.Is(err, redis.Nil) {
			current, err = "0", nil
		}
		if err != nil {
			return err
		}
		if current != version {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, docKey(quiz.ID), raw, c.ttlWithJitter())
			return nil
		})
		return err
	}, verKey(quiz.ID))
	if err != nil && !errors.Is(err, errStaleLoad) && !errors.Is(err, redis.TxFailedErr) {
		log.WithError(err).WithField("quiz_id", quiz.ID).Warn("quiz cache write")
	}
}

func (c *QuizCache) invalidate(ctx context.Context, quizID string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey(quizID))
		pipe.Del(ctx, docKey(quizID))
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("quiz_id", quizID).Warn("quiz cache invalidate")
	}
}

func docKey(quizID string) string {
	return "quiz:" + quizID + ":doc"
}

func verKey(quizID string) string {
	return "quiz:" + quizID + ":ver"
}

func (c *QuizCache) ttlWithJitter() time.Duration {
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

package redis

import (
	"context"
	"sync"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - Rooms and their subscribers live in process; broadcast stays local.
//   - Redis carries a marker per open room (quiz:room:{id}) for operators
//     (e.g. `redis-cli --scan --pattern 'quiz:room:*'`). The service never reads it.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) GetOrCreate(quizID string) *app.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[quizID]; ok {
		return room
	}
	room := app.NewRoom()
	s.rooms[quizID] = room
	metrics.LiveRooms.Inc()
	// operator marker; failures are ignored
	_ = s.client.Set(context.Background(), s.key(quizID), "1", s.ttl).Err()
	return room
}

func (s *RoomStore) Get(quizID string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[quizID]
	return room, ok
}

func (s *RoomStore) Delete(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[quizID]; !ok {
		return
	}
	delete(s.rooms, quizID)
	metrics.LiveRooms.Dec()
	_ = s.client.Del(context.Background(), s.key(quizID)).Err()
}

func (s *RoomStore) key(quizID string) string {
	return "quiz:room:" + quizID
}

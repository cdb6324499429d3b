package redis

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"ms-lottery/internal/models"
)

// Store reserves ticket numbers in Redis. SETNX on the per-number key is the
// atomic conditional write: the value is the owning user, and only the first
// writer for a key wins. Reservations carry no TTL; a sold lottery ticket
// never expires.
type Store struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewStore(client *redis.Client) *Store {
	return &Store{
		Client: client,
		Logger: log.Default(),
	}
}

func ticketKey(roundID string, number int) string {
	return fmt.Sprintf("lottery_ticket:%s:%d", roundID, number)
}

func roundPattern(roundID string) string {
	return "lottery_ticket:" + roundID + ":*"
}

// Reserve claims a number for the ticket's owner. Returns false when another
// purchaser already holds it.
func (s *Store) Reserve(ctx context.Context, ticket models.Ticket) (bool, error) {
	key := ticketKey(ticket.RoundID, ticket.Number)
	return s.Client.SetNX(ctx, key, ticket.OwnerID, 0).Result()
}

// Release frees the given numbers unconditionally.
func (s *Store) Release(ctx context.Context, roundID string, numbers []int) error {
	if len(numbers) == 0 {
		return nil
	}
	keys := make([]string, len(numbers))
	for i, n := range numbers {
		keys[i] = ticketKey(roundID, n)
	}
	return s.Client.Del(ctx, keys...).Err()
}

// roundKeys lists every reserved key of a round. KEYS is fine here: the
// keyspace per round is bounded by the round's ticket capacity.
func (s *Store) roundKeys(ctx context.Context, roundID string) ([]string, error) {
	return s.Client.Keys(ctx, roundPattern(roundID)).Result()
}

func (s *Store) SoldNumbers(ctx context.Context, roundID string) ([]int, error) {
	keys, err := s.roundKeys(ctx, roundID)
	if err != nil {
		return nil, err
	}
	numbers := make([]int, 0, len(keys))
	for _, key := range keys {
		idx := strings.LastIndex(key, ":")
		number, err := strconv.Atoi(key[idx+1:])
		if err != nil {
			s.Logger.Printf("REDIS: skipping malformed ticket key %q", key)
			continue
		}
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)
	return numbers, nil
}

func (s *Store) SoldCount(ctx context.Context, roundID string) (int, error) {
	keys, err := s.roundKeys(ctx, roundID)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *Store) OwnedCount(ctx context.Context, roundID, userID string) (int, error) {
	counts, err := s.PerUserCounts(ctx, roundID)
	if err != nil {
		return 0, err
	}
	return counts[userID], nil
}

func (s *Store) PerUserCounts(ctx context.Context, roundID string) (map[string]int, error) {
	keys, err := s.roundKeys(ctx, roundID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	if len(keys) == 0 {
		return counts, nil
	}
	values, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for _, value := range values {
		owner, ok := value.(string)
		if !ok {
			// Key expired or was released between KEYS and MGET.
			continue
		}
		counts[owner]++
	}
	return counts, nil
}

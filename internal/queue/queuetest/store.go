// Package queuetest provides an in-memory queue.Store fake so the
// dispatch/failure/reschedule/introspection logic can be exercised without
// a live Redis, following the teacher's convention of testing decision
// logic against a fake collaborator rather than mocking every call.
package queuetest

import (
	"context"
	"sort"
	"sync"

	"github.com/ducdigital/fairy-go/internal/queue"
)

// Store is a single-process, mutex-guarded fake satisfying queue.Store.
// PromoteHead/DrainHead/CommitReschedule are implemented as plain critical
// sections: there is only one goroutine's view of state, so there is
// nothing to optimistically retry against. Tests that want to exercise
// the abort path can use WithNextTransactAborted.
type Store struct {
	mu sync.Mutex

	lists  map[string][]string
	sets   map[string]map[string]struct{}
	hashes map[string]map[string]string
	zsets  map[string]map[string]float64

	forceAbort bool
}

// NewStore creates an empty fake store.
func NewStore() *Store {
	return &Store{
		lists:  make(map[string][]string),
		sets:   make(map[string]map[string]struct{}),
		hashes: make(map[string]map[string]string),
		zsets:  make(map[string]map[string]float64),
	}
}

// WithNextTransactAborted makes the next PromoteHead or CommitReschedule
// call report an abort instead of committing, then clears itself.
func (s *Store) WithNextTransactAborted() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forceAbort = true
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) RPush(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], value)
	return nil
}

func (s *Store) LPush(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append([]string{value}, s.lists[key]...)
	return nil
}

func (s *Store) LPop(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lpopLocked(key)
}

func (s *Store) lpopLocked(key string) (string, bool, error) {
	l := s.lists[key]
	if len(l) == 0 {
		return "", false, nil
	}
	v := l[0]
	s.lists[key] = l[1:]
	return v, true, nil
}

func (s *Store) RPop(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	if len(l) == 0 {
		return "", false, nil
	}
	v := l[len(l)-1]
	s.lists[key] = l[:len(l)-1]
	return v, true, nil
}

func (s *Store) LIndex(ctx context.Context, key string, index int64) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	i := int(index)
	if i < 0 {
		i += len(l)
	}
	if i < 0 || i >= len(l) {
		return "", false, nil
	}
	return l[i], true, nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lists[key]
	n := len(l)
	from, to := normalizeRange(start, stop, n)
	if from > to {
		return []string{}, nil
	}
	out := make([]string, to-from+1)
	copy(out, l[from:to+1])
	return out, nil
}

func normalizeRange(start, stop int64, n int) (int, int) {
	from := int(start)
	to := int(stop)
	if from < 0 {
		from += n
	}
	if to < 0 {
		to += n
	}
	if from < 0 {
		from = 0
	}
	if to >= n {
		to = n - 1
	}
	return from, to
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[key])), nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.lists, k)
		delete(s.sets, k)
		delete(s.hashes, k)
		delete(s.zsets, k)
	}
	return nil
}

func (s *Store) SAdd(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sets[key] == nil {
		s.sets[key] = make(map[string]struct{})
	}
	s.sets[key][member] = struct{}{}
	return nil
}

func (s *Store) SRem(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets[key], member)
	return nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.sets[key])), nil
}

func (s *Store) HSet(ctx context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]string)
	}
	s.hashes[key][field] = value
	return nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hashes[key] == nil {
		s.hashes[key] = make(map[string]string)
	}
	cur := parseInt(s.hashes[key][field])
	cur += incr
	s.hashes[key][field] = formatInt(cur)
	return cur, nil
}

func (s *Store) HDel(ctx context.Context, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes[key], field)
	return nil
}

func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zsets[key] == nil {
		s.zsets[key] = make(map[string]float64)
	}
	s.zsets[key][member] = score
	return nil
}

func (s *Store) ZRevRange(ctx context.Context, key string, start, stop int64) ([]queue.ScoredMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]queue.ScoredMember, 0, len(s.zsets[key]))
	for m, score := range s.zsets[key] {
		members = append(members, queue.ScoredMember{Member: m, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score == members[j].Score {
			return members[i].Member < members[j].Member
		}
		return members[i].Score > members[j].Score
	})
	n := len(members)
	from, to := normalizeRange(start, stop, n)
	if from > to {
		return []queue.ScoredMember{}, nil
	}
	out := make([]queue.ScoredMember, to-from+1)
	copy(out, members[from:to+1])
	return out, nil
}

func (s *Store) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]queue.ScoredMember, 0, len(s.zsets[key]))
	for m, score := range s.zsets[key] {
		members = append(members, queue.ScoredMember{Member: m, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score == members[j].Score {
			return members[i].Member < members[j].Member
		}
		return members[i].Score < members[j].Score
	})
	n := len(members)
	from, to := normalizeRange(start, stop, n)
	if from > to {
		return nil
	}
	for _, m := range members[from : to+1] {
		delete(s.zsets[key], m.Member)
	}
	return nil
}

func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.zsets[key])), nil
}

func (s *Store) PromoteHead(ctx context.Context, src, dst, want string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceAbort {
		s.forceAbort = false
		return 0, false, nil
	}
	l := s.lists[src]
	if len(l) == 0 || l[0] != want {
		return 0, false, nil
	}
	s.lists[src] = l[1:]
	s.lists[dst] = append(s.lists[dst], want)
	return int64(len(s.lists[dst])), true, nil
}

func (s *Store) DrainHead(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, _, err := s.lpopLocked(key); err != nil {
		return "", false, err
	}
	l := s.lists[key]
	if len(l) == 0 {
		return "", false, nil
	}
	return l[0], true, nil
}

func (s *Store) CommitReschedule(ctx context.Context, watchKeys []string, sourceKey string, buffer []string, delKeys []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forceAbort {
		s.forceAbort = false
		return true, nil
	}
	s.lists[sourceKey] = append(s.lists[sourceKey], buffer...)
	for _, k := range delKeys {
		delete(s.lists, k)
		delete(s.sets, k)
		delete(s.hashes, k)
		delete(s.zsets, k)
	}
	return false, nil
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	var n int64
	neg := false
	for i, c := range s {
		if i == 0 && c == '-' {
			neg = true
			continue
		}
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

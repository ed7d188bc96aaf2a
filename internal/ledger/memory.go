package ledger

import (
	"context"
	"sync"
)

// MemoryService is an in-memory Service for unit tests, same
// grounding as idempotency.MemoryStore: the teacher's in-memory
// repository fallback pattern. It enforces the same reference_id
// uniqueness the Postgres unique constraint would, and the same
// bounded compensation retry, so it exercises identical semantics to
// PostgresService without a database.
type MemoryService struct {
	mu             sync.Mutex
	entries        map[string]memEntry // by reference_id
	byAccount      map[int][]string    // reference_ids per account, for Balance
	overdraftCents int64
}

type memEntry struct {
	accountID int
	amount    int64
	entryType EntryType
}

func NewMemoryService(overdraftLimitCents int64) *MemoryService {
	return &MemoryService{
		entries:        make(map[string]memEntry),
		byAccount:      make(map[int][]string),
		overdraftCents: overdraftLimitCents,
	}
}

func (s *MemoryService) TryDebit(_ context.Context, accountID int, amountCents int64, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		switch e.entryType {
		case Debit:
			return IdempotentSuccess, nil
		case AbortMarker:
			return Rejected, nil
		default:
			return Conflict, nil
		}
	}

	if s.balanceLocked(accountID)-amountCents < s.overdraftCents {
		return Rejected, nil
	}

	s.insertLocked(accountID, -amountCents, Debit, key)
	return Success, nil
}

func (s *MemoryService) TryCredit(_ context.Context, accountID int, amountCents int64, key string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		if e.entryType == Credit {
			return IdempotentSuccess, nil
		}
		return Conflict, nil
	}

	s.insertLocked(accountID, amountCents, Credit, key)
	return Success, nil
}

func (s *MemoryService) TryCompensateDebit(_ context.Context, accountID int, amountCents int64, originalKey string) (Result, error) {
	for attempt := uint(0); attempt < maxCompensationAttempts; attempt++ {
		result, done := s.compensateOnceLocked(accountID, amountCents, originalKey)
		if done {
			return result, nil
		}
	}
	return Conflict, nil
}

func (s *MemoryService) compensateOnceLocked(accountID int, amountCents int64, originalKey string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[originalKey]; ok && e.entryType == AbortMarker {
		return IdempotentSuccess, true
	}

	if e, ok := s.entries[originalKey]; ok && e.entryType == Debit {
		rKey := refundKey(originalKey)
		if r, ok := s.entries[rKey]; ok && r.entryType == Credit {
			return IdempotentSuccess, true
		}
		s.insertLocked(accountID, amountCents, Credit, rKey)
		return Success, true
	}

	s.insertLocked(accountID, 0, AbortMarker, originalKey)
	return Success, true
}

func (s *MemoryService) Balance(_ context.Context, accountID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(accountID), nil
}

func (s *MemoryService) balanceLocked(accountID int) int64 {
	var sum int64
	for _, key := range s.byAccount[accountID] {
		sum += s.entries[key].amount
	}
	return sum
}

func (s *MemoryService) insertLocked(accountID int, amountCents int64, entryType EntryType, key string) {
	s.entries[key] = memEntry{accountID: accountID, amount: amountCents, entryType: entryType}
	s.byAccount[accountID] = append(s.byAccount[accountID], key)
}

package inmemdb

import (
	"context"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/coaching"
)

type slotRepository struct {
	db *slotTable
}

func NewSlotRepository(db *DB) coaching.Repository {
	return &slotRepository{db: db.slot}
}

func cloneSlot(s coaching.Slot) coaching.Slot {
	s.ParticipantIDs = copyStrings(s.ParticipantIDs)
	if s.ParticipantIDs == nil {
		s.ParticipantIDs = []string{}
	}
	s.Participants = nil
	return s
}

func (repo *slotRepository) CreateSlot(_ context.Context, s coaching.Slot) (coaching.Slot, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s = cloneSlot(s)
	repo.db.table[s.ID] = &s
	return cloneSlot(s), nil
}

func (repo *slotRepository) QuerySlots(_ context.Context, filter coaching.QueryFilter, ordering ...core.DBOrdering) ([]coaching.Slot, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	slots := make([]coaching.Slot, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		if filter.CourseIDs != nil && !core.StringsContain(filter.CourseIDs, s.CourseID) {
			continue
		}
		if filter.ParticipantID != "" && !s.HasParticipant(filter.ParticipantID) {
			continue
		}
		if filter.Available && s.Full() {
			continue
		}
		if !inRange(s.Start, filter.From, filter.To) {
			continue
		}
		slots = append(slots, cloneSlot(*s))
	}

	orderBy(slots, ordering, func(s coaching.Slot, field string) interface{} {
		switch field {
		case "end":
			return s.End
		case "max_participants":
			return s.MaxParticipants
		case "created_at":
			return s.CreatedAt
		default:
			return s.Start
		}
	}, func(s coaching.Slot) string { return s.ID })
	return slots, nil
}

func (repo *slotRepository) GetSlotByID(_ context.Context, id string) (coaching.Slot, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[id]; ok {
		return cloneSlot(*s), nil
	}
	return coaching.Slot{}, coaching.ErrNotFound
}

// modify runs fn on a copy of the slot under the table write lock and stores the copy if fn succeeds.
func (repo *slotRepository) modify(id string, fn func(*coaching.Slot) error) (coaching.Slot, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[id]
	if !ok {
		return coaching.Slot{}, coaching.ErrNotFound
	}
	s := cloneSlot(*orig)
	if err := fn(&s); err != nil {
		return coaching.Slot{}, err
	}
	s = cloneSlot(s)
	repo.db.table[id] = &s
	return cloneSlot(s), nil
}

func (repo *slotRepository) UpdateSlot(_ context.Context, id string, update func(*coaching.Slot) error) (coaching.Slot, error) {
	return repo.modify(id, func(s *coaching.Slot) error {
		participants := s.ParticipantIDs
		if err := update(s); err != nil {
			return err
		}
		s.ID = id
		s.ParticipantIDs = participants
		return nil
	})
}

func (repo *slotRepository) AddParticipant(_ context.Context, slotID, userID string, check func(coaching.Slot) error) (coaching.Slot, error) {
	return repo.modify(slotID, func(s *coaching.Slot) error {
		if err := check(*s); err != nil {
			return err
		}
		s.ParticipantIDs = append(s.ParticipantIDs, userID)
		return nil
	})
}

func (repo *slotRepository) RemoveParticipant(_ context.Context, slotID, userID string, check func(coaching.Slot) error) (coaching.Slot, error) {
	return repo.modify(slotID, func(s *coaching.Slot) error {
		if err := check(*s); err != nil {
			return err
		}
		s.ParticipantIDs = removeString(s.ParticipantIDs, userID)
		return nil
	})
}

func (repo *slotRepository) DeleteSlot(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return coaching.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/coaching"
)

var (
	slotColumns      = []string{"id", "course_id", "start_at", "end_at", "max_participants", "created_at", "updated_at"}
	slotOrderColumns = map[string]string{
		"start":            "start_at",
		"end":              "end_at",
		"max_participants": "max_participants",
		"created_at":       "created_at",
	}
)

type slotRow struct {
	ID              string    `db:"id"`
	CourseID        string    `db:"course_id"`
	StartAt         time.Time `db:"start_at"`
	EndAt           time.Time `db:"end_at"`
	MaxParticipants int       `db:"max_participants"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r slotRow) toSlot(participantIDs []string) coaching.Slot {
	if participantIDs == nil {
		participantIDs = []string{}
	}
	return coaching.Slot{
		ID:              r.ID,
		CourseID:        r.CourseID,
		Start:           r.StartAt.UTC(),
		End:             r.EndAt.UTC(),
		MaxParticipants: r.MaxParticipants,
		ParticipantIDs:  participantIDs,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

type memberRow struct {
	OwnerID string `db:"owner_id"`
	UserID  string `db:"user_id"`
}

type slotRepository struct {
	db *sqlx.DB
}

var _ coaching.Repository = (*slotRepository)(nil) // interface compliance check

func NewSlotRepository(db *sqlx.DB) coaching.Repository {
	return &slotRepository{db: db}
}

// participants returns the participant ids of each slot, in booking order.
func (repo *slotRepository) participants(ctx context.Context, q sqlx.QueryerContext, slotIDs ...string) (map[string][]string, error) {
	res := make(map[string][]string, len(slotIDs))
	if len(slotIDs) == 0 {
		return res, nil
	}
	b := psql.Select("slot_id AS owner_id", "user_id").
		From("coaching_slot_participants").
		Where(sq.Eq{"slot_id": slotIDs}).
		OrderBy("booked_at ASC", "user_id ASC")

	var rows []memberRow
	if err := selectRows(ctx, q, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying slot participants")
	}
	for _, r := range rows {
		res[r.OwnerID] = append(res[r.OwnerID], r.UserID)
	}
	return res, nil
}

func (repo *slotRepository) CreateSlot(ctx context.Context, s coaching.Slot) (coaching.Slot, error) {
	b := psql.Insert("coaching_slots").Columns(slotColumns...).
		Values(s.ID, s.CourseID, s.Start.UTC(), s.End.UTC(), s.MaxParticipants, s.CreatedAt.UTC(), s.UpdatedAt.UTC())
	if _, err := exec(ctx, repo.db, b); err != nil {
		return coaching.Slot{}, errors.Wrap(err, "inserting coaching slot")
	}
	return s, nil
}

func (repo *slotRepository) QuerySlots(ctx context.Context, filter coaching.QueryFilter, ordering ...core.DBOrdering) ([]coaching.Slot, error) {
	b := psql.Select(slotColumns...).From("coaching_slots")
	if filter.CourseIDs != nil {
		b = b.Where(sq.Eq{"course_id": filter.CourseIDs})
	}
	if filter.ParticipantID != "" {
		b = b.Where(sq.Expr("id IN (SELECT slot_id FROM coaching_slot_participants WHERE user_id = ?)", filter.ParticipantID))
	}
	if filter.Available {
		b = b.Where(sq.Expr("(max_participants = 0 OR " +
			"(SELECT COUNT(*) FROM coaching_slot_participants p WHERE p.slot_id = coaching_slots.id) < max_participants)"))
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{"start_at": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.Lt{"start_at": filter.To.UTC()})
	}
	b = b.OrderBy(orderBy(ordering, slotOrderColumns)...)

	var rows []slotRow
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying coaching slots")
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	participants, err := repo.participants(ctx, repo.db, ids...)
	if err != nil {
		return nil, err
	}

	slots := make([]coaching.Slot, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, r.toSlot(participants[r.ID]))
	}
	return slots, nil
}

func (repo *slotRepository) get(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (coaching.Slot, error) {
	b := psql.Select(slotColumns...).From("coaching_slots").Where(sq.Eq{"id": id})
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	var r slotRow
	if err := getRow(ctx, q, &r, b); err != nil {
		return coaching.Slot{}, trapNoRowsErr(err, coaching.ErrNotFound, "finding coaching slot")
	}
	participants, err := repo.participants(ctx, q, id)
	if err != nil {
		return coaching.Slot{}, err
	}
	return r.toSlot(participants[id]), nil
}

func (repo *slotRepository) GetSlotByID(ctx context.Context, id string) (coaching.Slot, error) {
	return repo.get(ctx, repo.db, id, false)
}

// locked loads the slot with a row lock held until fn returns, then reloads it.
func (repo *slotRepository) locked(ctx context.Context, id string, fn func(tx *sqlx.Tx, s coaching.Slot) error) (coaching.Slot, error) {
	var res coaching.Slot
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		s, err := repo.get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(tx, s); err != nil {
			return err
		}
		res, err = repo.get(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return coaching.Slot{}, err
	}
	return res, nil
}

func (repo *slotRepository) UpdateSlot(ctx context.Context, id string, update func(*coaching.Slot) error) (coaching.Slot, error) {
	return repo.locked(ctx, id, func(tx *sqlx.Tx, s coaching.Slot) error {
		if err := update(&s); err != nil {
			return err
		}
		b := psql.Update("coaching_slots").
			Set("course_id", s.CourseID).
			Set("start_at", s.Start.UTC()).
			Set("end_at", s.End.UTC()).
			Set("max_participants", s.MaxParticipants).
			Set("updated_at", s.UpdatedAt.UTC()).
			Where(sq.Eq{"id": id})
		_, err := exec(ctx, tx, b)
		return errors.Wrap(err, "updating coaching slot")
	})
}

func (repo *slotRepository) AddParticipant(ctx context.Context, slotID, userID string, check func(coaching.Slot) error) (coaching.Slot, error) {
	return repo.locked(ctx, slotID, func(tx *sqlx.Tx, s coaching.Slot) error {
		if err := check(s); err != nil {
			return err
		}
		b := psql.Insert("coaching_slot_participants").
			Columns("slot_id", "user_id", "booked_at").
			Values(slotID, userID, core.NowFunc())
		_, err := exec(ctx, tx, b)
		return errors.Wrap(err, "inserting coaching slot participant")
	})
}

func (repo *slotRepository) RemoveParticipant(ctx context.Context, slotID, userID string, check func(coaching.Slot) error) (coaching.Slot, error) {
	return repo.locked(ctx, slotID, func(tx *sqlx.Tx, s coaching.Slot) error {
		if err := check(s); err != nil {
			return err
		}
		b := psql.Delete("coaching_slot_participants").Where(sq.Eq{"slot_id": slotID, "user_id": userID})
		_, err := exec(ctx, tx, b)
		return errors.Wrap(err, "deleting coaching slot participant")
	})
}

func (repo *slotRepository) DeleteSlot(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, psql.Delete("coaching_slots").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting coaching slot")
	}
	if n == 0 {
		return coaching.ErrNotFound
	}
	return nil
}

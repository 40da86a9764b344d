package group

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/course"
	"github.com/trezcool/ratiba/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("group not found")
	ErrAlreadyMember   = errors.New("already a member")
	ErrGroupFull       = errors.New("group is full")
	ErrNotMember       = errors.New("not a member")
	ErrMaxBelowMembers = errors.New("max_members cannot be lower than the current number of members")
)

var OrderingFields = []string{"name", "max_members", "created_at"}

var defaultOrdering = []core.DBOrdering{{Field: "name", Ascending: true}}

type (
	Repository interface {
		CreateGroup(ctx context.Context, g Group) (Group, error)
		// QueryGroups returns groups matching every set QueryFilter field.
		// QueryFilter.Search is a case-insensitive match on Group.Name.
		QueryGroups(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Group, error)
		GetGroupByID(ctx context.Context, id string) (Group, error)
		// UpdateGroup locks the group, hands its current state to update and saves the result.
		UpdateGroup(ctx context.Context, id string, update func(*Group) error) (Group, error)
		// AddMember locks the group and adds userID only if check accepts its current state.
		AddMember(ctx context.Context, groupID, userID string, check func(Group) error) (Group, error)
		// RemoveMember locks the group and removes userID only if check accepts its current state.
		RemoveMember(ctx context.Context, groupID, userID string, check func(Group) error) (Group, error)
		DeleteGroup(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, ng NewGroup) (Group, error)
		Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Group, error)
		GetByID(ctx context.Context, id string) (Group, error)
		Update(ctx context.Context, orig Group, ug UpdateGroup) (Group, error)
		Delete(ctx context.Context, id string) error
		Join(ctx context.Context, id string, usr user.User) (Group, error)
		Leave(ctx context.Context, id string, usr user.User) (Group, error)
	}

	service struct {
		repo      Repository
		courseSvc course.Service
		userSvc   user.Service
		events    core.EventPublisher
		logger    core.Logger
		goFunc    func(func())
	}
)

func NewService(repo Repository, courseSvc course.Service, userSvc user.Service, events core.EventPublisher, logger core.Logger) Service {
	return &service{
		repo:      repo,
		courseSvc: courseSvc,
		userSvc:   userSvc,
		events:    events,
		logger:    logger,
		goFunc:    func(f func()) { go f() },
	}
}

func (svc *service) Create(ctx context.Context, ng NewGroup) (Group, error) {
	now := core.NowFunc()
	g, err := svc.repo.CreateGroup(ctx, Group{
		ID:         uuid.NewString(),
		CourseID:   ng.CourseID,
		Name:       ng.Name,
		MaxMembers: ng.MaxMembers,
		MemberIDs:  []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return Group{}, err
	}
	return svc.expandOne(ctx, g)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]Group, error) {
	filter.Search = core.CleanString(filter.Search)
	if ordering = core.FilterOrderings(ordering, OrderingFields...); len(ordering) == 0 {
		ordering = defaultOrdering
	}
	groups, err := svc.repo.QueryGroups(ctx, filter, ordering...)
	if err != nil {
		return nil, err
	}
	return svc.expand(ctx, groups)
}

func (svc *service) GetByID(ctx context.Context, id string) (Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Group{}, ErrNotFound
	}
	g, err := svc.repo.GetGroupByID(ctx, id)
	if err != nil {
		return Group{}, err
	}
	return svc.expandOne(ctx, g)
}

func (svc *service) Update(ctx context.Context, orig Group, ug UpdateGroup) (Group, error) {
	g, err := svc.repo.UpdateGroup(ctx, orig.ID, func(g *Group) error {
		if ug.MaxMembers != nil {
			if limit := *ug.MaxMembers; limit > 0 && limit < len(g.MemberIDs) {
				return core.NewValidationError(ErrMaxBelowMembers,
					core.FieldError{Field: "max_members", Error: ErrMaxBelowMembers.Error()})
			}
			g.MaxMembers = *ug.MaxMembers
		}
		if ug.CourseID != "" {
			g.CourseID = ug.CourseID
		}
		if ug.Name != "" {
			g.Name = ug.Name
		}
		g.UpdatedAt = core.NowFunc()
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	return svc.expandOne(ctx, g)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	return svc.repo.DeleteGroup(ctx, id)
}

func (svc *service) Join(ctx context.Context, id string, usr user.User) (Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Group{}, ErrNotFound
	}
	g, err := svc.repo.AddMember(ctx, id, usr.ID, func(g Group) error {
		if err := checkJoinable(g, usr.ID); err != nil {
			return core.NewValidationError(err)
		}
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	svc.goFunc(func() { svc.publish(core.SubjectGroupJoined, g, usr) })
	return svc.expandOne(ctx, g)
}

func (svc *service) Leave(ctx context.Context, id string, usr user.User) (Group, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Group{}, ErrNotFound
	}
	g, err := svc.repo.RemoveMember(ctx, id, usr.ID, func(g Group) error {
		if err := checkLeavable(g, usr.ID); err != nil {
			return core.NewValidationError(err)
		}
		return nil
	})
	if err != nil {
		return Group{}, err
	}
	svc.goFunc(func() { svc.publish(core.SubjectGroupLeft, g, usr) })
	return svc.expandOne(ctx, g)
}

func (svc *service) publish(subject string, g Group, usr user.User) {
	evt := MemberEvent{
		GroupID:    g.ID,
		CourseID:   g.CourseID,
		UserID:     usr.ID,
		Members:    len(g.MemberIDs),
		OccurredAt: core.NowFunc(),
	}
	if err := svc.events.Publish(context.Background(), subject, evt); err != nil {
		svc.logger.Error(fmt.Sprintf("group: publishing %s: %v", subject, err), err, usr)
	}
}

func (svc *service) expandOne(ctx context.Context, g Group) (Group, error) {
	res, err := svc.expand(ctx, []Group{g})
	if err != nil {
		return Group{}, err
	}
	return res[0], nil
}

// expand embeds course and member summaries.
func (svc *service) expand(ctx context.Context, groups []Group) ([]Group, error) {
	var courseIDs, userIDs []string
	for _, g := range groups {
		if !core.StringsContain(courseIDs, g.CourseID) {
			courseIDs = append(courseIDs, g.CourseID)
		}
		for _, id := range g.MemberIDs {
			if !core.StringsContain(userIDs, id) {
				userIDs = append(userIDs, id)
			}
		}
	}

	courses, err := svc.courseSvc.GetManyByID(ctx, courseIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching group courses")
	}
	users, err := svc.userSvc.GetManyByID(ctx, userIDs...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching group members")
	}
	summaries := make(map[string]user.Summary, len(users))
	for _, u := range users {
		summaries[u.ID] = u.Summary()
	}

	for i := range groups {
		g := &groups[i]
		g.Course = courses[g.CourseID].Summary()
		g.IsFull = g.Full()
		g.Members = make([]user.Summary, 0, len(g.MemberIDs))
		for _, id := range g.MemberIDs {
			if sum, ok := summaries[id]; ok {
				g.Members = append(g.Members, sum)
			}
		}
	}
	return groups, nil
}

package data

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/five82/toolroom/internal/api"
	"github.com/five82/toolroom/internal/query"
	"github.com/five82/toolroom/internal/state"
)

// Users returns the user accounts.
func (l *Layer) Users(ctx context.Context) query.Result[[]api.User] {
	return query.Use(ctx, l.q, query.Options[[]api.User]{
		Key:     UsersKey(),
		Fn:      l.svc.Users.List,
		Enabled: true,
		Policy:  query.AdminPolicy,
	})
}

// CreateUser adds an account.
func (l *Layer) CreateUser(ctx context.Context, in api.UserInput) (int64, error) {
	return query.Mutate(ctx, l.q, query.Mutation[api.UserInput, int64]{
		Name: "user.create",
		Validate: func(in api.UserInput) error {
			var problems []string
			if strings.TrimSpace(in.Username) == "" {
				problems = append(problems, "username: required")
			}
			if in.Password == "" {
				problems = append(problems, "password: required")
			}
			if len(problems) > 0 {
				return &api.ValidationError{Errors: problems}
			}
			return nil
		},
		Fn: l.svc.Users.Create,
		Invalidates: func(api.UserInput, int64) []state.Key {
			return []state.Key{UsersKey()}
		},
	}, in)
}

type updateUserVars struct {
	id int64
	in api.UserInput
}

// UpdateUser changes an account. The password is only sent when set.
func (l *Layer) UpdateUser(ctx context.Context, id int64, in api.UserInput) error {
	_, err := query.Mutate(ctx, l.q, query.Mutation[updateUserVars, struct{}]{
		Name: "user.update",
		Fn: func(ctx context.Context, v updateUserVars) (struct{}, error) {
			return struct{}{}, applied(l.svc.Users.Update(ctx, v.id, v.in))
		},
		Touches: func(updateUserVars) []state.Key { return []state.Key{UsersKey()} },
		Optimistic: func(s *state.Store, v updateUserVars) {
			s.Update(UsersKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.User)
				if !ok {
					return nil, false
				}
				return replaceIn(list,
					func(u api.User) bool { return u.ID == v.id },
					func(u api.User) api.User {
						u.Username = v.in.Username
						u.FullName = v.in.FullName
						u.Role = v.in.Role
						u.IsActive = v.in.IsActive
						return u
					})
			})
		},
		Invalidates: func(updateUserVars, struct{}) []state.Key {
			return []state.Key{UsersKey()}
		},
	}, updateUserVars{id: id, in: in})
	return err
}

// DeleteUser removes an account.
func (l *Layer) DeleteUser(ctx context.Context, id int64) error {
	_, err := query.Mutate(ctx, l.q, query.Mutation[int64, struct{}]{
		Name: "user.delete",
		Fn: func(ctx context.Context, id int64) (struct{}, error) {
			return struct{}{}, applied(l.svc.Users.Delete(ctx, id))
		},
		Touches: func(int64) []state.Key { return []state.Key{UsersKey()} },
		Optimistic: func(s *state.Store, id int64) {
			s.Update(UsersKey(), func(cur any) (any, bool) {
				list, ok := cur.([]api.User)
				if !ok {
					return nil, false
				}
				return lo.Reject(list, func(u api.User, _ int) bool { return u.ID == id }), true
			})
		},
		Invalidates: func(int64, struct{}) []state.Key {
			return []state.Key{UsersKey()}
		},
	}, id)
	return err
}

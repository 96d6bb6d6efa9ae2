package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drift_errors "driftchat/pkg/errors"
)

func TestListOthers_AnnotatesPresence(t *testing.T) {
	ctx := context.Background()
	alice := testUser("alice")
	bob := testUser("bob")
	cara := testUser("cara")
	users := newFakeUserRepo(alice, bob, cara)
	presence := &fakePresence{online: map[uuid.UUID]bool{cara.ID: true}}
	svc := NewUserService(users, presence)

	summaries, err := svc.ListOthers(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byName := map[string]UserSummary{}
	for _, s := range summaries {
		byName[s.Username] = s
	}
	assert.False(t, byName["bob"].IsOnline)
	assert.True(t, byName["cara"].IsOnline)
	assert.NotContains(t, byName, "alice")
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	alice := testUser("alice")
	svc := NewUserService(newFakeUserRepo(alice), &fakePresence{})

	p, err := svc.GetProfile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	_, err = svc.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, drift_errors.ErrNotFound)
}

package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftchat/internal/events"
	drift_errors "driftchat/pkg/errors"
)

func TestOpenDirect_Idempotent(t *testing.T) {
	ctx := context.Background()
	alice := testUser("alice")
	bob := testUser("bob")
	users := newFakeUserRepo(alice, bob)
	convRepo := newFakeConvRepo(users)
	pub := &fakePublisher{}
	svc := NewConversationService(convRepo, users, pub, nil)

	first, err := svc.OpenDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, first.Participants, 2)

	// Same pair from the other side lands on the same conversation.
	second, err := svc.OpenDirect(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, pub.countType(events.EventTypeConversationCreated),
		"only the creating call announces")
}

func TestOpenDirect_Rejections(t *testing.T) {
	ctx := context.Background()
	alice := testUser("alice")
	users := newFakeUserRepo(alice)
	svc := NewConversationService(newFakeConvRepo(users), users, &fakePublisher{}, nil)

	_, err := svc.OpenDirect(ctx, alice.ID, alice.ID)
	assert.ErrorIs(t, err, drift_errors.ErrValidation)

	_, err = svc.OpenDirect(ctx, alice.ID, uuid.New())
	assert.ErrorIs(t, err, drift_errors.ErrNotFound)
}

func TestCreateGroup(t *testing.T) {
	ctx := context.Background()
	alice := testUser("alice")
	bob := testUser("bob")
	cara := testUser("cara")
	users := newFakeUserRepo(alice, bob, cara)
	pub := &fakePublisher{}
	svc := NewConversationService(newFakeConvRepo(users), users, pub, nil)

	// Duplicate member ids and the admin in the member list collapse.
	conv, err := svc.CreateGroup(ctx, alice.ID, "  trio  ", "", []uuid.UUID{bob.ID, bob.ID, alice.ID, cara.ID})
	require.NoError(t, err)

	assert.True(t, conv.IsGroup)
	assert.Equal(t, "trio", conv.GroupName)
	require.True(t, conv.GroupAdmin.Valid)
	assert.Equal(t, alice.ID, conv.GroupAdmin.UUID)
	assert.Len(t, conv.Participants, 3)
	assert.Equal(t, 1, pub.countType(events.EventTypeConversationCreated))
}

func TestCreateGroup_Rejections(t *testing.T) {
	ctx := context.Background()
	alice := testUser("alice")
	users := newFakeUserRepo(alice)
	svc := NewConversationService(newFakeConvRepo(users), users, &fakePublisher{}, nil)

	_, err := svc.CreateGroup(ctx, alice.ID, "", "", []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, drift_errors.ErrValidation, "name required")

	_, err = svc.CreateGroup(ctx, alice.ID, "solo", "", []uuid.UUID{alice.ID})
	assert.ErrorIs(t, err, drift_errors.ErrValidation, "admin alone is not a group")

	_, err = svc.CreateGroup(ctx, alice.ID, "ghosts", "", []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, drift_errors.ErrNotFound, "members must exist")
}

func TestGet_RequiresMembership(t *testing.T) {
	ctx := context.Background()
	alice := testUser("alice")
	bob := testUser("bob")
	users := newFakeUserRepo(alice, bob)
	convRepo := newFakeConvRepo(users)
	svc := NewConversationService(convRepo, users, &fakePublisher{}, nil)

	conv, err := svc.OpenDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	got, err := svc.Get(ctx, bob.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = svc.Get(ctx, uuid.New(), conv.ID)
	assert.ErrorIs(t, err, drift_errors.ErrForbidden)
}

func TestDeleteGroup(t *testing.T) {
	ctx := context.Background()
	alice := testUser("alice")
	bob := testUser("bob")
	users := newFakeUserRepo(alice, bob)
	convRepo := newFakeConvRepo(users)
	pub := &fakePublisher{}
	svc := NewConversationService(convRepo, users, pub, nil)

	group, err := svc.CreateGroup(ctx, alice.ID, "trio", "", []uuid.UUID{bob.ID})
	require.NoError(t, err)
	direct, err := svc.OpenDirect(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	err = svc.DeleteGroup(ctx, alice.ID, direct.ID)
	assert.ErrorIs(t, err, drift_errors.ErrValidation, "direct chats cannot be deleted")

	err = svc.DeleteGroup(ctx, bob.ID, group.ID)
	assert.ErrorIs(t, err, drift_errors.ErrForbidden, "only the admin deletes")

	require.NoError(t, svc.DeleteGroup(ctx, alice.ID, group.ID))
	assert.Equal(t, []uuid.UUID{group.ID}, convRepo.deleted)
	assert.Equal(t, 1, pub.countType(events.EventTypeConversationDeleted))

	_, err = svc.Get(ctx, alice.ID, group.ID)
	assert.ErrorIs(t, err, drift_errors.ErrNotFound)
}

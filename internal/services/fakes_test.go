package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"driftchat/internal/domain"
	drift_errors "driftchat/pkg/errors"
)

// In-memory stand-ins for the repository and redis layers. They implement
// just enough behavior for the service contracts to be observable without a
// database or a live channel.

type fakeUserRepo struct {
	users map[uuid.UUID]domain.User
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return drift_errors.ErrAlreadyExists
		}
	}
	r.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, drift_errors.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, drift_errors.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, drift_errors.ErrNotFound
}

func (r *fakeUserRepo) ListOthers(_ context.Context, selfID uuid.UUID) ([]domain.User, error) {
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		if u.ID != selfID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	u, ok := r.users[id]
	if !ok {
		return drift_errors.ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetToken.Valid = false
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) SetResetToken(_ context.Context, id uuid.UUID, token string, expires time.Time) error {
	u, ok := r.users[id]
	if !ok {
		return drift_errors.ErrNotFound
	}
	u.ResetToken = toNullString(token)
	u.ResetTokenExpires.Time = expires
	u.ResetTokenExpires.Valid = true
	r.users[id] = u
	return nil
}

func (r *fakeUserRepo) GetByResetToken(_ context.Context, token string) (domain.User, error) {
	for _, u := range r.users {
		if u.ResetToken.Valid && u.ResetToken.String == token && u.ResetTokenExpires.Time.After(time.Now()) {
			return u, nil
		}
	}
	return domain.User{}, drift_errors.ErrNotFound
}

func (r *fakeUserRepo) GetByVerificationToken(_ context.Context, token string) (domain.User, error) {
	for _, u := range r.users {
		if u.VerificationToken.Valid && u.VerificationToken.String == token {
			return u, nil
		}
	}
	return domain.User{}, drift_errors.ErrNotFound
}

func (r *fakeUserRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	u, ok := r.users[id]
	if !ok {
		return drift_errors.ErrNotFound
	}
	u.IsVerified = true
	u.VerificationToken.Valid = false
	r.users[id] = u
	return nil
}

type fakeConvRepo struct {
	users   *fakeUserRepo
	convs   map[uuid.UUID]domain.Conversation
	direct  map[string]uuid.UUID
	deleted []uuid.UUID
}

func newFakeConvRepo(users *fakeUserRepo) *fakeConvRepo {
	return &fakeConvRepo{
		users:  users,
		convs:  make(map[uuid.UUID]domain.Conversation),
		direct: make(map[string]uuid.UUID),
	}
}

func pairKey(a, b uuid.UUID) string {
	lo, hi := a.String(), b.String()
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + ":" + hi
}

func (r *fakeConvRepo) profile(id uuid.UUID) domain.Profile {
	if u, ok := r.users.users[id]; ok {
		return u.Profile()
	}
	return domain.Profile{ID: id}
}

func (r *fakeConvRepo) FindOrCreateDirect(_ context.Context, a, b uuid.UUID) (domain.Conversation, bool, error) {
	key := pairKey(a, b)
	if id, ok := r.direct[key]; ok {
		return r.convs[id], false, nil
	}
	now := time.Now()
	conv := domain.Conversation{
		ID:           uuid.New(),
		Participants: []domain.Profile{r.profile(a), r.profile(b)},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.convs[conv.ID] = conv
	r.direct[key] = conv.ID
	return conv, true, nil
}

func (r *fakeConvRepo) CreateGroup(_ context.Context, conv *domain.Conversation, participantIDs []uuid.UUID) error {
	stored := *conv
	stored.Participants = make([]domain.Profile, 0, len(participantIDs))
	for _, id := range participantIDs {
		stored.Participants = append(stored.Participants, r.profile(id))
	}
	r.convs[stored.ID] = stored
	return nil
}

func (r *fakeConvRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Conversation, error) {
	conv, ok := r.convs[id]
	if !ok {
		return domain.Conversation{}, drift_errors.ErrNotFound
	}
	return conv, nil
}

func (r *fakeConvRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	var out []domain.Conversation
	for _, conv := range r.convs {
		if conv.HasParticipant(userID) {
			out = append(out, conv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeConvRepo) IsParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	conv, ok := r.convs[conversationID]
	if !ok {
		return false, nil
	}
	return conv.HasParticipant(userID), nil
}

func (r *fakeConvRepo) ParticipantIDs(_ context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	conv, ok := r.convs[conversationID]
	if !ok {
		return nil, drift_errors.ErrNotFound
	}
	ids := make([]uuid.UUID, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (r *fakeConvRepo) Touch(_ context.Context, conversationID uuid.UUID) error {
	conv, ok := r.convs[conversationID]
	if !ok {
		return drift_errors.ErrNotFound
	}
	conv.UpdatedAt = time.Now()
	r.convs[conversationID] = conv
	return nil
}

func (r *fakeConvRepo) DeleteWithMessages(_ context.Context, conversationID uuid.UUID) error {
	if _, ok := r.convs[conversationID]; !ok {
		return drift_errors.ErrNotFound
	}
	delete(r.convs, conversationID)
	r.deleted = append(r.deleted, conversationID)
	return nil
}

type fakeMsgRepo struct {
	msgs        map[uuid.UUID]domain.Message
	sendIntents []domain.OutboxEvent
	seenIntents []domain.OutboxEvent
}

func newFakeMsgRepo() *fakeMsgRepo {
	return &fakeMsgRepo{msgs: make(map[uuid.UUID]domain.Message)}
}

func (r *fakeMsgRepo) CreateWithOutbox(_ context.Context, msg *domain.Message, intents []domain.OutboxEvent) error {
	r.msgs[msg.ID] = *msg
	r.sendIntents = append(r.sendIntents, intents...)
	return nil
}

func (r *fakeMsgRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Message, error) {
	msg, ok := r.msgs[id]
	if !ok {
		return domain.Message{}, drift_errors.ErrNotFound
	}
	return msg, nil
}

func (r *fakeMsgRepo) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range r.msgs {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMsgRepo) CountByConversation(_ context.Context, conversationID uuid.UUID) (int64, error) {
	msgs, _ := r.ListByConversation(context.Background(), conversationID)
	return int64(len(msgs)), nil
}

func (r *fakeMsgRepo) MarkSeen(_ context.Context, id uuid.UUID, intent domain.OutboxEvent) (bool, error) {
	msg, ok := r.msgs[id]
	if !ok {
		return false, drift_errors.ErrNotFound
	}
	if msg.IsSeen {
		return false, nil
	}
	msg.IsSeen = true
	r.msgs[id] = msg
	r.seenIntents = append(r.seenIntents, intent)
	return true, nil
}

func (r *fakeMsgRepo) SetMirrorDocID(_ context.Context, id uuid.UUID, mirrorDocID string) error {
	msg, ok := r.msgs[id]
	if !ok {
		return drift_errors.ErrNotFound
	}
	msg.MirrorDocID = mirrorDocID
	r.msgs[id] = msg
	return nil
}

type fakeCallRepo struct {
	records []domain.CallRecord
}

func (r *fakeCallRepo) CreateRecord(_ context.Context, rec *domain.CallRecord) error {
	rec.CreatedAt = time.Now()
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeCallRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]domain.CallRecord, error) {
	var out []domain.CallRecord
	for _, rec := range r.records {
		if rec.InitiatorID == userID || rec.ReceiverID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeCallBox struct {
	slots map[uuid.UUID]domain.CallSession
	seqs  map[uuid.UUID]int64
}

func newFakeCallBox() *fakeCallBox {
	return &fakeCallBox{
		slots: make(map[uuid.UUID]domain.CallSession),
		seqs:  make(map[uuid.UUID]int64),
	}
}

func (b *fakeCallBox) Place(_ context.Context, session domain.CallSession) (domain.CallSession, error) {
	b.seqs[session.ReceiverID]++
	session.Seq = b.seqs[session.ReceiverID]
	session.Status = domain.CallStatusRinging
	session.CreatedAt = time.Now()
	b.slots[session.ReceiverID] = session
	return session, nil
}

func (b *fakeCallBox) Get(_ context.Context, receiverID uuid.UUID) (domain.CallSession, error) {
	session, ok := b.slots[receiverID]
	if !ok {
		return domain.CallSession{}, drift_errors.ErrNotFound
	}
	return session, nil
}

func (b *fakeCallBox) Accept(_ context.Context, receiverID uuid.UUID) (domain.CallSession, error) {
	session, ok := b.slots[receiverID]
	if !ok {
		return domain.CallSession{}, drift_errors.ErrNotFound
	}
	if session.Status != domain.CallStatusRinging {
		return domain.CallSession{}, drift_errors.ErrInvalidTransition
	}
	session.Status = domain.CallStatusAccepted
	b.slots[receiverID] = session
	return session, nil
}

func (b *fakeCallBox) Clear(_ context.Context, receiverID uuid.UUID) (domain.CallSession, error) {
	session, ok := b.slots[receiverID]
	if !ok {
		return domain.CallSession{}, drift_errors.ErrNotFound
	}
	delete(b.slots, receiverID)
	return session, nil
}

type publishedEvent struct {
	eventType     string
	aggregateType string
	aggregateID   string
	payload       any
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (p *fakePublisher) PublishEvent(_ context.Context, eventType, aggregateType, aggregateID string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{eventType, aggregateType, aggregateID, payload})
	return nil
}

func (p *fakePublisher) countType(eventType string) int {
	n := 0
	for _, e := range p.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

type fakePresence struct {
	online map[uuid.UUID]bool
}

func (p *fakePresence) IsOnline(_ context.Context, userID uuid.UUID) (bool, error) {
	return p.online[userID], nil
}

func (p *fakePresence) OnlineUsers(_ context.Context) ([]string, error) {
	var out []string
	for id, on := range p.online {
		if on {
			out = append(out, id.String())
		}
	}
	return out, nil
}

func testUser(name string) domain.User {
	return domain.User{
		ID:       uuid.New(),
		Username: name,
		Email:    name + "@example.com",
	}
}

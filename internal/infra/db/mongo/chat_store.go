package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"linkup/internal/app/conversations"
	"linkup/internal/domain/chat"
)

// ChatStore implements the storage collaborator over mongo collections.
// Every query is one round trip using $in filters. The summary fast path
// reads the conversation_summaries view maintained by the aggregation
// pipeline service; its absence maps to ErrSummariesUnavailable.
type ChatStore struct {
	profiles      *mongo.Collection
	connections   *mongo.Collection
	messages      *mongo.Collection
	groupMessages *mongo.Collection
	groupMembers  *mongo.Collection
	groupReads    *mongo.Collection
	hidden        *mongo.Collection
	summaries     *mongo.Collection
}

func NewChatStore(db *mongo.Database) *ChatStore {
	return &ChatStore{
		profiles:      db.Collection("profiles"),
		connections:   db.Collection("connections"),
		messages:      db.Collection("messages"),
		groupMessages: db.Collection("group_messages"),
		groupMembers:  db.Collection("group_members"),
		groupReads:    db.Collection("group_reads"),
		hidden:        db.Collection("hidden_messages"),
		summaries:     db.Collection("conversation_summaries"),
	}
}

type profileDocument struct {
	ID          string          `bson:"_id"`
	FirstName   string          `bson:"first_name"`
	LastName    string          `bson:"last_name"`
	AvatarKey   string          `bson:"avatar_key"`
	AvatarURL   string          `bson:"avatar_url"`
	Affiliation string          `bson:"affiliation"`
	Role        string          `bson:"role"`
	Badges      []badgeDocument `bson:"badges"`
}

type badgeDocument struct {
	Icon        string `bson:"icon"`
	ImageURL    string `bson:"image_url"`
	Label       string `bson:"label"`
	Description string `bson:"description"`
}

type connectionDocument struct {
	UserID      string `bson:"user_id"`
	OtherUserID string `bson:"other_user_id"`
}

type messageDocument struct {
	ID         string `bson:"_id"`
	SenderID   string `bson:"sender_id"`
	ReceiverID string `bson:"receiver_id"`
	Content    string `bson:"content"`
	CreatedAt  int64  `bson:"created_at"`
	ReadAt     *int64 `bson:"read_at,omitempty"`
}

type groupMessageDocument struct {
	ID         string `bson:"_id"`
	ThreadID   string `bson:"thread_id"`
	SenderID   string `bson:"sender_id"`
	Content    string `bson:"content"`
	CreatedAt  int64  `bson:"created_at"`
	ThreadName string `bson:"thread_name,omitempty"`
	IsSystem   bool   `bson:"is_system,omitempty"`
	SystemType string `bson:"system_type,omitempty"`
}

type membershipDocument struct {
	ThreadID string `bson:"thread_id"`
	UserID   string `bson:"user_id"`
	JoinedAt int64  `bson:"joined_at"`
}

type readMarkerDocument struct {
	UserID    string `bson:"user_id"`
	MessageID string `bson:"message_id"`
}

type hiddenDocument struct {
	UserID      string `bson:"user_id"`
	OtherUserID string `bson:"other_user_id"`
	HiddenAt    int64  `bson:"hidden_at"`
}

type summaryDocument struct {
	OwnerID         string `bson:"owner_id"`
	ConversationID  string `bson:"conversation_id"`
	DisplayName     string `bson:"display_name"`
	AvatarKey       string `bson:"avatar_key"`
	AvatarURL       string `bson:"avatar_url"`
	RoleLabel       string `bson:"role_label"`
	IsGroup         bool   `bson:"is_group"`
	ThreadID        string `bson:"thread_id,omitempty"`
	LastMessageText string `bson:"last_message_text"`
	LastMessageAt   *int64 `bson:"last_message_at,omitempty"`
	UnreadCount     int    `bson:"unread_count"`
}

func (s *ChatStore) ConversationSummaries(ctx context.Context, me chat.UserID) ([]chat.ConversationSummary, error) {
	cur, err := s.summaries.Find(ctx, bson.M{"owner_id": string(me)})
	if err != nil {
		if errors.Is(err, mongo.ErrNilDocument) {
			return nil, conversations.ErrSummariesUnavailable
		}
		return nil, err
	}
	var docs []summaryDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		// An empty view means the pre-aggregation has not materialized for
		// this user; the raw path is authoritative.
		return nil, conversations.ErrSummariesUnavailable
	}
	rows := make([]chat.ConversationSummary, 0, len(docs))
	for _, d := range docs {
		row := chat.ConversationSummary{
			ID:              d.ConversationID,
			DisplayName:     d.DisplayName,
			AvatarKey:       d.AvatarKey,
			AvatarURL:       d.AvatarURL,
			RoleLabel:       d.RoleLabel,
			IsGroup:         d.IsGroup,
			ThreadID:        chat.ThreadID(d.ThreadID),
			LastMessageText: d.LastMessageText,
			UnreadCount:     d.UnreadCount,
		}
		if d.LastMessageAt != nil {
			t := timestampToTime(*d.LastMessageAt)
			row.LastMessageAt = &t
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *ChatStore) ProfilesByIDs(ctx context.Context, ids []chat.UserID) (map[chat.UserID]conversations.Identity, error) {
	cur, err := s.profiles.Find(ctx, bson.M{"_id": bson.M{"$in": userIDStrings(ids)}})
	if err != nil {
		return nil, err
	}
	var docs []profileDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make(map[chat.UserID]conversations.Identity, len(docs))
	for _, d := range docs {
		id := conversations.Identity{
			ParticipantSummary: chat.ParticipantSummary{
				ID:          chat.UserID(d.ID),
				FirstName:   d.FirstName,
				LastName:    d.LastName,
				AvatarKey:   d.AvatarKey,
				AvatarURL:   d.AvatarURL,
				Affiliation: d.Affiliation,
			},
			RoleLabel: d.Role,
			IsAdmin:   d.Role == string(chat.RoleAdmin),
		}
		for _, b := range d.Badges {
			id.Badges = append(id.Badges, chat.Badge{
				Icon:        b.Icon,
				ImageURL:    b.ImageURL,
				Label:       b.Label,
				Description: b.Description,
			})
		}
		out[chat.UserID(d.ID)] = id
	}
	return out, nil
}

func (s *ChatStore) ConnectionsOf(ctx context.Context, me chat.UserID) ([]chat.UserID, error) {
	cur, err := s.connections.Find(ctx, bson.M{"user_id": string(me)})
	if err != nil {
		return nil, err
	}
	var docs []connectionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.UserID, 0, len(docs))
	for _, d := range docs {
		out = append(out, chat.UserID(d.OtherUserID))
	}
	return out, nil
}

func (s *ChatStore) PairwiseMessages(ctx context.Context, me chat.UserID, others []chat.UserID) ([]chat.Message, error) {
	ids := userIDStrings(others)
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": string(me), "receiver_id": bson.M{"$in": ids}},
		bson.M{"receiver_id": string(me), "sender_id": bson.M{"$in": ids}},
	}}
	cur, err := s.messages.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toMessage())
	}
	return out, nil
}

func (s *ChatStore) MembershipsByUser(ctx context.Context, me chat.UserID) ([]chat.Membership, error) {
	return s.findMemberships(ctx, bson.M{"user_id": string(me)})
}

func (s *ChatStore) MembershipsByThreads(ctx context.Context, ids []chat.ThreadID) ([]chat.Membership, error) {
	return s.findMemberships(ctx, bson.M{"thread_id": bson.M{"$in": threadIDStrings(ids)}})
}

func (s *ChatStore) findMemberships(ctx context.Context, filter bson.M) ([]chat.Membership, error) {
	cur, err := s.groupMembers.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []membershipDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.Membership, 0, len(docs))
	for _, d := range docs {
		out = append(out, chat.Membership{
			ThreadID: chat.ThreadID(d.ThreadID),
			UserID:   chat.UserID(d.UserID),
			JoinedAt: timestampToTime(d.JoinedAt),
		})
	}
	return out, nil
}

func (s *ChatStore) GroupMessagesByThreads(ctx context.Context, ids []chat.ThreadID) ([]chat.GroupMessage, error) {
	cur, err := s.groupMessages.Find(ctx, bson.M{"thread_id": bson.M{"$in": threadIDStrings(ids)}})
	if err != nil {
		return nil, err
	}
	return decodeGroupMessages(ctx, cur)
}

func (s *ChatStore) ReadMarkersFor(ctx context.Context, me chat.UserID, messageIDs []string) ([]chat.ReadMarker, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	cur, err := s.groupReads.Find(ctx, bson.M{
		"user_id":    string(me),
		"message_id": bson.M{"$in": messageIDs},
	})
	if err != nil {
		return nil, err
	}
	var docs []readMarkerDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.ReadMarker, 0, len(docs))
	for _, d := range docs {
		out = append(out, chat.ReadMarker{UserID: chat.UserID(d.UserID), MessageID: d.MessageID})
	}
	return out, nil
}

func (s *ChatStore) HiddenMarkersOf(ctx context.Context, me chat.UserID) ([]chat.HiddenMarker, error) {
	cur, err := s.hidden.Find(ctx, bson.M{"user_id": string(me)})
	if err != nil {
		return nil, err
	}
	var docs []hiddenDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.HiddenMarker, 0, len(docs))
	for _, d := range docs {
		out = append(out, chat.HiddenMarker{
			UserID:      chat.UserID(d.UserID),
			OtherUserID: chat.UserID(d.OtherUserID),
			HiddenAt:    timestampToTime(d.HiddenAt),
		})
	}
	return out, nil
}

func (s *ChatStore) SearchPairwiseMessages(ctx context.Context, me chat.UserID, pattern string) ([]chat.Message, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": string(me)},
			bson.M{"receiver_id": string(me)},
		},
		"content": contentRegex(pattern),
	}
	cur, err := s.messages.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []messageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toMessage())
	}
	return out, nil
}

func (s *ChatStore) SearchGroupMessages(ctx context.Context, me chat.UserID, pattern string) ([]chat.GroupMessage, error) {
	mine, err := s.MembershipsByUser(ctx, me)
	if err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return nil, nil
	}
	threadIDs := make([]string, 0, len(mine))
	for _, m := range mine {
		threadIDs = append(threadIDs, string(m.ThreadID))
	}
	cur, err := s.groupMessages.Find(ctx, bson.M{
		"thread_id": bson.M{"$in": threadIDs},
		"content":   contentRegex(pattern),
	})
	if err != nil {
		return nil, err
	}
	return decodeGroupMessages(ctx, cur)
}

func (s *ChatStore) InsertMemberships(ctx context.Context, rows []chat.Membership) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, membershipDocument{
			ThreadID: string(r.ThreadID),
			UserID:   string(r.UserID),
			JoinedAt: r.JoinedAt.UnixMilli(),
		})
	}
	_, err := s.groupMembers.InsertMany(ctx, docs)
	return err
}

func (s *ChatStore) DeleteMembership(ctx context.Context, threadID chat.ThreadID, userID chat.UserID) error {
	_, err := s.groupMembers.DeleteOne(ctx, bson.M{
		"thread_id": string(threadID),
		"user_id":   string(userID),
	})
	return err
}

func (s *ChatStore) InsertGroupMessage(ctx context.Context, msg chat.GroupMessage) error {
	doc := groupMessageDocument{
		ID:         msg.ID,
		ThreadID:   string(msg.ThreadID),
		SenderID:   string(msg.SenderID),
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt.UnixMilli(),
		ThreadName: msg.ThreadName,
		IsSystem:   msg.IsSystem,
		SystemType: msg.SystemType,
	}
	_, err := s.groupMessages.InsertOne(ctx, doc)
	return err
}

func (s *ChatStore) BackfillThreadName(ctx context.Context, threadID chat.ThreadID, name string) error {
	_, err := s.groupMessages.UpdateMany(ctx,
		bson.M{"thread_id": string(threadID)},
		bson.M{"$set": bson.M{"thread_name": name}},
	)
	return err
}

func (s *ChatStore) UpsertHiddenMarker(ctx context.Context, marker chat.HiddenMarker) error {
	filter := bson.M{"user_id": string(marker.UserID), "other_user_id": string(marker.OtherUserID)}
	update := bson.M{"$set": hiddenDocument{
		UserID:      string(marker.UserID),
		OtherUserID: string(marker.OtherUserID),
		HiddenAt:    marker.HiddenAt.UnixMilli(),
	}}
	_, err := s.hidden.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (s *ChatStore) DeleteHiddenMarker(ctx context.Context, me, other chat.UserID) error {
	_, err := s.hidden.DeleteOne(ctx, bson.M{"user_id": string(me), "other_user_id": string(other)})
	return err
}

func (s *ChatStore) DeletePairwiseMessages(ctx context.Context, me, other chat.UserID) error {
	_, err := s.messages.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"sender_id": string(me), "receiver_id": string(other)},
		bson.M{"sender_id": string(other), "receiver_id": string(me)},
	}})
	return err
}

func (d messageDocument) toMessage() chat.Message {
	m := chat.Message{
		ID:         d.ID,
		SenderID:   chat.UserID(d.SenderID),
		ReceiverID: chat.UserID(d.ReceiverID),
		Content:    d.Content,
		CreatedAt:  timestampToTime(d.CreatedAt),
	}
	if d.ReadAt != nil {
		t := timestampToTime(*d.ReadAt)
		m.ReadAt = &t
	}
	return m
}

func decodeGroupMessages(ctx context.Context, cur *mongo.Cursor) ([]chat.GroupMessage, error) {
	var docs []groupMessageDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]chat.GroupMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, chat.GroupMessage{
			ID:         d.ID,
			ThreadID:   chat.ThreadID(d.ThreadID),
			SenderID:   chat.UserID(d.SenderID),
			Content:    d.Content,
			CreatedAt:  timestampToTime(d.CreatedAt),
			ThreadName: d.ThreadName,
			IsSystem:   d.IsSystem,
			SystemType: d.SystemType,
		})
	}
	return out, nil
}

// contentRegex turns a LIKE-escaped substring pattern into a literal
// case-insensitive regex match.
func contentRegex(pattern string) primitive.Regex {
	literal := unescapeLike(pattern)
	return primitive.Regex{Pattern: regexp.QuoteMeta(literal), Options: "i"}
}

func unescapeLike(pattern string) string {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func userIDStrings(ids []chat.UserID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func threadIDStrings(ids []chat.ThreadID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

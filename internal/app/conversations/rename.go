package conversations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"linkup/internal/domain/chat"
)

// RenameThread renames a group thread. The sanitized name is written as a
// system message carrying the thread_name override, then backfilled onto
// prior rows so history reflects the latest name; other members converge
// through the regular sync path. The local list is patched optimistically
// and reverted if the write fails.
func (e *Engine) RenameThread(ctx context.Context, threadID chat.ThreadID, newName string) error {
	if !chat.ValidThreadID(threadID) {
		return chat.ErrInvalidID
	}
	name, err := chat.SanitizeThreadName(newName)
	if err != nil {
		return err
	}

	members, err := e.agg.store.MembershipsByThreads(ctx, []chat.ThreadID{threadID})
	if err != nil {
		return fmt.Errorf("conversations: rename membership check: %w", err)
	}
	if len(members) == 0 {
		return chat.ErrThreadNotFound
	}
	isMember := false
	for _, m := range members {
		if m.UserID == e.me {
			isMember = true
			break
		}
	}
	if !isMember {
		return chat.ErrNotAMember
	}

	prev, patched := e.list.SetThreadName(threadID, name)
	if patched {
		e.notify()
	}
	revert := func() {
		if patched {
			e.list.SetThreadName(threadID, prev)
			e.notify()
		}
	}

	msg := chat.GroupMessage{
		ID:         uuid.NewString(),
		ThreadID:   threadID,
		SenderID:   e.me,
		Content:    fmt.Sprintf("renamed the conversation to %q", name),
		CreatedAt:  time.Now().UTC(),
		ThreadName: name,
		IsSystem:   true,
		SystemType: chat.SystemTypeRename,
	}
	if err := e.agg.store.InsertGroupMessage(ctx, msg); err != nil {
		revert()
		return fmt.Errorf("conversations: rename write: %w", err)
	}
	if err := e.agg.store.BackfillThreadName(ctx, threadID, name); err != nil {
		// The override message already carries the new name; backfill is a
		// consistency sweep and its failure is not user-visible.
		e.log.Warn("thread name backfill failed", "thread_id", threadID, "error", err)
	}
	return nil
}

// StartThread starts a group conversation with the given participants,
// reusing an existing thread when the exact same set of people already
// shares one. Returns the thread id and whether it was newly created.
func (e *Engine) StartThread(ctx context.Context, participants []chat.UserID) (chat.ThreadID, bool, error) {
	for _, id := range participants {
		if !chat.ValidUserID(id) {
			return "", false, chat.ErrInvalidID
		}
	}
	full := append([]chat.UserID{e.me}, participants...)

	mine, err := e.agg.store.MembershipsByUser(ctx, e.me)
	if err != nil {
		return "", false, fmt.Errorf("conversations: start thread: %w", err)
	}
	if len(mine) > 0 {
		threadIDs := make([]chat.ThreadID, 0, len(mine))
		for _, m := range mine {
			threadIDs = append(threadIDs, m.ThreadID)
		}
		all, err := e.agg.store.MembershipsByThreads(ctx, threadIDs)
		if err != nil {
			return "", false, fmt.Errorf("conversations: start thread: %w", err)
		}
		sets := make(map[chat.ThreadID][]chat.UserID)
		for _, m := range all {
			sets[m.ThreadID] = append(sets[m.ThreadID], m.UserID)
		}
		if existing, ok := chat.FindExistingThread(full, sets); ok {
			return existing, false, nil
		}
	}

	threadID := chat.ThreadID(uuid.NewString())
	now := time.Now().UTC()
	rows := make([]chat.Membership, 0, len(full))
	seen := make(map[chat.UserID]struct{}, len(full))
	for _, id := range full {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, chat.Membership{ThreadID: threadID, UserID: id, JoinedAt: now})
	}
	if err := e.agg.store.InsertMemberships(ctx, rows); err != nil {
		return "", false, fmt.Errorf("conversations: start thread: %w", err)
	}
	e.RequestRefresh()
	return threadID, true, nil
}

// HideConversation soft-hides a pairwise history for the caller only. The
// conversation disappears from the aggregate until the counterparty writes
// again.
func (e *Engine) HideConversation(ctx context.Context, other chat.UserID) error {
	if !chat.ValidUserID(other) {
		return chat.ErrInvalidID
	}
	marker := chat.HiddenMarker{UserID: e.me, OtherUserID: other, HiddenAt: time.Now().UTC()}
	if err := e.agg.store.UpsertHiddenMarker(ctx, marker); err != nil {
		return fmt.Errorf("conversations: hide: %w", err)
	}
	if e.list.Remove(chat.PairwiseConversationID(other)) {
		e.notify()
	}
	return nil
}

// LeaveThread removes the caller's membership row; the membership-delete
// event then drops the thread from every other member's view of me.
func (e *Engine) LeaveThread(ctx context.Context, threadID chat.ThreadID) error {
	if !chat.ValidThreadID(threadID) {
		return chat.ErrInvalidID
	}
	if err := e.agg.store.DeleteMembership(ctx, threadID, e.me); err != nil {
		return fmt.Errorf("conversations: leave: %w", err)
	}
	if e.list.Remove(chat.GroupConversationID(threadID)) {
		e.notify()
	}
	return nil
}

package conversations

import (
	"context"
	"log/slog"

	"linkup/internal/domain/chat"
)

// Directory resolves user ids to display identity in batch. It performs one
// profile lookup and one avatar resolution per call regardless of input
// size; ids without a profile are simply absent from the result.
type Directory struct {
	store   Store
	avatars AvatarResolver
	log     *slog.Logger
}

func NewDirectory(store Store, avatars AvatarResolver, log *slog.Logger) *Directory {
	return &Directory{store: store, avatars: avatars, log: log}
}

// ResolveMany returns identities for the given id set. An empty set resolves
// to an empty map without touching storage.
func (d *Directory) ResolveMany(ctx context.Context, ids []chat.UserID) (map[chat.UserID]Identity, error) {
	unique := make([]chat.UserID, 0, len(ids))
	seen := make(map[chat.UserID]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[chat.UserID]Identity{}, nil
	}

	identities, err := d.store.ProfilesByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}
	d.resolveAvatarURLs(ctx, identities)
	return identities, nil
}

// resolveAvatarURLs fills AvatarURL from avatar keys in one batch.
// Resolution failure is logged and the identities keep empty URLs.
func (d *Directory) resolveAvatarURLs(ctx context.Context, identities map[chat.UserID]Identity) {
	if d.avatars == nil {
		return
	}
	keys := make([]string, 0, len(identities))
	for _, id := range identities {
		if id.AvatarKey != "" && id.AvatarURL == "" {
			keys = append(keys, id.AvatarKey)
		}
	}
	if len(keys) == 0 {
		return
	}
	urls, err := d.avatars.ResolveAvatars(ctx, keys)
	if err != nil {
		d.log.Warn("avatar resolution failed", "error", err, "keys", len(keys))
		return
	}
	for uid, id := range identities {
		if id.AvatarURL == "" {
			id.AvatarURL = urls[id.AvatarKey]
			identities[uid] = id
		}
	}
}

package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gindriliunas/whatsapp-clone/internal/docstore"
)

const (
	fieldEmail       = "email"
	fieldDisplayName = "displayName"
	fieldPhotoURL    = "photoURL"
	fieldLastLogin   = "lastLogin"
	fieldLastLogout  = "lastLogout"
	fieldLoginCount  = "loginCount"
	fieldUpdatedAt   = "updatedAt"
)

// RecordSignIn upserts the self user's profile record: creates it on first
// sign-in, otherwise bumps loginCount and refreshes the presentation fields.
func (r *Reconciler) RecordSignIn(ctx context.Context, id, displayName, avatarURL string) error {
	self := NormalizeID(id)
	if err := ValidateID(self); err != nil {
		return err
	}

	docs, err := r.store.Query(ctx, collUsers, docstore.Where(fieldEmail, docstore.Eq, self))
	if err != nil {
		return fmt.Errorf("%w: load profile: %v", ErrStoreUnavailable, err)
	}

	fields := map[string]any{
		fieldEmail:       self,
		fieldDisplayName: displayName,
		fieldPhotoURL:    avatarURL,
		fieldLastLogin:   docstore.ServerTimestamp,
		fieldUpdatedAt:   docstore.ServerTimestamp,
	}

	if len(docs) > 0 {
		doc := docs[0]
		fields[fieldLoginCount] = doc.Int(fieldLoginCount) + 1
		if err := r.store.Write(ctx, doc.Ref, fields, docstore.Merge); err != nil {
			return fmt.Errorf("%w: update profile: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	fields[fieldLoginCount] = int64(1)
	fields[fieldCreatedAt] = docstore.ServerTimestamp
	if _, err := r.store.Create(ctx, collUsers, fields); err != nil {
		return fmt.Errorf("%w: create profile: %v", ErrStoreUnavailable, err)
	}
	r.logger.Info("profile created", zap.String("user", self))
	return nil
}

// RecordSignOut stamps the self user's profile with a sign-out time. A
// missing profile is a no-op.
func (r *Reconciler) RecordSignOut(ctx context.Context, id string) error {
	self := NormalizeID(id)
	docs, err := r.store.Query(ctx, collUsers, docstore.Where(fieldEmail, docstore.Eq, self))
	if err != nil {
		return fmt.Errorf("%w: load profile: %v", ErrStoreUnavailable, err)
	}
	if len(docs) == 0 {
		return nil
	}
	if err := r.store.Write(ctx, docs[0].Ref, map[string]any{
		fieldLastLogout: docstore.ServerTimestamp,
		fieldUpdatedAt:  docstore.ServerTimestamp,
	}, docstore.Merge); err != nil {
		return fmt.Errorf("%w: update profile: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Profile returns the cached profile for a normalized identifier, if one was
// seen on the last list refresh.
func (r *Reconciler) Profile(id string) (Profile, bool) {
	r.profilesMu.RLock()
	defer r.profilesMu.RUnlock()
	p, ok := r.profiles[NormalizeID(id)]
	return p, ok
}

// refreshProfiles rebuilds the profile cache from one batch query over the
// users collection and returns the entries for the requested peers. Failures
// degrade to the previous cache contents; enrichment is never load-bearing.
func (r *Reconciler) refreshProfiles(ctx context.Context, peers []string) map[string]Profile {
	docs, err := r.store.Query(ctx, collUsers)
	if err != nil {
		r.logger.Warn("profile lookup failed", zap.Error(err))
		r.profilesMu.RLock()
		defer r.profilesMu.RUnlock()
		return pickProfiles(r.profiles, peers)
	}

	fresh := make(map[string]Profile, len(docs))
	for _, doc := range docs {
		email := NormalizeID(doc.String(fieldEmail))
		if email == "" {
			continue
		}
		fresh[email] = Profile{
			ID:          email,
			DisplayName: doc.String(fieldDisplayName),
			AvatarURL:   doc.String(fieldPhotoURL),
			LastSeen:    doc.Time(fieldLastLogin),
			LoginCount:  doc.Int(fieldLoginCount),
		}
	}

	r.profilesMu.Lock()
	r.profiles = fresh
	r.profilesMu.Unlock()

	return pickProfiles(fresh, peers)
}

func pickProfiles(all map[string]Profile, peers []string) map[string]Profile {
	out := make(map[string]Profile, len(peers))
	for _, p := range peers {
		if prof, ok := all[p]; ok {
			out[p] = prof
		}
	}
	return out
}

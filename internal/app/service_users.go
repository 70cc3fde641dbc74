package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sharesync/api/internal/storage"
	"sharesync/api/internal/util"
)

const (
	maxDisplayName    = 80
	maxBio            = 500
	maxAvatarBytes    = 5 << 20
	defaultUserSearch = 20
	maxUserSearch     = 50
	avatarURLTTL      = time.Hour
)

var avatarTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

type UpdateProfileInput struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
}

func (s *Service) Me(ctx context.Context, actor Session) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.UnreadNotificationCount(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"user": selfPayload(user), "unreadNotifications": unread}, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if isNoRows(err) {
			return notFound("User")
		}
		return err
	}
	return nil
}

func (s *Service) GetProfile(ctx context.Context, viewer Session, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("User")
		}
		return nil, err
	}
	followers, following, err := s.store.FollowCounts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	isFollowing := false
	if viewer.UserID != user.ID {
		if isFollowing, err = s.store.IsFollowing(ctx, viewer.UserID, user.ID); err != nil {
			return nil, err
		}
	}
	profile := userPayload(user)
	profile["followers"] = followers
	profile["following"] = following
	profile["isFollowing"] = isFollowing
	return map[string]any{"user": profile}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, actor Session, input UpdateProfileInput) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if input.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Bio != nil {
		user.Bio = strings.TrimSpace(*input.Bio)
	}
	if user.DisplayName == "" || runeLen(user.DisplayName) > maxDisplayName {
		return nil, validationError(fmt.Sprintf("displayName must be 1-%d characters", maxDisplayName))
	}
	if runeLen(user.Bio) > maxBio {
		return nil, validationError(fmt.Sprintf("bio must be at most %d characters", maxBio))
	}
	if err := s.store.UpdateProfile(ctx, user.ID, user.DisplayName, user.Bio); err != nil {
		return nil, err
	}
	return map[string]any{"user": selfPayload(user)}, nil
}

// UploadAvatar stores the image and points avatarUrl at the redirecting
// /api/users/<id>/avatar/<objectID> route, which never expires.
func (s *Service) UploadAvatar(ctx context.Context, actor Session, contentType string, size int64, body io.Reader) (map[string]any, error) {
	if s.files == nil || !s.files.Configured() {
		return nil, storage.ErrNotConfigured
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !avatarTypes[contentType] {
		return nil, validationError("avatar must be a png, jpeg, gif or webp image")
	}
	if size > maxAvatarBytes {
		return nil, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Avatar is too large", map[string]any{"maxBytes": maxAvatarBytes})
	}
	objectID := util.NewID("")
	if err := s.files.Put(ctx, storage.AvatarKey(actor.UserID, objectID), body, size, contentType); err != nil {
		return nil, err
	}
	avatarURL := "/api/users/" + actor.UserID + "/avatar/" + objectID
	if err := s.store.UpdateAvatar(ctx, actor.UserID, avatarURL); err != nil {
		return nil, err
	}
	return map[string]any{"avatarUrl": avatarURL}, nil
}

// AvatarURL presigns the stored avatar object for a redirect.
func (s *Service) AvatarURL(ctx context.Context, userID, objectID string) (string, error) {
	if s.files == nil || !s.files.Configured() {
		return "", storage.ErrNotConfigured
	}
	if objectID == "" || storage.SafeName(objectID) != objectID {
		return "", notFound("Avatar")
	}
	return s.files.PresignGet(ctx, storage.AvatarKey(userID, objectID), avatarURLTTL, "")
}

func (s *Service) Follow(ctx context.Context, actor Session, targetID string) (map[string]any, error) {
	if targetID == actor.UserID {
		return nil, validationError("You cannot follow yourself")
	}
	if err := s.loadUser(ctx, targetID); err != nil {
		return nil, err
	}
	created, err := s.store.Follow(ctx, actor.UserID, targetID)
	if err != nil {
		return nil, err
	}
	if created {
		s.notify(ctx, actor, []string{targetID}, notice{
			Type:       notifyUserFollowed,
			EntityType: "user",
			EntityID:   actor.UserID,
			Message:    actor.UserName + " started following you",
			Link:       "/users/" + actor.UserID,
		})
	}
	return map[string]any{"following": true}, nil
}

func (s *Service) Unfollow(ctx context.Context, actor Session, targetID string) (map[string]any, error) {
	if err := s.store.Unfollow(ctx, actor.UserID, targetID); err != nil {
		return nil, err
	}
	return map[string]any{"following": false}, nil
}

func (s *Service) ListFollowers(ctx context.Context, userID string) (map[string]any, error) {
	if err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.store.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"users": usersPayload(users)}, nil
}

func (s *Service) ListFollowing(ctx context.Context, userID string) (map[string]any, error) {
	if err := s.loadUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.store.ListFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"users": usersPayload(users)}, nil
}

func (s *Service) SearchUsers(ctx context.Context, query string, limit int) (map[string]any, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return map[string]any{"users": []map[string]any{}}, nil
	}
	users, err := s.store.SearchUsers(ctx, query, clampLimit(limit, defaultUserSearch, maxUserSearch))
	if err != nil {
		return nil, err
	}
	return map[string]any{"users": usersPayload(users)}, nil
}

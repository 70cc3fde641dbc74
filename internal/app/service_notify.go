package app

import (
	"context"

	"sharesync/api/internal/logging"
	"sharesync/api/internal/realtime"
	"sharesync/api/internal/store"
	"sharesync/api/internal/util"
)

const (
	notifyProjectShared  = "project.shared"
	notifyProjectUpdated = "project.updated"
	notifyProjectRemoved = "project.removed"
	notifyPostCreated    = "post.created"
	notifyAnnouncement   = "announcement"
	notifyPostLiked      = "post.liked"
	notifyPostCommented  = "post.commented"
	notifyTaskAssigned   = "task.assigned"
	notifyTaskCompleted  = "task.completed"
	notifyTaskCommented  = "task.commented"
	notifyUserFollowed   = "user.followed"
)

const (
	defaultNotifyLimit   = 50
	maxNotifyLimit       = 200
	defaultActivityLimit = 50
	maxActivityLimit     = 200
)

// emailedNotices also go out by email when SMTP is configured.
var emailedNotices = map[string]string{
	notifyProjectShared: "You were added to a project",
	notifyTaskAssigned:  "A task was assigned to you",
}

type notice struct {
	Type       string
	ProjectID  string
	EntityType string
	EntityID   string
	Message    string
	Link       string
}

// notify fans a notice out to recipients, skipping the actor and duplicates.
// A failed insert is logged and nothing is published; delivery failures after
// that point are logged only.
func (s *Service) notify(ctx context.Context, actor Session, recipients []string, n notice) {
	seen := map[string]struct{}{actor.UserID: {}}
	items := make([]store.Notification, 0, len(recipients))
	now := s.now()
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}
		items = append(items, store.Notification{
			ID:         util.NewID("ntf"),
			UserID:     userID,
			ActorID:    actor.UserID,
			ActorName:  actor.UserName,
			Type:       n.Type,
			ProjectID:  n.ProjectID,
			EntityType: n.EntityType,
			EntityID:   n.EntityID,
			Message:    n.Message,
			CreatedAt:  now,
		})
	}
	if len(items) == 0 {
		return
	}

	if err := s.store.InsertNotifications(ctx, items); err != nil {
		s.logger.Error().Err(err).Str("type", n.Type).Int("recipients", len(items)).Msg("insert notifications")
		return
	}
	s.metrics.NotificationCreated(n.Type, len(items))

	for _, item := range items {
		s.publish(ctx, realtime.UserRoom(item.UserID), "notification", notificationPayload(item))
	}

	subject, emailed := emailedNotices[n.Type]
	if !emailed || !s.SMTPConfigured() {
		return
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.UserID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load notification email recipients")
		return
	}
	link := s.link(firstNonBlank(n.Link, "/notifications"))
	for _, user := range users {
		s.background("send notification email", func() error {
			return s.mailer.SendNotificationEmail(user.Email, user.DisplayName, subject, n.Message, link)
		})
	}
}

func (s *Service) publish(ctx context.Context, room, typ string, payload any) {
	if s.realtime == nil {
		return
	}
	if err := s.realtime.Publish(ctx, room, typ, payload); err != nil {
		s.logger.Warn().Err(err).Str("room", room).Str("type", typ).Msg("realtime publish")
	}
}

// recordActivity appends to the project log, bumps the project's updated_at
// and broadcasts to the project room.
func (s *Service) recordActivity(ctx context.Context, actor Session, projectID, action, entityType, entityID, summary string) {
	item := store.Activity{
		ID:         util.NewID("act"),
		ProjectID:  projectID,
		ActorID:    actor.UserID,
		ActorName:  actor.UserName,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Summary:    summary,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertActivity(ctx, item); err != nil {
		s.logger.Error().Err(err).Str(logging.PROJECT, projectID).Str("action", action).Msg("insert activity")
		return
	}
	if err := s.store.TouchProject(ctx, projectID); err != nil {
		s.logger.Warn().Err(err).Str(logging.PROJECT, projectID).Msg("touch project")
	}
	s.publish(ctx, realtime.ProjectRoom(projectID), "activity", activityPayload(item))
}

func (s *Service) ListNotifications(ctx context.Context, actor Session, unreadOnly bool, limit int) (map[string]any, error) {
	items, err := s.store.ListNotifications(ctx, actor.UserID, unreadOnly, clampLimit(limit, defaultNotifyLimit, maxNotifyLimit))
	if err != nil {
		return nil, err
	}
	unread, err := s.store.UnreadNotificationCount(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, notificationPayload(item))
	}
	return map[string]any{"notifications": payload, "unreadCount": unread}, nil
}

func (s *Service) UnreadCount(ctx context.Context, actor Session) (int, error) {
	return s.store.UnreadNotificationCount(ctx, actor.UserID)
}

// MarkRead only touches the recipient's own notification; anything else is
// reported as missing.
func (s *Service) MarkRead(ctx context.Context, actor Session, notificationID string) error {
	if err := s.store.MarkNotificationRead(ctx, actor.UserID, notificationID); err != nil {
		if isNoRows(err) {
			return notFound("Notification")
		}
		return err
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, actor Session) (int, error) {
	updated, err := s.store.MarkAllNotificationsRead(ctx, actor.UserID)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, realtime.UserRoom(actor.UserID), "notifications.read", map[string]any{"updated": updated})
	return updated, nil
}

package app

import (
	"time"

	"sharesync/api/internal/store"
)

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return timestamp(*t)
}

func optionalString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func userPayload(user store.User) map[string]any {
	return map[string]any{
		"id":          user.ID,
		"username":    user.Username,
		"displayName": user.DisplayName,
		"bio":         user.Bio,
		"avatarUrl":   user.AvatarURL,
		"points":      user.Points,
	}
}

// selfPayload adds the private fields only the account owner sees.
func selfPayload(user store.User) map[string]any {
	payload := userPayload(user)
	payload["email"] = user.Email
	payload["emailVerified"] = user.IsEmailVerified
	payload["createdAt"] = timestamp(user.CreatedAt)
	return payload
}

func usersPayload(users []store.User) []map[string]any {
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		items = append(items, userPayload(user))
	}
	return items
}

func projectPayload(project store.Project) map[string]any {
	return map[string]any{
		"id":          project.ID,
		"name":        project.Name,
		"description": project.Description,
		"category":    project.Category,
		"status":      project.Status,
		"visibility":  project.Visibility,
		"ownerId":     project.OwnerID,
		"createdAt":   timestamp(project.CreatedAt),
		"updatedAt":   timestamp(project.UpdatedAt),
	}
}

func memberPayload(member store.Member) map[string]any {
	return map[string]any{
		"userId":      member.UserID,
		"username":    member.Username,
		"displayName": member.DisplayName,
		"avatarUrl":   member.AvatarURL,
		"role":        member.Role,
		"joinedAt":    timestamp(member.JoinedAt),
	}
}

func membersPayload(members []store.Member) []map[string]any {
	items := make([]map[string]any, 0, len(members))
	for _, member := range members {
		items = append(items, memberPayload(member))
	}
	return items
}

func postPayload(post store.Post) map[string]any {
	return map[string]any{
		"id":         post.ID,
		"projectId":  post.ProjectID,
		"authorId":   post.AuthorID,
		"authorName": post.AuthorName,
		"kind":       post.Kind,
		"title":      post.Title,
		"body":       post.Body,
		"imageUrl":   post.ImageURL,
		"likes":      post.Likes,
		"comments":   post.Comments,
		"likedByMe":  post.LikedByMe,
		"createdAt":  timestamp(post.CreatedAt),
		"updatedAt":  timestamp(post.UpdatedAt),
	}
}

func commentPayload(comment store.Comment) map[string]any {
	return map[string]any{
		"id":         comment.ID,
		"postId":     comment.PostID,
		"authorId":   comment.AuthorID,
		"authorName": comment.AuthorName,
		"body":       comment.Body,
		"createdAt":  timestamp(comment.CreatedAt),
	}
}

func subtaskPayload(subtask store.Subtask) map[string]any {
	return map[string]any{
		"id":        subtask.ID,
		"taskId":    subtask.TaskID,
		"title":     subtask.Title,
		"done":      subtask.Done,
		"createdAt": timestamp(subtask.CreatedAt),
	}
}

func taskPayload(task store.Task) map[string]any {
	subtasks := make([]map[string]any, 0, len(task.Subtasks))
	for _, subtask := range task.Subtasks {
		subtasks = append(subtasks, subtaskPayload(subtask))
	}
	return map[string]any{
		"id":            task.ID,
		"projectId":     task.ProjectID,
		"title":         task.Title,
		"description":   task.Description,
		"status":        task.Status,
		"priority":      task.Priority,
		"assigneeId":    optionalString(task.AssigneeID),
		"assigneeName":  nilIfEmpty(task.AssigneeName),
		"dueDate":       optionalTime(task.DueDate),
		"createdBy":     task.CreatedBy,
		"createdByName": task.CreatedByName,
		"completedAt":   optionalTime(task.CompletedAt),
		"subtasks":      subtasks,
		"commentCount":  task.CommentCount,
		"createdAt":     timestamp(task.CreatedAt),
		"updatedAt":     timestamp(task.UpdatedAt),
	}
}

func taskCommentPayload(comment store.TaskComment) map[string]any {
	return map[string]any{
		"id":         comment.ID,
		"taskId":     comment.TaskID,
		"authorId":   comment.AuthorID,
		"authorName": comment.AuthorName,
		"body":       comment.Body,
		"createdAt":  timestamp(comment.CreatedAt),
	}
}

func notificationPayload(item store.Notification) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"type":       item.Type,
		"actorId":    nilIfEmpty(item.ActorID),
		"actorName":  item.ActorName,
		"projectId":  nilIfEmpty(item.ProjectID),
		"entityType": item.EntityType,
		"entityId":   item.EntityID,
		"message":    item.Message,
		"read":       item.Read,
		"createdAt":  timestamp(item.CreatedAt),
	}
}

func activityPayload(item store.Activity) map[string]any {
	return map[string]any{
		"id":         item.ID,
		"projectId":  item.ProjectID,
		"actorId":    item.ActorID,
		"actorName":  item.ActorName,
		"action":     item.Action,
		"entityType": item.EntityType,
		"entityId":   item.EntityID,
		"summary":    item.Summary,
		"createdAt":  timestamp(item.CreatedAt),
	}
}

func leaderboardPayload(entries []store.LeaderboardEntry) []map[string]any {
	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"rank":        entry.Rank,
			"userId":      entry.UserID,
			"username":    entry.Username,
			"displayName": entry.DisplayName,
			"avatarUrl":   entry.AvatarURL,
			"points":      entry.Points,
		})
	}
	return items
}

func filePayload(file store.File) map[string]any {
	return map[string]any{
		"id":           file.ID,
		"projectId":    file.ProjectID,
		"uploaderId":   file.UploaderID,
		"uploaderName": file.UploaderName,
		"name":         file.Name,
		"contentType":  file.ContentType,
		"size":         file.Size,
		"createdAt":    timestamp(file.CreatedAt),
	}
}

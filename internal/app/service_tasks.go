package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sharesync/api/internal/points"
	"sharesync/api/internal/rbac"
	"sharesync/api/internal/realtime"
	"sharesync/api/internal/search"
	"sharesync/api/internal/store"
	"sharesync/api/internal/util"
)

const (
	maxTaskTitle       = 200
	maxTaskDescription = 5000
	maxSubtaskTitle    = 200
	maxTaskComment     = 2000

	taskTodo       = "todo"
	taskInProgress = "in_progress"
	taskDone       = "done"
)

var (
	taskStatuses   = map[string]bool{taskTodo: true, taskInProgress: true, taskDone: true}
	taskPriorities = map[string]bool{"low": true, "medium": true, "high": true}
)

type CreateTaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	AssigneeID  string `json:"assigneeId"`
	DueDate     string `json:"dueDate"`
}

// UpdateTaskInput is a partial patch. An empty AssigneeID unassigns.
type UpdateTaskInput struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Status       *string `json:"status"`
	Priority     *string `json:"priority"`
	AssigneeID   *string `json:"assigneeId"`
	DueDate      *string `json:"dueDate"`
	ClearDueDate bool    `json:"clearDueDate"`
}

// parseDueDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			parsed = parsed.UTC()
			return &parsed, nil
		}
	}
	return nil, validationError("dueDate must be YYYY-MM-DD or RFC 3339")
}

func validateTaskFields(title, description string) error {
	if title == "" || runeLen(title) > maxTaskTitle {
		return validationError(fmt.Sprintf("title must be 1-%d characters", maxTaskTitle))
	}
	if runeLen(description) > maxTaskDescription {
		return validationError(fmt.Sprintf("description must be at most %d characters", maxTaskDescription))
	}
	return nil
}

func taskRecord(task store.Task, visibility string) search.TaskRecord {
	return search.TaskRecord{
		ID:                task.ID,
		Title:             task.Title,
		Description:       task.Description,
		Status:            task.Status,
		ProjectID:         task.ProjectID,
		ProjectVisibility: visibility,
	}
}

func taskLink(task store.Task) string {
	return "/projects/" + task.ProjectID + "/tasks/" + task.ID
}

// checkAssignee requires the user to be a member who can contribute.
func (s *Service) checkAssignee(ctx context.Context, projectID, userID string) error {
	role, err := s.store.GetMemberRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if !rbac.Can(rbac.Normalize(role), rbac.ActionContribute) {
		return validationError("assignee must be a project member who can contribute")
	}
	return nil
}

func (s *Service) loadTask(ctx context.Context, actor Session, taskID string, action rbac.Action) (store.Task, projectAccess, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		if isNoRows(err) {
			return store.Task{}, projectAccess{}, notFound("Task")
		}
		return store.Task{}, projectAccess{}, err
	}
	access, err := s.authorize(ctx, actor, task.ProjectID, action)
	if err != nil {
		return store.Task{}, projectAccess{}, err
	}
	return task, access, nil
}

func (s *Service) CreateTask(ctx context.Context, actor Session, projectID string, input CreateTaskInput) (map[string]any, error) {
	access, err := s.authorize(ctx, actor, projectID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if err := validateTaskFields(title, description); err != nil {
		return nil, err
	}
	status := firstNonBlank(input.Status, taskTodo)
	if !taskStatuses[status] {
		return nil, validationError("status must be todo, in_progress or done")
	}
	priority := firstNonBlank(input.Priority, "medium")
	if !taskPriorities[priority] {
		return nil, validationError("priority must be low, medium or high")
	}
	dueDate, err := parseDueDate(input.DueDate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	task := store.Task{
		ID:            util.NewID("tsk"),
		ProjectID:     projectID,
		Title:         title,
		Description:   description,
		Status:        status,
		Priority:      priority,
		DueDate:       dueDate,
		CreatedBy:     actor.UserID,
		CreatedByName: actor.UserName,
		Subtasks:      []store.Subtask{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if assigneeID := strings.TrimSpace(input.AssigneeID); assigneeID != "" {
		if err := s.checkAssignee(ctx, projectID, assigneeID); err != nil {
			return nil, err
		}
		task.AssigneeID = &assigneeID
	}
	if status == taskDone {
		task.CompletedAt = &now
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return nil, err
	}
	if created, err := s.store.GetTask(ctx, task.ID); err == nil {
		created.Subtasks = task.Subtasks
		task = created
	}

	s.recordActivity(ctx, actor, projectID, "task.created", "task", task.ID, "created task "+task.Title)
	s.award(ctx, actor.UserID, projectID, points.TaskCreated)
	if task.AssigneeID != nil {
		s.notify(ctx, actor, []string{*task.AssigneeID}, notice{
			Type:       notifyTaskAssigned,
			ProjectID:  projectID,
			EntityType: "task",
			EntityID:   task.ID,
			Message:    fmt.Sprintf("%s assigned you %s in %s", actor.UserName, task.Title, access.project.Name),
			Link:       taskLink(task),
		})
	}
	s.search.IndexTask(taskRecord(task, access.project.Visibility))
	s.publish(ctx, realtime.ProjectRoom(projectID), "task.created", taskPayload(task))

	return map[string]any{"task": taskPayload(task)}, nil
}

func (s *Service) ListTasks(ctx context.Context, actor Session, projectID, status, assigneeID string) (map[string]any, error) {
	if status != "" && !taskStatuses[status] {
		return nil, validationError("status must be todo, in_progress or done")
	}
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, projectID, status, assigneeID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskPayload(task))
	}
	return map[string]any{"tasks": items}, nil
}

func (s *Service) GetTask(ctx context.Context, actor Session, taskID string) (map[string]any, error) {
	task, access, err := s.loadTask(ctx, actor, taskID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	subtasks, err := s.store.ListSubtasks(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	task.Subtasks = subtasks
	return map[string]any{
		"task": taskPayload(task),
		"permissions": map[string]bool{
			"edit":   access.can(rbac.ActionContribute),
			"delete": canEditContent(access, actor, task.CreatedBy),
		},
	}, nil
}

func (s *Service) UpdateTask(ctx context.Context, actor Session, taskID string, input UpdateTaskInput) (map[string]any, error) {
	task, access, err := s.loadTask(ctx, actor, taskID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}
	previous := task
	changed := make([]string, 0, 6)

	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
		if task.Title != previous.Title {
			changed = append(changed, "title")
		}
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
		if task.Description != previous.Description {
			changed = append(changed, "description")
		}
	}
	if err := validateTaskFields(task.Title, task.Description); err != nil {
		return nil, err
	}
	if input.Status != nil {
		if !taskStatuses[*input.Status] {
			return nil, validationError("status must be todo, in_progress or done")
		}
		if *input.Status != task.Status {
			task.Status = *input.Status
			changed = append(changed, "status")
		}
	}
	if input.Priority != nil {
		if !taskPriorities[*input.Priority] {
			return nil, validationError("priority must be low, medium or high")
		}
		if *input.Priority != task.Priority {
			task.Priority = *input.Priority
			changed = append(changed, "priority")
		}
	}

	newAssignee := ""
	if input.AssigneeID != nil {
		next := strings.TrimSpace(*input.AssigneeID)
		current := ""
		if task.AssigneeID != nil {
			current = *task.AssigneeID
		}
		if next != current {
			if next == "" {
				task.AssigneeID = nil
			} else {
				if err := s.checkAssignee(ctx, task.ProjectID, next); err != nil {
					return nil, err
				}
				task.AssigneeID = &next
				newAssignee = next
			}
			changed = append(changed, "assignee")
		}
	}

	switch {
	case input.ClearDueDate:
		if task.DueDate != nil {
			task.DueDate = nil
			changed = append(changed, "dueDate")
		}
	case input.DueDate != nil:
		dueDate, err := parseDueDate(*input.DueDate)
		if err != nil {
			return nil, err
		}
		if !sameTime(dueDate, task.DueDate) {
			task.DueDate = dueDate
			changed = append(changed, "dueDate")
		}
	}

	completed := previous.Status != taskDone && task.Status == taskDone
	switch {
	case completed:
		now := s.now()
		task.CompletedAt = &now
	case task.Status != taskDone:
		task.CompletedAt = nil
	}

	if len(changed) == 0 {
		return map[string]any{"task": taskPayload(task), "changed": changed}, nil
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		if isNoRows(err) {
			return nil, notFound("Task")
		}
		return nil, err
	}
	if updated, err := s.store.GetTask(ctx, task.ID); err == nil {
		task = updated
	}

	summary := "updated task " + task.Title + " (" + strings.Join(changed, ", ") + ")"
	if completed {
		summary = "completed task " + task.Title
	}
	s.recordActivity(ctx, actor, task.ProjectID, "task.updated", "task", task.ID, summary)

	if newAssignee != "" {
		s.notify(ctx, actor, []string{newAssignee}, notice{
			Type:       notifyTaskAssigned,
			ProjectID:  task.ProjectID,
			EntityType: "task",
			EntityID:   task.ID,
			Message:    fmt.Sprintf("%s assigned you %s in %s", actor.UserName, task.Title, access.project.Name),
			Link:       taskLink(task),
		})
	}
	if completed {
		s.completeTask(ctx, actor, task)
	}
	s.search.IndexTask(taskRecord(task, access.project.Visibility))
	s.publish(ctx, realtime.ProjectRoom(task.ProjectID), "task.updated", taskPayload(task))

	return map[string]any{"task": taskPayload(task), "changed": changed}, nil
}

// completeTask notifies on every transition into done but awards points only
// the first time, guarded by the task's completion_awarded flag.
func (s *Service) completeTask(ctx context.Context, actor Session, task store.Task) {
	recipients := []string{task.CreatedBy}
	if task.AssigneeID != nil {
		recipients = append(recipients, *task.AssigneeID)
	}
	s.notify(ctx, actor, recipients, notice{
		Type:       notifyTaskCompleted,
		ProjectID:  task.ProjectID,
		EntityType: "task",
		EntityID:   task.ID,
		Message:    fmt.Sprintf("%s completed %s", actor.UserName, task.Title),
		Link:       taskLink(task),
	})

	first, err := s.store.MarkCompletionAwarded(ctx, task.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("task", task.ID).Msg("mark completion awarded")
		return
	}
	if !first {
		return
	}
	earner := actor.UserID
	if task.AssigneeID != nil {
		earner = *task.AssigneeID
	}
	s.award(ctx, earner, task.ProjectID, points.TaskCompleted)
}

func (s *Service) DeleteTask(ctx context.Context, actor Session, taskID string) error {
	task, access, err := s.loadTask(ctx, actor, taskID, rbac.ActionRead)
	if err != nil {
		return err
	}
	if !canEditContent(access, actor, task.CreatedBy) {
		return forbidden()
	}
	if err := s.store.DeleteTask(ctx, task.ID); err != nil {
		return err
	}
	s.recordActivity(ctx, actor, task.ProjectID, "task.deleted", "task", task.ID, "deleted task "+task.Title)
	s.search.DeleteTask(task.ID)
	s.publish(ctx, realtime.ProjectRoom(task.ProjectID), "task.deleted", map[string]any{"id": task.ID})
	return nil
}

func (s *Service) AddSubtask(ctx context.Context, actor Session, taskID, title string) (map[string]any, error) {
	task, _, err := s.loadTask(ctx, actor, taskID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" || runeLen(title) > maxSubtaskTitle {
		return nil, validationError(fmt.Sprintf("title must be 1-%d characters", maxSubtaskTitle))
	}
	subtask := store.Subtask{
		ID:        util.NewID("sub"),
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		Title:     title,
		CreatedAt: s.now(),
	}
	if err := s.store.InsertSubtask(ctx, subtask); err != nil {
		return nil, err
	}
	s.recordActivity(ctx, actor, task.ProjectID, "subtask.created", "task", task.ID, "added subtask "+title+" to "+task.Title)
	return map[string]any{"subtask": subtaskPayload(subtask)}, nil
}

func (s *Service) loadSubtask(ctx context.Context, actor Session, subtaskID string) (store.Subtask, error) {
	subtask, err := s.store.GetSubtask(ctx, subtaskID)
	if err != nil {
		if isNoRows(err) {
			return store.Subtask{}, notFound("Subtask")
		}
		return store.Subtask{}, err
	}
	if _, err := s.authorize(ctx, actor, subtask.ProjectID, rbac.ActionContribute); err != nil {
		return store.Subtask{}, err
	}
	return subtask, nil
}

func (s *Service) SetSubtaskDone(ctx context.Context, actor Session, subtaskID string, done bool) (map[string]any, error) {
	subtask, err := s.loadSubtask(ctx, actor, subtaskID)
	if err != nil {
		return nil, err
	}
	if subtask.Done != done {
		if err := s.store.SetSubtaskDone(ctx, subtask.ID, done); err != nil {
			return nil, err
		}
		subtask.Done = done
		verb := "reopened subtask "
		if done {
			verb = "checked off subtask "
		}
		s.recordActivity(ctx, actor, subtask.ProjectID, "subtask.updated", "task", subtask.TaskID, verb+subtask.Title)
	}
	return map[string]any{"subtask": subtaskPayload(subtask)}, nil
}

func (s *Service) DeleteSubtask(ctx context.Context, actor Session, subtaskID string) error {
	subtask, err := s.loadSubtask(ctx, actor, subtaskID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSubtask(ctx, subtask.ID); err != nil {
		return err
	}
	s.recordActivity(ctx, actor, subtask.ProjectID, "subtask.deleted", "task", subtask.TaskID, "removed subtask "+subtask.Title)
	return nil
}

func (s *Service) AddTaskComment(ctx context.Context, actor Session, taskID, body string) (map[string]any, error) {
	task, _, err := s.loadTask(ctx, actor, taskID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" || runeLen(body) > maxTaskComment {
		return nil, validationError(fmt.Sprintf("body must be 1-%d characters", maxTaskComment))
	}
	comment := store.TaskComment{
		ID:         util.NewID("tcm"),
		TaskID:     task.ID,
		AuthorID:   actor.UserID,
		AuthorName: actor.UserName,
		Body:       body,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertTaskComment(ctx, comment); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, actor, task.ProjectID, "task.commented", "task", task.ID, "commented on task "+task.Title)
	recipients := []string{task.CreatedBy}
	if task.AssigneeID != nil {
		recipients = append(recipients, *task.AssigneeID)
	}
	s.notify(ctx, actor, recipients, notice{
		Type:       notifyTaskCommented,
		ProjectID:  task.ProjectID,
		EntityType: "task",
		EntityID:   task.ID,
		Message:    fmt.Sprintf("%s commented on %s: %s", actor.UserName, task.Title, snippet(body)),
		Link:       taskLink(task),
	})
	return map[string]any{"comment": taskCommentPayload(comment)}, nil
}

func (s *Service) ListTaskComments(ctx context.Context, actor Session, taskID string) (map[string]any, error) {
	task, _, err := s.loadTask(ctx, actor, taskID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListTaskComments(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, taskCommentPayload(comment))
	}
	return map[string]any{"comments": items}, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"sharesync/api/internal/logging"
	"sharesync/api/internal/points"
	"sharesync/api/internal/rbac"
	"sharesync/api/internal/realtime"
	"sharesync/api/internal/search"
	"sharesync/api/internal/store"
	"sharesync/api/internal/util"
)

const (
	maxProjectName        = 120
	maxProjectDescription = 2000
	maxProjectCategory    = 60
)

var allowedProjectStatus = map[string]struct{}{
	"active":    {},
	"completed": {},
	"archived":  {},
}

var allowedProjectVisibility = map[string]struct{}{
	"private": {},
	"public":  {},
}

type CreateProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Visibility  string `json:"visibility"`
}

type UpdateProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Status      *string `json:"status"`
	Visibility  *string `json:"visibility"`
}

// projectAccess is the actor's standing in one project.
type projectAccess struct {
	project store.Project
	role    rbac.Role
}

func (a projectAccess) can(action rbac.Action) bool {
	if a.role == rbac.RoleNone {
		return action == rbac.ActionRead && a.project.Visibility == "public"
	}
	return rbac.Can(a.role, action)
}

// authorize loads the project and checks action for actor. Private projects
// are reported as missing to non-members.
func (s *Service) authorize(ctx context.Context, actor Session, projectID string, action rbac.Action) (projectAccess, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		if isNoRows(err) {
			return projectAccess{}, notFound("Project")
		}
		return projectAccess{}, err
	}
	role, err := s.store.GetMemberRole(ctx, projectID, actor.UserID)
	if err != nil {
		return projectAccess{}, err
	}
	access := projectAccess{project: project, role: rbac.Normalize(role)}
	if access.role == rbac.RoleNone && project.Visibility != "public" {
		return projectAccess{}, notFound("Project")
	}
	if !access.can(action) {
		return projectAccess{}, forbidden()
	}
	return access, nil
}

func projectRecord(project store.Project) search.ProjectRecord {
	return search.ProjectRecord{
		ID:                project.ID,
		Name:              project.Name,
		Description:       project.Description,
		Category:          project.Category,
		Status:            project.Status,
		ProjectID:         project.ID,
		ProjectVisibility: project.Visibility,
	}
}

func validateProjectFields(name, description, category string) error {
	if name == "" || runeLen(name) > maxProjectName {
		return validationError(fmt.Sprintf("name must be 1-%d characters", maxProjectName))
	}
	if runeLen(description) > maxProjectDescription {
		return validationError(fmt.Sprintf("description must be at most %d characters", maxProjectDescription))
	}
	if runeLen(category) > maxProjectCategory {
		return validationError(fmt.Sprintf("category must be at most %d characters", maxProjectCategory))
	}
	return nil
}

func (s *Service) CreateProject(ctx context.Context, actor Session, input CreateProjectInput) (map[string]any, error) {
	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)
	category := strings.TrimSpace(input.Category)
	if err := validateProjectFields(name, description, category); err != nil {
		return nil, err
	}
	visibility := firstNonBlank(strings.ToLower(input.Visibility), "private")
	if _, ok := allowedProjectVisibility[visibility]; !ok {
		return nil, validationError("visibility must be 'private' or 'public'")
	}

	now := s.now()
	project := store.Project{
		ID:          util.NewID("prj"),
		Name:        name,
		Description: description,
		Category:    category,
		Status:      "active",
		Visibility:  visibility,
		OwnerID:     actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, actor, project.ID, "project.created", "project", project.ID, "created the project "+project.Name)
	s.award(ctx, actor.UserID, project.ID, points.ProjectCreated)
	s.search.IndexProject(projectRecord(project))
	s.logger.Info().Str(logging.PROJECT, project.ID).Str(logging.USER, actor.UserID).Msg("project created")

	payload := projectPayload(project)
	payload["role"] = string(rbac.RoleOwner)
	payload["memberCount"] = 1
	return map[string]any{"project": payload}, nil
}

func (s *Service) ListProjects(ctx context.Context, actor Session, status, role string) (map[string]any, error) {
	if status != "" {
		if _, ok := allowedProjectStatus[status]; !ok {
			return nil, validationError("status must be 'active', 'completed' or 'archived'")
		}
	}
	if role != "" && rbac.Normalize(role) == rbac.RoleNone {
		return nil, validationError("role must be 'owner', 'admin', 'member' or 'viewer'")
	}
	items, err := s.store.ListProjectsForUser(ctx, actor.UserID, status, role)
	if err != nil {
		return nil, err
	}
	projects := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload := projectPayload(item.Project)
		payload["role"] = item.Role
		payload["memberCount"] = item.MemberCount
		projects = append(projects, payload)
	}
	return map[string]any{"projects": projects}, nil
}

func (s *Service) GetProject(ctx context.Context, actor Session, projectID string) (map[string]any, error) {
	access, err := s.authorize(ctx, actor, projectID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.ProjectCounts(ctx, projectID)
	if err != nil {
		return nil, err
	}

	payload := projectPayload(access.project)
	payload["role"] = nilIfEmpty(string(access.role))
	payload["memberCount"] = len(members)
	return map[string]any{
		"project": payload,
		"members": membersPayload(members),
		"counts": map[string]any{
			"posts":     counts.Posts,
			"tasks":     counts.Tasks,
			"openTasks": counts.OpenTasks,
			"files":     counts.Files,
			"members":   counts.Members,
		},
		"permissions": map[string]any{
			"contribute": access.can(rbac.ActionContribute),
			"moderate":   access.can(rbac.ActionModerate),
			"manage":     access.can(rbac.ActionManage),
			"own":        access.can(rbac.ActionOwn),
		},
	}, nil
}

func (s *Service) UpdateProject(ctx context.Context, actor Session, projectID string, input UpdateProjectInput) (map[string]any, error) {
	access, err := s.authorize(ctx, actor, projectID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	project := access.project
	changed := []string{}
	if input.Name != nil && strings.TrimSpace(*input.Name) != project.Name {
		project.Name = strings.TrimSpace(*input.Name)
		changed = append(changed, "name")
	}
	if input.Description != nil && strings.TrimSpace(*input.Description) != project.Description {
		project.Description = strings.TrimSpace(*input.Description)
		changed = append(changed, "description")
	}
	if input.Category != nil && strings.TrimSpace(*input.Category) != project.Category {
		project.Category = strings.TrimSpace(*input.Category)
		changed = append(changed, "category")
	}
	if input.Status != nil && *input.Status != project.Status {
		if _, ok := allowedProjectStatus[*input.Status]; !ok {
			return nil, validationError("status must be 'active', 'completed' or 'archived'")
		}
		project.Status = *input.Status
		changed = append(changed, "status")
	}
	visibilityChanged := false
	if input.Visibility != nil && *input.Visibility != project.Visibility {
		if _, ok := allowedProjectVisibility[*input.Visibility]; !ok {
			return nil, validationError("visibility must be 'private' or 'public'")
		}
		project.Visibility = *input.Visibility
		visibilityChanged = true
		changed = append(changed, "visibility")
	}
	if err := validateProjectFields(project.Name, project.Description, project.Category); err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		payload := projectPayload(project)
		payload["role"] = string(access.role)
		return map[string]any{"project": payload, "changed": changed}, nil
	}

	project.UpdatedAt = s.now()
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, err
	}

	summary := "updated " + strings.Join(changed, ", ")
	s.recordActivity(ctx, actor, project.ID, "project.updated", "project", project.ID, summary)
	if memberIDs, err := s.store.ListMemberIDs(ctx, project.ID); err != nil {
		s.logger.Warn().Err(err).Str(logging.PROJECT, project.ID).Msg("list members for update notice")
	} else {
		s.notify(ctx, actor, memberIDs, notice{
			Type:       notifyProjectUpdated,
			ProjectID:  project.ID,
			EntityType: "project",
			EntityID:   project.ID,
			Message:    fmt.Sprintf("%s %s of %s", actor.UserName, summary, project.Name),
			Link:       "/projects/" + project.ID,
		})
	}
	if visibilityChanged {
		s.search.ReindexProject(project.ID)
	} else {
		s.search.IndexProject(projectRecord(project))
	}

	payload := projectPayload(project)
	payload["role"] = string(access.role)
	return map[string]any{"project": payload, "changed": changed}, nil
}

// DeleteProject cascades through Postgres; search entries are dropped first
// and stored objects afterwards in the background.
func (s *Service) DeleteProject(ctx context.Context, actor Session, projectID string) error {
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionOwn); err != nil {
		return err
	}
	files, err := s.store.ListFiles(ctx, projectID)
	if err != nil {
		return err
	}
	s.search.RemoveProject(ctx, projectID)
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.publish(ctx, realtime.ProjectRoom(projectID), "project.deleted", map[string]any{"projectId": projectID})
	s.logger.Info().Str(logging.PROJECT, projectID).Str(logging.USER, actor.UserID).Int("files", len(files)).Msg("project deleted")

	if len(files) > 0 && s.files != nil && s.files.Configured() {
		s.background("remove project objects", func() error {
			for _, file := range files {
				if err := s.files.Remove(context.Background(), file.ObjectKey); err != nil {
					return fmt.Errorf("remove %s: %w", file.ObjectKey, err)
				}
			}
			return nil
		})
	}
	return nil
}

// ShareProject adds users by email or username.
func (s *Service) ShareProject(ctx context.Context, actor Session, projectID string, identifiers []string, role string) (map[string]any, error) {
	access, err := s.authorize(ctx, actor, projectID, rbac.ActionManage)
	if err != nil {
		return nil, err
	}
	grant := rbac.Normalize(firstNonBlank(strings.ToLower(role), string(rbac.RoleMember)))
	if !rbac.Assignable(grant) {
		return nil, validationError("role must be 'admin', 'member' or 'viewer'")
	}

	wanted := make([]string, 0, len(identifiers))
	seen := map[string]struct{}{}
	for _, raw := range identifiers {
		identifier := strings.ToLower(strings.TrimSpace(raw))
		if identifier == "" {
			continue
		}
		if _, dup := seen[identifier]; dup {
			continue
		}
		seen[identifier] = struct{}{}
		wanted = append(wanted, identifier)
	}
	if len(wanted) == 0 {
		return nil, validationError("at least one email or username is required")
	}

	users, err := s.store.FindUsersByIdentifiers(ctx, wanted)
	if err != nil {
		return nil, err
	}

	added := []map[string]any{}
	addedIDs := []string{}
	alreadyMembers := []string{}
	notFoundIDs := []string{}
	handled := map[string]struct{}{}
	for _, identifier := range wanted {
		user, ok := matchIdentifier(users, identifier)
		if !ok {
			notFoundIDs = append(notFoundIDs, identifier)
			continue
		}
		if _, dup := handled[user.ID]; dup {
			continue
		}
		handled[user.ID] = struct{}{}

		created, err := s.store.AddMember(ctx, projectID, user.ID, string(grant))
		if err != nil {
			return nil, err
		}
		if !created {
			alreadyMembers = append(alreadyMembers, identifier)
			continue
		}
		addedIDs = append(addedIDs, user.ID)
		added = append(added, map[string]any{
			"userId":      user.ID,
			"username":    user.Username,
			"displayName": user.DisplayName,
			"role":        string(grant),
		})
		s.recordActivity(ctx, actor, projectID, "member.added", "user", user.ID, fmt.Sprintf("added %s as %s", user.DisplayName, grant))
	}

	if len(addedIDs) > 0 {
		s.notify(ctx, actor, addedIDs, notice{
			Type:       notifyProjectShared,
			ProjectID:  projectID,
			EntityType: "project",
			EntityID:   projectID,
			Message:    fmt.Sprintf("%s added you to %s", actor.UserName, access.project.Name),
			Link:       "/projects/" + projectID,
		})
	}

	return map[string]any{
		"added":          added,
		"alreadyMembers": alreadyMembers,
		"notFound":       notFoundIDs,
	}, nil
}

func matchIdentifier(users []store.User, identifier string) (store.User, bool) {
	for _, user := range users {
		if strings.EqualFold(user.Email, identifier) || user.Username == identifier {
			return user, true
		}
	}
	return store.User{}, false
}

func (s *Service) memberRole(ctx context.Context, projectID, userID string) (rbac.Role, error) {
	role, err := s.store.GetMemberRole(ctx, projectID, userID)
	if err != nil {
		return rbac.RoleNone, err
	}
	if role == "" {
		return rbac.RoleNone, notFound("Member")
	}
	return rbac.Normalize(role), nil
}

func (s *Service) UpdateMemberRole(ctx context.Context, actor Session, projectID, userID, role string) (map[string]any, error) {
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionOwn); err != nil {
		return nil, err
	}
	grant := rbac.Normalize(strings.ToLower(strings.TrimSpace(role)))
	if !rbac.Assignable(grant) {
		return nil, validationError("role must be 'admin', 'member' or 'viewer'")
	}
	current, err := s.memberRole(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if current == rbac.RoleOwner {
		return nil, domainError(http.StatusConflict, "CONFLICT", "The owner's role cannot be changed; transfer ownership instead", nil)
	}
	if current == grant {
		return map[string]any{"userId": userID, "role": string(grant)}, nil
	}
	if err := s.store.UpdateMemberRole(ctx, projectID, userID, string(grant)); err != nil {
		if isNoRows(err) {
			return nil, notFound("Member")
		}
		return nil, err
	}
	s.recordActivity(ctx, actor, projectID, "member.role_changed", "user", userID, fmt.Sprintf("changed a member's role from %s to %s", current, grant))
	return map[string]any{"userId": userID, "role": string(grant)}, nil
}

// RemoveMember needs manage; only the owner may remove admins.
func (s *Service) RemoveMember(ctx context.Context, actor Session, projectID, userID string) error {
	access, err := s.authorize(ctx, actor, projectID, rbac.ActionManage)
	if err != nil {
		return err
	}
	target, err := s.memberRole(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if target == rbac.RoleOwner {
		return domainError(http.StatusConflict, "CONFLICT", "The project owner cannot be removed", nil)
	}
	if target == rbac.RoleAdmin && access.role != rbac.RoleOwner && userID != actor.UserID {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner can remove admins", nil)
	}
	if err := s.store.RemoveMember(ctx, projectID, userID); err != nil {
		if isNoRows(err) {
			return notFound("Member")
		}
		return err
	}

	s.recordActivity(ctx, actor, projectID, "member.removed", "user", userID, "removed a member")
	s.notify(ctx, actor, []string{userID}, notice{
		Type:       notifyProjectRemoved,
		ProjectID:  projectID,
		EntityType: "project",
		EntityID:   projectID,
		Message:    fmt.Sprintf("You were removed from %s", access.project.Name),
	})
	return nil
}

func (s *Service) LeaveProject(ctx context.Context, actor Session, projectID string) error {
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionRead); err != nil {
		return err
	}
	role, err := s.memberRole(ctx, projectID, actor.UserID)
	if err != nil {
		return err
	}
	if role == rbac.RoleOwner {
		return domainError(http.StatusConflict, "CONFLICT", "The owner cannot leave; transfer ownership or delete the project", nil)
	}
	if err := s.store.RemoveMember(ctx, projectID, actor.UserID); err != nil {
		if isNoRows(err) {
			return notFound("Member")
		}
		return err
	}
	s.recordActivity(ctx, actor, projectID, "member.left", "user", actor.UserID, actor.UserName+" left the project")
	return nil
}

func (s *Service) TransferOwnership(ctx context.Context, actor Session, projectID, userID string) (map[string]any, error) {
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionOwn); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == actor.UserID {
		return nil, validationError("userId must name another member")
	}
	role, err := s.store.GetMemberRole(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, validationError("new owner must already be a member")
	}
	if err := s.store.TransferOwnership(ctx, projectID, actor.UserID, userID); err != nil {
		return nil, err
	}
	s.recordActivity(ctx, actor, projectID, "project.transferred", "user", userID, "transferred ownership")
	return map[string]any{"projectId": projectID, "ownerId": userID, "previousOwnerRole": string(rbac.RoleAdmin)}, nil
}

func (s *Service) ListActivity(ctx context.Context, actor Session, projectID string, limit int) (map[string]any, error) {
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	items, err := s.store.ListActivity(ctx, projectID, clampLimit(limit, defaultActivityLimit, maxActivityLimit))
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, activityPayload(item))
	}
	return map[string]any{"activity": payload}, nil
}

package app

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"sharesync/api/internal/store"
)

// fakeStore keeps just enough state in memory to drive the service. The Fn
// fields override individual methods for failure cases.
type fakeStore struct {
	mu sync.Mutex

	users         map[string]store.User
	resets        map[string]string
	refresh       map[string]string
	revoked       map[string]bool
	follows       map[[2]string]time.Time
	projects      map[string]store.Project
	members       map[string]map[string]string
	posts         map[string]store.Post
	likes         map[[2]string]bool
	comments      map[string]store.Comment
	tasks         map[string]store.Task
	subtasks      map[string]store.Subtask
	taskComments  map[string][]store.TaskComment
	files         map[string]store.File
	notifications []store.Notification
	activity      []store.Activity
	pointEvents   []store.PointEvent

	pingFn                func(context.Context) error
	insertNotificationsFn func(context.Context, []store.Notification) error
	getProjectFn          func(context.Context, string) (store.Project, error)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        map[string]store.User{},
		resets:       map[string]string{},
		refresh:      map[string]string{},
		revoked:      map[string]bool{},
		follows:      map[[2]string]time.Time{},
		projects:     map[string]store.Project{},
		members:      map[string]map[string]string{},
		posts:        map[string]store.Post{},
		likes:        map[[2]string]bool{},
		comments:     map[string]store.Comment{},
		tasks:        map[string]store.Task{},
		subtasks:     map[string]store.Subtask{},
		taskComments: map[string][]store.TaskComment{},
		files:        map[string]store.File{},
	}
}

// seedUser adds a verified user.
func (f *fakeStore) seedUser(id, username, displayName string) store.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := store.User{
		ID:              id,
		Username:        username,
		Email:           username + "@example.com",
		DisplayName:     displayName,
		IsEmailVerified: true,
		CreatedAt:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.users[id] = user
	return user
}

// seedProject adds a project owned by ownerID plus the given extra members.
func (f *fakeStore) seedProject(id, name, visibility, ownerID string, roles map[string]string) store.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	project := store.Project{
		ID:         id,
		Name:       name,
		Status:     "active",
		Visibility: visibility,
		OwnerID:    ownerID,
		CreatedAt:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	f.projects[id] = project
	f.members[id] = map[string]string{ownerID: "owner"}
	for userID, role := range roles {
		f.members[id][userID] = role
	}
	return project
}

func (f *fakeStore) notificationsOfType(typ string) []store.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Notification{}
	for _, item := range f.notifications {
		if item.Type == typ {
			out = append(out, item)
		}
	}
	return out
}

func (f *fakeStore) pointsFor(userID, reason string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, event := range f.pointEvents {
		if event.UserID == userID && event.Reason == reason {
			total += event.Points
		}
	}
	return total
}

func (f *fakeStore) activityActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.activity))
	for _, item := range f.activity {
		out = append(out, item.Action)
	}
	return out
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

// users

func (f *fakeStore) findUser(match func(store.User) bool) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if match(user) {
			return user, nil
		}
	}
	return store.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	return f.findUser(func(u store.User) bool { return u.Email == email })
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (store.User, error) {
	return f.findUser(func(u store.User) bool { return u.Username == username })
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	return f.findUser(func(u store.User) bool { return u.ID == id })
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.CreatedAt = time.Now().UTC()
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) UpdateUserVerificationToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.VerificationToken = token
	user.VerificationExpiresAt = &expiresAt
	f.users[userID] = user
	return nil
}

func (f *fakeStore) VerifyUserEmail(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, user := range f.users {
		if user.VerificationToken != "" && user.VerificationToken == token {
			user.IsEmailVerified = true
			user.VerificationToken = ""
			f.users[id] = user
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[token] = userID
	return nil
}

func (f *fakeStore) ConsumePasswordReset(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[token]
	if !ok {
		return "", sql.ErrNoRows
	}
	delete(f.resets, token)
	return userID, nil
}

func (f *fakeStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = userID
	return nil
}

func (f *fakeStore) ConsumeRefreshSession(_ context.Context, tokenHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refresh[tokenHash]
	if !ok {
		return "", sql.ErrNoRows
	}
	delete(f.refresh, tokenHash)
	return userID, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func (f *fakeStore) GetUsersByIDs(_ context.Context, ids []string) (map[string]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]store.User{}
	for _, id := range ids {
		if user, ok := f.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (f *fakeStore) FindUsersByIdentifiers(_ context.Context, identifiers []string) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.User{}
	for _, user := range f.users {
		for _, identifier := range identifiers {
			if strings.EqualFold(user.Email, identifier) || user.Username == identifier {
				out = append(out, user)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) SearchUsers(_ context.Context, query string, limit int) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.User{}
	for _, user := range f.users {
		if strings.Contains(user.Username, strings.ToLower(query)) {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, userID, displayName, bio string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.DisplayName = displayName
	user.Bio = bio
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateAvatar(_ context.Context, userID, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.AvatarURL = avatarURL
	f.users[userID] = user
	return nil
}

func (f *fakeStore) Follow(_ context.Context, followerID, followeeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{followerID, followeeID}
	if _, ok := f.follows[key]; ok {
		return false, nil
	}
	f.follows[key] = time.Now()
	return true, nil
}

func (f *fakeStore) Unfollow(_ context.Context, followerID, followeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.follows, [2]string{followerID, followeeID})
	return nil
}

func (f *fakeStore) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.follows[[2]string{followerID, followeeID}]
	return ok, nil
}

func (f *fakeStore) FollowCounts(_ context.Context, userID string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	followers, following := 0, 0
	for key := range f.follows {
		if key[1] == userID {
			followers++
		}
		if key[0] == userID {
			following++
		}
	}
	return followers, following, nil
}

func (f *fakeStore) ListFollowers(_ context.Context, userID string) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.User{}
	for key := range f.follows {
		if key[1] == userID {
			out = append(out, f.users[key[0]])
		}
	}
	return out, nil
}

func (f *fakeStore) ListFollowing(_ context.Context, userID string) ([]store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.User{}
	for key := range f.follows {
		if key[0] == userID {
			out = append(out, f.users[key[1]])
		}
	}
	return out, nil
}

// projects

func (f *fakeStore) InsertProject(_ context.Context, project store.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[project.ID] = project
	f.members[project.ID] = map[string]string{project.OwnerID: "owner"}
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, projectID string) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, projectID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	project, ok := f.projects[projectID]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return project, nil
}

func (f *fakeStore) ListProjectsForUser(_ context.Context, userID, status, role string) ([]store.ProjectMembership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.ProjectMembership{}
	for id, roles := range f.members {
		memberRole, ok := roles[userID]
		if !ok {
			continue
		}
		project := f.projects[id]
		if (status != "" && project.Status != status) || (role != "" && memberRole != role) {
			continue
		}
		out = append(out, store.ProjectMembership{Project: project, Role: memberRole, MemberCount: len(roles)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeStore) ListProjectIDsForUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for id, roles := range f.members {
		if _, ok := roles[userID]; ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) UpdateProject(_ context.Context, project store.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[project.ID]; !ok {
		return sql.ErrNoRows
	}
	f.projects[project.ID] = project
	return nil
}

func (f *fakeStore) TouchProject(context.Context, string) error { return nil }

func (f *fakeStore) DeleteProject(_ context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[projectID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.projects, projectID)
	delete(f.members, projectID)
	return nil
}

func (f *fakeStore) GetMemberRole(_ context.Context, projectID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[projectID][userID], nil
}

func (f *fakeStore) ListMembers(_ context.Context, projectID string) ([]store.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Member{}
	for userID, role := range f.members[projectID] {
		user := f.users[userID]
		out = append(out, store.Member{
			ProjectID:   projectID,
			UserID:      userID,
			Role:        role,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Email:       user.Email,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) ListMemberIDs(_ context.Context, projectID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for userID := range f.members[projectID] {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) AddMember(_ context.Context, projectID, userID, role string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[projectID][userID]; ok {
		return false, nil
	}
	f.members[projectID][userID] = role
	return true, nil
}

func (f *fakeStore) UpdateMemberRole(_ context.Context, projectID, userID, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.members[projectID][userID]
	if !ok || current == "owner" {
		return sql.ErrNoRows
	}
	f.members[projectID][userID] = role
	return nil
}

func (f *fakeStore) RemoveMember(_ context.Context, projectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.members[projectID][userID]
	if !ok || current == "owner" {
		return sql.ErrNoRows
	}
	delete(f.members[projectID], userID)
	return nil
}

func (f *fakeStore) TransferOwnership(_ context.Context, projectID, fromUserID, toUserID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[projectID][toUserID]; !ok {
		return sql.ErrNoRows
	}
	f.members[projectID][toUserID] = "owner"
	f.members[projectID][fromUserID] = "admin"
	project := f.projects[projectID]
	project.OwnerID = toUserID
	f.projects[projectID] = project
	return nil
}

func (f *fakeStore) ProjectCounts(_ context.Context, projectID string) (store.ProjectCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := store.ProjectCounts{Members: len(f.members[projectID])}
	for _, post := range f.posts {
		if post.ProjectID == projectID {
			counts.Posts++
		}
	}
	for _, task := range f.tasks {
		if task.ProjectID == projectID {
			counts.Tasks++
			if task.Status != "done" {
				counts.OpenTasks++
			}
		}
	}
	for _, file := range f.files {
		if file.ProjectID == projectID {
			counts.Files++
		}
	}
	return counts, nil
}

// posts

func (f *fakeStore) InsertPost(_ context.Context, post store.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[post.ID] = post
	return nil
}

func (f *fakeStore) GetPost(_ context.Context, postID, _ string) (store.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[postID]
	if !ok {
		return store.Post{}, sql.ErrNoRows
	}
	return post, nil
}

func (f *fakeStore) ListPosts(_ context.Context, projectID, _, kind string, limit, offset int) ([]store.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Post{}
	for _, post := range f.posts {
		if post.ProjectID == projectID && (kind == "" || post.Kind == kind) {
			out = append(out, post)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []store.Post{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) UpdatePost(_ context.Context, post store.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[post.ID] = post
	return nil
}

func (f *fakeStore) DeletePost(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[postID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.posts, postID)
	return nil
}

func (f *fakeStore) TogglePostLike(_ context.Context, postID, userID string) (store.LikeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{postID, userID}
	active, seen := f.likes[key]
	result := store.LikeResult{Liked: !active, First: !seen}
	f.likes[key] = !active
	for k, on := range f.likes {
		if k[0] == postID && on {
			result.Likes++
		}
	}
	return result, nil
}

func (f *fakeStore) InsertComment(_ context.Context, comment store.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[comment.ID] = comment
	return nil
}

func (f *fakeStore) GetComment(_ context.Context, commentID string) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[commentID]
	if !ok {
		return store.Comment{}, sql.ErrNoRows
	}
	return comment, nil
}

func (f *fakeStore) ListComments(_ context.Context, postID string) ([]store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Comment{}
	for _, comment := range f.comments {
		if comment.PostID == postID {
			out = append(out, comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) DeleteComment(_ context.Context, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.comments, commentID)
	return nil
}

// tasks

func (f *fakeStore) InsertTask(_ context.Context, task store.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeStore) GetTask(_ context.Context, taskID string) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok {
		return store.Task{}, sql.ErrNoRows
	}
	return task, nil
}

func (f *fakeStore) ListTasks(_ context.Context, projectID, status, assigneeID string) ([]store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Task{}
	for _, task := range f.tasks {
		if task.ProjectID != projectID || (status != "" && task.Status != status) {
			continue
		}
		if assigneeID != "" && (task.AssigneeID == nil || *task.AssigneeID != assigneeID) {
			continue
		}
		out = append(out, task)
	}
	stage := map[string]int{"todo": 0, "in_progress": 1, "done": 2}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if stage[a.Status] != stage[b.Status] {
			return stage[a.Status] < stage[b.Status]
		}
		if (a.DueDate == nil) != (b.DueDate == nil) {
			return b.DueDate == nil
		}
		if a.DueDate != nil && !a.DueDate.Equal(*b.DueDate) {
			return a.DueDate.Before(*b.DueDate)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (f *fakeStore) UpdateTask(_ context.Context, task store.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.tasks[task.ID]
	if !ok {
		return sql.ErrNoRows
	}
	task.CompletionAwarded = current.CompletionAwarded
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeStore) MarkCompletionAwarded(_ context.Context, taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[taskID]
	if !ok || task.CompletionAwarded {
		return false, nil
	}
	task.CompletionAwarded = true
	f.tasks[taskID] = task
	return true, nil
}

func (f *fakeStore) DeleteTask(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[taskID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.tasks, taskID)
	return nil
}

func (f *fakeStore) InsertSubtask(_ context.Context, subtask store.Subtask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subtasks[subtask.ID] = subtask
	return nil
}

func (f *fakeStore) GetSubtask(_ context.Context, subtaskID string) (store.Subtask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	subtask, ok := f.subtasks[subtaskID]
	if !ok {
		return store.Subtask{}, sql.ErrNoRows
	}
	return subtask, nil
}

func (f *fakeStore) ListSubtasks(_ context.Context, taskID string) ([]store.Subtask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Subtask{}
	for _, subtask := range f.subtasks {
		if subtask.TaskID == taskID {
			out = append(out, subtask)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) SetSubtaskDone(_ context.Context, subtaskID string, done bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	subtask, ok := f.subtasks[subtaskID]
	if !ok {
		return sql.ErrNoRows
	}
	subtask.Done = done
	f.subtasks[subtaskID] = subtask
	return nil
}

func (f *fakeStore) DeleteSubtask(_ context.Context, subtaskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subtasks, subtaskID)
	return nil
}

func (f *fakeStore) InsertTaskComment(_ context.Context, comment store.TaskComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskComments[comment.TaskID] = append(f.taskComments[comment.TaskID], comment)
	return nil
}

func (f *fakeStore) ListTaskComments(_ context.Context, taskID string) ([]store.TaskComment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.TaskComment{}, f.taskComments[taskID]...), nil
}

// notifications, activity and points

func (f *fakeStore) InsertNotifications(ctx context.Context, items []store.Notification) error {
	if f.insertNotificationsFn != nil {
		return f.insertNotificationsFn(ctx, items)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, items...)
	return nil
}

func (f *fakeStore) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]store.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Notification{}
	for i := len(f.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		item := f.notifications[i]
		if item.UserID == userID && (!unreadOnly || !item.Read) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) UnreadNotificationCount(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, item := range f.notifications {
		if item.UserID == userID && !item.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, userID, notificationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.notifications {
		if item.ID == notificationID && item.UserID == userID {
			f.notifications[i].Read = true
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	updated := 0
	for i, item := range f.notifications {
		if item.UserID == userID && !item.Read {
			f.notifications[i].Read = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeStore) InsertActivity(_ context.Context, item store.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity = append(f.activity, item)
	return nil
}

func (f *fakeStore) ListActivity(_ context.Context, projectID string, limit int) ([]store.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.Activity{}
	for i := len(f.activity) - 1; i >= 0 && len(out) < limit; i-- {
		if f.activity[i].ProjectID == projectID {
			out = append(out, f.activity[i])
		}
	}
	return out, nil
}

func (f *fakeStore) AwardPoints(_ context.Context, event store.PointEvent) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = int64(len(f.pointEvents) + 1)
	f.pointEvents = append(f.pointEvents, event)
	user := f.users[event.UserID]
	user.Points += event.Points
	f.users[event.UserID] = user
	return user.Points, nil
}

func (f *fakeStore) leaderboard(include func(store.PointEvent) bool, limit int) []store.LeaderboardEntry {
	totals := map[string]int{}
	for _, event := range f.pointEvents {
		if include(event) {
			totals[event.UserID] += event.Points
		}
	}
	out := []store.LeaderboardEntry{}
	for userID, total := range totals {
		user := f.users[userID]
		out = append(out, store.LeaderboardEntry{UserID: userID, Username: user.Username, DisplayName: user.DisplayName, Points: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (f *fakeStore) Leaderboard(_ context.Context, limit int) ([]store.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaderboard(func(store.PointEvent) bool { return true }, limit), nil
}

func (f *fakeStore) ProjectLeaderboard(_ context.Context, projectID string, limit int) ([]store.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaderboard(func(e store.PointEvent) bool { return e.ProjectID == projectID }, limit), nil
}

func (f *fakeStore) PointHistory(_ context.Context, userID string, limit int) ([]store.PointEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.PointEvent{}
	for i := len(f.pointEvents) - 1; i >= 0 && len(out) < limit; i-- {
		if f.pointEvents[i].UserID == userID {
			out = append(out, f.pointEvents[i])
		}
	}
	return out, nil
}

// files

func (f *fakeStore) InsertFile(_ context.Context, file store.File) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[file.ID] = file
	return nil
}

func (f *fakeStore) GetFile(_ context.Context, fileID string) (store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[fileID]
	if !ok {
		return store.File{}, sql.ErrNoRows
	}
	return file, nil
}

func (f *fakeStore) ListFiles(_ context.Context, projectID string) ([]store.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []store.File{}
	for _, file := range f.files {
		if file.ProjectID == projectID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[fileID]; !ok {
		return sql.ErrNoRows
	}
	delete(f.files, fileID)
	return nil
}

// memObjects is an in-memory objectStore keyed by object key.
type memObjects struct {
	mu      sync.Mutex
	objects map[string]string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string]string{}}
}

func (m *memObjects) Configured() bool { return true }

func (m *memObjects) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = contentType
	return nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration, _ string) (string, error) {
	return "https://objects.example.com/" + key, nil
}

func (m *memObjects) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjects) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for key := range m.objects {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

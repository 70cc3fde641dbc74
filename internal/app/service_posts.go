package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"sharesync/api/internal/points"
	"sharesync/api/internal/rbac"
	"sharesync/api/internal/realtime"
	"sharesync/api/internal/search"
	"sharesync/api/internal/store"
	"sharesync/api/internal/util"
)

const (
	maxPostTitle     = 200
	maxPostBody      = 10000
	maxCommentBody   = 2000
	maxImageURL      = 2048
	defaultPageLimit = 20
	maxPageLimit     = 100
	postKindPost     = "post"
	postKindAnnounce = "announcement"
)

type CreatePostInput struct {
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	ImageURL string `json:"imageUrl"`
}

type UpdatePostInput struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

// canEditContent lets authors manage their own content while they can still
// contribute; moderators can manage anyone's.
func canEditContent(access projectAccess, actor Session, authorID string) bool {
	if access.can(rbac.ActionModerate) {
		return true
	}
	return authorID == actor.UserID && access.can(rbac.ActionContribute)
}

func postRecord(post store.Post, visibility string) search.PostRecord {
	return search.PostRecord{
		ID:                post.ID,
		Title:             post.Title,
		Body:              post.Body,
		Kind:              post.Kind,
		ProjectID:         post.ProjectID,
		ProjectVisibility: visibility,
	}
}

func validatePostFields(title, body string) error {
	if runeLen(title) > maxPostTitle {
		return validationError(fmt.Sprintf("title must be at most %d characters", maxPostTitle))
	}
	if body == "" || runeLen(body) > maxPostBody {
		return validationError(fmt.Sprintf("body must be 1-%d characters", maxPostBody))
	}
	return nil
}

func validImageURL(raw string) bool {
	if len(raw) > maxImageURL {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// loadPost fetches a post and checks action on its project.
func (s *Service) loadPost(ctx context.Context, actor Session, postID string, action rbac.Action) (store.Post, projectAccess, error) {
	post, err := s.store.GetPost(ctx, postID, actor.UserID)
	if err != nil {
		if isNoRows(err) {
			return store.Post{}, projectAccess{}, notFound("Post")
		}
		return store.Post{}, projectAccess{}, err
	}
	access, err := s.authorize(ctx, actor, post.ProjectID, action)
	if err != nil {
		return store.Post{}, projectAccess{}, err
	}
	return post, access, nil
}

func (s *Service) CreatePost(ctx context.Context, actor Session, projectID string, input CreatePostInput) (map[string]any, error) {
	kind := firstNonBlank(strings.ToLower(input.Kind), postKindPost)
	if kind != postKindPost && kind != postKindAnnounce {
		return nil, validationError("kind must be 'post' or 'announcement'")
	}
	access, err := s.authorize(ctx, actor, projectID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}
	if kind == postKindAnnounce && !access.can(rbac.ActionModerate) {
		return nil, forbidden()
	}
	title := strings.TrimSpace(input.Title)
	body := strings.TrimSpace(input.Body)
	if err := validatePostFields(title, body); err != nil {
		return nil, err
	}
	imageURL := strings.TrimSpace(input.ImageURL)
	if imageURL != "" && !validImageURL(imageURL) {
		return nil, validationError("imageUrl must be an http(s) URL")
	}

	now := s.now()
	post := store.Post{
		ID:         util.NewID("pst"),
		ProjectID:  projectID,
		AuthorID:   actor.UserID,
		AuthorName: actor.UserName,
		Kind:       kind,
		Title:      title,
		Body:       body,
		ImageURL:   imageURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		return nil, err
	}

	noticeType, reason, verb := notifyPostCreated, points.PostCreated, "posted"
	if kind == postKindAnnounce {
		noticeType, reason, verb = notifyAnnouncement, points.Announcement, "announced"
	}
	s.recordActivity(ctx, actor, projectID, kind+".created", "post", post.ID, verb+" "+firstNonBlank(title, snippet(body)))
	s.award(ctx, actor.UserID, projectID, reason)
	if memberIDs, err := s.store.ListMemberIDs(ctx, projectID); err != nil {
		s.logger.Warn().Err(err).Msg("list members for post notice")
	} else {
		s.notify(ctx, actor, memberIDs, notice{
			Type:       noticeType,
			ProjectID:  projectID,
			EntityType: "post",
			EntityID:   post.ID,
			Message:    fmt.Sprintf("%s %s in %s: %s", actor.UserName, verb, access.project.Name, firstNonBlank(title, snippet(body))),
			Link:       "/projects/" + projectID,
		})
	}
	s.search.IndexPost(postRecord(post, access.project.Visibility))
	s.publish(ctx, realtime.ProjectRoom(projectID), "post.created", postPayload(post))

	return map[string]any{"post": postPayload(post)}, nil
}

func (s *Service) ListPosts(ctx context.Context, actor Session, projectID, kind string, limit, offset int) (map[string]any, error) {
	if kind != "" && kind != postKindPost && kind != postKindAnnounce {
		return nil, validationError("kind must be 'post' or 'announcement'")
	}
	if _, err := s.authorize(ctx, actor, projectID, rbac.ActionRead); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	limit = clampLimit(limit, defaultPageLimit, maxPageLimit)
	posts, err := s.store.ListPosts(ctx, projectID, actor.UserID, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		items = append(items, postPayload(post))
	}
	return map[string]any{"posts": items, "limit": limit, "offset": offset}, nil
}

func (s *Service) UpdatePost(ctx context.Context, actor Session, postID string, input UpdatePostInput) (map[string]any, error) {
	post, access, err := s.loadPost(ctx, actor, postID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	if !canEditContent(access, actor, post.AuthorID) {
		return nil, forbidden()
	}
	if input.Title != nil {
		post.Title = strings.TrimSpace(*input.Title)
	}
	if input.Body != nil {
		post.Body = strings.TrimSpace(*input.Body)
	}
	if err := validatePostFields(post.Title, post.Body); err != nil {
		return nil, err
	}
	post.UpdatedAt = s.now()
	if err := s.store.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	s.recordActivity(ctx, actor, post.ProjectID, "post.updated", "post", post.ID, "edited "+firstNonBlank(post.Title, snippet(post.Body)))
	s.search.IndexPost(postRecord(post, access.project.Visibility))
	return map[string]any{"post": postPayload(post)}, nil
}

func (s *Service) DeletePost(ctx context.Context, actor Session, postID string) error {
	post, access, err := s.loadPost(ctx, actor, postID, rbac.ActionRead)
	if err != nil {
		return err
	}
	if !canEditContent(access, actor, post.AuthorID) {
		return forbidden()
	}
	if err := s.store.DeletePost(ctx, post.ID); err != nil {
		return err
	}
	s.recordActivity(ctx, actor, post.ProjectID, "post.deleted", "post", post.ID, "deleted "+firstNonBlank(post.Title, "a post"))
	s.search.DeletePost(post.ID)
	return nil
}

// ToggleLike flips the actor's like. Only the first ever like notifies and
// scores; unliking never takes points back.
func (s *Service) ToggleLike(ctx context.Context, actor Session, postID string) (map[string]any, error) {
	post, _, err := s.loadPost(ctx, actor, postID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}
	result, err := s.store.TogglePostLike(ctx, post.ID, actor.UserID)
	if err != nil {
		return nil, err
	}

	if result.Liked {
		s.recordActivity(ctx, actor, post.ProjectID, "post.liked", "post", post.ID, "liked "+firstNonBlank(post.Title, "a post"))
	}
	if result.Liked && result.First && post.AuthorID != actor.UserID {
		s.award(ctx, post.AuthorID, post.ProjectID, points.PostLiked)
		s.notify(ctx, actor, []string{post.AuthorID}, notice{
			Type:       notifyPostLiked,
			ProjectID:  post.ProjectID,
			EntityType: "post",
			EntityID:   post.ID,
			Message:    fmt.Sprintf("%s liked your post %s", actor.UserName, firstNonBlank(post.Title, snippet(post.Body))),
			Link:       "/projects/" + post.ProjectID,
		})
	}
	s.publish(ctx, realtime.ProjectRoom(post.ProjectID), "post.likes", map[string]any{"postId": post.ID, "likes": result.Likes})
	return map[string]any{"liked": result.Liked, "likes": result.Likes}, nil
}

func (s *Service) AddComment(ctx context.Context, actor Session, postID, body string) (map[string]any, error) {
	post, _, err := s.loadPost(ctx, actor, postID, rbac.ActionContribute)
	if err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" || runeLen(body) > maxCommentBody {
		return nil, validationError(fmt.Sprintf("body must be 1-%d characters", maxCommentBody))
	}

	comment := store.Comment{
		ID:         util.NewID("cmt"),
		PostID:     post.ID,
		ProjectID:  post.ProjectID,
		AuthorID:   actor.UserID,
		AuthorName: actor.UserName,
		Body:       body,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, actor, post.ProjectID, "comment.created", "post", post.ID, "commented on "+firstNonBlank(post.Title, "a post"))
	s.award(ctx, actor.UserID, post.ProjectID, points.PostCommented)
	s.notify(ctx, actor, []string{post.AuthorID}, notice{
		Type:       notifyPostCommented,
		ProjectID:  post.ProjectID,
		EntityType: "post",
		EntityID:   post.ID,
		Message:    fmt.Sprintf("%s commented on your post: %s", actor.UserName, snippet(body)),
		Link:       "/projects/" + post.ProjectID,
	})
	s.publish(ctx, realtime.ProjectRoom(post.ProjectID), "comment.created", commentPayload(comment))
	return map[string]any{"comment": commentPayload(comment)}, nil
}

func (s *Service) ListComments(ctx context.Context, actor Session, postID string) (map[string]any, error) {
	post, _, err := s.loadPost(ctx, actor, postID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		items = append(items, commentPayload(comment))
	}
	return map[string]any{"comments": items}, nil
}

func (s *Service) DeleteComment(ctx context.Context, actor Session, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if isNoRows(err) {
			return notFound("Comment")
		}
		return err
	}
	access, err := s.authorize(ctx, actor, comment.ProjectID, rbac.ActionRead)
	if err != nil {
		return err
	}
	if !canEditContent(access, actor, comment.AuthorID) {
		return forbidden()
	}
	if err := s.store.DeleteComment(ctx, comment.ID); err != nil {
		return err
	}
	s.recordActivity(ctx, actor, comment.ProjectID, "comment.deleted", "post", comment.PostID, "deleted a comment")
	return nil
}

// snippet shortens text for notification messages.
func snippet(text string) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= 80 {
		return string(runes)
	}
	return string(runes[:77]) + "..."
}

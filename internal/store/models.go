package store

import "time"

type User struct {
	ID                    string
	Username              string
	Email                 string
	DisplayName           string
	Bio                   string
	AvatarURL             string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	Points                int
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Project struct {
	ID          string
	Name        string
	Description string
	Category    string
	Status      string
	Visibility  string
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectMembership is a project as seen by one member.
type ProjectMembership struct {
	Project
	Role        string
	MemberCount int
}

type Member struct {
	ProjectID   string
	UserID      string
	Role        string
	JoinedAt    time.Time
	Username    string
	DisplayName string
	AvatarURL   string
	Email       string
}

type ProjectCounts struct {
	Posts     int
	Tasks     int
	OpenTasks int
	Files     int
	Members   int
}

type Post struct {
	ID         string
	ProjectID  string
	AuthorID   string
	AuthorName string
	Kind       string
	Title      string
	Body       string
	ImageURL   string
	Likes      int
	Comments   int
	LikedByMe  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Comment struct {
	ID         string
	PostID     string
	ProjectID  string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

// LikeResult describes the state of a like after a toggle.
type LikeResult struct {
	Liked bool
	First bool
	Likes int
}

type Task struct {
	ID                string
	ProjectID         string
	Title             string
	Description       string
	Status            string
	Priority          string
	AssigneeID        *string
	AssigneeName      string
	DueDate           *time.Time
	CreatedBy         string
	CreatedByName     string
	CompletedAt       *time.Time
	CompletionAwarded bool
	Subtasks          []Subtask
	CommentCount      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Subtask struct {
	ID        string
	TaskID    string
	ProjectID string
	Title     string
	Done      bool
	CreatedAt time.Time
}

type TaskComment struct {
	ID         string
	TaskID     string
	AuthorID   string
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

type Notification struct {
	ID         string
	UserID     string
	ActorID    string
	ActorName  string
	Type       string
	ProjectID  string
	EntityType string
	EntityID   string
	Message    string
	Read       bool
	CreatedAt  time.Time
}

type Activity struct {
	ID         string
	ProjectID  string
	ActorID    string
	ActorName  string
	Action     string
	EntityType string
	EntityID   string
	Summary    string
	CreatedAt  time.Time
}

type PointEvent struct {
	ID        int64
	UserID    string
	ProjectID string
	Reason    string
	Points    int
	CreatedAt time.Time
}

type LeaderboardEntry struct {
	Rank        int
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
	Points      int
}

type File struct {
	ID           string
	ProjectID    string
	UploaderID   string
	UploaderName string
	Name         string
	ContentType  string
	Size         int64
	ObjectKey    string
	CreatedAt    time.Time
}

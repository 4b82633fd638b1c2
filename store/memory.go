package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"socialapi/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is a process-local store backing all three contracts. Every
// operation runs under one mutex, so multi-record updates are atomic.
type Memory struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]*models.User
	posts    map[primitive.ObjectID]*models.Post
	comments map[primitive.ObjectID]*models.Comment
	now      func() time.Time
}

var (
	_ UserDirectory = (*Memory)(nil)
	_ PostStore     = (*Memory)(nil)
	_ CommentStore  = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[primitive.ObjectID]*models.User),
		posts:    make(map[primitive.ObjectID]*models.Post),
		comments: make(map[primitive.ObjectID]*models.Comment),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for createdAt stamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return copyUser(user), nil
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	email = models.NormalizeEmail(email)
	for _, user := range m.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = models.NormalizeEmail(user.Email)
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return ErrEmailTaken
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.now().UTC()
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	m.users[user.ID] = copyUser(user)
	return nil
}

func (m *Memory) Follow(ctx context.Context, followerID, targetID primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.users[targetID]
	if !ok {
		return ErrUserNotFound
	}
	follower, ok := m.users[followerID]
	if !ok {
		return ErrUserNotFound
	}
	if followerID == targetID {
		return ErrCannotFollowSelf
	}
	if follower.IsFollowing(targetID) {
		return ErrAlreadyFollowing
	}
	follower.Following = append(follower.Following, targetID)
	target.Followers = append(target.Followers, followerID)
	return nil
}

func (m *Memory) Unfollow(ctx context.Context, followerID, targetID primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	target, ok := m.users[targetID]
	if !ok {
		return ErrUserNotFound
	}
	follower, ok := m.users[followerID]
	if !ok {
		return ErrUserNotFound
	}
	if !follower.IsFollowing(targetID) {
		return ErrNotFollowing
	}
	follower.Following = removeID(follower.Following, targetID)
	target.Followers = removeID(target.Followers, followerID)
	return nil
}

func (m *Memory) Profile(ctx context.Context, id primitive.ObjectID) (*models.Profile, error) {
	user, err := m.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func (m *Memory) CreatePost(ctx context.Context, ownerID primitive.ObjectID, title, desc string) (*models.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post := &models.Post{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Desc:      desc,
		CreatedBy: ownerID,
		CreatedAt: m.now().UTC(),
		Likes:     []models.Like{},
		Comments:  []primitive.ObjectID{},
	}
	m.posts[post.ID] = post
	return copyPost(post), nil
}

func (m *Memory) DeletePost(ctx context.Context, ownerID, postID primitive.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[postID]
	if !ok || post.CreatedBy != ownerID {
		return ErrPostNotFound
	}
	delete(m.posts, postID)
	for id, comment := range m.comments {
		if comment.Post == postID {
			delete(m.comments, id)
		}
	}
	return nil
}

func (m *Memory) Like(ctx context.Context, userID, postID primitive.ObjectID) ([]models.Like, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[postID]
	if !ok {
		return nil, ErrPostNotFound
	}
	if post.LikedBy(userID) {
		return nil, ErrAlreadyLiked
	}
	likes := make([]models.Like, 0, len(post.Likes)+1)
	likes = append(likes, models.Like{User: userID})
	post.Likes = append(likes, post.Likes...)
	return append([]models.Like(nil), post.Likes...), nil
}

func (m *Memory) Unlike(ctx context.Context, userID, postID primitive.ObjectID) ([]models.Like, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[postID]
	if !ok {
		return nil, ErrPostNotFound
	}
	if !post.LikedBy(userID) {
		return nil, ErrNotLiked
	}
	likes := make([]models.Like, 0, len(post.Likes))
	for _, like := range post.Likes {
		if like.User != userID {
			likes = append(likes, like)
		}
	}
	post.Likes = likes
	return append([]models.Like(nil), post.Likes...), nil
}

func (m *Memory) GetPost(ctx context.Context, postID primitive.ObjectID) (*models.PostView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[postID]
	if !ok {
		return nil, ErrPostNotFound
	}
	view := m.populate(post)
	return &view, nil
}

func (m *Memory) ListPostsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.PostView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := make([]*models.Post, 0)
	for _, post := range m.posts {
		if post.CreatedBy == ownerID {
			owned = append(owned, post)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	views := make([]models.PostView, 0, len(owned))
	for _, post := range owned {
		views = append(views, m.populate(post))
	}
	return views, nil
}

func (m *Memory) AddComment(ctx context.Context, authorID, postID primitive.ObjectID, text, requestKey string) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	post, ok := m.posts[postID]
	if !ok {
		return nil, ErrPostNotFound
	}
	if requestKey != "" {
		for _, existing := range m.comments {
			if existing.User != authorID || existing.RequestKey != requestKey {
				continue
			}
			if existing.Post != postID {
				return nil, ErrRequestKeyReused
			}
			if !post.HasComment(existing.ID) {
				post.Comments = append(post.Comments, existing.ID)
			}
			copied := *existing
			return &copied, nil
		}
	}

	comment := &models.Comment{
		ID:         primitive.NewObjectID(),
		User:       authorID,
		Post:       postID,
		Text:       text,
		CreatedAt:  m.now().UTC(),
		RequestKey: requestKey,
	}
	m.comments[comment.ID] = comment
	post.Comments = append(post.Comments, comment.ID)
	copied := *comment
	return &copied, nil
}

// CommentCount returns the number of stored comments.
func (m *Memory) CommentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.comments)
}

// populate must be called with m.mu held.
func (m *Memory) populate(post *models.Post) models.PostView {
	view := models.PostView{
		ID:        post.ID,
		Title:     post.Title,
		Desc:      post.Desc,
		CreatedBy: m.userRef(post.CreatedBy),
		CreatedAt: post.CreatedAt,
		Likes:     append([]models.Like{}, post.Likes...),
		Comments:  make([]models.CommentView, 0, len(post.Comments)),
	}
	for _, id := range post.Comments {
		comment, ok := m.comments[id]
		if !ok {
			continue
		}
		view.Comments = append(view.Comments, models.CommentView{
			ID:        comment.ID,
			User:      m.userRef(comment.User),
			Post:      comment.Post,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		})
	}
	return view
}

func (m *Memory) userRef(id primitive.ObjectID) models.UserRef {
	ref := models.UserRef{ID: id}
	if user, ok := m.users[id]; ok {
		ref.Name = user.Name
	}
	return ref
}

func copyUser(user *models.User) *models.User {
	copied := *user
	copied.Following = append([]primitive.ObjectID{}, user.Following...)
	copied.Followers = append([]primitive.ObjectID{}, user.Followers...)
	return &copied
}

func copyPost(post *models.Post) *models.Post {
	copied := *post
	copied.Likes = append([]models.Like{}, post.Likes...)
	copied.Comments = append([]primitive.ObjectID{}, post.Comments...)
	return &copied
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	kept := make([]primitive.ObjectID, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			kept = append(kept, candidate)
		}
	}
	return kept
}

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"socialapi/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newUser(t *testing.T, m *Memory, name string) primitive.ObjectID {
	t.Helper()
	user := &models.User{Name: name, Email: name + "@example.com"}
	if err := m.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) error: %v", name, err)
	}
	return user.ID
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	newUser(t, m, "ann")

	err := m.CreateUser(context.Background(), &models.User{Name: "other", Email: "ANN@example.com"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("CreateUser() error = %v, want ErrEmailTaken", err)
	}
}

func TestEmailIsNormalized(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	user := &models.User{Name: "ann", Email: "  Ann@Example.COM "}
	if err := m.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if user.Email != "ann@example.com" {
		t.Errorf("stored email = %q, want ann@example.com", user.Email)
	}

	found, err := m.FindByEmail(ctx, " ANN@example.com\t")
	if err != nil {
		t.Fatalf("FindByEmail() error: %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("FindByEmail() = %s, want %s", found.ID.Hex(), user.ID.Hex())
	}

	err = m.CreateUser(ctx, &models.User{Name: "other", Email: "ann@example.com "})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("CreateUser() error = %v, want ErrEmailTaken", err)
	}
}

func TestFollowUpdatesBothSides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	a := newUser(t, m, "ann")
	b := newUser(t, m, "bob")

	if err := m.Follow(ctx, a, b); err != nil {
		t.Fatalf("Follow() error: %v", err)
	}

	userA, _ := m.GetUser(ctx, a)
	userB, _ := m.GetUser(ctx, b)
	if !userA.IsFollowing(b) {
		t.Errorf("ann.following = %v, want to contain bob", userA.Following)
	}
	if len(userB.Followers) != 1 || userB.Followers[0] != a {
		t.Errorf("bob.followers = %v, want [ann]", userB.Followers)
	}

	if err := m.Follow(ctx, a, b); !errors.Is(err, ErrAlreadyFollowing) {
		t.Errorf("second Follow() error = %v, want ErrAlreadyFollowing", err)
	}
	if !errors.Is(ErrAlreadyFollowing, ErrConflict) {
		t.Error("ErrAlreadyFollowing is not a conflict")
	}
}

func TestFollowErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	a := newUser(t, m, "ann")

	if err := m.Follow(ctx, a, primitive.NewObjectID()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Follow(missing) error = %v, want ErrUserNotFound", err)
	}
	if err := m.Follow(ctx, a, a); !errors.Is(err, ErrCannotFollowSelf) {
		t.Errorf("Follow(self) error = %v, want ErrCannotFollowSelf", err)
	}
	if err := m.Unfollow(ctx, a, primitive.NewObjectID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Unfollow(missing) error = %v, want NotFound", err)
	}

	profile, err := m.Profile(ctx, a)
	if err != nil {
		t.Fatalf("Profile() error: %v", err)
	}
	if profile.NumFollowers != 0 || profile.NumFollowing != 0 {
		t.Errorf("Profile() = %+v, want zero counts", profile)
	}
}

func TestUnfollowRemovesBothSides(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	a := newUser(t, m, "ann")
	b := newUser(t, m, "bob")
	c := newUser(t, m, "cat")

	for _, target := range []primitive.ObjectID{b, c} {
		if err := m.Follow(ctx, a, target); err != nil {
			t.Fatalf("Follow() error: %v", err)
		}
	}
	if err := m.Unfollow(ctx, a, b); err != nil {
		t.Fatalf("Unfollow() error: %v", err)
	}
	if err := m.Unfollow(ctx, a, b); !errors.Is(err, ErrNotFollowing) {
		t.Errorf("second Unfollow() error = %v, want ErrNotFollowing", err)
	}

	profileA, _ := m.Profile(ctx, a)
	profileB, _ := m.Profile(ctx, b)
	if profileA.NumFollowing != 1 {
		t.Errorf("ann following = %d, want 1", profileA.NumFollowing)
	}
	if profileB.NumFollowers != 0 {
		t.Errorf("bob followers = %d, want 0", profileB.NumFollowers)
	}
}

func TestCreateThenGetPost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	owner := newUser(t, m, "ann")

	post, err := m.CreatePost(ctx, owner, "Hello", "first post")
	if err != nil {
		t.Fatalf("CreatePost() error: %v", err)
	}

	view, err := m.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost() error: %v", err)
	}
	if view.Title != "Hello" || view.Desc != "first post" {
		t.Errorf("GetPost() = %q/%q, want Hello/first post", view.Title, view.Desc)
	}
	if view.CreatedBy.ID != owner || view.CreatedBy.Name != "ann" {
		t.Errorf("CreatedBy = %+v, want ann", view.CreatedBy)
	}
	if len(view.Likes) != 0 || len(view.Comments) != 0 {
		t.Errorf("new post has %d likes and %d comments, want none", len(view.Likes), len(view.Comments))
	}
}

func TestLikeAndUnlike(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	owner := newUser(t, m, "ann")
	bob := newUser(t, m, "bob")
	cat := newUser(t, m, "cat")
	post, _ := m.CreatePost(ctx, owner, "t", "d")

	if _, err := m.Like(ctx, bob, post.ID); err != nil {
		t.Fatalf("Like(bob) error: %v", err)
	}
	likes, err := m.Like(ctx, cat, post.ID)
	if err != nil {
		t.Fatalf("Like(cat) error: %v", err)
	}
	if len(likes) != 2 || likes[0].User != cat || likes[1].User != bob {
		t.Errorf("likes = %v, want [cat bob]", likes)
	}

	if _, err := m.Like(ctx, bob, post.ID); !errors.Is(err, ErrAlreadyLiked) {
		t.Errorf("second Like() error = %v, want ErrAlreadyLiked", err)
	}
	if view, _ := m.GetPost(ctx, post.ID); len(view.Likes) != 2 {
		t.Errorf("likes after failed like = %d, want 2", len(view.Likes))
	}

	if _, err := m.Unlike(ctx, owner, post.ID); !errors.Is(err, ErrNotLiked) {
		t.Errorf("Unlike(never liked) error = %v, want ErrNotLiked", err)
	}

	likes, err = m.Unlike(ctx, cat, post.ID)
	if err != nil {
		t.Fatalf("Unlike() error: %v", err)
	}
	if len(likes) != 1 || likes[0].User != bob {
		t.Errorf("likes after unlike = %v, want [bob]", likes)
	}

	if _, err := m.Like(ctx, bob, primitive.NewObjectID()); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("Like(missing post) error = %v, want ErrPostNotFound", err)
	}
}

func TestConcurrentLikesKeepOneEntryPerUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	owner := newUser(t, m, "ann")
	post, _ := m.CreatePost(ctx, owner, "t", "d")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Like(ctx, owner, post.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful likes = %d, want 1", successes)
	}
}

func TestDeletePostOwnership(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	owner := newUser(t, m, "ann")
	other := newUser(t, m, "bob")
	post, _ := m.CreatePost(ctx, owner, "t", "d")

	if err := m.DeletePost(ctx, other, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("DeletePost(other) error = %v, want ErrPostNotFound", err)
	}
	if _, err := m.GetPost(ctx, post.ID); err != nil {
		t.Errorf("GetPost() after foreign delete error: %v", err)
	}

	if _, err := m.AddComment(ctx, other, post.ID, "nice", ""); err != nil {
		t.Fatalf("AddComment() error: %v", err)
	}
	if err := m.DeletePost(ctx, owner, post.ID); err != nil {
		t.Fatalf("DeletePost(owner) error: %v", err)
	}
	if _, err := m.GetPost(ctx, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("GetPost() after delete error = %v, want ErrPostNotFound", err)
	}
	if n := m.CommentCount(); n != 0 {
		t.Errorf("comments after delete = %d, want 0", n)
	}
}

func TestAddComment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	owner := newUser(t, m, "ann")
	bob := newUser(t, m, "bob")
	post, _ := m.CreatePost(ctx, owner, "t", "d")

	if _, err := m.AddComment(ctx, bob, primitive.NewObjectID(), "lost", ""); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("AddComment(missing post) error = %v, want ErrPostNotFound", err)
	}
	if n := m.CommentCount(); n != 0 {
		t.Errorf("comments after failed add = %d, want 0", n)
	}

	first, err := m.AddComment(ctx, bob, post.ID, "first", "key-1")
	if err != nil {
		t.Fatalf("AddComment() error: %v", err)
	}
	retry, err := m.AddComment(ctx, bob, post.ID, "first", "key-1")
	if err != nil {
		t.Fatalf("AddComment(retry) error: %v", err)
	}
	if retry.ID != first.ID {
		t.Errorf("retry id = %s, want %s", retry.ID.Hex(), first.ID.Hex())
	}

	other, _ := m.CreatePost(ctx, owner, "t2", "d2")
	if _, err := m.AddComment(ctx, bob, other.ID, "first", "key-1"); !errors.Is(err, ErrRequestKeyReused) {
		t.Errorf("AddComment(reused key) error = %v, want ErrRequestKeyReused", err)
	}

	if _, err := m.AddComment(ctx, owner, post.ID, "second", ""); err != nil {
		t.Fatalf("AddComment() error: %v", err)
	}

	view, _ := m.GetPost(ctx, post.ID)
	if len(view.Comments) != 2 {
		t.Fatalf("comments = %d, want 2", len(view.Comments))
	}
	if view.Comments[0].Text != "first" || view.Comments[0].User.Name != "bob" {
		t.Errorf("comments[0] = %+v, want first by bob", view.Comments[0])
	}
	if view.Comments[1].User.Name != "ann" {
		t.Errorf("comments[1].User = %+v, want ann", view.Comments[1].User)
	}
}

func TestListPostsByOwnerNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()
	owner := newUser(t, m, "ann")
	other := newUser(t, m, "bob")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	m.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})

	for _, title := range []string{"one", "two", "three"} {
		if _, err := m.CreatePost(ctx, owner, title, ""); err != nil {
			t.Fatalf("CreatePost() error: %v", err)
		}
	}
	if _, err := m.CreatePost(ctx, other, "not mine", ""); err != nil {
		t.Fatalf("CreatePost() error: %v", err)
	}

	posts, err := m.ListPostsByOwner(ctx, owner)
	if err != nil {
		t.Fatalf("ListPostsByOwner() error: %v", err)
	}
	var titles []string
	for _, p := range posts {
		titles = append(titles, p.Title)
	}
	want := []string{"three", "two", "one"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles = %v, want %v", titles, want)
			break
		}
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrUserNotFound, KindNotFound},
		{ErrNotLiked, KindConflict},
		{context.DeadlineExceeded, KindInternal},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

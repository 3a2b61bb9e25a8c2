package models

// CommentEvent is the logical content of a "comment created/edited" notification.
// Any of the pointers may be nil when the platform delivered a partial payload.
type CommentEvent struct {
	Comment   *Comment
	Post      *Post
	Author    *Author
	Community *Community
}

// Comment is a reply inside a thread.
type Comment struct {
	ID        string
	ParentID  string
	Body      string
	Permalink string
	// ParentIsPost is true for top-level replies, whose parent is the post itself.
	ParentIsPost bool
}

// Post is the thread a comment belongs to.
type Post struct {
	ID       string
	AuthorID string
	// FlairTags holds the names of the tags applied to the post.
	FlairTags []string
}

// Author is the account that wrote a comment.
type Author struct {
	ID   string
	Name string
}

// Community is the guild an event originated from.
type Community struct {
	ID   string
	Name string
}

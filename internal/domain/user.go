package domain

// User is the identity-provider view of an account.
type User struct {
	ID            UserID
	DisplayName   string
	Email         string
	EmailVerified bool
}

// Article is one agriculture news item from the feed provider.
type Article struct {
	Source      string `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url"`
	PublishedAt string `json:"published_at"`
}

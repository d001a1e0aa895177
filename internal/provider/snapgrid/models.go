package snapgrid

// ProfileResponse is the SnapGrid profile lookup response.
type ProfileResponse struct {
	Username       string `json:"username"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
	RunID          string `json:"runId"`
}

// RecordsResponse is one page of extracted records.
type RecordsResponse struct {
	PageInfo PageInfo `json:"pageInfo"`
	Items    []Item   `json:"items"`
}

type PageInfo struct {
	Page       int `json:"page"`
	NumPages   int `json:"numPages"`
	PageSize   int `json:"pageSize"`
	NumEntries int `json:"numEntries"`
}

// Item is a single post or comment as SnapGrid returns it.
type Item struct {
	Kind         string   `json:"kind"`
	ID           string   `json:"id"`
	ParentPostID string   `json:"parentPostId"`
	Text         string   `json:"text"`
	MediaType    string   `json:"mediaType"`
	LikeCount    int      `json:"likeCount"`
	CommentCount int      `json:"commentCount"`
	ShareCount   int      `json:"shareCount"`
	ViewCount    int      `json:"viewCount"`
	PublishedAt  string   `json:"publishedAt"`
	Sentiment    *float64 `json:"sentiment"`
}

// ErrorResponse is SnapGrid's error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

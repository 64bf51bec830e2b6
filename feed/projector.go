package feed

import (
	"strings"

	"corkboard/schemas"
)

// Project derives the visible list from the canonical list and the current
// search term: a post stays visible when the term is a case-insensitive
// substring of its title or content. The empty term matches everything and
// the canonical order is inherited untouched.
func Project(posts []schemas.Post, searchTerm string) []schemas.Post {
	if searchTerm == "" {
		visible := make([]schemas.Post, len(posts))
		copy(visible, posts)
		return visible
	}

	term := strings.ToLower(searchTerm)
	visible := make([]schemas.Post, 0, len(posts))
	for _, post := range posts {
		if strings.Contains(strings.ToLower(post.Title), term) ||
			strings.Contains(strings.ToLower(post.Content), term) {
			visible = append(visible, post)
		}
	}
	return visible
}

package cache

import "fmt"

// DocumentKey names the cached read model of one document.
func DocumentKey(contentType, contentID string) string {
	return fmt.Sprintf("content:%s:%s", contentType, contentID)
}

// DocumentPattern matches views derived from one document, such as history pages.
// The document key itself is not matched; invalidate it with Del.
func DocumentPattern(contentType, contentID string) string {
	return DocumentKey(contentType, contentID) + ":*"
}

// CollectionPattern matches the listing caches of a content type.
func CollectionPattern(contentType string) string {
	return fmt.Sprintf("collection:%s:*", contentType)
}

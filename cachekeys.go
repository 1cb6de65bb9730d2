package dataperm

import "strings"

// Cache keys are namespaced per category under a shared per-user prefix so
// unrelated categories can never collide and a user's entries can be evicted
// as a unit. Layout:
//
//	dataperm:u:{userID}:decision:{resourceType}:{resourceID}:{operation}
//	dataperm:u:{userID}:scope:{resourceType}
//	dataperm:u:{userID}:rules:{resourceType}

const cacheNamespace = "dataperm:u:"

func userCachePrefix(userID string) string {
	return cacheNamespace + userID + ":"
}

func decisionCacheKey(userID, resourceType, resourceID string, op Operation) string {
	var b strings.Builder
	b.Grow(len(cacheNamespace) + len(userID) + len(resourceType) + len(resourceID) + len(op) + 16)
	b.WriteString(userCachePrefix(userID))
	b.WriteString("decision:")
	b.WriteString(resourceType)
	b.WriteByte(':')
	b.WriteString(resourceID)
	b.WriteByte(':')
	b.WriteString(string(op))
	return b.String()
}

func scopeCacheKey(userID, resourceType string) string {
	return userCachePrefix(userID) + "scope:" + resourceType
}

func ruleListCacheKey(userID, resourceType string) string {
	return userCachePrefix(userID) + "rules:" + resourceType
}

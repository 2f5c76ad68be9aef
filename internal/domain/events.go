package domain

// Event topics published on the in-process bus. Subscribers attach by
// topic; payloads are the domain entities named below.
const (
	// TopicBookAdded carries a *Book after it is persisted.
	TopicBookAdded = "catalog.book.added"
	// TopicAuthorUpdated carries a *Author after an edit is persisted.
	TopicAuthorUpdated = "catalog.author.updated"
)

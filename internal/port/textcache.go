package port

// TextCache holds extracted document text keyed by document ID.
type TextCache interface {
	Put(key, text string)
	Get(key string) (string, bool)
	Delete(key string)
}

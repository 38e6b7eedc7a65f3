package ports

// Clipboard abstracts the system clipboard used for share links.
type Clipboard interface {
	Write(text string) error
}

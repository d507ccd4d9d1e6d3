package doctemplate

// Loader fetches the text of a partial by its resolved path. A missing
// partial should be reported as a *PartialNotFoundError.
type Loader interface {
	Load(path string) (string, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) (string, error)

func (f LoaderFunc) Load(path string) (string, error) { return f(path) }

// MemoryLoader serves partials from a map keyed by path.
type MemoryLoader map[string]string

func (m MemoryLoader) Load(path string) (string, error) {
	if s, ok := m[path]; ok {
		return s, nil
	}
	return "", &PartialNotFoundError{Path: path}
}

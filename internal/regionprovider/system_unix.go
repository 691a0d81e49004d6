//go:build unix

package regionprovider

func newSystem() (Provider, error) {
	return NewUnix()
}

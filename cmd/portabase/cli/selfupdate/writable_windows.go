//go:build windows

package selfupdate

// Windows swaps without elevation, so writability is never consulted.
func writable(string) bool {
	return true
}

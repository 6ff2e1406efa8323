//go:build !unix

package storage

func isEXDEV(err error) bool {
	return false
}

//go:build !linux

package queue

func renameNoReplace(src, dst string) error {
	return renameChecked(src, dst)
}

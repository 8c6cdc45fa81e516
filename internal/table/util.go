package table

import "os"

// removeIfExists deletes path, returning nil if it was already absent.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

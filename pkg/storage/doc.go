// Package storage places acquired images on disk.
//
// The storage package handles:
//   - Resolving catalog-relative paths against the public directory
//   - Writing images atomically through a temporary ".part" file in the
//     destination directory, renamed into place only after a check passes
//   - Copying manually supplied images to their destination
//   - Removing temporary files left behind by an interrupted run
//
// A destination file therefore either keeps its previous content or holds a
// complete, checked image. Readers never observe a partial write.
//
// Usage:
//
//	store, err := storage.NewManager("public")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dst := store.Resolve("images/destinations/spain.jpg")
//	n, err := storage.WriteAtomic(dst, resp.Body, func(tempPath string) error {
//	    return validator.Check(tempPath, resp.Header.Get("Content-Type"))
//	})
package storage

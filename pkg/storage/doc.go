// Package storage materializes downloaded items in the output directory.
//
// Place streams an item into ".photosync-<name>.part" next to its final path, fsyncs it,
// renames it over the final name and then stamps the file with the item's
// creation time. A reader of the output directory therefore sees either no
// file or a complete one; an interrupted write leaves only the temp file,
// which RemoveStalePartials clears at the start of the next run.
//
// Usage:
//
//	manager, err := storage.NewManager("photos")
//	if err != nil {
//	    return err
//	}
//	file, err := manager.Place(ctx, item.Filename(), body, createdAt, true)
package storage

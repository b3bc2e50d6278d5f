// Package importer orchestrates browsing a connected remote photo
// library and transferring selected items into local storage.
//
// BrowsePage lists one fixed-size page of the remote library and
// derives a thumbnail for each item through the on-disk cache, fanning
// the work out across a bounded worker pool. Import downloads each
// selected item's original and commits it to the store; a failed item
// is skipped with a recorded reason and never aborts the rest of the
// batch. The remote session is one-shot: it is torn down when the
// import completes.
package importer

package importer

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"photovault/internal/icloud"
	"photovault/internal/logging"
	"photovault/internal/media"
	"photovault/internal/mediatypes"
	"photovault/internal/metrics"
	"photovault/internal/remote"
	"photovault/internal/store"
	"photovault/internal/workers"
)

// PageSize is the number of remote items shown per browse page.
const PageSize = 20

// maxThumbnailWorkers caps concurrent preview downloads per page.
const maxThumbnailWorkers = 8

// Importer orchestrates remote library browsing and the transfer of
// selected items into the local store.
type Importer struct {
	remote *remote.Manager
	store  *store.Store
	cache  *media.Cache
}

// New returns an Importer over the given remote manager, local store,
// and thumbnail cache.
func New(m *remote.Manager, s *store.Store, c *media.Cache) *Importer {
	return &Importer{remote: m, store: s, cache: c}
}

// PageItem is one remote library entry on a browse page. Thumbnail is
// the local cache path of its derived thumbnail, or empty when
// derivation failed; a failed thumbnail never hides the item itself.
type PageItem struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	Thumbnail string `json:"-"`
}

// Page is one page of the remote library.
type Page struct {
	Items      []PageItem `json:"items"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
	TotalItems int        `json:"totalItems"`
	TotalPages int        `json:"totalPages"`
}

// Selection identifies one remote item chosen for import.
type Selection struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Failure records why one selected item was skipped.
type Failure struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// Result summarizes one import batch.
type Result struct {
	Imported int       `json:"imported"`
	Skipped  int       `json:"skipped"`
	Failures []Failure `json:"failures,omitempty"`
}

// BrowsePage lists one page of the remote library and derives
// thumbnails for its items. Pages are 1-indexed. Thumbnail derivation
// fans out across a bounded worker pool; individual failures are
// logged and leave the item's Thumbnail empty.
func (i *Importer) BrowsePage(ctx context.Context, handle string, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * PageSize
	descs, total, err := i.remote.ListPage(ctx, handle, offset, PageSize)
	if err != nil {
		return nil, err
	}

	owner, err := i.remote.Owner(handle)
	if err != nil {
		return nil, err
	}

	items := make([]PageItem, len(descs))
	for idx, d := range descs {
		items[idx] = PageItem{ID: d.ID, Filename: d.Filename, Size: d.Size}
	}

	numWorkers := workers.ForMixed(maxThumbnailWorkers)
	sem := make(chan struct{}, numWorkers)
	var wg sync.WaitGroup

	for idx := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, desc icloud.PhotoDescriptor) {
			defer wg.Done()
			defer func() { <-sem }()

			path, err := i.thumbnail(ctx, handle, owner, desc)
			if err != nil {
				logging.Warn("thumbnail for %s: %v", desc.Filename, err)
				return
			}
			items[idx].Thumbnail = path
		}(idx, descs[idx])
	}
	wg.Wait()

	return &Page{
		Items:      items,
		Page:       page,
		PageSize:   PageSize,
		TotalItems: total,
		TotalPages: totalPages(total),
	}, nil
}

// Thumbnail returns the local cache path of the thumbnail for one
// remote item, deriving and caching it on first use.
func (i *Importer) Thumbnail(ctx context.Context, handle, remoteID, filename string) (string, error) {
	owner, err := i.remote.Owner(handle)
	if err != nil {
		return "", err
	}
	return i.thumbnail(ctx, handle, owner, icloud.PhotoDescriptor{ID: remoteID, Filename: filename})
}

func (i *Importer) thumbnail(ctx context.Context, handle string, owner int64, desc icloud.PhotoDescriptor) (string, error) {
	return i.cache.GetOrCreate(owner, desc.ID, func() ([]byte, error) {
		rc, err := i.remote.Fetch(ctx, handle, desc, icloud.VariantPreview)
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading preview: %w", err)
		}
		return media.Derive(data, mediatypes.KindForFilename(desc.Filename))
	})
}

// Import downloads each selected item's original and commits it to the
// local store. A failed item is skipped with a recorded reason and
// never aborts the batch; everything already imported stays imported.
// The remote session is torn down afterwards regardless of outcome.
func (i *Importer) Import(ctx context.Context, handle string, selections []Selection) (*Result, error) {
	owner, err := i.remote.Owner(handle)
	if err != nil {
		return nil, err
	}
	defer i.remote.Complete(handle)

	start := time.Now()
	result := &Result{}

	for _, sel := range selections {
		if err := i.importOne(ctx, handle, owner, sel); err != nil {
			logging.Warn("import of %s skipped: %v", sel.Filename, err)
			metrics.ImportItemsTotal.WithLabelValues("skipped").Inc()
			result.Skipped++
			result.Failures = append(result.Failures, Failure{
				ID:       sel.ID,
				Filename: sel.Filename,
				Reason:   err.Error(),
			})
			continue
		}
		metrics.ImportItemsTotal.WithLabelValues("imported").Inc()
		result.Imported++
	}

	metrics.ImportBatchDuration.Observe(time.Since(start).Seconds())
	logging.Info("import batch done: %d imported, %d skipped", result.Imported, result.Skipped)
	return result, nil
}

func (i *Importer) importOne(ctx context.Context, handle string, owner int64, sel Selection) error {
	desc := icloud.PhotoDescriptor{ID: sel.ID, Filename: sel.Filename, Size: sel.Size}

	rc, err := i.remote.Fetch(ctx, handle, desc, icloud.VariantOriginal)
	if err != nil {
		return err
	}
	defer rc.Close()

	if _, err := i.store.Commit(ctx, owner, sel.Filename, rc); err != nil {
		return err
	}
	return nil
}

func totalPages(total int) int {
	return (total + PageSize - 1) / PageSize
}

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/smartreceipt/internal/api"
	"github.com/zombor/smartreceipt/internal/notify"
	"github.com/zombor/smartreceipt/internal/receipt"
)

// Backend is the subset of the receipt API the controller needs
type Backend interface {
	ListReceipts(ctx context.Context, category receipt.Category) ([]receipt.Receipt, error)
	GetReceipt(ctx context.Context, id receipt.ID) (*receipt.Receipt, error)
	DeleteReceipt(ctx context.Context, id receipt.ID) (*api.DeleteResult, error)
	Analytics(ctx context.Context) (*receipt.Summary, error)
	Upload(ctx context.Context, u api.Upload) (*receipt.Receipt, error)
}

// Clock provides the current time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Controller owns the client-side state: the selected category, the search
// query, the latest receipt snapshot and analytics summary, and the
// notification queue. Every snapshot is replaced wholesale by a fetch.
type Controller struct {
	backend  Backend
	queue    *notify.Queue
	notifier notify.Notifier
	clock    Clock

	receiptsSeq  Sequence
	analyticsSeq Sequence

	mu             sync.RWMutex
	category       receipt.Category
	query          string
	receipts       []receipt.Receipt
	receiptsLoaded bool
	summary        *receipt.Summary
}

// NewController creates a Controller with its own notification queue
func NewController(backend Backend) *Controller {
	return NewControllerWithClock(backend, systemClock{})
}

// NewControllerWithClock creates a Controller with a custom clock for testing
func NewControllerWithClock(backend Backend, clock Clock) *Controller {
	q := notify.NewQueue()
	return &Controller{
		backend:  backend,
		queue:    q,
		notifier: q,
		clock:    clock,
		receipts: []receipt.Receipt{},
	}
}

// Notifier returns the capability components use to report to the user
func (c *Controller) Notifier() notify.Notifier {
	return c.notifier
}

// Notifications drains the pending notifications
func (c *Controller) Notifications() []notify.Notification {
	return c.queue.Drain()
}

// Dismiss removes a pending notification
func (c *Controller) Dismiss(id string) bool {
	return c.queue.Dismiss(id)
}

// Category returns the selected category
func (c *Controller) Category() receipt.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.category
}

// Loaded reports whether a receipt snapshot has been applied yet
func (c *Controller) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.receiptsLoaded
}

// SelectCategory changes the category filter and fetches the receipts of
// that category from the backend.
func (c *Controller) SelectCategory(ctx context.Context, category receipt.Category) error {
	c.mu.Lock()
	c.category = category
	c.mu.Unlock()
	return c.loadReceipts(ctx)
}

// SetQuery sets the free-text search. It never hits the backend.
func (c *Controller) SetQuery(query string) {
	c.mu.Lock()
	c.query = query
	c.mu.Unlock()
}

// ClearFilters resets category and query and re-fetches
func (c *Controller) ClearFilters(ctx context.Context) error {
	c.SetQuery("")
	return c.SelectCategory(ctx, receipt.AllCategories)
}

// View returns the visible receipts for the current category and query
func (c *Controller) View() receipt.View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return receipt.Visible(c.receipts, c.category, c.query)
}

// Summary returns the latest analytics summary, if one has been fetched
func (c *Controller) Summary() (receipt.Summary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.summary == nil {
		return receipt.Summary{}, false
	}
	return *c.summary, true
}

// Refresh re-fetches receipts and analytics concurrently
func (c *Controller) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.loadReceipts(ctx) })
	g.Go(func() error { return c.loadAnalytics(ctx) })
	return g.Wait()
}

// RefreshAll is the user-triggered refresh
func (c *Controller) RefreshAll(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return err
	}
	c.notifier.Notify(notify.Success, "Data refreshed")
	return nil
}

// LoadAnalytics fetches only the analytics summary
func (c *Controller) LoadAnalytics(ctx context.Context) error {
	return c.loadAnalytics(ctx)
}

// Receipt fetches a single receipt from the backend
func (c *Controller) Receipt(ctx context.Context, id receipt.ID) (*receipt.Receipt, error) {
	r, err := c.backend.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Upload validates and sends a receipt image, then refreshes
func (c *Controller) Upload(ctx context.Context, u api.Upload) (*receipt.Receipt, error) {
	if err := api.ValidateUpload(u); err != nil {
		c.notifier.Notify(notify.Error, api.UserMessage(err))
		return nil, err
	}

	created, err := c.backend.Upload(ctx, u)
	if err != nil {
		slog.Error("Failed to upload receipt", "filename", u.Filename, "error", err)
		c.notifier.Notify(notify.Error, uploadFailureMessage(err))
		return nil, err
	}

	slog.Info("Receipt uploaded", "id", created.ID, "merchant", created.MerchantName)
	c.notifier.Notify(notify.Success, "Receipt processed successfully!")
	if err := c.Refresh(ctx); err != nil {
		slog.Warn("Refresh after upload failed", "error", err)
	}
	return created, nil
}

// Delete removes a receipt, then refreshes
func (c *Controller) Delete(ctx context.Context, id receipt.ID) error {
	if _, err := c.backend.DeleteReceipt(ctx, id); err != nil {
		slog.Error("Failed to delete receipt", "id", id, "error", err)
		c.notifier.Notify(notify.Error, "Failed to delete receipt. "+api.UserMessage(err))
		return err
	}

	c.notifier.Notify(notify.Success, "Receipt deleted")
	if err := c.Refresh(ctx); err != nil {
		slog.Warn("Refresh after delete failed", "error", err)
	}
	return nil
}

// Export serializes the current category-scoped snapshot and hands it to d.
// It returns the file name.
func (c *Controller) Export(d receipt.Downloader) (string, error) {
	c.mu.RLock()
	snapshot := c.receipts
	c.mu.RUnlock()

	filename, err := receipt.NewExporterWithClock(d, c.clock).Export(snapshot)
	if err != nil {
		c.notifier.Notify(notify.Error, api.UserMessage(err))
		return "", err
	}
	slog.Info("Exported receipts", "count", len(snapshot), "filename", filename)
	c.notifier.Notify(notify.Info, fmt.Sprintf("Exported %d receipts to %s", len(snapshot), filename))
	return filename, nil
}

func (c *Controller) loadReceipts(ctx context.Context) error {
	ticket := c.receiptsSeq.Issue()
	category := c.Category()

	data, err := c.backend.ListReceipts(ctx, category)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.receiptsSeq.IsLatest(ticket) {
		slog.Debug("Discarding stale receipts response", "ticket", ticket, "category", category)
		return nil
	}
	if err != nil {
		c.receipts = []receipt.Receipt{}
		c.receiptsLoaded = true
		c.notifier.Notify(notify.Error, api.UserMessage(err))
		return fmt.Errorf("loading receipts: %w", err)
	}
	for _, r := range data {
		if err := r.Validate(); err != nil {
			slog.Warn("Backend returned an invalid receipt", "id", r.ID, "error", err)
		}
	}
	c.receipts = data
	c.receiptsLoaded = true
	return nil
}

func (c *Controller) loadAnalytics(ctx context.Context) error {
	ticket := c.analyticsSeq.Issue()

	s, err := c.backend.Analytics(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.analyticsSeq.IsLatest(ticket) {
		slog.Debug("Discarding stale analytics response", "ticket", ticket)
		return nil
	}
	if err != nil {
		c.notifier.Notify(notify.Error, api.UserMessage(err))
		return fmt.Errorf("loading analytics: %w", err)
	}
	c.summary = s
	return nil
}

func uploadFailureMessage(err error) string {
	var serverErr *api.ServerError
	if errors.As(err, &serverErr) && serverErr.Detail == "" {
		return "Failed to upload receipt"
	}
	return api.UserMessage(err)
}

package service

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloudan-catalogue/models"
)

var (
	// ErrQueueFull is returned when the email queue cannot take another job
	ErrQueueFull = errors.New("email queue is full")

	// ErrDispatcherStopped is returned after Stop has been called
	ErrDispatcherStopped = errors.New("email dispatcher stopped")
)

// ItemSource lists catalogue items in the requested order
type ItemSource interface {
	ListItems(ctx context.Context, order models.SortOrder) ([]models.CatalogueItem, error)
}

// CatalogueAssembler builds a document from items
type CatalogueAssembler interface {
	Assemble(ctx context.Context, items []models.CatalogueItem, filter models.RenderFilter) (*Document, error)
}

// Ensure DocumentAssembler implements CatalogueAssembler
var _ CatalogueAssembler = (*DocumentAssembler)(nil)

// EmailJob is one queued catalogue email
type EmailJob struct {
	ID       string
	Email    string
	Filter   models.RenderFilter
	Order    models.SortOrder
	Enqueued time.Time
}

// EmailDispatcher renders and mails catalogues in the background.
// The caller is acknowledged as soon as the job is queued; outcomes are
// only logged, there is no channel back to the requester.
type EmailDispatcher struct {
	source    ItemSource
	assembler CatalogueAssembler
	mailer    Mailer
	timeout   time.Duration
	workers   int
	log       *zap.Logger

	jobs    chan EmailJob
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewEmailDispatcher creates a dispatcher with a bounded queue.
// timeout bounds each job from item lookup to send.
func NewEmailDispatcher(
	source ItemSource,
	assembler CatalogueAssembler,
	mailer Mailer,
	workers, queueSize int,
	timeout time.Duration,
	log *zap.Logger,
) *EmailDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &EmailDispatcher{
		source:    source,
		assembler: assembler,
		mailer:    mailer,
		timeout:   timeout,
		workers:   workers,
		log:       log,
		jobs:      make(chan EmailJob, queueSize),
	}
}

// Start launches the workers
func (d *EmailDispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	d.log.Info("✓ Email dispatcher started", zap.Int("workers", d.workers), zap.Int("queueSize", cap(d.jobs)))
}

// Enqueue validates and queues a job without waiting for it to run.
// It returns the job id used in every log line about the job.
func (d *EmailDispatcher) Enqueue(email string, filter models.RenderFilter, order models.SortOrder) (string, error) {
	addr, err := netmail.ParseAddress(email)
	if err != nil {
		return "", fmt.Errorf("%w: invalid email address %q", models.ErrValidationFailed, email)
	}
	if !filter.Valid() {
		return "", fmt.Errorf("%w: invalid filter %q", models.ErrValidationFailed, filter)
	}

	job := EmailJob{
		ID:       uuid.NewString(),
		Email:    addr.Address,
		Filter:   filter,
		Order:    order,
		Enqueued: time.Now(),
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return "", ErrDispatcherStopped
	}
	select {
	case d.jobs <- job:
		d.log.Info("📧 Catalogue email queued",
			zap.String("jobId", job.ID),
			zap.String("email", job.Email),
			zap.String("filter", string(job.Filter)))
		return job.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Stop refuses new jobs and waits until queued ones have been processed
// or ctx is done
func (d *EmailDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("✓ Email dispatcher drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email dispatcher did not drain: %w", ctx.Err())
	}
}

func (d *EmailDispatcher) work(worker int) {
	defer d.wg.Done()
	for job := range d.jobs {
		d.process(worker, job)
	}
}

// process runs one job on a fresh context. Jobs are not tied to the
// request that queued them.
func (d *EmailDispatcher) process(worker int, job EmailJob) {
	log := d.log.With(zap.String("jobId", job.ID), zap.Int("worker", worker))
	defer func() {
		if r := recover(); r != nil {
			log.Error("❌ Panic while processing catalogue email", zap.Any("panic", r))
		}
	}()

	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.send(ctx, job); err != nil {
		log.Error("❌ Catalogue email failed",
			zap.String("email", job.Email),
			zap.String("filter", string(job.Filter)),
			zap.Error(err))
		return
	}
	log.Info("✓ Catalogue email sent",
		zap.String("email", job.Email),
		zap.String("filter", string(job.Filter)),
		zap.Duration("took", time.Since(job.Enqueued)))
}

func (d *EmailDispatcher) send(ctx context.Context, job EmailJob) error {
	items, err := d.source.ListItems(ctx, job.Order)
	if err != nil {
		return fmt.Errorf("failed to list items: %w", err)
	}

	doc, err := d.assembler.Assemble(ctx, items, job.Filter)
	if err != nil {
		return err
	}

	return d.mailer.Send(ctx, EmailMessage{
		To:             job.Email,
		Subject:        fmt.Sprintf("Bloudan Bangles Catalogue (%s)", job.Filter),
		Body:           fmt.Sprintf("Please find attached the Bloudan Bangles catalogue for %s sizes.\n", job.Filter),
		AttachmentName: models.EmailAttachmentName(job.Filter),
		Attachment:     doc.Bytes,
	})
}

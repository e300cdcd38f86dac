package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/autoclaim/internal/domain/entity"
)

// ErrQueueFull is returned when a review alert cannot be queued
var ErrQueueFull = fmt.Errorf("review alert queue is full")

// ReviewSender delivers one review alert
type ReviewSender interface {
	SendReviewAlert(ctx context.Context, claim *entity.Claim) error
}

// ReviewNotifierConfig holds configuration for the review notifier
type ReviewNotifierConfig struct {
	QueueSize   int
	SendTimeout time.Duration
}

// DefaultReviewNotifierConfig returns default configuration
func DefaultReviewNotifierConfig() ReviewNotifierConfig {
	return ReviewNotifierConfig{
		QueueSize:   64,
		SendTimeout: 10 * time.Second,
	}
}

// ReviewNotifier implements port.ReviewNotifier. Alerts are queued and sent
// by a background loop; a full queue drops the alert.
type ReviewNotifier struct {
	config ReviewNotifierConfig
	sender ReviewSender
	queue  chan *entity.Claim
	logger *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	sentCount int
	failCount int
	dropCount int
}

// NewReviewNotifier creates a new review notifier worker
func NewReviewNotifier(config ReviewNotifierConfig, sender ReviewSender, logger *zap.Logger) *ReviewNotifier {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultReviewNotifierConfig().QueueSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultReviewNotifierConfig().SendTimeout
	}
	return &ReviewNotifier{
		config: config,
		sender: sender,
		queue:  make(chan *entity.Claim, config.QueueSize),
		logger: logger,
	}
}

// NotifyNeedsReview queues an alert without blocking
func (n *ReviewNotifier) NotifyNeedsReview(ctx context.Context, claim *entity.Claim) error {
	select {
	case n.queue <- claim:
		return nil
	default:
		n.mu.Lock()
		n.dropCount++
		n.mu.Unlock()
		n.logger.Warn("Review alert dropped, queue full",
			zap.String("claim_id", claim.ID),
			zap.Int("queue_size", n.config.QueueSize))
		return ErrQueueFull
	}
}

// Start begins consuming the alert queue
func (n *ReviewNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.isRunning {
		n.mu.Unlock()
		return fmt.Errorf("review notifier already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.done = make(chan struct{})
	n.isRunning = true
	n.mu.Unlock()

	n.logger.Info("ReviewNotifier started", zap.Int("queue_size", n.config.QueueSize))

	go n.loop(loopCtx, n.done)
	return nil
}

// Stop cancels the loop and waits for the in-flight alert to finish
func (n *ReviewNotifier) Stop() error {
	n.mu.Lock()
	if !n.isRunning {
		n.mu.Unlock()
		return nil
	}
	n.isRunning = false
	cancel, done := n.cancel, n.done
	n.mu.Unlock()

	cancel()
	<-done

	sent, failed, dropped := n.Stats()
	n.logger.Info("ReviewNotifier stopped",
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("dropped", dropped),
		zap.Int("unsent", len(n.queue)))
	return nil
}

// Name returns the worker name for identification
func (n *ReviewNotifier) Name() string {
	return "ReviewNotifier"
}

// Stats returns sent, failed and dropped alert counts
func (n *ReviewNotifier) Stats() (sent, failed, dropped int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sentCount, n.failCount, n.dropCount
}

func (n *ReviewNotifier) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case claim := <-n.queue:
			n.deliver(ctx, claim)
		}
	}
}

// deliver makes a single attempt; failed alerts are logged, not retried
func (n *ReviewNotifier) deliver(ctx context.Context, claim *entity.Claim) {
	sendCtx, cancel := context.WithTimeout(ctx, n.config.SendTimeout)
	defer cancel()

	err := n.sender.SendReviewAlert(sendCtx, claim)

	n.mu.Lock()
	if err != nil {
		n.failCount++
	} else {
		n.sentCount++
	}
	n.mu.Unlock()

	if err != nil {
		n.logger.Error("Failed to send review alert",
			zap.String("claim_id", claim.ID),
			zap.Error(err))
	}
}

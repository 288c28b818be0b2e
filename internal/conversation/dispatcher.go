package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smartcaller/qualification-engine/pkg/logging"
)

// ErrDispatcherClosed indicates the dispatcher is no longer accepting work.
var ErrDispatcherClosed = errors.New("conversation: dispatcher closed")

// Dispatcher routes conversation work through a queue before invoking the
// session manager. This lets the system point at LocalStack SQS during
// development and swap to AWS SQS in production without touching the HTTP
// handlers.
type Dispatcher struct {
	manager *Manager
	queue   Queue
	logger  *logging.Logger

	cfg dispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // jobID -> chan dispatchResult
}

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
)

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for ReceiveMessage calls.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

type dispatchResult struct {
	start *StartResult
	turn  *TurnResult
	err   error
}

// NewDispatcher wires a queue-backed dispatcher around the session manager.
func NewDispatcher(manager *Manager, queue Queue, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if manager == nil {
		panic("conversation: manager cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		manager: manager,
		queue:   queue,
		logger:  logger,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(i + 1)
	}

	return d
}

// StartSession enqueues a session-start request and blocks until a worker
// has processed it.
func (d *Dispatcher) StartSession(ctx context.Context, orgID string) (*StartResult, error) {
	res, err := d.enqueue(ctx, queuePayload{
		Kind:  jobTypeStart,
		Start: &startJob{OrgID: orgID},
	})
	if err != nil {
		return nil, err
	}
	return res.start, nil
}

// HandleTurn enqueues one user utterance and returns the processed reply.
func (d *Dispatcher) HandleTurn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	res, err := d.enqueue(ctx, queuePayload{
		Kind: jobTypeTurn,
		Turn: &turnJob{SessionID: sessionID, Text: text},
	})
	if err != nil {
		return nil, err
	}
	return res.turn, nil
}

// HandleFollowup enqueues a channel-choice action.
func (d *Dispatcher) HandleFollowup(ctx context.Context, sessionID string, action FollowupAction, email string) (*TurnResult, error) {
	res, err := d.enqueue(ctx, queuePayload{
		Kind:     jobTypeFollowup,
		Followup: &followupJob{SessionID: sessionID, Action: action, Email: email},
	})
	if err != nil {
		return nil, err
	}
	return res.turn, nil
}

// Shutdown stops worker goroutines and notifies any pending callers.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	d.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan dispatchResult); ok {
			select {
			case ch <- dispatchResult{err: ErrDispatcherClosed}:
			default:
			}
		}
		d.pending.Delete(key)
		return true
	})

	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, payload queuePayload) (dispatchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	payload.ID = uuid.NewString()
	body, err := json.Marshal(payload)
	if err != nil {
		return dispatchResult{}, fmt.Errorf("conversation: failed to encode payload: %w", err)
	}

	resultCh := make(chan dispatchResult, 1)
	d.pending.Store(payload.ID, resultCh)
	defer d.pending.Delete(payload.ID)

	if err := d.queue.Send(ctx, string(body)); err != nil {
		return dispatchResult{}, fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	select {
	case <-ctx.Done():
		return dispatchResult{}, ctx.Err()
	case res := <-resultCh:
		return res, res.err
	}
}

func (d *Dispatcher) runWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("conversation dispatcher worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("conversation dispatcher worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(d.ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleQueueMessage(msg)
		}
	}
}

func (d *Dispatcher) handleQueueMessage(msg QueueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		d.logger.Error("failed to decode conversation job", "error", err)
		deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.queue.Delete(deleteCtx, msg.ReceiptHandle)
		return
	}

	var res dispatchResult
	processingCtx := d.ctx

	switch payload.Kind {
	case jobTypeStart:
		if payload.Start == nil {
			res.err = fmt.Errorf("conversation: start job missing body")
			break
		}
		res.start, res.err = d.manager.StartSession(processingCtx, payload.Start.OrgID)
	case jobTypeTurn:
		if payload.Turn == nil {
			res.err = fmt.Errorf("conversation: turn job missing body")
			break
		}
		res.turn, res.err = d.manager.HandleTurn(processingCtx, payload.Turn.SessionID, payload.Turn.Text)
	case jobTypeFollowup:
		if payload.Followup == nil {
			res.err = fmt.Errorf("conversation: followup job missing body")
			break
		}
		res.turn, res.err = d.handleFollowupJob(processingCtx, payload.Followup)
	default:
		res.err = fmt.Errorf("conversation: unknown job type %q", payload.Kind)
	}

	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if delErr := d.queue.Delete(deleteCtx, msg.ReceiptHandle); delErr != nil {
		d.logger.Error("failed to delete conversation job", "error", delErr)
	}

	d.deliverResult(payload.ID, res)
}

func (d *Dispatcher) handleFollowupJob(ctx context.Context, job *followupJob) (*TurnResult, error) {
	switch job.Action {
	case FollowupBook:
		return d.manager.ChooseBooking(ctx, job.SessionID)
	case FollowupEmail:
		return d.manager.SubmitEmail(ctx, job.SessionID, job.Email)
	case FollowupBack:
		return d.manager.BackToBooking(ctx, job.SessionID)
	default:
		return nil, fmt.Errorf("conversation: unknown followup action %q", job.Action)
	}
}

func (d *Dispatcher) deliverResult(jobID string, res dispatchResult) {
	value, ok := d.pending.Load(jobID)
	if !ok {
		d.logger.Debug("no waiting caller for conversation job", "job_id", jobID)
		return
	}

	ch, ok := value.(chan dispatchResult)
	if !ok {
		d.logger.Error("conversation dispatcher pending map corrupted", "job_id", jobID)
		d.pending.Delete(jobID)
		return
	}

	select {
	case ch <- dispatchResult{start: res.start, turn: res.turn, err: res.err}:
	default:
	}
}

package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/velozap/disparador/app/services"
	"github.com/velozap/disparador/config"
	"github.com/velozap/disparador/models"
	"github.com/velozap/disparador/repository"
	"github.com/velozap/disparador/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Messages confirmed sent, partitioned by campaign
	messagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_messages_sent_total",
			Help: "Total number of campaign messages confirmed sent",
		},
	)

	messagesFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_messages_failed_total",
			Help: "Total number of campaign message send failures",
		},
	)

	batchPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_batch_pauses_total",
			Help: "Total number of anti-ban batch pauses taken",
		},
	)

	campaignsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campaigns_completed_total",
			Help: "Total number of campaigns driven to completion",
		},
	)

	runningCampaigns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaigns_running",
			Help: "Number of campaign send loops currently running",
		},
	)
)

// maxCounterFailures bounds how many consecutive daily-counter outages a run
// tolerates before pausing
const maxCounterFailures = 3

// CampaignStore is the durable persistence surface the orchestrator runs
// against. Keeping it an interface here keeps the orchestrator independent
// and easy to test.
type CampaignStore interface {
	LoadCampaign(ctx context.Context, campaignID uint) (*models.Campaign, error)
	LoadPendingContacts(ctx context.Context, campaignID uint) ([]*models.CampaignContact, error)
	RequeueInterrupted(ctx context.Context, campaignID uint) (int64, error)
	ClaimContact(ctx context.Context, row *models.CampaignContact) error
	FinishContact(ctx context.Context, row *models.CampaignContact, status models.CampaignContactStatus, errText string) error
	UpdateCampaignStatus(ctx context.Context, campaignID uint, status models.CampaignStatus, completedAt *time.Time) error
	ReconcileStats(ctx context.Context, campaignID uint) (models.CampaignStats, error)
}

// ScheduledLister finds scheduled campaigns whose activation time has passed
type ScheduledLister interface {
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
}

// runHandle tracks one in-flight campaign run
type runHandle struct {
	pauseOnce sync.Once
	pause     chan struct{}
	done      chan struct{}
}

func (h *runHandle) requestPause() {
	h.pauseOnce.Do(func() { close(h.pause) })
}

func (h *runHandle) pauseRequested() bool {
	select {
	case <-h.pause:
		return true
	default:
		return false
	}
}

// CampaignOrchestrator walks each running campaign's pending recipients one
// at a time, honoring the campaign's anti-ban pacing, and persists enough
// state after every step to resume safely after a crash or pause.
type CampaignOrchestrator struct {
	store     CampaignStore
	scheduled ScheduledLister
	counter   repository.SendCounter
	sender    services.MessageSender
	variation services.MessageVariationService
	local     *services.LocalVariationService
	locker    RunLocker
	pacer     *Pacer
	cfg       config.OrchestratorConfig
	logger    *log.Logger
	logFile   io.WriteCloser

	mu      sync.Mutex
	running map[uint]*runHandle

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// sleep is replaceable in tests so runs do not take real time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCampaignOrchestrator creates a new orchestrator instance
func NewCampaignOrchestrator(
	store CampaignStore,
	scheduled ScheduledLister,
	counter repository.SendCounter,
	sender services.MessageSender,
	variation services.MessageVariationService,
	locker RunLocker,
	cfg config.OrchestratorConfig,
) *CampaignOrchestrator {
	o := &CampaignOrchestrator{
		store:     store,
		scheduled: scheduled,
		counter:   counter,
		sender:    sender,
		variation: variation,
		local:     services.NewLocalVariationService(),
		locker:    locker,
		pacer:     NewPacer(),
		cfg:       cfg,
		running:   make(map[uint]*runHandle),
		sleep:     sleepContext,
	}
	o.initLogger()
	return o
}

// initLogger configures a logger that writes to both stdout and a rotating
// file so long campaign runs keep an auditable trail without unbounded disk
// growth
func (o *CampaignOrchestrator) initLogger() {
	if o.cfg.LogFilePath == "" {
		o.logger = log.New(os.Stdout, "orchestrator ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return
	}
	rotating := &lumberjack.Logger{
		Filename:   o.cfg.LogFilePath,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}
	o.logFile = rotating
	mw := io.MultiWriter(os.Stdout, rotating)
	o.logger = log.New(mw, "orchestrator ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start launches the scheduled-campaign activation loop in a background
// goroutine and returns a stop function. The stop function requests a pause
// on every in-flight run and blocks until they persist their state.
func (o *CampaignOrchestrator) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	o.ctx = ctx
	o.cancel = cancel

	go func() {
		interval := o.cfg.SchedulerPollInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		o.activateDueCampaigns(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.activateDueCampaigns(ctx)
			}
		}
	}()

	return func() {
		o.mu.Lock()
		for _, h := range o.running {
			h.requestPause()
		}
		o.mu.Unlock()
		o.wg.Wait()
		cancel()
		if o.logFile != nil {
			_ = o.logFile.Close()
		}
	}
}

// activateDueCampaigns starts every scheduled campaign whose activation time
// has passed
func (o *CampaignOrchestrator) activateDueCampaigns(ctx context.Context) {
	if o.scheduled == nil {
		return
	}
	due, err := o.scheduled.ListDueScheduled(ctx, utils.UTCNow(), 100)
	if err != nil {
		o.logger.Printf("list due scheduled campaigns failed: %v", err)
		return
	}
	for _, campaign := range due {
		if err := o.StartCampaign(ctx, campaign.ID); err != nil {
			o.logger.Printf("activate scheduled campaign id=%d failed: %v", campaign.ID, err)
		}
	}
}

// StartCampaign begins (or resumes) the send loop for one campaign. The call
// is idempotent: a campaign that is already running in this process, or locked
// by another process, is left alone.
func (o *CampaignOrchestrator) StartCampaign(ctx context.Context, campaignID uint) error {
	// Refuse before touching any campaign state: a misconfigured deployment
	// without an outbound channel must not flip campaigns to running.
	if o.sender == nil {
		return fmt.Errorf("no message sender configured, campaign %d left unchanged", campaignID)
	}

	o.mu.Lock()
	if _, ok := o.running[campaignID]; ok {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	lockKey := o.runLockKey(campaignID)
	acquired, err := o.locker.Acquire(ctx, lockKey, o.runLockTTL())
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !acquired {
		o.logger.Printf("campaign id=%d is already locked by another run", campaignID)
		return nil
	}

	campaign, err := o.store.LoadCampaign(ctx, campaignID)
	if err != nil {
		_ = o.locker.Release(ctx, lockKey)
		return fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		_ = o.locker.Release(ctx, lockKey)
		return fmt.Errorf("campaign %d not found", campaignID)
	}
	if campaign.Status != models.CampaignStatusRunning {
		if !campaign.Status.CanTransitionTo(models.CampaignStatusRunning) {
			_ = o.locker.Release(ctx, lockKey)
			return fmt.Errorf("campaign %d in status %s cannot start", campaignID, campaign.Status)
		}
		if err := o.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusRunning, nil); err != nil {
			_ = o.locker.Release(ctx, lockKey)
			return fmt.Errorf("failed to mark campaign running: %w", err)
		}
		campaign.Status = models.CampaignStatusRunning
	}

	handle := &runHandle{
		pause: make(chan struct{}),
		done:  make(chan struct{}),
	}
	o.mu.Lock()
	if _, ok := o.running[campaignID]; ok {
		// Lost the race to another local starter
		o.mu.Unlock()
		_ = o.locker.Release(ctx, lockKey)
		return nil
	}
	o.running[campaignID] = handle
	o.mu.Unlock()

	runCtx := o.ctx
	if runCtx == nil {
		runCtx = context.Background()
	}

	o.wg.Add(1)
	runningCampaigns.Inc()
	go func() {
		defer func() {
			o.mu.Lock()
			delete(o.running, campaignID)
			o.mu.Unlock()
			close(handle.done)
			_ = o.locker.Release(context.Background(), lockKey)
			runningCampaigns.Dec()
			o.wg.Done()
		}()
		o.runCampaign(runCtx, campaign, handle)
	}()

	return nil
}

func (o *CampaignOrchestrator) runLockKey(campaignID uint) string {
	return fmt.Sprintf("campaign_run:%d", campaignID)
}

func (o *CampaignOrchestrator) runLockTTL() time.Duration {
	if o.cfg.RunLockTTL > 0 {
		return o.cfg.RunLockTTL
	}
	return utils.RunLockTTL
}

// PauseCampaign requests a pause. The running loop observes the request at
// the next recipient boundary and persists the paused status itself. A
// campaign marked running in the database with no live loop in this process
// (after a crash) is moved to paused directly.
func (o *CampaignOrchestrator) PauseCampaign(ctx context.Context, campaignID uint) error {
	o.mu.Lock()
	handle, ok := o.running[campaignID]
	o.mu.Unlock()

	if ok {
		handle.requestPause()
		return nil
	}
	return o.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusPaused, nil)
}

// WaitForCampaign blocks until the campaign's current run finishes. Intended
// for tests and graceful shutdown paths.
func (o *CampaignOrchestrator) WaitForCampaign(campaignID uint) {
	o.mu.Lock()
	handle, ok := o.running[campaignID]
	o.mu.Unlock()
	if ok {
		<-handle.done
	}
}

// runCampaign is the sequential send loop for one campaign. Every state
// change is persisted before the loop moves on, so the persisted rows alone
// are enough to resume after a crash.
func (o *CampaignOrchestrator) runCampaign(ctx context.Context, campaign *models.Campaign, handle *runHandle) {
	cfg := campaign.AntiBan
	campaignUUID := campaign.UUID.String()
	lockKey := o.runLockKey(campaign.ID)

	// Rows a previous run claimed but never resolved (crash between the
	// claim and the outcome) are re-offered, otherwise they would count as
	// pending forever without ever being sent
	requeued, err := o.store.RequeueInterrupted(ctx, campaign.ID)
	if err != nil {
		o.logger.Printf("campaign %s: failed to requeue interrupted recipients: %v", campaignUUID, err)
		o.haltPaused(ctx, campaign.ID)
		return
	}
	if requeued > 0 {
		o.logger.Printf("campaign %s: re-offered %d recipients left mid-send by a previous run", campaignUUID, requeued)
	}

	rows, err := o.store.LoadPendingContacts(ctx, campaign.ID)
	if err != nil {
		o.logger.Printf("campaign %s: failed to load pending recipients: %v", campaignUUID, err)
		o.haltPaused(ctx, campaign.ID)
		return
	}
	o.logger.Printf("campaign %s: run started, %d pending recipients", campaignUUID, len(rows))

	// The batch counter tracks successful sends within this run only; a
	// resumed campaign starts a fresh batch.
	successfulSends := 0
	counterFailures := 0

	for i, row := range rows {
		if handle.pauseRequested() || ctx.Err() != nil {
			o.logger.Printf("campaign %s: pause requested, stopping at recipient %d/%d", campaignUUID, i, len(rows))
			o.haltPaused(ctx, campaign.ID)
			return
		}

		// A run under the slower presets outlives the lock TTL many times
		// over, so the lock is re-extended at every recipient boundary
		if err := o.locker.Refresh(ctx, lockKey, o.runLockTTL()); err != nil {
			o.logger.Printf("campaign %s: failed to refresh run lock: %v", campaignUUID, err)
		}

		// Daily quota is a soft limit checked at the loop boundary; sends
		// confirmed by other campaigns today count against it too. A counter
		// outage is tolerated briefly, then the run pauses rather than send
		// unbounded with no quota visibility.
		sentToday, err := o.counter.CountToday(ctx)
		if err != nil {
			counterFailures++
			o.logger.Printf("campaign %s: daily counter unavailable (%d/%d): %v", campaignUUID, counterFailures, maxCounterFailures, err)
			if counterFailures >= maxCounterFailures {
				o.logger.Printf("campaign %s: daily counter still unavailable, pausing", campaignUUID)
				o.haltPaused(ctx, campaign.ID)
				return
			}
		} else {
			counterFailures = 0
			if RemainingDaily(cfg, sentToday) == 0 {
				o.logger.Printf("campaign %s: daily limit of %d reached, pausing", campaignUUID, cfg.DailyLimit)
				o.haltPaused(ctx, campaign.ID)
				return
			}
		}

		// Persist the claim before the network call so a crash mid-send
		// leaves an accurate marker
		if err := o.store.ClaimContact(ctx, row); err != nil {
			o.logger.Printf("campaign %s: failed to claim recipient %s: %v", campaignUUID, row.TrackingID, err)
			o.haltPaused(ctx, campaign.ID)
			return
		}

		sendErr := o.sendToRecipient(ctx, campaign, row)
		if sendErr != nil {
			messagesFailedTotal.Inc()
			o.logger.Printf("campaign %s: send failed for %s: %v", campaignUUID, row.TrackingID, sendErr)
			if err := o.store.FinishContact(ctx, row, models.CampaignContactStatusFailed, sendErr.Error()); err != nil {
				o.logger.Printf("campaign %s: failed to persist failure for %s: %v", campaignUUID, row.TrackingID, err)
				o.haltPaused(ctx, campaign.ID)
				return
			}
		} else {
			if err := o.store.FinishContact(ctx, row, models.CampaignContactStatusSent, ""); err != nil {
				o.logger.Printf("campaign %s: failed to persist send for %s: %v", campaignUUID, row.TrackingID, err)
				o.haltPaused(ctx, campaign.ID)
				return
			}
			if _, err := o.counter.Increment(ctx); err != nil {
				o.logger.Printf("campaign %s: failed to increment daily counter: %v", campaignUUID, err)
			}
			messagesSentTotal.Inc()
			successfulSends++
		}

		// No wait after the final recipient
		if i == len(rows)-1 {
			break
		}

		if sendErr == nil && ShouldPauseForBatch(successfulSends, cfg) {
			batchPausesTotal.Inc()
			pause := BatchPauseDuration(cfg)
			o.logger.Printf("campaign %s: batch of %d complete, pausing %s", campaignUUID, cfg.BatchSize, pause)
			if err := o.sleepInterruptible(ctx, handle, pause); err != nil {
				o.logger.Printf("campaign %s: pause requested during batch pause", campaignUUID)
				o.haltPaused(ctx, campaign.ID)
				return
			}
			continue
		}

		delay := o.pacer.NextDelay(cfg)
		if err := o.sleepInterruptible(ctx, handle, delay); err != nil {
			o.logger.Printf("campaign %s: pause requested during delay", campaignUUID)
			o.haltPaused(ctx, campaign.ID)
			return
		}
	}

	o.finishRun(ctx, campaign.ID, campaignUUID)
}

// sendToRecipient builds the personalized (and optionally varied) message and
// relays it
func (o *CampaignOrchestrator) sendToRecipient(ctx context.Context, campaign *models.Campaign, row *models.CampaignContact) error {
	if row.Contact == nil {
		return fmt.Errorf("recipient %s has no contact record", row.TrackingID)
	}

	message := services.PersonalizeMessage(campaign.Message, row.Contact.DisplayName)
	message = o.varyMessage(ctx, campaign.AntiBan, message)

	msg := &services.OutboundMessage{
		PhoneNumber: row.Contact.PhoneNumber,
		Name:        row.Contact.DisplayName,
		Message:     message,
		MediaURL:    campaign.MediaURL,
		CampaignID:  campaign.UUID.String(),
		TrackingID:  row.TrackingID.String(),
	}
	if campaign.MediaType != nil {
		msg.MediaType = utils.ToPtr(string(*campaign.MediaType))
	}

	sendCtx, cancel := context.WithTimeout(ctx, utils.DefaultSenderTimeout)
	defer cancel()
	return o.sender.Send(sendCtx, msg)
}

// varyMessage applies the campaign's variation preference: an AI rewrite
// when enabled, otherwise (and when the rewrite fails) the local textual
// perturbation when random variation is on. With both toggles off the text
// goes out unchanged.
func (o *CampaignOrchestrator) varyMessage(ctx context.Context, cfg models.AntiBanConfig, message string) string {
	if cfg.EnableAIVariation && o.variation != nil {
		varied, err := o.variation.Vary(ctx, message)
		if err == nil && strings.TrimSpace(varied) != "" {
			return varied
		}
		if err != nil {
			o.logger.Printf("message rewrite failed, degrading to local variation: %v", err)
		}
	}
	if cfg.EnableRandomVariation {
		if varied, err := o.local.Vary(ctx, message); err == nil && varied != "" {
			return varied
		}
	}
	return message
}

// sleepInterruptible waits for d unless a pause is requested first
func (o *CampaignOrchestrator) sleepInterruptible(ctx context.Context, handle *runHandle, d time.Duration) error {
	if d <= 0 {
		if handle.pauseRequested() {
			return context.Canceled
		}
		return nil
	}
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-handle.pause:
			cancel()
		case <-waitCtx.Done():
		}
	}()
	if err := o.sleep(waitCtx, d); err != nil {
		return err
	}
	if handle.pauseRequested() {
		return context.Canceled
	}
	return nil
}

// finishRun reconciles the campaign counters from the authoritative rows and
// decides the terminal status: completed when nothing is left to send,
// paused otherwise
func (o *CampaignOrchestrator) finishRun(ctx context.Context, campaignID uint, campaignUUID string) {
	stats, err := o.store.ReconcileStats(ctx, campaignID)
	if err != nil {
		o.logger.Printf("campaign %s: failed to reconcile stats: %v", campaignUUID, err)
		o.haltPaused(ctx, campaignID)
		return
	}

	if stats.Pending == 0 {
		if err := o.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusCompleted, utils.UTCNowPtr()); err != nil {
			o.logger.Printf("campaign %s: failed to mark completed: %v", campaignUUID, err)
			return
		}
		campaignsCompletedTotal.Inc()
		o.logger.Printf("campaign %s: completed, stats total=%d sent=%d delivered=%d failed=%d",
			campaignUUID, stats.Total, stats.Sent, stats.Delivered, stats.Failed)
		return
	}

	if err := o.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusPaused, nil); err != nil {
		o.logger.Printf("campaign %s: failed to mark paused: %v", campaignUUID, err)
		return
	}
	o.logger.Printf("campaign %s: paused with %d recipients pending", campaignUUID, stats.Pending)
}

// haltPaused persists the paused status and reconciles counters so the run
// can resume later from the stored rows
func (o *CampaignOrchestrator) haltPaused(ctx context.Context, campaignID uint) {
	ctx = context.WithoutCancel(ctx)
	if _, err := o.store.ReconcileStats(ctx, campaignID); err != nil {
		o.logger.Printf("campaign id=%d: failed to reconcile stats on halt: %v", campaignID, err)
	}
	if err := o.store.UpdateCampaignStatus(ctx, campaignID, models.CampaignStatusPaused, nil); err != nil {
		o.logger.Printf("campaign id=%d: failed to persist paused status: %v", campaignID, err)
	}
}

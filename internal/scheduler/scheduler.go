package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"CycleLedger/internal/fund"
	"CycleLedger/internal/metrics"
	"CycleLedger/internal/model"
	"CycleLedger/internal/notifier"
)

// Caller is the identity the scheduler acts as. Printing reserved tickets is
// open to anyone, so it needs no grant.
const Caller model.Address = "scheduler"

// Sender delivers notifications.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Refresher updates exchange rates.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Fund      *fund.Manager
	Oracle    Refresher
	Notifier  Sender
	Log       *logrus.Entry
	Ctx       context.Context
	AutoPrint []uint64
}

// NewScheduler creates a new Scheduler. Oracle and Notifier may be nil.
func NewScheduler(ctx context.Context, fm *fund.Manager, oracle Refresher, sender Sender, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Fund:     fm,
		Oracle:   oracle,
		Notifier: sender,
		Log:      log,
		Ctx:      ctx,
	}
}

// RegisterAll registers the print, refresh and summary tasks. An empty
// autoPrint list prints for every project.
func (s *Scheduler) RegisterAll(printCron, refreshCron, summaryCron string, autoPrint []uint64) error {
	s.AutoPrint = autoPrint
	if _, err := s.Cron.AddFunc(printCron, s.printTask); err != nil {
		return fmt.Errorf("register print task: %w", err)
	}
	if s.Oracle != nil {
		if _, err := s.Cron.AddFunc(refreshCron, s.refreshTask); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	if s.Notifier != nil {
		if _, err := s.Cron.AddFunc(summaryCron, s.summaryTask); err != nil {
			return fmt.Errorf("register summary task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

// RefreshNow runs the rate refresh immediately (startup warm-up).
func (s *Scheduler) RefreshNow() {
	s.refreshTask()
}

func (s *Scheduler) projectIDs() []uint64 {
	if len(s.AutoPrint) > 0 {
		return s.AutoPrint
	}
	projects := s.Fund.Projects()
	ids := make([]uint64, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return ids
}

func (s *Scheduler) printTask() {
	s.Log.Debug("running reserved print task")
	for _, id := range s.projectIDs() {
		p, err := s.Fund.Project(id)
		if err != nil {
			s.Log.WithError(err).WithField("project", id).Warn("auto-print skipped")
			continue
		}
		d, err := s.Fund.PrintReservedTickets(Caller, id)
		if err != nil {
			s.Log.WithError(err).WithField("project", id).Error("auto-print failed")
			continue
		}
		if d.Total.IsPositive() {
			s.trySend(notifier.FormatPrint(p, d))
		}
	}
}

func (s *Scheduler) refreshTask() {
	if s.Oracle == nil {
		return
	}
	start := time.Now()
	err := s.Oracle.Refresh(s.Ctx)
	metrics.RateRefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.Log.WithError(err).Warn("rate refresh incomplete")
	}
}

func (s *Scheduler) summaryTask() {
	s.trySend(s.summary())
}

func (s *Scheduler) summary() string {
	projects := s.Fund.Projects()
	lines := make([]notifier.ProjectLine, 0, len(projects))
	for _, p := range projects {
		line := notifier.ProjectLine{Project: p, Supply: s.Fund.TotalSupplyOf(p.ID)}
		if fc, err := s.Fund.CurrentCycle(p.ID); err == nil {
			line.Cycle = fc.Number
		}
		if funds, err := s.Fund.Funds(p.ID); err == nil {
			line.Balance = funds.Balance
		}
		lines = append(lines, line)
	}
	return notifier.FormatSummary(lines, s.Fund.FeeBalance(), time.Now())
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return help
	}
	switch fields[0] {
	case "/summary":
		return s.summary()
	case "/cycle", "/reserved", "/supply":
	default:
		return help
	}

	if len(fields) < 2 {
		return fmt.Sprintf("usage: %s <project id or handle>", fields[0])
	}
	p, err := s.resolve(fields[1])
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}

	switch fields[0] {
	case "/cycle":
		fc, err := s.Fund.CurrentCycle(p.ID)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		var queued *model.FundingCycle
		if q, ok, err := s.Fund.QueuedCycle(p.ID); err == nil && ok {
			queued = &q
		}
		return notifier.FormatCycle(p, fc, queued)
	case "/reserved":
		printable, err := s.Fund.ReservedPrintable(p.ID)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatReserved(p, printable, s.Fund.Tracking(p.ID))
	default:
		funds, err := s.Fund.Funds(p.ID)
		if err != nil {
			return fmt.Sprintf("❌ %v", err)
		}
		return notifier.FormatSupply(p, s.Fund.TotalSupplyOf(p.ID), funds)
	}
}

const help = "Commands:\n• /cycle <project>\n• /reserved <project>\n• /supply <project>\n• /summary"

func (s *Scheduler) resolve(ref string) (model.Project, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return s.Fund.Project(id)
	}
	return s.Fund.ProjectByHandle(ref)
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.Log.WithError(err).Error("send notification")
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/internal/config"
	"github.com/aretw0/inquiry/internal/presentation/tui"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/pacing"
	"github.com/google/uuid"
)

// RunOptions contains the configuration of the run command.
type RunOptions struct {
	GraphPath string
	SessionID string

	// Name and Email skip the respondent prompts when both are set.
	Name  string
	Email string

	Debug bool
	// Plain disables the banner, markdown rendering and typing delays.
	// It is implied when input or output is not a terminal.
	Plain bool
	// Record stores the finished response in the configured repository.
	Record bool
}

// Run walks an inquiry in the terminal until it terminates or is interrupted.
func Run(ctx context.Context, cfg *config.Config, opts RunOptions, in io.Reader, out io.Writer) error {
	logger := createLogger(cfg.Log, opts.Debug)
	interactive := !opts.Plain && isTerminal(in) && isTerminal(out)

	services, err := NewServices(cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	sub, err := services.Reasoning.Open(ctx, opts.SessionID)
	if err != nil {
		return fmt.Errorf("open reasoning session: %w", err)
	}
	defer sub.Close()

	engineOpts := []inquiry.Option{
		inquiry.WithLogger(logger),
		inquiry.WithIntegrationRunner(services.Tools),
		inquiry.WithMaxConditionHops(cfg.Traversal.MaxConditionHops),
	}
	if opts.Debug {
		engineOpts = append(engineOpts, inquiry.WithLifecycleHooks(createDebugHooks(logger)))
	}
	if services.Narrator != nil {
		engineOpts = append(engineOpts, inquiry.WithNarrator(services.Narrator))
	}
	engine, err := inquiry.Load(opts.GraphPath, sub, engineOpts...)
	if err != nil {
		return err
	}

	var render func(string) (string, error)
	if interactive {
		tui.PrintBanner(out)
		render = tui.NewRenderer(terminalWidth(out))
	}
	printer := tui.NewPrinter(out, render)

	queueOpts := []pacing.Option{
		pacing.WithRelease(func(it pacing.Item) { printer.Event(it.DisplayEvent) }),
		pacing.WithLogger(logger),
	}
	if interactive {
		queueOpts = append(queueOpts,
			pacing.WithDelayFunc(pacing.PerCharacter(cfg.Pacing.PerChar)),
			pacing.WithBounds(cfg.Pacing.Min, cfg.Pacing.Max))
	} else {
		queueOpts = append(queueOpts, pacing.WithImmediate(func(pacing.Item) bool { return true }))
	}
	queue := pacing.New(queueOpts...)

	queueCtx, stopQueue := context.WithCancel(ctx)
	defer stopQueue()
	go func() { _ = queue.Run(queueCtx) }()

	runner := &inquiry.Runner{
		Input:  in,
		Output: out,
		Display: func(ctx context.Context, events []domain.DisplayEvent) error {
			return display(ctx, queue, events)
		},
	}
	if opts.Name != "" && opts.Email != "" {
		runner.Respondent = &domain.Respondent{Name: opts.Name, Email: opts.Email}
	}

	logger.Info("session started", "inquiry", engine.Name, "session_id", opts.SessionID)
	state, runErr := runner.Run(ctx, engine, engine.Start(opts.SessionID))
	if runErr != nil {
		if isInterrupted(runErr) {
			fmt.Fprintln(out)
			printSystemMessage(out, "Interrupted at '%s' node.", state.CurrentNodeID)
		}
		return handleExecutionError(runErr)
	}

	if state.Phase == domain.PhaseErrored {
		printer.Failure("The conversation stopped: %s", state.Failure)
		return fmt.Errorf("traversal failed at '%s': %s", state.CurrentNodeID, state.Failure)
	}

	if opts.Record {
		id, err := record(ctx, services, engine, state)
		if err != nil {
			return fmt.Errorf("record response: %w", err)
		}
		printSystemMessage(out, "Response %s recorded.", id)
	}

	if cfg.Sessions.Prediction {
		predictCtx, cancel := context.WithTimeout(ctx, cfg.Reasoning.Timeout)
		text, err := sub.Predict(predictCtx, state.Transcript())
		cancel()
		if err != nil {
			logger.Warn("prediction failed", "session_id", opts.SessionID, "error", err)
		} else if text != "" {
			_ = display(ctx, queue, []domain.DisplayEvent{{Sender: domain.SenderBot, Kind: domain.KindText, Content: text}})
		}
	}

	printSystemMessage(out, "Finished at '%s' node.", state.CurrentNodeID)
	return nil
}

// display enqueues the bot events of a step and waits until they are shown.
// User events are skipped: the respondent already sees what they typed.
func display(ctx context.Context, queue *pacing.Queue, events []domain.DisplayEvent) error {
	var last *pacing.Ticket
	for _, ev := range events {
		if ev.Sender == domain.SenderUser {
			continue
		}
		last = queue.Enqueue(pacing.FromEvent(ev))
	}
	if last == nil {
		return nil
	}
	return last.Wait(ctx)
}

func record(ctx context.Context, services *Services, engine *inquiry.Engine, state *domain.TraversalState) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := services.Repo.LoadGraph(ctx, engine.Name)
	if errors.Is(err, domain.ErrInquiryNotFound) {
		err = services.Repo.SaveGraph(ctx, engine.Name, engine.Graph())
	}
	if err != nil {
		return "", err
	}
	return services.Repo.AppendResponse(ctx, engine.Name, domain.NewSubmission(state))
}

package inquiry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/session"
)

// Runner drives one respondent session over line-based IO.
// This allows for easy testing and integration with different frontends.
type Runner struct {
	Input  io.Reader
	Output io.Writer

	// Display shows the events of one step. It defaults to printing each
	// event on its own line, with numbered options for rating questions.
	Display func(ctx context.Context, events []domain.DisplayEvent) error

	// Respondent skips the name and email prompts when set.
	Respondent *domain.Respondent

	// OnStep observes every committed state, e.g. to snapshot it.
	OnStep func(*domain.TraversalState)

	reader    *bufio.Reader
	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// Run walks the session until it terminates, fails, or ctx is done.
// A terminal state is returned with a nil error even when the traversal
// errored; check state.Phase.
func (r *Runner) Run(ctx context.Context, e *Engine, state *domain.TraversalState) (*domain.TraversalState, error) {
	if r.Input == nil {
		return state, fmt.Errorf("input reader must be set")
	}
	if r.Output == nil {
		return state, fmt.Errorf("output writer must be set")
	}
	if state == nil {
		state = e.Start("")
	}

	if state.Phase == domain.PhaseIdle {
		next, err := r.begin(ctx, e, state)
		if err != nil {
			return state, err
		}
		state = next
	}

	for !state.Phase.Final() {
		if state.Phase != domain.PhaseAwaitingResponse {
			return state, fmt.Errorf("cannot resume a session in phase %q", state.Phase)
		}
		q, _ := e.Question(state)

		line, err := r.ask(ctx, "> ")
		if err != nil {
			return state, err
		}
		next, events, err := e.Submit(ctx, state, ParseAnswer(q, line))
		if errors.Is(err, domain.ErrInvalidResponse) {
			fmt.Fprintf(r.Output, "Error: %v. Please try again.\n", err)
			continue
		}
		if err != nil {
			return state, err
		}
		state = next
		if err := r.commit(ctx, state, events); err != nil {
			return state, err
		}
	}
	return state, nil
}

func (r *Runner) begin(ctx context.Context, e *Engine, state *domain.TraversalState) (*domain.TraversalState, error) {
	for {
		who, err := r.respondent(ctx)
		if err != nil {
			return nil, err
		}
		next, events, err := e.Begin(ctx, state, who)
		if errors.Is(err, domain.ErrRespondentDetails) && r.Respondent == nil {
			fmt.Fprintf(r.Output, "Error: %v. Please try again.\n", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, r.commit(ctx, next, events)
	}
}

func (r *Runner) respondent(ctx context.Context) (domain.Respondent, error) {
	if r.Respondent != nil {
		return *r.Respondent, nil
	}
	name, err := r.ask(ctx, "Name: ")
	if err != nil {
		return domain.Respondent{}, err
	}
	email, err := r.ask(ctx, "Email: ")
	if err != nil {
		return domain.Respondent{}, err
	}
	return domain.Respondent{Name: name, Email: email}, nil
}

func (r *Runner) commit(ctx context.Context, state *domain.TraversalState, events []domain.DisplayEvent) error {
	if r.OnStep != nil {
		r.OnStep(state)
	}
	if r.Display != nil {
		return r.Display(ctx, events)
	}
	for _, ev := range events {
		if ev.Sender == domain.SenderUser {
			continue
		}
		fmt.Fprintln(r.Output, ev.Content)
		if ev.AnswerKind.IsRating() {
			for i, o := range ev.Options {
				fmt.Fprintf(r.Output, "  %d. %s\n", i+1, o)
			}
		}
	}
	return nil
}

// ask prints a prompt and waits for one sanitized line.
func (r *Runner) ask(ctx context.Context, prompt string) (string, error) {
	r.startOnce.Do(func() {
		r.reader = bufio.NewReader(r.Input)
		r.inputChan = make(chan inputResult)
		go r.pump()
	})

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			fmt.Fprint(r.Output, prompt)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-r.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			clean, err := session.SanitizeInput(strings.TrimSpace(res.text))
			if err != nil {
				fmt.Fprintf(r.Output, "Error: %v. Please try again.\n", err)
				continue
			}
			return clean, nil
		}
	}
}

func (r *Runner) pump() {
	defer close(r.inputChan)
	for {
		text, err := r.reader.ReadString('\n')
		if text != "" {
			r.inputChan <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				r.inputChan <- inputResult{err: err}
			}
			return
		}
	}
}

// ParseAnswer turns a typed line into a response for q.
// Rating answers are comma separated and may name an option or give its
// 1-based number; unmatched tokens are kept so the engine can reject them.
func ParseAnswer(q domain.QuestionData, line string) domain.Response {
	line = strings.TrimSpace(line)
	if !q.AnswerKind.IsRating() {
		return domain.Response{Text: line}
	}

	var ratings []string
	for _, tok := range strings.Split(line, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		ratings = append(ratings, matchOption(q.Options, tok))
	}
	return domain.Response{SelectedRatings: ratings}
}

func matchOption(options []string, tok string) string {
	if n, err := strconv.Atoi(tok); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	for _, o := range options {
		if strings.EqualFold(o, tok) {
			return o
		}
	}
	return tok
}

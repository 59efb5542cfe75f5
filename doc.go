/*
Package inquiry walks conversational surveys expressed as directed graphs.

An inquiry is a graph of typed nodes (start, information, question, condition,
integration, end) joined by edges. The engine walks it for one respondent at a
time, emitting display events for the chat and recording a visit history. Condition
nodes and dynamically generated text are resolved by an external reasoning service;
the reasoning package ships an offline rule-based reasoner for tests and the CLI.

# Usage

	eng, err := inquiry.Load("survey.json", reasoner)
	if err != nil {
		log.Fatal(err)
	}

	state := eng.Start("")
	state, events, err := eng.Begin(ctx, state, domain.Respondent{Name: "Ana", Email: "ana@example.com"})
	// show events, then answer the pending question
	state, events, err = eng.Submit(ctx, state, domain.Response{Text: "Mostly good"})

The Runner drives the same loop over an io.Reader and io.Writer.
Multi-session hosting, pacing of bot messages and persistence live in
pkg/session, pkg/pacing and pkg/adapters.
*/
package inquiry

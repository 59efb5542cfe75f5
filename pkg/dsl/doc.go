/*
Package dsl builds inquiry graphs in Go instead of JSON documents.

Nodes are declared in order; edges are derived from Go calls and numbered
in declaration order, so the same program always yields the same graph.

	b := dsl.New()
	b.Add("start").Start("Welcome").Go("ask")
	b.Add("ask").Question("How likely are you to recommend us?").
		Rating("low", "medium", "high").
		Go("route")
	b.Add("route").
		Condition(`when "high" in ratings -> thanks
otherwise -> end`).
		Go("thanks", "end")
	b.Add("thanks").Info("Thanks for the kind words!").Go("end")
	b.Add("end").End("")

	g, err := b.Build() // validated *domain.Graph
*/
package dsl

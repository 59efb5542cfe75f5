package inquiry_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/inquiry"
	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/dsl"
	"github.com/aretw0/inquiry/pkg/reasoning"
)

func ExampleNew() {
	b := dsl.New()
	b.Add("start").Start("").Go("ask")
	b.Add("ask").Question("Would you recommend us?").Rating("yes", "no").Go("route")
	b.Add("route").
		Condition("when len(ratings) > 0 && ratings[0] == \"yes\" -> happy\notherwise -> end").
		Go("happy", "end")
	b.Add("happy").Info("Glad to hear it!").Go("end")
	b.Add("end").End("")
	g, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}

	client := reasoning.NewClient(reasoning.NewLoopback(reasoning.NewRules()))
	defer client.Close()

	ctx := context.Background()
	sub, err := client.Open(ctx, "example")
	if err != nil {
		log.Fatal(err)
	}
	defer sub.Close()

	eng, err := inquiry.New(g, sub, inquiry.WithName("nps"))
	if err != nil {
		log.Fatal(err)
	}

	state := eng.Start("example")
	state, events, err := eng.Begin(ctx, state, domain.Respondent{Name: "Ana", Email: "ana@example.com"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(events[0].Content)

	state, events, err = eng.Submit(ctx, state, domain.Response{SelectedRatings: []string{"yes"}})
	if err != nil {
		log.Fatal(err)
	}
	for _, ev := range events {
		fmt.Printf("%s: %s\n", ev.Sender, ev.Content)
	}
	fmt.Println(state.Phase)

	// Output:
	// Would you recommend us?
	// user: yes
	// bot: Glad to hear it!
	// terminated
}
